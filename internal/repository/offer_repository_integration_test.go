//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/testinfra"
	"github.com/fadilmartias/jobmatch/internal/validation"
)

func payload(title, company, date string) dto.OfferPayload {
	return dto.OfferPayload{
		Title:       title,
		JobName:     title,
		Date:        date,
		Source:      model.SourceAPEC,
		Description: dto.DescriptionPayload{OfferText: "Développeur " + title + " chez " + company},
		Company:     dto.CompanyPayload{Name: company},
		City:        dto.CityPayload{Name: "Lyon", Region: dto.RegionPayload{Code: "84"}},
		Skills:      []string{"go", "sql", "go"},
		Degrees:     []string{"Bac+5"},
	}
}

func basis(i int) []float32 {
	v := make([]float32, model.EmbeddingDims)
	v[i%model.EmbeddingDims] = 1
	return v
}

func intPtr(v int) *int { return &v }

func TestInsertOfferIdempotent(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	p := payload("Dev Go", "Acme", "2024-05-01")
	id1, inserted, err := repo.InsertOffer(ctx, p)
	if err != nil || !inserted {
		t.Fatalf("InsertOffer() = %d, %v, %v; want inserted", id1, inserted, err)
	}
	id2, inserted, err := repo.InsertOffer(ctx, p)
	if err != nil {
		t.Fatalf("InsertOffer() duplicate error = %v", err)
	}
	if inserted || id2 != id1 {
		t.Errorf("duplicate InsertOffer() = %d, %v; want %d, false", id2, inserted, id1)
	}

	for table, want := range map[string]int64{
		"offers": 1, "descriptions": 1, "companies": 1, "cities": 1, "regions": 1,
		"skills": 2, "offer_skills": 2, "degrees": 1, "offer_degrees": 1,
	} {
		var n int64
		if err := db.Table(table).Count(&n).Error; err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Errorf("%s rows = %d, want %d", table, n, want)
		}
	}

	// Dimension rows are shared; dedup is case sensitive.
	if _, inserted, err := repo.InsertOffer(ctx, payload("dev go", "Acme", "2024-05-01")); err != nil || !inserted {
		t.Errorf("InsertOffer(lowercase title) = %v, %v; want inserted", inserted, err)
	}
	var companies int64
	db.Model(&model.Company{}).Count(&companies)
	if companies != 1 {
		t.Errorf("companies = %d, want 1", companies)
	}
}

func TestMigrateVectorIndex(t *testing.T) {
	db := testinfra.StartPostgres(t)
	if err := model.Migrate(db); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	var def string
	err := db.Raw("SELECT indexdef FROM pg_indexes WHERE tablename = 'offer_vectors' AND indexname = ?",
		model.VectorIndexName).Scan(&def).Error
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(def, "hnsw") || !strings.Contains(def, "vector_cosine_ops") {
		t.Errorf("index definition = %q, want hnsw with vector_cosine_ops", def)
	}
}

func TestInsertOfferValidation(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)

	p := payload("", "Acme", "not a date")
	_, _, err := repo.InsertOffer(context.Background(), p)
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("InsertOffer() error = %v, want validation error", err)
	}
	var n int64
	db.Model(&model.Offer{}).Count(&n)
	if n != 0 {
		t.Errorf("offers = %d after rejected insert, want 0", n)
	}
}

func TestAddEmbedding(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	id, _, err := repo.InsertOffer(ctx, payload("Dev Go", "Acme", "2024-05-01"))
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceClusters(ctx, []model.Cluster{{ID: 0}, {ID: 1}}, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		u    EmbeddingUpdate
		want error
	}{
		{"cluster before embedding", EmbeddingUpdate{OfferID: id, ClusterID: intPtr(0)}, ErrNotEmbedded},
		{"3-d only before embedding", EmbeddingUpdate{OfferID: id, Emb3: []float32{1, 2, 3}}, ErrNotEmbedded},
		{"wrong length", EmbeddingUpdate{OfferID: id, Emb50: []float32{1, 2}}, nlp.ErrDimensionMismatch},
		{"unknown offer", EmbeddingUpdate{OfferID: id + 100, Emb50: basis(0)}, ErrOfferNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.AddEmbedding(ctx, tt.u); !errors.Is(err, tt.want) {
				t.Errorf("AddEmbedding() error = %v, want %v", err, tt.want)
			}
		})
	}

	if err := repo.AddEmbedding(ctx, EmbeddingUpdate{OfferID: id, Emb50: basis(1), Epoch: 3}); err != nil {
		t.Fatalf("AddEmbedding(emb50) error = %v", err)
	}
	if err := repo.AddEmbedding(ctx, EmbeddingUpdate{OfferID: id, Emb3: []float32{1, 2, 3}, ClusterID: intPtr(1)}); err != nil {
		t.Fatalf("AddEmbedding(emb3, cluster) error = %v", err)
	}

	vecs, err := repo.Vectors(ctx, []int64{id})
	if err != nil {
		t.Fatal(err)
	}
	got := vecs[id]
	if got.Epoch != 3 || got.Emb50[1] != 1 {
		t.Errorf("stored vector = epoch %d, %v; want epoch 3 and the untouched 50-d vector", got.Epoch, got.Emb50[:3])
	}
	o, err := repo.FindOffer(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if o.ClusterID == nil || *o.ClusterID != 1 || o.VectorID == nil {
		t.Errorf("offer cluster/vector = %v/%v, want 1/set", o.ClusterID, o.VectorID)
	}
}

func TestReplaceVectorsAndClusters(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 10; i++ {
		id, _, err := repo.InsertOffer(ctx, payload(fmt.Sprintf("Offer %d", i), "Acme", fmt.Sprintf("2024-05-%02d", i+1)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	rows := make([]VectorRow, len(ids))
	for i, id := range ids {
		rows[i] = VectorRow{OfferID: id, Emb50: basis(i), Emb3: []float32{float32(i), 0, 0}, Epoch: 7}
	}
	if err := repo.ReplaceVectors(ctx, rows); err != nil {
		t.Fatalf("ReplaceVectors() error = %v", err)
	}

	assign := func(k int) {
		t.Helper()
		clusters := make([]model.Cluster, k)
		for c := range clusters {
			clusters[c] = model.Cluster{ID: c, RepresentativeTerms: []string{fmt.Sprintf("term%d", c)}}
		}
		assignments := make(map[int64]int, len(ids))
		for i, id := range ids {
			assignments[id] = i % k
		}
		if err := repo.ReplaceClusters(ctx, clusters, assignments); err != nil {
			t.Fatalf("ReplaceClusters(k=%d) error = %v", k, err)
		}
	}
	assign(5)
	assign(3)

	summary, err := repo.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if summary["cluster_id"] != 0 || summary["vector_id"] != 0 {
		t.Errorf("null cluster_id/vector_id = %d/%d, want 0/0", summary["cluster_id"], summary["vector_id"])
	}
	var dangling int64
	db.Raw("SELECT COUNT(*) FROM offers LEFT JOIN clusters ON clusters.id = offers.cluster_id WHERE offers.cluster_id IS NOT NULL AND clusters.id IS NULL").Scan(&dangling)
	if dangling != 0 {
		t.Errorf("offers referencing deleted clusters = %d", dangling)
	}

	epochIDs, vecs, err := repo.EmbeddedVectors(ctx, 7)
	if err != nil || len(epochIDs) != 10 || len(vecs) != 10 {
		t.Errorf("EmbeddedVectors(7) = %d ids, %v", len(epochIDs), err)
	}
	points, err := repo.PlotPoints(ctx)
	if err != nil || len(points) != 10 {
		t.Errorf("PlotPoints() = %d points, %v", len(points), err)
	}

	// An offer without a vector cannot be clustered, and the failed re-fit
	// leaves the previous assignment in place.
	orphan, _, err := repo.InsertOffer(ctx, payload("Orphan", "Acme", "2024-06-01"))
	if err != nil {
		t.Fatal(err)
	}
	err = repo.ReplaceClusters(ctx, []model.Cluster{{ID: 0}}, map[int64]int{orphan: 0})
	if !errors.Is(err, ErrNotEmbedded) {
		t.Errorf("ReplaceClusters(orphan) error = %v, want ErrNotEmbedded", err)
	}
	clusters, err := repo.Clusters(ctx)
	if err != nil || len(clusters) != 3 {
		t.Errorf("Clusters() = %d, %v; want the 3 from the last successful fit", len(clusters), err)
	}
}

func TestNearestAndLatest(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	type seed struct {
		title, company, date string
		vec                  []float32
	}
	q := basis(0)
	near := basis(0)
	near[1] = 0.5
	seeds := []seed{
		{"A", "Acme", "2024-01-02", near},
		{"B", "Acme", "2024-03-01", basis(1)},
		{"C", "Globex", "2024-02-01", q},
		{"D", "Acme Corp", "2024-04-01", q},
	}
	ids := map[string]int64{}
	for _, s := range seeds {
		id, _, err := repo.InsertOffer(ctx, payload(s.title, s.company, s.date))
		if err != nil {
			t.Fatal(err)
		}
		ids[s.title] = id
		if err := repo.AddEmbedding(ctx, EmbeddingUpdate{OfferID: id, Emb50: s.vec, Epoch: 1}); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := repo.Nearest(ctx, q, 1, dto.OfferFilter{}, 10)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, h := range hits {
		order = append(order, h.Offer.Title)
	}
	if fmt.Sprint(order) != "[C D A B]" {
		t.Errorf("Nearest() order = %v, want [C D A B]", order)
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("distance of identical vector = %v, want 0", hits[0].Distance)
	}
	if stale, _ := repo.Nearest(ctx, q, 2, dto.OfferFilter{}, 10); len(stale) != 0 {
		t.Errorf("Nearest() with another epoch = %d hits, want 0", len(stale))
	}

	latest, total, err := repo.Latest(ctx, dto.OfferFilter{Company: "Acme"}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	order = order[:0]
	for _, o := range latest {
		if o.Company.Name != "Acme" {
			t.Errorf("Latest() returned company %q", o.Company.Name)
		}
		order = append(order, o.Title)
	}
	if total != 2 || fmt.Sprint(order) != "[B A]" {
		t.Errorf("Latest(Acme) = %v (total %d), want [B A] (2)", order, total)
	}

	latestDate, err := repo.LatestDate(ctx, model.SourceAPEC)
	if err != nil || latestDate == nil || *latestDate != "2024-04-01" {
		t.Errorf("LatestDate() = %v, %v; want 2024-04-01", latestDate, err)
	}
	if none, err := repo.LatestDate(ctx, model.SourceNTNE); err != nil || none != nil {
		t.Errorf("LatestDate(NTNE) = %v, %v; want nil", none, err)
	}
	if all, err := repo.LatestDate(ctx, ""); err != nil || all == nil || *all != "2024-04-01" {
		t.Errorf("LatestDate(all sources) = %v, %v; want 2024-04-01", all, err)
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestOfferFilters(t *testing.T) {
	db := testinfra.StartPostgres(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	near := basis(0)
	near[1] = 0.5
	type seed struct {
		title, company, city, source, date string
		min, max                          *float64
		cluster                           int
		vec                               []float32
	}
	seeds := []seed{
		{"Dev Lyon", "Acme", "Lyon", model.SourceAPEC, "2024-01-01", floatPtr(35000), floatPtr(45000), 0, basis(0)},
		{"Dev Paris", "Acme", "Paris", model.SourceAPEC, "2024-01-02", floatPtr(50000), floatPtr(60000), 1, near},
		{"Compta Lyon", "Globex", "Lyon", model.SourceNTNE, "2024-01-03", floatPtr(30000), nil, 1, basis(1)},
		{"Infirmier", "Initech", "Lille", model.SourceNTNE, "2024-01-04", nil, nil, 0, basis(2)},
	}
	assignments := map[int64]int{}
	for _, s := range seeds {
		p := payload(s.title, s.company, s.date)
		p.City.Name = s.city
		p.Source = s.source
		p.SalaryMin, p.SalaryMax = s.min, s.max
		id, _, err := repo.InsertOffer(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.AddEmbedding(ctx, EmbeddingUpdate{OfferID: id, Emb50: s.vec, Epoch: 1}); err != nil {
			t.Fatal(err)
		}
		assignments[id] = s.cluster
	}
	if err := repo.ReplaceClusters(ctx, []model.Cluster{{ID: 0}, {ID: 1}}, assignments); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		filter  dto.OfferFilter
		latest  string
		nearest string
	}{
		{"no filter", dto.OfferFilter{}, "[Infirmier Compta Lyon Dev Paris Dev Lyon]", "[Dev Lyon Dev Paris Compta Lyon Infirmier]"},
		{"salary min overlaps upper bound", dto.OfferFilter{SalaryMin: floatPtr(40000)}, "[Dev Paris Dev Lyon]", "[Dev Lyon Dev Paris]"},
		{"salary max overlaps lower bound", dto.OfferFilter{SalaryMax: floatPtr(40000)}, "[Compta Lyon Dev Lyon]", "[Dev Lyon Compta Lyon]"},
		{"salary range between offers", dto.OfferFilter{SalaryMin: floatPtr(46000), SalaryMax: floatPtr(49000)}, "[]", "[]"},
		{"category", dto.OfferFilter{Category: intPtr(1)}, "[Compta Lyon Dev Paris]", "[Dev Paris Compta Lyon]"},
		{"city", dto.OfferFilter{City: "Lyon"}, "[Compta Lyon Dev Lyon]", "[Dev Lyon Compta Lyon]"},
		{"source", dto.OfferFilter{Source: model.SourceNTNE}, "[Infirmier Compta Lyon]", "[Compta Lyon Infirmier]"},
		{"city and source", dto.OfferFilter{City: "Lyon", Source: model.SourceAPEC}, "[Dev Lyon]", "[Dev Lyon]"},
		{"company and category", dto.OfferFilter{Company: "Acme", Category: intPtr(1)}, "[Dev Paris]", "[Dev Paris]"},
		{"company and city", dto.OfferFilter{Company: "Acme", City: "Lyon"}, "[Dev Lyon]", "[Dev Lyon]"},
		{"salary and city", dto.OfferFilter{SalaryMin: floatPtr(40000), City: "Paris"}, "[Dev Paris]", "[Dev Paris]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offers, total, err := repo.Latest(ctx, tt.filter, 10, 0)
			if err != nil {
				t.Fatalf("Latest() error = %v", err)
			}
			titles := []string{}
			for _, o := range offers {
				titles = append(titles, o.Title)
			}
			if got := fmt.Sprint(titles); got != tt.latest || total != int64(len(titles)) {
				t.Errorf("Latest() = %v (total %d), want %v", got, total, tt.latest)
			}

			hits, err := repo.Nearest(ctx, basis(0), 1, tt.filter, 10)
			if err != nil {
				t.Fatalf("Nearest() error = %v", err)
			}
			titles = []string{}
			for _, h := range hits {
				titles = append(titles, h.Offer.Title)
			}
			if got := fmt.Sprint(titles); got != tt.nearest {
				t.Errorf("Nearest() = %v, want %v", got, tt.nearest)
			}
		})
	}
}
