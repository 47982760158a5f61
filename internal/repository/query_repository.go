package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// SummaryColumns are the offer columns whose nulls Summary counts.
var SummaryColumns = []string{
	"title",
	"job_name",
	"job_type",
	"contract_type",
	"salary_label",
	"salary_min",
	"salary_max",
	"min_experience",
	"latitude",
	"longitude",
	"date",
	"cluster_id",
	"vector_id",
}

// ScoredOffer is an offer with its cosine distance to the query.
type ScoredOffer struct {
	Offer    model.Offer
	Distance float64
}

// Summary counts nulls per column, optionally for one source.
func (r *OfferRepository) Summary(ctx context.Context, source string) (map[string]int64, error) {
	selects := make([]string, len(SummaryColumns))
	for i, col := range SummaryColumns {
		selects[i] = fmt.Sprintf("COUNT(*) - COUNT(%s) AS %s", col, col)
	}
	q := r.db.WithContext(ctx).Model(&model.Offer{}).Select(strings.Join(selects, ", "))
	if source != "" {
		q = q.Where("source = ?", source)
	}
	row := map[string]any{}
	if err := q.Take(&row).Error; err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	out := make(map[string]int64, len(SummaryColumns))
	for _, col := range SummaryColumns {
		out[col] = toInt64(row[col])
	}
	return out, nil
}

func (r *OfferRepository) Total(ctx context.Context, source string) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&model.Offer{})
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count offers: %w", err)
	}
	return n, nil
}

// LatestDate returns the most recent offer date of a source, or of every
// source when it is empty. Nil when nothing is stored.
func (r *OfferRepository) LatestDate(ctx context.Context, source string) (*string, error) {
	var latest sql.NullString
	q := r.db.WithContext(ctx).Model(&model.Offer{}).Select("MAX(date)")
	if source != "" {
		q = q.Where("source = ?", source)
	}
	if err := q.Scan(&latest).Error; err != nil {
		return nil, fmt.Errorf("latest date: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.String, nil
}

type offerText struct {
	ID        int64
	OfferText string
}

// Unprocessed returns offers without a cluster, ordered by id.
func (r *OfferRepository) Unprocessed(ctx context.Context, source string) ([]int64, []string, error) {
	q := r.db.WithContext(ctx).Where("offers.cluster_id IS NULL")
	if source != "" {
		q = q.Where("offers.source = ?", source)
	}
	return r.texts(q)
}

// Corpus returns every offer description, ordered by id.
func (r *OfferRepository) Corpus(ctx context.Context) ([]int64, []string, error) {
	return r.texts(r.db.WithContext(ctx))
}

func (r *OfferRepository) texts(q *gorm.DB) ([]int64, []string, error) {
	var rows []offerText
	err := q.Model(&model.Offer{}).
		Select("offers.id, descriptions.offer_text").
		Joins("JOIN descriptions ON descriptions.id = offers.description_id").
		Order("offers.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load offer texts: %w", err)
	}
	ids := make([]int64, len(rows))
	texts := make([]string, len(rows))
	for i, row := range rows {
		ids[i], texts[i] = row.ID, row.OfferText
	}
	return ids, texts, nil
}

type nearestRow struct {
	ID       int64
	Distance float64
}

// Nearest ranks offers embedded at epoch by cosine distance to q, ties by id.
func (r *OfferRepository) Nearest(ctx context.Context, q []float32, epoch int64, f dto.OfferFilter, limit int) ([]ScoredOffer, error) {
	var rows []nearestRow
	query := r.db.WithContext(ctx).Table("offers").
		Select("offers.id, (offer_vectors.emb_50d <=> ?) AS distance", pgvector.NewVector(q)).
		Joins("JOIN offer_vectors ON offer_vectors.id = offers.vector_id").
		Where("offer_vectors.epoch = ?", epoch)
	query = applyFilter(query, f).
		Order("distance ASC").
		Order("offers.id ASC").
		Limit(limit)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("nearest offers: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	offers, err := r.findOffers(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredOffer, 0, len(rows))
	for _, row := range rows {
		if o, ok := offers[row.ID]; ok {
			out = append(out, ScoredOffer{Offer: o, Distance: row.Distance})
		}
	}
	return out, nil
}

// Latest lists filtered offers newest first.
func (r *OfferRepository) Latest(ctx context.Context, f dto.OfferFilter, limit, offset int) ([]model.Offer, int64, error) {
	var total int64
	count := applyFilter(r.db.WithContext(ctx).Model(&model.Offer{}), f)
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	var offers []model.Offer
	q := applyFilter(preloadOffer(r.db.WithContext(ctx)).Model(&model.Offer{}), f).
		Order("offers.date DESC").
		Order("offers.id DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&offers).Error; err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	return offers, total, nil
}

// PlotPoints returns every offer with a 3-d vector for the renderer.
func (r *OfferRepository) PlotPoints(ctx context.Context) ([]dto.PlotPointDTO, error) {
	var rows []struct {
		ID          int64
		Title       string
		Emb3        pgvector.Vector `gorm:"column:emb_3d"`
		ClusterID   *int
		ClusterName *string
	}
	err := r.db.WithContext(ctx).Table("offers").
		Select("offers.id, offers.title, offer_vectors.emb_3d, offers.cluster_id, clusters.name AS cluster_name").
		Joins("JOIN offer_vectors ON offer_vectors.id = offers.vector_id").
		Joins("LEFT JOIN clusters ON clusters.id = offers.cluster_id").
		Where("offer_vectors.emb_3d IS NOT NULL").
		Order("offers.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("plot points: %w", err)
	}
	out := make([]dto.PlotPointDTO, 0, len(rows))
	for _, row := range rows {
		s := row.Emb3.Slice()
		if len(s) != model.VisualizationDims {
			continue
		}
		out = append(out, dto.PlotPointDTO{
			ID:          row.ID,
			Title:       row.Title,
			Position:    [3]float32{s[0], s[1], s[2]},
			ClusterID:   row.ClusterID,
			ClusterName: row.ClusterName,
		})
	}
	return out, nil
}

// Clusters lists stored clusters with their member counts.
func (r *OfferRepository) Clusters(ctx context.Context) ([]dto.ClusterDTO, error) {
	var clusters []model.Cluster
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&clusters).Error; err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	var sizes []struct {
		ClusterID int
		Size      int64
	}
	err := r.db.WithContext(ctx).Model(&model.Offer{}).
		Select("cluster_id, COUNT(*) AS size").
		Where("cluster_id IS NOT NULL").
		Group("cluster_id").
		Scan(&sizes).Error
	if err != nil {
		return nil, fmt.Errorf("cluster sizes: %w", err)
	}
	bySize := make(map[int]int64, len(sizes))
	for _, s := range sizes {
		bySize[s.ClusterID] = s.Size
	}
	out := make([]dto.ClusterDTO, len(clusters))
	for i, c := range clusters {
		out[i] = dto.ClusterDTO{ID: c.ID, Name: c.Name, Terms: c.RepresentativeTerms, Size: bySize[c.ID]}
	}
	return out, nil
}

func (r *OfferRepository) findOffers(ctx context.Context, ids []int64) (map[int64]model.Offer, error) {
	out := make(map[int64]model.Offer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var offers []model.Offer
	if err := preloadOffer(r.db.WithContext(ctx)).Where("offers.id IN ?", ids).Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	for _, o := range offers {
		out[o.ID] = o
	}
	return out, nil
}

// applyFilter adds the conjunctive offer filters. Salary matches when the
// offer range overlaps the requested one; a one-sided offer range is
// treated as a single value.
func applyFilter(q *gorm.DB, f dto.OfferFilter) *gorm.DB {
	if f.SalaryMin != nil {
		q = q.Where("COALESCE(offers.salary_max, offers.salary_min) >= ?", *f.SalaryMin)
	}
	if f.SalaryMax != nil {
		q = q.Where("COALESCE(offers.salary_min, offers.salary_max) <= ?", *f.SalaryMax)
	}
	if f.Category != nil {
		q = q.Where("offers.cluster_id = ?", *f.Category)
	}
	if f.Company != "" {
		q = q.Joins("JOIN companies ON companies.id = offers.company_id").
			Where("companies.name = ?", f.Company)
	}
	if f.City != "" {
		q = q.Joins("JOIN cities ON cities.id = offers.city_id").
			Where("cities.name = ?", f.City)
	}
	if f.Source != "" {
		q = q.Where("offers.source = ?", f.Source)
	}
	return q
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		fmt.Sscan(string(n), &out)
		return out
	case string:
		var out int64
		fmt.Sscan(n, &out)
		return out
	default:
		return 0
	}
}
