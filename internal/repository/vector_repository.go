package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const batchSize = 500

// EmbeddingUpdate attaches any subset of the 50-d vector, the 3-d vector and
// a cluster to one offer. Nil fields are left untouched. Epoch is recorded
// with Emb50.
type EmbeddingUpdate struct {
	OfferID   int64
	Emb50     []float32
	Emb3      []float32
	ClusterID *int
	Epoch     int64
}

// VectorRow is one offer's vectors in a full re-embedding.
type VectorRow struct {
	OfferID int64
	Emb50   []float32
	Emb3    []float32
	Epoch   int64
}

// StoredVector is the 50-d embedding of one offer with its reducer epoch.
type StoredVector struct {
	Emb50 []float32
	Epoch int64
}

func (r *OfferRepository) AddEmbedding(ctx context.Context, u EmbeddingUpdate) error {
	return r.AddEmbeddings(ctx, []EmbeddingUpdate{u})
}

// AddEmbeddings applies every update in one transaction.
func (r *OfferRepository) AddEmbeddings(ctx context.Context, updates []EmbeddingUpdate) error {
	for _, u := range updates {
		if err := checkDims(u.Emb50, u.Emb3); err != nil {
			return fmt.Errorf("offer %d: %w", u.OfferID, err)
		}
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if err := applyEmbedding(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyEmbedding(tx *gorm.DB, u EmbeddingUpdate) error {
	var offer model.Offer
	err := tx.Select("id", "vector_id").Take(&offer, "id = ?", u.OfferID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("offer %d: %w", u.OfferID, ErrOfferNotFound)
	}
	if err != nil {
		return fmt.Errorf("load offer %d: %w", u.OfferID, err)
	}

	offerUpdates := map[string]any{}
	hasVector := offer.VectorID != nil
	switch {
	case u.Emb50 == nil && u.Emb3 == nil:
	case !hasVector:
		if u.Emb50 == nil {
			return fmt.Errorf("offer %d: 3-d vector without 50-d vector: %w", u.OfferID, ErrNotEmbedded)
		}
		v := model.OfferVector{ID: offer.ID, Emb50: pgvector.NewVector(u.Emb50), Epoch: u.Epoch}
		if u.Emb3 != nil {
			e3 := pgvector.NewVector(u.Emb3)
			v.Emb3 = &e3
		}
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("insert vector for offer %d: %w", u.OfferID, err)
		}
		offerUpdates["vector_id"] = v.ID
		hasVector = true
	default:
		vecUpdates := map[string]any{}
		if u.Emb50 != nil {
			vecUpdates["emb_50d"] = pgvector.NewVector(u.Emb50)
			vecUpdates["epoch"] = u.Epoch
		}
		if u.Emb3 != nil {
			vecUpdates["emb_3d"] = pgvector.NewVector(u.Emb3)
		}
		if err := tx.Model(&model.OfferVector{}).Where("id = ?", *offer.VectorID).Updates(vecUpdates).Error; err != nil {
			return fmt.Errorf("update vector for offer %d: %w", u.OfferID, err)
		}
	}

	if u.ClusterID != nil {
		if !hasVector {
			return fmt.Errorf("offer %d: cluster before embedding: %w", u.OfferID, ErrNotEmbedded)
		}
		offerUpdates["cluster_id"] = *u.ClusterID
	}
	if len(offerUpdates) == 0 {
		return nil
	}
	if err := tx.Model(&model.Offer{}).Where("id = ?", offer.ID).Updates(offerUpdates).Error; err != nil {
		return fmt.Errorf("update offer %d: %w", u.OfferID, err)
	}
	return nil
}

// ReplaceVectors drops every cluster assignment, cluster and vector, then
// stores rows, all in one transaction.
func (r *OfferRepository) ReplaceVectors(ctx context.Context, rows []VectorRow) error {
	vectors := make([]model.OfferVector, len(rows))
	for i, row := range rows {
		if row.Emb50 == nil {
			return fmt.Errorf("offer %d: %w", row.OfferID, ErrNotEmbedded)
		}
		if err := checkDims(row.Emb50, row.Emb3); err != nil {
			return fmt.Errorf("offer %d: %w", row.OfferID, err)
		}
		vectors[i] = model.OfferVector{ID: row.OfferID, Emb50: pgvector.NewVector(row.Emb50), Epoch: row.Epoch}
		if row.Emb3 != nil {
			e3 := pgvector.NewVector(row.Emb3)
			vectors[i].Emb3 = &e3
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmts := []string{
			"UPDATE offers SET cluster_id = NULL, vector_id = NULL WHERE cluster_id IS NOT NULL OR vector_id IS NOT NULL",
			"DELETE FROM clusters",
			"DELETE FROM offer_vectors",
		}
		for _, stmt := range stmts {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("clear vectors: %w", err)
			}
		}
		if len(vectors) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(vectors, batchSize).Error; err != nil {
			return fmt.Errorf("insert vectors: %w", err)
		}
		res := tx.Exec("UPDATE offers SET vector_id = offer_vectors.id FROM offer_vectors WHERE offer_vectors.id = offers.id")
		if res.Error != nil {
			return fmt.Errorf("link vectors: %w", res.Error)
		}
		if res.RowsAffected != int64(len(vectors)) {
			return fmt.Errorf("linked %d of %d vectors: %w", res.RowsAffected, len(vectors), ErrOfferNotFound)
		}
		return nil
	})
}

// ReplaceClusters swaps the whole cluster table and reassigns offers in one
// transaction. Every assigned offer must already have a vector.
func (r *OfferRepository) ReplaceClusters(ctx context.Context, clusters []model.Cluster, assignments map[int64]int) error {
	byCluster := make(map[int][]int64)
	for offerID, c := range assignments {
		byCluster[c] = append(byCluster[c], offerID)
	}
	known := make(map[int]bool, len(clusters))
	for _, c := range clusters {
		known[c.ID] = true
	}
	for c := range byCluster {
		if !known[c] {
			return fmt.Errorf("assignment to unknown cluster %d", c)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("UPDATE offers SET cluster_id = NULL WHERE cluster_id IS NOT NULL").Error; err != nil {
			return fmt.Errorf("clear cluster ids: %w", err)
		}
		if err := tx.Exec("DELETE FROM clusters").Error; err != nil {
			return fmt.Errorf("clear clusters: %w", err)
		}
		if len(clusters) > 0 {
			if err := tx.Create(&clusters).Error; err != nil {
				return fmt.Errorf("insert clusters: %w", err)
			}
		}

		ids := make([]int, 0, len(byCluster))
		for c := range byCluster {
			ids = append(ids, c)
		}
		sort.Ints(ids)
		for _, c := range ids {
			offers := byCluster[c]
			for start := 0; start < len(offers); start += batchSize {
				chunk := offers[start:min(start+batchSize, len(offers))]
				res := tx.Model(&model.Offer{}).
					Where("id IN ? AND vector_id IS NOT NULL", chunk).
					Update("cluster_id", c)
				if res.Error != nil {
					return fmt.Errorf("assign cluster %d: %w", c, res.Error)
				}
				if res.RowsAffected != int64(len(chunk)) {
					return fmt.Errorf("cluster %d: %d of %d offers have vectors: %w",
						c, res.RowsAffected, len(chunk), ErrNotEmbedded)
				}
			}
		}
		return nil
	})
}

// UpdateClusterNames sets names by cluster id; missing ids stay unnamed.
func (r *OfferRepository) UpdateClusterNames(ctx context.Context, names map[int]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, name := range names {
			if err := tx.Model(&model.Cluster{}).Where("id = ?", id).Update("name", name).Error; err != nil {
				return fmt.Errorf("name cluster %d: %w", id, err)
			}
		}
		return nil
	})
}

// EmbeddedVectors returns every 50-d vector produced by the given reducer
// epoch, ordered by offer id.
func (r *OfferRepository) EmbeddedVectors(ctx context.Context, epoch int64) ([]int64, [][]float32, error) {
	var rows []model.OfferVector
	err := r.db.WithContext(ctx).
		Joins("JOIN offers ON offers.vector_id = offer_vectors.id").
		Where("offer_vectors.epoch = ?", epoch).
		Order("offer_vectors.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("load vectors: %w", err)
	}
	ids := make([]int64, len(rows))
	vecs := make([][]float32, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		vecs[i] = row.Emb50.Slice()
	}
	return ids, vecs, nil
}

// Vectors returns the stored 50-d vectors of the given offers. Offers
// without a vector are absent from the map.
func (r *OfferRepository) Vectors(ctx context.Context, offerIDs []int64) (map[int64]StoredVector, error) {
	out := make(map[int64]StoredVector, len(offerIDs))
	if len(offerIDs) == 0 {
		return out, nil
	}
	var rows []model.OfferVector
	err := r.db.WithContext(ctx).
		Joins("JOIN offers ON offers.vector_id = offer_vectors.id").
		Where("offers.id IN ?", offerIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = StoredVector{Emb50: row.Emb50.Slice(), Epoch: row.Epoch}
	}
	return out, nil
}

func checkDims(emb50, emb3 []float32) error {
	if emb50 != nil && len(emb50) != model.EmbeddingDims {
		return fmt.Errorf("emb_50d has %d dimensions: %w", len(emb50), nlp.ErrDimensionMismatch)
	}
	if emb3 != nil && len(emb3) != model.VisualizationDims {
		return fmt.Errorf("emb_3d has %d dimensions: %w", len(emb3), nlp.ErrDimensionMismatch)
	}
	return nil
}
