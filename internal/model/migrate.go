package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate enables pgvector and creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.SetupJoinTable(&Offer{}, "Skills", &OfferSkill{}); err != nil {
		return fmt.Errorf("setup offer_skills: %w", err)
	}
	if err := db.SetupJoinTable(&Offer{}, "Degrees", &OfferDegree{}); err != nil {
		return fmt.Errorf("setup offer_degrees: %w", err)
	}
	if err := db.AutoMigrate(
		&Company{},
		&Region{},
		&City{},
		&Description{},
		&OfferVector{},
		&Cluster{},
		&Skill{},
		&Degree{},
		&Offer{},
		&OfferSkill{},
		&OfferDegree{},
		&PipelineRun{},
	); err != nil {
		return err
	}
	// Approximate cosine index for Nearest. The planner keeps the exact scan
	// for small tables.
	if err := db.Exec(VectorIndexSQL).Error; err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// VectorIndexName is the HNSW index over offer_vectors.emb_50d.
const VectorIndexName = "idx_offer_vectors_emb_50d"

const VectorIndexSQL = "CREATE INDEX IF NOT EXISTS " + VectorIndexName +
	" ON offer_vectors USING hnsw (emb_50d vector_cosine_ops)"
