package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

const (
	SourceNTNE = "NTNE"
	SourceAPEC = "APEC"
)

const (
	EmbeddingDims     = 50
	VisualizationDims = 3
)

type Company struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`
	Industry    *string `gorm:"type:text" json:"industry,omitempty"`
}

type Region struct {
	ID   int64   `gorm:"primaryKey" json:"id"`
	Code string  `gorm:"type:varchar(16);not null;uniqueIndex" json:"code"`
	Name *string `gorm:"type:text" json:"name,omitempty"`
}

type City struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:text;not null;uniqueIndex:idx_city_region" json:"name"`
	RegionID int64  `gorm:"not null;uniqueIndex:idx_city_region" json:"region_id"`
	Region   Region `json:"region"`
}

// Description is append-only, one row per offer.
type Description struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	OfferText   string  `gorm:"type:text;not null" json:"offer_text"`
	ProfileText *string `gorm:"type:text" json:"profile_text,omitempty"`
}

// OfferVector holds the embeddings of one offer and shares its id. Epoch is
// the reducer epoch that produced Emb50; Emb3 is only meaningful for plotting.
type OfferVector struct {
	ID    int64            `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Emb50 pgvector.Vector  `gorm:"column:emb_50d;type:vector(50);not null" json:"emb_50d"`
	Emb3  *pgvector.Vector `gorm:"column:emb_3d;type:vector(3)" json:"emb_3d,omitempty"`
	Epoch int64            `gorm:"not null;index" json:"epoch"`
}

// Cluster ids are the labels produced by KMeans, not auto-incremented.
type Cluster struct {
	ID                  int      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name                *string  `gorm:"type:text" json:"name,omitempty"`
	RepresentativeTerms []string `gorm:"type:jsonb;serializer:json" json:"representative_terms"`
}

type Skill struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Label string `gorm:"type:text;not null;uniqueIndex" json:"label"`
}

type Degree struct {
	ID    int64  `gorm:"primaryKey" json:"id"`
	Label string `gorm:"type:text;not null;uniqueIndex" json:"label"`
}

type OfferSkill struct {
	OfferID int64 `gorm:"primaryKey"`
	SkillID int64 `gorm:"primaryKey"`
}

type OfferDegree struct {
	OfferID  int64 `gorm:"primaryKey"`
	DegreeID int64 `gorm:"primaryKey"`
}

// Offer is unique on (title, company_id, date). ClusterID is only set once
// VectorID is.
type Offer struct {
	ID            int64        `gorm:"primaryKey" json:"id"`
	Title         string       `gorm:"type:text;not null;uniqueIndex:idx_offer_natural_key,priority:1" json:"title"`
	JobName       string       `gorm:"type:text" json:"job_name"`
	JobType       *string      `gorm:"type:text" json:"job_type,omitempty"`
	ContractType  *string      `gorm:"type:text" json:"contract_type,omitempty"`
	SalaryLabel   *string      `gorm:"type:text" json:"salary_label,omitempty"`
	SalaryMin     *float64     `json:"salary_min,omitempty"`
	SalaryMax     *float64     `json:"salary_max,omitempty"`
	MinExperience *string      `gorm:"type:text" json:"min_experience,omitempty"`
	Latitude      *float64     `json:"latitude,omitempty"`
	Longitude     *float64     `json:"longitude,omitempty"`
	Date          string       `gorm:"type:text;not null;index;uniqueIndex:idx_offer_natural_key,priority:3" json:"date"`
	Source        string       `gorm:"type:varchar(8);not null;index" json:"source"`
	DescriptionID int64        `gorm:"not null" json:"description_id"`
	Description   Description  `json:"description"`
	CityID        int64        `gorm:"not null" json:"city_id"`
	City          City         `json:"city"`
	CompanyID     int64        `gorm:"not null;uniqueIndex:idx_offer_natural_key,priority:2" json:"company_id"`
	Company       Company      `json:"company"`
	ClusterID     *int         `gorm:"index" json:"cluster_id,omitempty"`
	Cluster       *Cluster     `json:"cluster,omitempty"`
	VectorID      *int64       `gorm:"uniqueIndex" json:"vector_id,omitempty"`
	Vector        *OfferVector `json:"-"`
	Skills        []Skill      `gorm:"many2many:offer_skills" json:"skills,omitempty"`
	Degrees       []Degree     `gorm:"many2many:offer_degrees" json:"degrees,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (o *Offer) TableName() string {
	return "offers"
}
