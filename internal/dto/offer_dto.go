package dto

import "time"

// OfferPayload is one fully formed offer as supplied by an ingestion source.
type OfferPayload struct {
	Title         string             `json:"title" validate:"required"`
	JobName       string             `json:"job_name"`
	JobType       *string            `json:"job_type,omitempty"`
	ContractType  *string            `json:"contract_type,omitempty"`
	SalaryLabel   *string            `json:"salary_label,omitempty"`
	SalaryMin     *float64           `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax     *float64           `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	MinExperience *string            `json:"min_experience,omitempty"`
	Latitude      *float64           `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64           `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Date          string             `json:"date" validate:"required,isodate"`
	Source        string             `json:"source" validate:"required,oneof=NTNE APEC"`
	Description   DescriptionPayload `json:"description"`
	Company       CompanyPayload     `json:"company"`
	City          CityPayload        `json:"city"`
	Skills        []string           `json:"skills,omitempty" validate:"dive,required"`
	Degrees       []string           `json:"degrees,omitempty" validate:"dive,required"`
}

type DescriptionPayload struct {
	OfferText   string  `json:"offer_text" validate:"required"`
	ProfileText *string `json:"profile_text,omitempty"`
}

type CompanyPayload struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Industry    *string `json:"industry,omitempty"`
}

type CityPayload struct {
	Name   string        `json:"name" validate:"required"`
	Region RegionPayload `json:"region"`
}

type RegionPayload struct {
	Code string  `json:"code" validate:"required"`
	Name *string `json:"name,omitempty"`
}

// OfferFilter narrows listings and searches. Every set field must match.
type OfferFilter struct {
	// SalaryMin and SalaryMax select offers whose salary range overlaps.
	SalaryMin *float64 `json:"salary_min,omitempty" query:"salary_min" validate:"omitempty,gte=0"`
	SalaryMax *float64 `json:"salary_max,omitempty" query:"salary_max" validate:"omitempty,gte=0"`
	// Category is a cluster id.
	Category *int   `json:"category,omitempty" query:"category" validate:"omitempty,gte=0"`
	Company  string `json:"company,omitempty" query:"company"`
	City     string `json:"city,omitempty" query:"city"`
	Source   string `json:"source,omitempty" query:"source" validate:"omitempty,oneof=NTNE APEC"`
}

// OfferDTO is the flattened offer returned by listings and searches.
type OfferDTO struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	JobName       string    `json:"job_name"`
	JobType       *string   `json:"job_type,omitempty"`
	ContractType  *string   `json:"contract_type,omitempty"`
	SalaryLabel   *string   `json:"salary_label,omitempty"`
	SalaryMin     *float64  `json:"salary_min,omitempty"`
	SalaryMax     *float64  `json:"salary_max,omitempty"`
	MinExperience *string   `json:"min_experience,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Date          string    `json:"date"`
	Source        string    `json:"source"`
	Company       string    `json:"company"`
	City          string    `json:"city"`
	Region        string    `json:"region"`
	ClusterID     *int      `json:"cluster_id,omitempty"`
	ClusterName   *string   `json:"cluster_name,omitempty"`
	Skills        []string  `json:"skills,omitempty"`
	Degrees       []string  `json:"degrees,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SummaryDTO reports per-column null counts for one source, or all sources.
type SummaryDTO struct {
	Source     string           `json:"source,omitempty"`
	Total      int64            `json:"total"`
	LatestDate *string          `json:"latest_date,omitempty"`
	Nulls      map[string]int64 `json:"nulls"`
}

// PlotPointDTO is one offer placed in the 3-d visualization.
type PlotPointDTO struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Position    [3]float32 `json:"position"`
	ClusterID   *int       `json:"cluster_id,omitempty"`
	ClusterName *string    `json:"cluster_name,omitempty"`
}
