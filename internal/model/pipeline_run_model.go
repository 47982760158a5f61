package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunKindSync      = "sync"
	RunKindProcess   = "process"
	RunKindFitTFIDF  = "fit_tfidf"
	RunKindFitKMeans = "fit_kmeans"
)

const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

type PipelineRun struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Kind      string    `gorm:"type:varchar(32);not null;index" json:"kind"`
	Status    string    `gorm:"type:varchar(50)" json:"status"` // processing, completed, failed
	Params    string    `gorm:"type:jsonb" json:"params"`
	Report    string    `gorm:"type:jsonb" json:"report"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
