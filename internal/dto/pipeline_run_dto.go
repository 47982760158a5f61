package dto

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type PipelineRunDTO struct {
	ID        uuid.UUID       `json:"id"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"` // processing, completed, failed
	Params    json.RawMessage `json:"params,omitempty"`
	Report    json.RawMessage `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ClusterDTO is a stored cluster with its terms and optional name.
type ClusterDTO struct {
	ID    int      `json:"id"`
	Name  *string  `json:"name,omitempty"`
	Terms []string `json:"representative_terms"`
	Size  int64    `json:"size"`
}
