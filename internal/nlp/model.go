package nlp

import (
	"time"

	"github.com/google/uuid"
)

// Stamp identifies one fit of one artifact. ParentEpoch is the epoch of the
// upstream artifact the fit consumed (zero for the vectorizer).
type Stamp struct {
	Epoch       int64     `json:"epoch"`
	ParentEpoch int64     `json:"parent_epoch"`
	FitID       string    `json:"fit_id"`
	FittedAt    time.Time `json:"fitted_at"`
}

func newStamp(epoch, parent int64) Stamp {
	return Stamp{
		Epoch:       epoch,
		ParentEpoch: parent,
		FitID:       uuid.NewString(),
		FittedAt:    time.Now().UTC(),
	}
}

// Model is implemented by every persisted artifact.
type Model interface {
	Name() string
	ModelStamp() Stamp
	Info() ModelInfo
}

// ModelInfo is the metadata served for a fitted model.
type ModelInfo struct {
	Name     string         `json:"name"`
	Stamp    Stamp          `json:"stamp"`
	Features map[string]any `json:"features"`
}
