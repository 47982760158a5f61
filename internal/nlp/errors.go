package nlp

import "errors"

var (
	// ErrModelNotFit is returned by Transform / Predict before any fit.
	ErrModelNotFit = errors.New("nlp: model not fit")
	// ErrInsufficientVocabulary means the corpus is too small for the requested rank.
	ErrInsufficientVocabulary = errors.New("nlp: insufficient vocabulary")
	ErrDimensionMismatch      = errors.New("nlp: dimension mismatch")
	// ErrZeroNorm is raised when an adjusted query vector has zero magnitude.
	ErrZeroNorm = errors.New("nlp: zero norm vector")
	// ErrStaleModel means an artifact was fit against an upstream model
	// that has since been re-fit.
	ErrStaleModel          = errors.New("nlp: stale model")
	ErrInvalidClusterCount = errors.New("nlp: invalid cluster count")
)
