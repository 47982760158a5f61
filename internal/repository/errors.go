package repository

import "errors"

var (
	// ErrNotEmbedded is returned when a cluster is assigned to an offer
	// without a stored vector, or a vector row would lack its 50-d embedding.
	ErrNotEmbedded   = errors.New("repository: offer not embedded")
	ErrOfferNotFound = errors.New("repository: offer not found")
)
