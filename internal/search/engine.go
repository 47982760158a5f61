// Package search ranks stored offers against a free-text query, a resume
// and like/dislike feedback.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/jobmatch/internal/config"
	"github.com/fadilmartias/jobmatch/internal/dto"
	"github.com/fadilmartias/jobmatch/internal/logging"
	"github.com/fadilmartias/jobmatch/internal/metrics"
	"github.com/fadilmartias/jobmatch/internal/model"
	"github.com/fadilmartias/jobmatch/internal/nlp"
	"github.com/fadilmartias/jobmatch/internal/repository"
	"github.com/rs/zerolog"
)

type Mode string

const (
	// ModeRanked orders hits by cosine similarity to the query vector.
	ModeRanked Mode = "ranked"
	// ModeLatest lists filtered offers newest first, without scores.
	ModeLatest Mode = "latest"
)

// QueryEmbedder turns text into a 50-d vector of the installed reducer.
type QueryEmbedder interface {
	EmbedText(text string) ([]float32, int64, error)
	EmbeddingEpoch() (int64, error)
}

// OfferIndex is the read side of the offer store used for ranking.
type OfferIndex interface {
	Vectors(ctx context.Context, offerIDs []int64) (map[int64]repository.StoredVector, error)
	Nearest(ctx context.Context, q []float32, epoch int64, f dto.OfferFilter, limit int) ([]repository.ScoredOffer, error)
	Latest(ctx context.Context, f dto.OfferFilter, limit, offset int) ([]model.Offer, int64, error)
}

type Request struct {
	Query    string
	Resume   string
	Feedback []dto.FeedbackPayload
	Filters  dto.OfferFilter
	Limit    int
}

type Hit struct {
	Offer model.Offer
	// Distance and Score are nil in ModeLatest.
	Distance *float64
	Score    *float64
}

type Result struct {
	Mode  Mode
	Epoch int64
	Hits  []Hit
}

type Engine struct {
	embedder     QueryEmbedder
	index        OfferIndex
	resumeWeight float64
	limit        int
	log          zerolog.Logger
}

func NewEngine(embedder QueryEmbedder, index OfferIndex, cfg *config.SearchConfig) *Engine {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	return &Engine{
		embedder:     embedder,
		index:        index,
		resumeWeight: cfg.ResumeWeight,
		limit:        limit,
		log:          logging.Component("search"),
	}
}

// Search ranks offers by similarity to the query, or to the resume when no
// query is given or none of its terms are known. A positive resume weight
// blends both. Without any query,
// resume or feedback the filtered offers are listed newest first.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = e.limit
	}
	query := strings.TrimSpace(req.Query)
	resume := strings.TrimSpace(req.Resume)

	if query == "" && resume == "" && len(req.Feedback) == 0 {
		offers, _, err := e.index.Latest(ctx, req.Filters, limit, 0)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, len(offers))
		for i, o := range offers {
			hits[i] = Hit{Offer: o}
		}
		metrics.RecordSearch(string(ModeLatest), start)
		return &Result{Mode: ModeLatest, Hits: hits}, nil
	}

	q, epoch, err := e.queryVector(query, resume)
	if err != nil {
		if errors.Is(err, nlp.ErrZeroNorm) {
			return e.empty(epoch, start), nil
		}
		return nil, err
	}
	if q != nil && isZero(q) {
		if len(req.Feedback) == 0 {
			e.log.Debug().Msg("query has no known terms")
			return e.empty(epoch, start), nil
		}
		q = nil
	}

	likes, dislikes, err := e.feedbackVectors(ctx, req.Feedback, epoch)
	if err != nil {
		return nil, err
	}
	if q == nil && len(likes) == 0 && len(dislikes) == 0 {
		return e.empty(epoch, start), nil
	}
	q, err = Adjust(q, likes, dislikes, model.EmbeddingDims)
	if errors.Is(err, nlp.ErrZeroNorm) {
		e.log.Debug().Int("likes", len(likes)).Int("dislikes", len(dislikes)).Msg("feedback cancelled the query")
		return e.empty(epoch, start), nil
	}
	if err != nil {
		return nil, err
	}

	scored, err := e.index.Nearest(ctx, q, epoch, req.Filters, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(scored))
	for i, s := range scored {
		d := s.Distance
		score := 1 - d
		hits[i] = Hit{Offer: s.Offer, Distance: &d, Score: &score}
	}
	metrics.RecordSearch(string(ModeRanked), start)
	return &Result{Mode: ModeRanked, Epoch: epoch, Hits: hits}, nil
}

func (e *Engine) queryVector(query, resume string) ([]float32, int64, error) {
	var q, r []float32
	var epoch int64
	var err error
	if query != "" {
		if q, epoch, err = e.embedder.EmbedText(query); err != nil {
			return nil, 0, fmt.Errorf("embed query: %w", err)
		}
	}
	// A query without known terms leaves the resume as the only signal.
	if resume != "" && (q == nil || isZero(q) || e.resumeWeight > 0) {
		if r, epoch, err = e.embedder.EmbedText(resume); err != nil {
			return nil, 0, fmt.Errorf("embed resume: %w", err)
		}
	}
	switch {
	case q != nil && r != nil && isZero(q):
		return r, epoch, nil
	case q != nil && r != nil:
		blended, err := Blend(q, r, e.resumeWeight)
		return blended, epoch, err
	case q != nil:
		return q, epoch, nil
	case r != nil:
		return r, epoch, nil
	}
	epoch, err = e.embedder.EmbeddingEpoch()
	return nil, epoch, err
}

// feedbackVectors loads the liked and disliked vectors. Offers without a
// vector, or with one from another epoch, are skipped.
func (e *Engine) feedbackVectors(ctx context.Context, feedback []dto.FeedbackPayload, epoch int64) (likes, dislikes [][]float32, err error) {
	if len(feedback) == 0 {
		return nil, nil, nil
	}
	ids := make([]int64, len(feedback))
	for i, f := range feedback {
		ids[i] = f.OfferID
	}
	stored, err := e.index.Vectors(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load feedback vectors: %w", err)
	}
	for _, f := range feedback {
		v, ok := stored[f.OfferID]
		switch {
		case !ok:
			e.log.Warn().Int64("offer_id", f.OfferID).Msg("feedback offer has no vector, skipped")
			continue
		case v.Epoch != epoch || len(v.Emb50) != model.EmbeddingDims:
			metrics.RecordStaleFeedback()
			e.log.Warn().Int64("offer_id", f.OfferID).Int64("epoch", v.Epoch).Int64("current_epoch", epoch).
				Int("dims", len(v.Emb50)).Msg("stale feedback vector skipped")
			continue
		}
		switch f.Type {
		case dto.FeedbackLike:
			likes = append(likes, v.Emb50)
		case dto.FeedbackDislike:
			dislikes = append(dislikes, v.Emb50)
		default:
			e.log.Warn().Str("type", f.Type).Msg("unknown feedback type, skipped")
		}
	}
	return likes, dislikes, nil
}

func (e *Engine) empty(epoch int64, start time.Time) *Result {
	metrics.RecordSearch(string(ModeRanked), start)
	return &Result{Mode: ModeRanked, Epoch: epoch, Hits: []Hit{}}
}
