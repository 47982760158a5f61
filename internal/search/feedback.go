package search

import (
	"math"

	"github.com/fadilmartias/jobmatch/internal/nlp"
	"gonum.org/v1/gonum/floats"
)

const feedbackWeight = 0.5

// Adjust moves q toward the mean of likes and away from the mean of
// dislikes, then renormalizes. With no feedback q is returned unchanged. A
// nil q starts from the origin, so feedback alone can steer a search.
func Adjust(q []float32, likes, dislikes [][]float32, dims int) ([]float32, error) {
	if len(likes) == 0 && len(dislikes) == 0 {
		return q, nil
	}
	if len(q) > dims {
		return nil, nlp.ErrDimensionMismatch
	}
	for _, v := range append(likes[:len(likes):len(likes)], dislikes...) {
		if len(v) != dims {
			return nil, nlp.ErrDimensionMismatch
		}
	}
	adjusted := make([]float64, dims)
	for i, x := range q {
		adjusted[i] = float64(x)
	}
	if near := mean(likes, dims); near != nil {
		floats.AddScaled(adjusted, feedbackWeight, near)
	}
	if far := mean(dislikes, dims); far != nil {
		floats.AddScaled(adjusted, -feedbackWeight, far)
	}
	norm := floats.Norm(adjusted, 2)
	if norm == 0 || math.IsNaN(norm) {
		return nil, nlp.ErrZeroNorm
	}
	out := make([]float32, dims)
	for i, x := range adjusted {
		out[i] = float32(x / norm)
	}
	return out, nil
}

func mean(vecs [][]float32, dims int) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	out := make([]float64, dims)
	for _, v := range vecs {
		for i, x := range v {
			out[i] += float64(x)
		}
	}
	floats.Scale(1/float64(len(vecs)), out)
	return out
}

// Blend returns normalize(q + w·r).
func Blend(q, r []float32, w float64) ([]float32, error) {
	if len(q) != len(r) {
		return nil, nlp.ErrDimensionMismatch
	}
	sum := make([]float64, len(q))
	for i := range q {
		sum[i] = float64(q[i]) + w*float64(r[i])
	}
	norm := floats.Norm(sum, 2)
	if norm == 0 {
		return nil, nlp.ErrZeroNorm
	}
	out := make([]float32, len(q))
	for i, x := range sum {
		out[i] = float32(x / norm)
	}
	return out, nil
}

// DisplayScore maps a cosine distance to a 0-100 relevance for display.
func DisplayScore(distance float64) int {
	return int(math.Round((1 - distance) * 100))
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
