package nlp

import (
	"math"
	"strings"
	"testing"
)

type wordTokenizer struct{}

func (wordTokenizer) Tokens(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

var offerCorpus = []string{
	"golang backend api postgres docker",
	"golang backend api kubernetes docker",
	"golang api postgres microservices",
	"react frontend typescript css design",
	"react frontend javascript css design",
	"react typescript frontend ux",
	"comptable finance audit fiscalite excel",
	"comptable audit finance paie excel",
	"finance comptable controle gestion excel",
	"golang react fullstack api frontend",
}

func norm32(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot32(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// fitEmbedding fits the vectorizer and reducer on corpus and stamps the
// results against reg.
func fitEmbedding(t *testing.T, reg *Registry, corpus []string, ids []int64) (Models, [][]float32) {
	t.Helper()
	vec := NewTFIDF(wordTokenizer{}, 1, 1.0)
	m, _, err := vec.Fit(corpus)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	m.RowIDs = ids
	linear := NewSVD(4, 7)
	visual := NewTSNE(3, 100, 7)
	dense50, _, err := NewReducer(linear, visual).FitTransform(m)
	if err != nil {
		t.Fatalf("FitTransform() error = %v", err)
	}

	vec.Stamp = reg.NewStamp(0)
	matrix := &MatrixArtifact{Stamp: reg.NewStamp(vec.Stamp.Epoch), Matrix: m}
	linear.Stamp = reg.NewStamp(vec.Stamp.Epoch)
	visual.Stamp = reg.NewStamp(linear.Stamp.Epoch)
	return Models{Vectorizer: vec, Linear: linear, Visual: visual, Matrix: matrix}, dense50
}
