package nlp

import (
	"errors"
	"slices"
	"testing"
)

func TestTopTerms(t *testing.T) {
	m := &Matrix{
		Cols: 5,
		Rows: []Row{
			{Indices: []int{0, 1, 3}, Values: []float32{0.5, 0.5, 0.2}},
			{Indices: []int{1, 2}, Values: []float32{0.5, 0.5}},
			{Indices: []int{4}, Values: []float32{1}},
		},
	}
	vocab := Vocabulary{"api", "go", "sql", "docker", "excel"}

	tests := []struct {
		name string
		rows []int
		n    int
		want []string
	}{
		// go has mean 0.5; api and sql tie at 0.25 and keep column order.
		{"ties by index", []int{0, 1}, 3, []string{"go", "api", "sql"}},
		{"limit", []int{0, 1}, 1, []string{"go"}},
		{"zero weights omitted", []int{2}, 8, []string{"excel"}},
		{"no rows", nil, 8, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopTerms(m, tt.rows, vocab, tt.n); !slices.Equal(got, tt.want) {
				t.Errorf("TopTerms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClusterEnginePredictBeforeFit(t *testing.T) {
	e := NewClusterEngine(8, 1, nil)
	if _, _, err := e.Predict([][]float32{{1, 0}}); !errors.Is(err, ErrModelNotFit) {
		t.Errorf("Predict() error = %v, want ErrModelNotFit", err)
	}
}

func TestClusterEngineFitPredict(t *testing.T) {
	reg := NewRegistry(t.TempDir(), wordTokenizer{})
	ids := make([]int64, len(offerCorpus))
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	models, dense50 := fitEmbedding(t, reg, offerCorpus, ids)

	e := NewClusterEngine(8, 1, nil)
	labels, clusters, err := e.FitPredict(models.Matrix.Matrix, dense50, models.Vectorizer.Vocabulary, 3)
	if err != nil {
		t.Fatalf("FitPredict() error = %v", err)
	}
	if len(labels) != len(offerCorpus) {
		t.Fatalf("labels = %d, want %d", len(labels), len(offerCorpus))
	}
	for i, l := range labels {
		if l < 0 || l >= 3 {
			t.Errorf("label[%d] = %d, want in [0,3)", i, l)
		}
	}
	if len(clusters) != 3 {
		t.Fatalf("clusters = %d, want 3", len(clusters))
	}
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	for _, c := range clusters {
		if len(c.Terms) > 8 {
			t.Errorf("cluster %d has %d terms, want at most 8", c.ID, len(c.Terms))
		}
		if sizes[c.ID] > 0 && len(c.Terms) == 0 {
			t.Errorf("cluster %d has %d members but no terms", c.ID, sizes[c.ID])
		}
	}

	pred, predClusters, err := e.Predict(dense50[:2])
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if !slices.Equal(pred, labels[:2]) {
		t.Errorf("Predict() = %v, want fitted labels %v", pred, labels[:2])
	}
	for _, c := range predClusters {
		if len(c.Terms) != 0 {
			t.Errorf("predicted cluster %d carries terms %v", c.ID, c.Terms)
		}
	}
}

func TestClusterEngineRowMismatch(t *testing.T) {
	e := NewClusterEngine(8, 1, nil)
	m := &Matrix{Cols: 1, Rows: []Row{{}}}
	_, _, err := e.FitPredict(m, nil, Vocabulary{"a"}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("FitPredict() error = %v, want ErrDimensionMismatch", err)
	}
}
