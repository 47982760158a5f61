package nlp

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestTFIDFTransformBeforeFit(t *testing.T) {
	v := NewTFIDF(wordTokenizer{}, 3, 0.5)
	if _, err := v.Transform([]string{"golang"}); !errors.Is(err, ErrModelNotFit) {
		t.Errorf("Transform() error = %v, want ErrModelNotFit", err)
	}
}

func TestTFIDFFitPrunesByDocumentFrequency(t *testing.T) {
	corpus := []string{
		"go sql api",
		"go sql",
		"java api",
		"rust go",
	}
	tests := []struct {
		name  string
		minDF int
		maxDF float64
		want  Vocabulary
	}{
		{"min and max", 2, 0.5, Vocabulary{"api", "sql"}},
		{"no upper bound", 2, 1.0, Vocabulary{"api", "go", "sql"}},
		{"absolute max", 1, 2, Vocabulary{"api", "java", "rust", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewTFIDF(wordTokenizer{}, tt.minDF, tt.maxDF)
			m, vocab, err := v.Fit(corpus)
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if !slices.Equal(vocab, tt.want) {
				t.Errorf("vocabulary = %v, want %v", vocab, tt.want)
			}
			if m.Cols != len(tt.want) || m.NumRows() != len(corpus) {
				t.Errorf("matrix shape = %dx%d, want %dx%d", m.NumRows(), m.Cols, len(corpus), len(tt.want))
			}
		})
	}
}

func TestTFIDFRowsAreUnitNorm(t *testing.T) {
	v := NewTFIDF(wordTokenizer{}, 1, 1.0)
	m, _, err := v.Fit([]string{"go go sql", "sql api", "api"})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	for i, r := range m.Rows {
		var sum float64
		for _, x := range r.Values {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("row %d squared norm = %v, want 1", i, sum)
		}
		if !slices.IsSorted(r.Indices) {
			t.Errorf("row %d indices %v not sorted", i, r.Indices)
		}
	}
}

func TestTFIDFSmoothedIDF(t *testing.T) {
	v := NewTFIDF(wordTokenizer{}, 1, 1.0)
	if _, _, err := v.Fit([]string{"a1 b1", "a1", "a1"}); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	// a1 in every document, b1 in one.
	want := []float64{math.Log(4.0/4.0) + 1, math.Log(4.0/2.0) + 1}
	for j := range want {
		if math.Abs(v.IDF[j]-want[j]) > 1e-12 {
			t.Errorf("idf[%s] = %v, want %v", v.Vocabulary[j], v.IDF[j], want[j])
		}
	}
}

func TestTFIDFEmptyVocabulary(t *testing.T) {
	v := NewTFIDF(wordTokenizer{}, 3, 0.5)
	_, _, err := v.Fit([]string{"alpha", "beta", "gamma"})
	if !errors.Is(err, ErrInsufficientVocabulary) {
		t.Errorf("Fit() error = %v, want ErrInsufficientVocabulary", err)
	}
	if _, _, err := v.Fit(nil); !errors.Is(err, ErrInsufficientVocabulary) {
		t.Errorf("Fit(nil) error = %v, want ErrInsufficientVocabulary", err)
	}
}

func TestTFIDFTransformKeepsColumns(t *testing.T) {
	v := NewTFIDF(wordTokenizer{}, 1, 1.0)
	fit, _, err := v.Fit([]string{"go sql", "api"})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	m, err := v.Transform([]string{"go unknown", "nothing known"})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if m.Cols != fit.Cols {
		t.Errorf("Transform cols = %d, want %d", m.Cols, fit.Cols)
	}
	if len(m.Rows[0].Indices) != 1 {
		t.Errorf("row 0 indices = %v, want only the go column", m.Rows[0].Indices)
	}
	if len(m.Rows[1].Indices) != 0 {
		t.Errorf("row 1 indices = %v, want empty", m.Rows[1].Indices)
	}
}
