package nlp

import (
	"fmt"
	"sort"
)

// Cluster is one KMeans partition. Terms is empty for clusters returned by
// Predict; callers resolve terms and names from the stored clusters.
type Cluster struct {
	ID    int      `json:"cluster_id"`
	Terms []string `json:"main_tokens"`
}

// ClusterEngine fits and applies the KMeans partition of the 50-d vectors.
type ClusterEngine struct {
	TopTerms int
	Seed     int64
	model    *KMeans
}

func NewClusterEngine(topTerms int, seed int64, model *KMeans) *ClusterEngine {
	return &ClusterEngine{TopTerms: topTerms, Seed: seed, model: model}
}

// Model returns the last fitted KMeans, or nil.
func (e *ClusterEngine) Model() *KMeans { return e.model }

// FitPredict refits KMeans over every row and returns all k clusters, empty
// ones included. m and dense50 must be row aligned.
func (e *ClusterEngine) FitPredict(m *Matrix, dense50 [][]float32, vocab Vocabulary, k int) ([]int, []Cluster, error) {
	if m.NumRows() != len(dense50) {
		return nil, nil, fmt.Errorf("matrix has %d rows, vectors %d: %w", m.NumRows(), len(dense50), ErrDimensionMismatch)
	}
	if m.Cols != len(vocab) {
		return nil, nil, fmt.Errorf("matrix has %d columns, vocabulary %d: %w", m.Cols, len(vocab), ErrDimensionMismatch)
	}

	km := NewKMeans(k, e.Seed)
	labels, err := km.Fit(dense50)
	if err != nil {
		return nil, nil, err
	}

	members := make([][]int, k)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	clusters := make([]Cluster, k)
	for c := 0; c < k; c++ {
		clusters[c] = Cluster{ID: c, Terms: TopTerms(m, members[c], vocab, e.TopTerms)}
	}
	e.model = km
	return labels, clusters, nil
}

func (e *ClusterEngine) Predict(dense50 [][]float32) ([]int, []Cluster, error) {
	if e.model == nil {
		return nil, nil, ErrModelNotFit
	}
	labels, err := e.model.Predict(dense50)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[int]bool)
	var clusters []Cluster
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			clusters = append(clusters, Cluster{ID: l})
		}
	}
	sort.Slice(clusters, func(a, b int) bool { return clusters[a].ID < clusters[b].ID })
	return labels, clusters, nil
}

// TopTerms returns up to n terms with the highest mean weight over rows,
// ties broken by column index. Zero weight terms are never returned.
func TopTerms(m *Matrix, rows []int, vocab Vocabulary, n int) []string {
	means := m.ColumnMeans(rows)
	idx := make([]int, 0, len(means))
	for j, w := range means {
		if w > 0 {
			idx = append(idx, j)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if means[idx[a]] != means[idx[b]] {
			return means[idx[a]] > means[idx[b]]
		}
		return idx[a] < idx[b]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	terms := make([]string, len(idx))
	for i, j := range idx {
		terms[i] = vocab[j]
	}
	return terms
}
