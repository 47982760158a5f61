package nlp

import (
	"math"
	"sort"
)

// Row is one sparse document vector. Indices are strictly increasing.
type Row struct {
	Indices []int     `json:"i"`
	Values  []float32 `json:"v"`
}

// Matrix is a row-major sparse document-term matrix. RowIDs, when set,
// align each row with the offer it was computed from.
type Matrix struct {
	Cols   int     `json:"cols"`
	Rows   []Row   `json:"rows"`
	RowIDs []int64 `json:"row_ids,omitempty"`
}

func NewMatrix(cols int) *Matrix {
	return &Matrix{Cols: cols}
}

func (m *Matrix) NumRows() int {
	if m == nil {
		return 0
	}
	return len(m.Rows)
}

// ColumnMeans returns the mean weight of every column over the given rows.
func (m *Matrix) ColumnMeans(rows []int) []float64 {
	means := make([]float64, m.Cols)
	if len(rows) == 0 {
		return means
	}
	for _, i := range rows {
		r := m.Rows[i]
		for k, j := range r.Indices {
			means[j] += float64(r.Values[k])
		}
	}
	n := float64(len(rows))
	for j := range means {
		means[j] /= n
	}
	return means
}

func newRow(counts map[int]float64) Row {
	idx := make([]int, 0, len(counts))
	for j := range counts {
		idx = append(idx, j)
	}
	sort.Ints(idx)
	r := Row{Indices: idx, Values: make([]float32, len(idx))}
	for k, j := range idx {
		r.Values[k] = float32(counts[j])
	}
	return r
}

// normalizeRow scales r to unit L2 norm in place. A zero row stays zero.
func normalizeRow(r Row) {
	var sum float64
	for _, v := range r.Values {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for k, v := range r.Values {
		r.Values[k] = float32(float64(v) * inv)
	}
}

// Subset returns the rows whose offer id is in ids, in ids order, along with
// the positions in ids that were found.
func (m *Matrix) Subset(ids []int64) (*Matrix, []int) {
	pos := make(map[int64]int, len(m.RowIDs))
	for i, id := range m.RowIDs {
		pos[id] = i
	}
	out := NewMatrix(m.Cols)
	found := make([]int, 0, len(ids))
	for k, id := range ids {
		p, ok := pos[id]
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, m.Rows[p])
		out.RowIDs = append(out.RowIDs, id)
		found = append(found, k)
	}
	return out, found
}
