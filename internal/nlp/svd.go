package nlp

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const (
	svdOversamples = 10
	svdPowerIters  = 4
)

// SVD is a randomized truncated SVD projection fit on a sparse tf-idf
// matrix. Transform output is L2 row normalized.
type SVD struct {
	Stamp          Stamp       `json:"stamp"`
	Components     int         `json:"components"`
	Seed           int64       `json:"seed"`
	Cols           int         `json:"cols"`
	Basis          [][]float64 `json:"basis"`
	SingularValues []float64   `json:"singular_values"`
	FitSize        int         `json:"fit_size"`
	Rank           int         `json:"rank"`
}

func NewSVD(components int, seed int64) *SVD {
	return &SVD{Components: components, Seed: seed}
}

func (s *SVD) Name() string      { return ArtifactSVD }
func (s *SVD) ModelStamp() Stamp { return s.Stamp }

func (s *SVD) Info() ModelInfo {
	return ModelInfo{
		Name:  s.Name(),
		Stamp: s.Stamp,
		Features: map[string]any{
			"fit_size":   s.FitSize,
			"components": s.Components,
			"rank":       s.Rank,
			"terms":      s.Cols,
		},
	}
}

func (s *SVD) Fitted() bool { return len(s.Basis) == s.Components && s.Components > 0 && s.Cols > 0 }

// Fit learns the top Components right singular vectors of m. Fewer rows than
// components is allowed; the missing components are zero.
func (s *SVD) Fit(m *Matrix) error {
	if s.Components <= 0 {
		return fmt.Errorf("svd components %d: %w", s.Components, ErrInsufficientVocabulary)
	}
	if s.Components >= m.Cols {
		return fmt.Errorf("svd components %d must be below %d terms: %w", s.Components, m.Cols, ErrInsufficientVocabulary)
	}
	if m.NumRows() == 0 {
		return fmt.Errorf("svd fit on empty matrix: %w", ErrInsufficientVocabulary)
	}

	l := min(s.Components+svdOversamples, m.Cols)
	rng := rand.New(rand.NewPCG(uint64(s.Seed), 0x5f3759df))
	omega := mat.NewDense(m.Cols, l, nil)
	for i := 0; i < m.Cols; i++ {
		for j := 0; j < l; j++ {
			omega.Set(i, j, rng.NormFloat64())
		}
	}

	q, err := orthonormalize(mulSparse(m, omega))
	if err != nil {
		return err
	}
	for i := 0; i < svdPowerIters; i++ {
		if q, err = orthonormalize(mulSparseT(m, q)); err != nil {
			return err
		}
		if q, err = orthonormalize(mulSparse(m, q)); err != nil {
			return err
		}
	}

	// B = Qᵀ X, held transposed as Xᵀ Q to keep the sparse product.
	bt := mulSparseT(m, q)
	var svd mat.SVD
	if ok := svd.Factorize(bt.T(), mat.SVDThin); !ok {
		return fmt.Errorf("svd factorization did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	values := svd.Values(nil)

	_, rank := v.Dims()
	basis := make([][]float64, s.Components)
	sv := make([]float64, s.Components)
	for c := 0; c < s.Components; c++ {
		basis[c] = make([]float64, m.Cols)
		if c >= rank {
			continue
		}
		mat.Col(basis[c], c, &v)
		flipSign(basis[c])
		sv[c] = values[c]
	}

	s.Cols = m.Cols
	s.Basis = basis
	s.SingularValues = sv
	s.FitSize = m.NumRows()
	s.Rank = min(rank, s.Components)
	return nil
}

// Transform projects m onto the fitted basis and L2 normalizes every row.
func (s *SVD) Transform(m *Matrix) ([][]float32, error) {
	if !s.Fitted() {
		return nil, ErrModelNotFit
	}
	if m.Cols != s.Cols {
		return nil, fmt.Errorf("matrix has %d columns, projection %d: %w", m.Cols, s.Cols, ErrDimensionMismatch)
	}
	out := make([][]float32, len(m.Rows))
	proj := make([]float64, s.Components)
	for i, r := range m.Rows {
		for c, b := range s.Basis {
			var dot float64
			for k, j := range r.Indices {
				dot += float64(r.Values[k]) * b[j]
			}
			proj[c] = dot
		}
		out[i] = normalized32(proj)
	}
	return out, nil
}

// mulSparse computes X·A for sparse X (n×d) and dense A (d×l).
func mulSparse(x *Matrix, a *mat.Dense) *mat.Dense {
	_, l := a.Dims()
	out := mat.NewDense(len(x.Rows), l, nil)
	for i, r := range x.Rows {
		row := out.RawRowView(i)
		for k, j := range r.Indices {
			v := float64(r.Values[k])
			arow := a.RawRowView(j)
			for c := range row {
				row[c] += v * arow[c]
			}
		}
	}
	return out
}

// mulSparseT computes Xᵀ·A for sparse X (n×d) and dense A (n×l).
func mulSparseT(x *Matrix, a *mat.Dense) *mat.Dense {
	_, l := a.Dims()
	out := mat.NewDense(x.Cols, l, nil)
	for i, r := range x.Rows {
		arow := a.RawRowView(i)
		for k, j := range r.Indices {
			v := float64(r.Values[k])
			row := out.RawRowView(j)
			for c := range row {
				row[c] += v * arow[c]
			}
		}
	}
	return out
}

// orthonormalize returns an orthonormal basis of the column space of a,
// taken from the left singular vectors so that wide inputs work too.
func orthonormalize(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("range finder factorization did not converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	return &u, nil
}

// flipSign makes the largest absolute entry of v positive.
func flipSign(v []float64) {
	best := 0
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[best]) {
			best = i
		}
	}
	if v[best] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}

func normalized32(v []float64) []float32 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(x * inv)
	}
	return out
}
