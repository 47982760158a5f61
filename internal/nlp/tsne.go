package nlp

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

const (
	tsneDims            = 3
	tsneExaggeration    = 12.0
	tsneNeighbors       = 10
	perplexityTolerance = 1e-5
	perplexitySteps     = 64
)

// TSNE is an exact t-SNE embedding over cosine distances, used only to
// place offers in 3-d for plotting. It is refit on every corpus change;
// points added between fits are interpolated from their nearest snapshot
// neighbours and are advisory.
//
// With MaxRows > 0 the snapshot is a seeded sample of at most MaxRows
// inputs and the remaining rows are interpolated like later additions.
type TSNE struct {
	Stamp      Stamp       `json:"stamp"`
	Perplexity float64     `json:"perplexity"`
	Iterations int         `json:"iterations"`
	MaxRows    int         `json:"max_rows"`
	Seed       int64       `json:"seed"`
	Inputs     [][]float32 `json:"inputs"`
	Embedding  [][]float32 `json:"embedding"`
	// EffectivePerplexity is Perplexity clamped to the snapshot size.
	EffectivePerplexity float64 `json:"effective_perplexity"`
}

func NewTSNE(perplexity float64, iterations int, seed int64) *TSNE {
	return &TSNE{Perplexity: perplexity, Iterations: iterations, Seed: seed}
}

func (t *TSNE) Name() string      { return ArtifactTSNE }
func (t *TSNE) ModelStamp() Stamp { return t.Stamp }

func (t *TSNE) Info() ModelInfo {
	return ModelInfo{
		Name:  t.Name(),
		Stamp: t.Stamp,
		Features: map[string]any{
			"fit_size":             len(t.Inputs),
			"perplexity":           t.Perplexity,
			"effective_perplexity": t.EffectivePerplexity,
			"iterations":           t.Iterations,
			"max_rows":             t.MaxRows,
			"dimensions":           tsneDims,
		},
	}
}

func (t *TSNE) Fitted() bool { return t.Embedding != nil && len(t.Inputs) == len(t.Embedding) }

// EffectivePerplexityFor clamps p to n-1 with a floor of 0.5.
func EffectivePerplexityFor(p float64, n int) float64 {
	p = min(p, float64(n-1))
	return max(p, 0.5)
}

// FitTransform embeds every row of x, in order.
func (t *TSNE) FitTransform(x [][]float32) ([][]float32, error) {
	if t.MaxRows <= 0 || len(x) <= t.MaxRows {
		return t.fit(x)
	}

	rng := rand.New(rand.NewPCG(uint64(t.Seed), 0x7f4a7c15))
	picked := rng.Perm(len(x))[:t.MaxRows]
	sort.Ints(picked)
	inSample := make(map[int]int, len(picked))
	sample := make([][]float32, len(picked))
	for i, idx := range picked {
		inSample[idx] = i
		sample[i] = x[idx]
	}
	emb, err := t.fit(sample)
	if err != nil {
		return nil, err
	}

	rest := make([][]float32, 0, len(x)-len(picked))
	for i := range x {
		if _, ok := inSample[i]; !ok {
			rest = append(rest, x[i])
		}
	}
	placed, err := t.Transform(rest)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(x))
	next := 0
	for i := range x {
		if j, ok := inSample[i]; ok {
			out[i] = emb[j]
			continue
		}
		out[i] = placed[next]
		next++
	}
	return out, nil
}

func (t *TSNE) fit(x [][]float32) ([][]float32, error) {
	n := len(x)
	t.Inputs = x
	t.EffectivePerplexity = EffectivePerplexityFor(t.Perplexity, n)
	if n <= 1 {
		t.Embedding = zeros32(n, tsneDims)
		return t.Embedding, nil
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := cosineDistance(x[i], x[j])
			dist[i][j], dist[j][i] = d, d
		}
	}
	p := jointProbabilities(dist, t.EffectivePerplexity)
	y := t.optimize(p)

	t.Embedding = make([][]float32, n)
	for i := range y {
		t.Embedding[i] = []float32{float32(y[i][0]), float32(y[i][1]), float32(y[i][2])}
	}
	return t.Embedding, nil
}

// Transform places new points at the distance weighted mean of their
// nearest snapshot neighbours.
func (t *TSNE) Transform(x [][]float32) ([][]float32, error) {
	if !t.Fitted() {
		return nil, ErrModelNotFit
	}
	out := make([][]float32, len(x))
	if len(t.Inputs) == 0 {
		for i := range out {
			out[i] = make([]float32, tsneDims)
		}
		return out, nil
	}

	type neighbour struct {
		idx  int
		dist float64
	}
	k := min(tsneNeighbors, len(t.Inputs))
	for i, v := range x {
		if len(t.Inputs[0]) != len(v) {
			return nil, fmt.Errorf("tsne input has %d dimensions, snapshot %d: %w", len(v), len(t.Inputs[0]), ErrDimensionMismatch)
		}
		ns := make([]neighbour, len(t.Inputs))
		for j, in := range t.Inputs {
			ns[j] = neighbour{j, cosineDistance(v, in)}
		}
		sort.Slice(ns, func(a, b int) bool {
			if ns[a].dist != ns[b].dist {
				return ns[a].dist < ns[b].dist
			}
			return ns[a].idx < ns[b].idx
		})
		var pos [tsneDims]float64
		var total float64
		for _, nb := range ns[:k] {
			w := 1 / (nb.dist + 1e-9)
			total += w
			for d := 0; d < tsneDims; d++ {
				pos[d] += w * float64(t.Embedding[nb.idx][d])
			}
		}
		out[i] = make([]float32, tsneDims)
		for d := range pos {
			out[i][d] = float32(pos[d] / total)
		}
	}
	return out, nil
}

// jointProbabilities calibrates a Gaussian kernel per row to the target
// perplexity, then symmetrizes.
func jointProbabilities(dist [][]float64, perplexity float64) [][]float64 {
	n := len(dist)
	target := math.Log(perplexity)
	cond := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for step := 0; step < perplexitySteps; step++ {
			var sum, weighted float64
			for j := 0; j < n; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-dist[i][j] * beta)
				sum += row[j]
				weighted += dist[i][j] * row[j]
			}
			if sum == 0 {
				sum = 1e-12
			}
			entropy := math.Log(sum) + beta*weighted/sum
			for j := range row {
				row[j] /= sum
			}
			diff := entropy - target
			if math.Abs(diff) < perplexityTolerance {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		cond[i] = row
	}

	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			p[i][j] = max((cond[i][j]+cond[j][i])/(2*float64(n)), 1e-12)
		}
	}
	return p
}

func (t *TSNE) optimize(p [][]float64) [][]float64 {
	n := len(p)
	iters := max(t.Iterations, 1)
	exaggerated := min(250, iters/4)
	rate := max(float64(n)/tsneExaggeration/4, 50)

	rng := rand.New(rand.NewPCG(uint64(t.Seed), 0x9e3779b9))
	y := make([][]float64, n)
	update := make([][]float64, n)
	gains := make([][]float64, n)
	grad := make([][]float64, n)
	for i := range y {
		y[i] = make([]float64, tsneDims)
		update[i] = make([]float64, tsneDims)
		gains[i] = []float64{1, 1, 1}
		grad[i] = make([]float64, tsneDims)
		for d := range y[i] {
			y[i][d] = rng.NormFloat64() * 1e-4
		}
	}
	num := make([][]float64, n)
	for i := range num {
		num[i] = make([]float64, n)
	}

	for it := 0; it < iters; it++ {
		exag, momentum := 1.0, 0.8
		if it < exaggerated {
			exag, momentum = tsneExaggeration, 0.5
		}

		var sum float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				var d2 float64
				for d := 0; d < tsneDims; d++ {
					diff := y[i][d] - y[j][d]
					d2 += diff * diff
				}
				q := 1 / (1 + d2)
				num[i][j], num[j][i] = q, q
				sum += 2 * q
			}
		}
		if sum == 0 {
			sum = 1e-12
		}

		for i := 0; i < n; i++ {
			g := grad[i]
			g[0], g[1], g[2] = 0, 0, 0
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				q := max(num[i][j]/sum, 1e-12)
				mult := (exag*p[i][j] - q) * num[i][j]
				for d := 0; d < tsneDims; d++ {
					g[d] += 4 * mult * (y[i][d] - y[j][d])
				}
			}
		}

		var mean [tsneDims]float64
		for i := 0; i < n; i++ {
			for d := 0; d < tsneDims; d++ {
				if (grad[i][d] > 0) != (update[i][d] > 0) {
					gains[i][d] += 0.2
				} else {
					gains[i][d] = max(gains[i][d]*0.8, 0.01)
				}
				update[i][d] = momentum*update[i][d] - rate*gains[i][d]*grad[i][d]
				y[i][d] += update[i][d]
				mean[d] += y[i][d]
			}
		}
		for i := 0; i < n; i++ {
			for d := 0; d < tsneDims; d++ {
				y[i][d] -= mean[d] / float64(n)
			}
		}
	}
	return y
}

// cosineDistance is 1 - cos(a, b); a zero vector is at distance 1 from everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/math.Sqrt(na*nb)
}

func zeros32(n, d int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, d)
	}
	return out
}
