package nlp

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	kmeansInits     = 10
	kmeansMaxIter   = 300
	kmeansTolerance = 1e-4
)

// KMeans is Lloyd's algorithm with k-means++ seeding and several restarts.
type KMeans struct {
	Stamp     Stamp       `json:"stamp"`
	K         int         `json:"k"`
	Seed      int64       `json:"seed"`
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
	// ExplainedInertia is 1 - inertia/total inertia, in percent.
	ExplainedInertia float64 `json:"explained_inertia"`
	FitSize          int     `json:"fit_size"`
	Predicted        int     `json:"predicted"`
}

func NewKMeans(k int, seed int64) *KMeans {
	return &KMeans{K: k, Seed: seed}
}

func (km *KMeans) Name() string      { return ArtifactKMeans }
func (km *KMeans) ModelStamp() Stamp { return km.Stamp }

func (km *KMeans) Info() ModelInfo {
	return ModelInfo{
		Name:  km.Name(),
		Stamp: km.Stamp,
		Features: map[string]any{
			"k":                 km.K,
			"fit_size":          km.FitSize,
			"predicted":         km.Predicted,
			"inertia":           km.Inertia,
			"explained_inertia": km.ExplainedInertia,
		},
	}
}

func (km *KMeans) Fitted() bool { return km.K > 0 && len(km.Centroids) == km.K }

func (km *KMeans) Fit(x [][]float32) ([]int, error) {
	n := len(x)
	if km.K < 1 || km.K > n {
		return nil, fmt.Errorf("k=%d over %d rows: %w", km.K, n, ErrInvalidClusterCount)
	}
	data := make([][]float64, n)
	dim := len(x[0])
	for i, v := range x {
		if len(v) != dim {
			return nil, fmt.Errorf("row %d has %d dimensions, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		data[i] = to64(v)
	}

	rng := rand.New(rand.NewPCG(uint64(km.Seed), 0x2545f491))
	var (
		bestLabels    []int
		bestCentroids [][]float64
		bestInertia   = math.Inf(1)
	)
	for run := 0; run < kmeansInits; run++ {
		centroids := seedPlusPlus(data, km.K, rng)
		labels, inertia := lloyd(data, centroids)
		if inertia < bestInertia {
			bestLabels, bestCentroids, bestInertia = labels, centroids, inertia
		}
	}

	mean := make([]float64, dim)
	for _, v := range data {
		floats.Add(mean, v)
	}
	floats.Scale(1/float64(n), mean)
	var total float64
	for _, v := range data {
		total += sqDist(v, mean)
	}

	km.Centroids = bestCentroids
	km.Inertia = bestInertia
	km.ExplainedInertia = 100
	if total > 0 {
		km.ExplainedInertia = (1 - bestInertia/total) * 100
	}
	km.FitSize = n
	km.Predicted = 0
	return bestLabels, nil
}

// Predict assigns each vector to its nearest centroid.
func (km *KMeans) Predict(x [][]float32) ([]int, error) {
	if !km.Fitted() {
		return nil, ErrModelNotFit
	}
	dim := len(km.Centroids[0])
	labels := make([]int, len(x))
	for i, v := range x {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has %d dimensions, centroids %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		labels[i], _ = nearest(to64(v), km.Centroids)
	}
	return labels, nil
}

func seedPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(data[rng.IntN(n)]))
	d2 := make([]float64, n)
	for i, v := range data {
		d2[i] = sqDist(v, centroids[0])
	}
	for len(centroids) < k {
		total := floats.Sum(d2)
		next := 0
		if total == 0 {
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			for i, w := range d2 {
				target -= w
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		}
		c := clone(data[next])
		centroids = append(centroids, c)
		for i, v := range data {
			d2[i] = min(d2[i], sqDist(v, c))
		}
	}
	return centroids
}

// lloyd refines centroids in place and returns the final labels and inertia.
// An emptied cluster is reseated on the point farthest from its centroid.
func lloyd(data, centroids [][]float64) ([]int, float64) {
	k := len(centroids)
	dim := len(data[0])
	labels := make([]int, len(data))
	dists := make([]float64, len(data))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		for i, v := range data {
			labels[i], dists[i] = nearest(v, centroids)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range data {
			floats.Add(sums[labels[i]], v)
			counts[labels[i]]++
		}
		for c := 0; c < k; c++ {
			if counts[c] > 0 {
				continue
			}
			far := farthestMovable(dists, labels, counts)
			counts[labels[far]]--
			floats.Sub(sums[labels[far]], data[far])
			labels[far] = c
			dists[far] = 0
			copy(sums[c], data[far])
			counts[c] = 1
		}

		var shift float64
		for c := 0; c < k; c++ {
			floats.Scale(1/float64(counts[c]), sums[c])
			shift += sqDist(sums[c], centroids[c])
			copy(centroids[c], sums[c])
		}
		if shift <= kmeansTolerance*kmeansTolerance {
			break
		}
	}

	var inertia float64
	for i, v := range data {
		labels[i], dists[i] = nearest(v, centroids)
		inertia += dists[i]
	}
	return labels, inertia
}

// farthestMovable is the point farthest from its centroid among clusters that
// keep at least one member when it leaves.
func farthestMovable(dists []float64, labels, counts []int) int {
	far := -1
	for i, d := range dists {
		if counts[labels[i]] < 2 {
			continue
		}
		if far < 0 || d > dists[far] {
			far = i
		}
	}
	return far
}

func nearest(v []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func to64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
