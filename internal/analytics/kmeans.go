package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// ErrNotFitted is returned by Predict before Fit.
var ErrNotFitted = errors.New("kmeans: model not fitted")

// KMeans clusters points with k-means++ seeding.
type KMeans struct {
	K             int
	MaxIterations int
	// Rand drives centroid seeding. A nil Rand uses a random seed.
	Rand *rand.Rand

	Centroids [][]float64
	Labels    []int
}

// ClusterStat summarises one cluster after Fit.
type ClusterStat struct {
	Cluster      int       `json:"cluster_id"`
	Size         int       `json:"size"`
	Centroid     []float64 `json:"centroid"`
	FeatureMeans []float64 `json:"feature_means"`
}

func NewKMeans(k int, seed uint64) *KMeans {
	return &KMeans{K: k, MaxIterations: 100, Rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (m *KMeans) rng() *rand.Rand {
	if m.Rand == nil {
		m.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return m.Rand
}

func (m *KMeans) seed(data [][]float64) [][]float64 {
	r := m.rng()
	centroids := [][]float64{slices.Clone(data[r.IntN(len(data))])}

	weights := make([]float64, len(data))
	for len(centroids) < m.K {
		var total float64
		for i, p := range data {
			best := math.Inf(1)
			for _, c := range centroids {
				best = min(best, distance(p, c))
			}
			weights[i] = best * best
			total += weights[i]
		}

		pick := len(data) - 1
		if total > 0 {
			target := r.Float64() * total
			var cumulative float64
			for i, w := range weights {
				cumulative += w
				if cumulative >= target {
					pick = i
					break
				}
			}
		} else {
			pick = r.IntN(len(data))
		}
		centroids = append(centroids, slices.Clone(data[pick]))
	}
	return centroids
}

func (m *KMeans) nearest(p []float64) int {
	best, label := math.Inf(1), 0
	for i, c := range m.Centroids {
		if d := distance(p, c); d < best {
			best, label = d, i
		}
	}
	return label
}

// Fit assigns every point to a cluster, iterating until labels stop changing.
func (m *KMeans) Fit(data [][]float64) error {
	if m.K < 1 {
		return fmt.Errorf("kmeans: k must be positive, got %d", m.K)
	}
	if len(data) < m.K {
		return fmt.Errorf("kmeans: need at least %d data points, got %d", m.K, len(data))
	}
	maxIter := m.MaxIterations
	if maxIter < 1 {
		maxIter = 100
	}

	m.Centroids = m.seed(data)
	m.Labels = nil
	dims := len(data[0])

	for iter := 0; iter < maxIter; iter++ {
		labels := make([]int, len(data))
		for i, p := range data {
			labels[i] = m.nearest(p)
		}
		if slices.Equal(labels, m.Labels) {
			break
		}
		m.Labels = labels

		for c := range m.Centroids {
			sum := make([]float64, dims)
			n := 0
			for i, p := range data {
				if labels[i] != c {
					continue
				}
				n++
				for f := range sum {
					sum[f] += p[f]
				}
			}
			if n == 0 {
				continue
			}
			for f := range sum {
				sum[f] /= float64(n)
			}
			m.Centroids[c] = sum
		}
	}
	return nil
}

// Predict labels new points against the fitted centroids.
func (m *KMeans) Predict(data [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, ErrNotFitted
	}
	labels := make([]int, len(data))
	for i, p := range data {
		labels[i] = m.nearest(p)
	}
	return labels, nil
}

// ClusterStats reports size and per-feature means for each cluster of the fitted data.
func (m *KMeans) ClusterStats(data [][]float64) []ClusterStat {
	out := make([]ClusterStat, len(m.Centroids))
	for c := range m.Centroids {
		st := ClusterStat{Cluster: c, Centroid: m.Centroids[c], FeatureMeans: []float64{}}
		var sum []float64
		for i, p := range data {
			if i >= len(m.Labels) || m.Labels[i] != c {
				continue
			}
			if sum == nil {
				sum = make([]float64, len(p))
			}
			st.Size++
			for f := range p {
				sum[f] += p[f]
			}
		}
		for _, s := range sum {
			st.FeatureMeans = append(st.FeatureMeans, round(s/float64(st.Size), 2))
		}
		out[c] = st
	}
	return out
}
