package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
		slope  float64
	}{
		{"too short", []float64{1, 2}, TrendInsufficient, 0},
		{"flat", []float64{4, 4, 4, 4}, TrendStable, 0},
		{"steep rise", []float64{1, 2, 3, 4}, TrendStronglyIncreasing, 1},
		{"gentle rise", []float64{1, 1.2, 1.4, 1.6}, TrendIncreasing, 0.2},
		{"gentle fall", []float64{2, 1.7, 1.4}, TrendDecreasing, -0.3},
		{"steep fall", []float64{10, 8, 6, 4}, TrendStronglyDecreasing, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectTrend(tt.values)
			assert.Equal(t, tt.want, got.Trend)
			assert.InDelta(t, tt.slope, got.Slope, 1e-9)
			assert.Equal(t, len(tt.values), got.Points)
		})
	}
}

func TestKMeans_SeparatesObviousClusters(t *testing.T) {
	data := [][]float64{
		{1, 1}, {1.2, 0.8}, {0.9, 1.1},
		{10, 10}, {10.2, 9.9}, {9.8, 10.1},
	}
	m := NewKMeans(2, 42)
	require.NoError(t, m.Fit(data))

	require.Len(t, m.Labels, 6)
	assert.Equal(t, m.Labels[0], m.Labels[1])
	assert.Equal(t, m.Labels[0], m.Labels[2])
	assert.Equal(t, m.Labels[3], m.Labels[4])
	assert.Equal(t, m.Labels[3], m.Labels[5])
	assert.NotEqual(t, m.Labels[0], m.Labels[3])

	labels, err := m.Predict([][]float64{{0, 0}, {11, 11}})
	require.NoError(t, err)
	assert.Equal(t, m.Labels[0], labels[0])
	assert.Equal(t, m.Labels[3], labels[1])

	stats := m.ClusterStats(data)
	require.Len(t, stats, 2)
	for _, st := range stats {
		assert.Equal(t, 3, st.Size)
		require.Len(t, st.FeatureMeans, 2)
	}
	assert.InDelta(t, 1.03, stats[m.Labels[0]].FeatureMeans[0], 1e-9)
}

func TestKMeans_Deterministic(t *testing.T) {
	data := [][]float64{{1}, {2}, {3}, {10}, {11}, {20}, {21}}
	a, b := NewKMeans(3, 7), NewKMeans(3, 7)
	require.NoError(t, a.Fit(data))
	require.NoError(t, b.Fit(data))
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestKMeans_Errors(t *testing.T) {
	m := NewKMeans(3, 1)
	_, err := m.Predict([][]float64{{1}})
	require.ErrorIs(t, err, ErrNotFitted)
	require.Error(t, m.Fit([][]float64{{1}, {2}}))
}

func TestAssociationRules(t *testing.T) {
	transactions := [][]string{
		{"Workshop", "Meetup"},
		{"Workshop", "Meetup"},
		{"Workshop", "Meetup", "Conference"},
		{"Workshop"},
		{"Conference"},
	}
	a := NewAssociationRules(0.4, 0.6).Fit(transactions)

	assert.InDelta(t, 0.8, a.Frequent["Workshop"], 1e-9)
	assert.InDelta(t, 0.6, a.Frequent[itemsetKey([]string{"Meetup", "Workshop"})], 1e-9)

	rules := a.Rules(0)
	require.Len(t, rules, 2)
	assert.Equal(t, []string{"Meetup"}, rules[0].Antecedent)
	assert.Equal(t, []string{"Workshop"}, rules[0].Consequent)
	assert.Equal(t, 1.0, rules[0].Confidence)
	assert.Equal(t, 1.25, rules[0].Lift)
	assert.Equal(t, 0.75, rules[1].Confidence)

	assert.Len(t, a.Rules(1.25), 2)
	assert.Empty(t, a.Rules(1.3))
	assert.Empty(t, NewAssociationRules(0.1, 0.5).Fit(nil).Rules(0))
}

func TestAnomalyDetector(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 50}
	d := NewAnomalyDetector(2).Fit(values)

	assert.InDelta(t, 14, d.Mean, 1e-9)
	assert.InDelta(t, 12, d.Std, 1e-9)

	got := d.Detect(values)
	require.Len(t, got, 1)
	assert.Equal(t, 9, got[0].Index)
	assert.Equal(t, AnomalyHigh, got[0].Type)
	assert.Equal(t, SeverityWarning, got[0].Severity, "z of exactly 3 is not critical")
	assert.Equal(t, 3.0, got[0].ZScore)

	lower, upper := d.Bounds()
	assert.Equal(t, -10.0, lower)
	assert.Equal(t, 38.0, upper)
}

func TestAnomalyDetector_FlatSeries(t *testing.T) {
	d := NewAnomalyDetector(2).Fit([]float64{5, 5, 5})
	assert.Equal(t, 1.0, d.Std)
	assert.Empty(t, d.Detect([]float64{5, 6}))
	assert.Len(t, d.Detect([]float64{8}), 1)
}
