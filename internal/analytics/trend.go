// Package analytics holds the data-mining algorithms behind the dashboard.
package analytics

import (
	"github.com/montanaflynn/stats"
)

// Trend labels.
const (
	TrendInsufficient       = "insufficient_data"
	TrendStronglyIncreasing = "strongly_increasing"
	TrendIncreasing         = "increasing"
	TrendStable             = "stable"
	TrendDecreasing         = "decreasing"
	TrendStronglyDecreasing = "strongly_decreasing"
)

// Trend is the least-squares direction of a series.
type Trend struct {
	Trend  string  `json:"trend"`
	Slope  float64 `json:"slope"`
	Points int     `json:"data_points"`
}

// DetectTrend fits a line over the series index and classifies its slope.
func DetectTrend(values []float64) Trend {
	n := len(values)
	if n < 3 {
		return Trend{Trend: TrendInsufficient, Points: n}
	}

	xs := make(stats.Float64Data, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	xMean, _ := xs.Mean()
	yMean, _ := stats.Mean(values)

	var num, den float64
	for i, y := range values {
		dx := xs[i] - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	var slope float64
	if den != 0 {
		slope = num / den
	}

	t := Trend{Slope: round(slope, 4), Points: n}
	switch {
	case slope > 0.5:
		t.Trend = TrendStronglyIncreasing
	case slope > 0.1:
		t.Trend = TrendIncreasing
	case slope < -0.5:
		t.Trend = TrendStronglyDecreasing
	case slope < -0.1:
		t.Trend = TrendDecreasing
	default:
		t.Trend = TrendStable
	}
	return t
}

func round(v float64, places int) float64 {
	r, err := stats.Round(v, places)
	if err != nil {
		return v
	}
	return r
}
