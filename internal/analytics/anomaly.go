package analytics

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Anomaly kinds and severities.
const (
	AnomalyHigh = "high"
	AnomalyLow  = "low"

	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Anomaly is a value whose z-score exceeds the threshold.
type Anomaly struct {
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
	ZScore   float64 `json:"z_score"`
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
}

// AnomalyDetector flags values more than ThresholdStd population deviations from the mean.
type AnomalyDetector struct {
	ThresholdStd float64
	Mean         float64
	Std          float64
}

func NewAnomalyDetector(threshold float64) *AnomalyDetector {
	if threshold <= 0 {
		threshold = 2
	}
	return &AnomalyDetector{ThresholdStd: threshold}
}

// Fit learns mean and standard deviation. A flat series gets Std 1.
func (d *AnomalyDetector) Fit(values []float64) *AnomalyDetector {
	if len(values) == 0 {
		return d
	}
	d.Mean, _ = stats.Mean(values)
	variance, _ := stats.PopulationVariance(values)
	d.Std = 1
	if variance > 0 {
		d.Std = math.Sqrt(variance)
	}
	return d
}

func (d *AnomalyDetector) Detect(values []float64) []Anomaly {
	var out []Anomaly
	for i, v := range values {
		var z float64
		if d.Std > 0 {
			z = (v - d.Mean) / d.Std
		}
		if math.Abs(z) <= d.ThresholdStd {
			continue
		}
		a := Anomaly{Index: i, Value: v, ZScore: round(z, 4), Type: AnomalyLow, Severity: SeverityWarning}
		if z > 0 {
			a.Type = AnomalyHigh
		}
		if math.Abs(z) > 3 {
			a.Severity = SeverityCritical
		}
		out = append(out, a)
	}
	return out
}

// Bounds returns the lower and upper values outside which Detect reports anomalies.
func (d *AnomalyDetector) Bounds() (lower, upper float64) {
	return round(d.Mean-d.ThresholdStd*d.Std, 2), round(d.Mean+d.ThresholdStd*d.Std, 2)
}
