package analysis

import (
	"math"

	"github.com/lox/energydash/internal/models"
)

const DefaultThreshold = 3.0

// Score is the z-score of one value against its whole column. Z is nil
// when the score is undefined: fewer than two values or a constant column.
type Score struct {
	Z       *float64
	Anomaly bool
}

// Detect scores every value against the mean and sample standard deviation
// of the full slice. A value is anomalous when |z| > threshold. NaN values
// are left out of the statistics and get no score.
func Detect(values []float64, threshold float64) []Score {
	scores := make([]Score, len(values))
	mean, std, ok := meanStd(values)
	if !ok || std == 0 {
		return scores
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		z := (v - mean) / std
		scores[i] = Score{Z: &z, Anomaly: math.Abs(z) > threshold}
	}
	return scores
}

// DetectReadings scores one metric column of readings.
func DetectReadings(readings []models.Reading, metric models.Metric, threshold float64) []Score {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value(metric)
	}
	return Detect(values, threshold)
}

// Annotate flags power and flow independently, each into its own fields.
func Annotate(readings []models.Reading, threshold float64) []models.FlaggedReading {
	power := DetectReadings(readings, models.Power, threshold)
	flow := DetectReadings(readings, models.Flow, threshold)

	out := make([]models.FlaggedReading, len(readings))
	for i, r := range readings {
		out[i] = models.FlaggedReading{
			Reading:        r,
			ZScorePower:    power[i].Z,
			IsAnomalyPower: power[i].Anomaly,
			ZScoreFlow:     flow[i].Z,
			IsAnomalyFlow:  flow[i].Anomaly,
		}
	}
	return out
}

func CountAnomalies(rows []models.FlaggedReading, metric models.Metric) int {
	n := 0
	for _, r := range rows {
		if r.IsAnomaly(metric) {
			n++
		}
	}
	return n
}

// Band returns the values a metric must leave to be flagged, mean ± k·σ.
// ok is false when the column has no defined spread.
func Band(readings []models.Reading, metric models.Metric, threshold float64) (lower, upper float64, ok bool) {
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value(metric)
	}
	mean, std, ok := meanStd(values)
	if !ok || std == 0 {
		return 0, 0, false
	}
	return mean - threshold*std, mean + threshold*std, true
}

func meanStd(values []float64) (mean, std float64, ok bool) {
	n := 0
	sum := 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n < 2 {
		return 0, 0, false
	}
	mean = sum / float64(n)

	sumSq := 0.0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		sumSq += d * d
	}
	return mean, math.Sqrt(sumSq / float64(n-1)), true
}
