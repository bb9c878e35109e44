package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/energydash/internal/models"
)

func TestDetect_ConstantColumn(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	scores := Detect(values, DefaultThreshold)
	require.Len(t, scores, 5)
	for _, s := range scores {
		assert.Nil(t, s.Z)
		assert.False(t, s.Anomaly)
	}
}

func TestDetect_TooFewValues(t *testing.T) {
	assert.Empty(t, Detect(nil, DefaultThreshold))

	scores := Detect([]float64{42}, DefaultThreshold)
	require.Len(t, scores, 1)
	assert.Nil(t, scores[0].Z)
	assert.False(t, scores[0].Anomaly)
}

func TestDetect_SingleOutlier(t *testing.T) {
	var base []float64
	for i := 0; i < 100; i++ {
		base = append(base, 10+float64(i%2)*2)
	}
	mean, std, ok := meanStd(base)
	require.True(t, ok)

	values := append([]float64{}, base...)
	outlier := 57
	values = append(values[:outlier], append([]float64{mean + 10*std}, values[outlier:]...)...)

	scores := Detect(values, 3.0)
	var flagged []int
	for i, s := range scores {
		require.NotNil(t, s.Z)
		if s.Anomaly {
			flagged = append(flagged, i)
		}
	}
	assert.Equal(t, []int{outlier}, flagged)
}

func TestDetect_SampleStdDev(t *testing.T) {
	// mean 2.5, sample std sqrt(5/3)
	scores := Detect([]float64{1, 2, 3, 4}, DefaultThreshold)
	require.NotNil(t, scores[0].Z)
	assert.InDelta(t, -1.5/math.Sqrt(5.0/3.0), *scores[0].Z, 1e-12)
}

func TestDetect_ThresholdIsStrict(t *testing.T) {
	// mean 2, sample std 2: z is exactly -1, 0, 1
	scores := Detect([]float64{0, 2, 4}, 1)
	for _, s := range scores {
		require.NotNil(t, s.Z)
		assert.False(t, s.Anomaly, "|z| == threshold must not flag")
	}
	assert.Equal(t, -1.0, *scores[0].Z)

	scores = Detect([]float64{0, 2, 4}, 0.99)
	assert.True(t, scores[0].Anomaly)
	assert.False(t, scores[1].Anomaly)
	assert.True(t, scores[2].Anomaly)
}

func TestDetect_SkipsMissingValues(t *testing.T) {
	// NaN is left out: the statistics are those of {0, 2, 4}
	scores := Detect([]float64{0, math.NaN(), 2, 4}, 0.99)
	require.Len(t, scores, 4)
	assert.Nil(t, scores[1].Z)
	assert.False(t, scores[1].Anomaly)
	require.NotNil(t, scores[0].Z)
	assert.Equal(t, -1.0, *scores[0].Z)
	assert.True(t, scores[0].Anomaly)
	assert.True(t, scores[3].Anomaly)
}

func TestAnnotate_IndependentMetrics(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var readings []models.Reading
	for i := 0; i < 50; i++ {
		readings = append(readings, models.Reading{
			Time:   start.AddDate(0, 0, i),
			Power:  100 + float64(i%3),
			Flow:   0.2,
			Season: models.Winter,
		})
	}
	readings[10].Power = 1000
	readings[20].Flow = 50

	rows := Annotate(readings, DefaultThreshold)
	require.Len(t, rows, 50)

	assert.True(t, rows[10].IsAnomalyPower)
	assert.False(t, rows[10].IsAnomalyFlow)
	assert.True(t, rows[20].IsAnomalyFlow)
	assert.False(t, rows[20].IsAnomalyPower)

	assert.Equal(t, 1, CountAnomalies(rows, models.Power))
	assert.Equal(t, 1, CountAnomalies(rows, models.Flow))

	assert.Equal(t, readings[10], rows[10].Reading, "source fields are not mutated")
}

func TestBand(t *testing.T) {
	readings := []models.Reading{{Power: 1}, {Power: 3}}
	lower, upper, ok := Band(readings, models.Power, 2)
	require.True(t, ok)
	assert.InDelta(t, 2-2*math.Sqrt2, lower, 1e-12)
	assert.InDelta(t, 2+2*math.Sqrt2, upper, 1e-12)

	_, _, ok = Band([]models.Reading{{Power: 1}, {Power: 1}}, models.Power, 2)
	assert.False(t, ok)
}
