package imagegen

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	charts "github.com/vicanso/go-charts/v2"
)

func TestRenderLineChart(t *testing.T) {
	start := time.Date(2020, 8, 3, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	var values []float64
	for i := 0; i < 48; i++ {
		times = append(times, start.Add(time.Duration(i)*30*time.Minute))
		values = append(values, float64(50+i%5))
	}
	upper := 60.0

	data, err := RenderLineChart(Series{
		Title:  "Power",
		Label:  "Power (W)",
		Times:  times,
		Values: values,
		Upper:  &upper,
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, ChartWidth, img.Bounds().Dx())
	assert.Equal(t, ChartHeight, img.Bounds().Dy())
}

func TestRenderLineChart_Errors(t *testing.T) {
	_, err := RenderLineChart(Series{Title: "Power"})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = RenderLineChart(Series{Title: "Power", Values: []float64{1, 2}, Times: []time.Time{{}}})
	assert.ErrorContains(t, err, "1 times for 2 values")
}

func TestRenderLineChart_Anomalies(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Series{Title: "Power 2021", Label: "Power (W)"}
	for i := 0; i < 30; i++ {
		s.Times = append(s.Times, start.AddDate(0, 0, i))
		s.Values = append(s.Values, 100)
		s.Anomalies = append(s.Anomalies, false)
	}
	s.Values[10] = 5000
	s.Anomalies[10] = true

	marks, n := anomalyValues(s)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5000.0, marks[10])
	assert.Equal(t, charts.GetNullValue(), marks[0])

	data, err := RenderLineChart(s)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	s.Anomalies = s.Anomalies[:5]
	_, err = RenderLineChart(s)
	assert.ErrorContains(t, err, "5 anomaly flags for 30 values")
}

func TestLabelLayout(t *testing.T) {
	day := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2006-01-02", labelLayout([]time.Time{day}))
	assert.Equal(t, "15:04", labelLayout([]time.Time{day, day.Add(23 * time.Hour)}))
	assert.Equal(t, "Mon 15:04", labelLayout([]time.Time{day, day.AddDate(0, 0, 7)}))
	assert.Equal(t, "Jan 2", labelLayout([]time.Time{day, day.AddDate(0, 0, 365)}))
	assert.Equal(t, "Jan 2006", labelLayout([]time.Time{day, day.AddDate(2, 0, 0)}))
}

func TestRenderSummaryCard(t *testing.T) {
	data, err := RenderSummaryCard(CardData{
		Title:    "Energy Dashboard",
		Device:   "14e5bc06",
		Headline: "Peak season: Summer",
		Lines:    []string{"2021 max: 1,234 W", "3 power anomalies"},
		Footer:   "generated 2026-01-01",
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, CardWidth, img.Bounds().Dx())
	assert.Equal(t, CardHeight, img.Bounds().Dy())
}

func TestCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("power")
	assert.False(t, ok)

	c.Set("power", []byte("png"))
	got, ok := c.Get("power")
	require.True(t, ok)
	assert.Equal(t, []byte("png"), got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("power")
	assert.False(t, ok, "expired")

	c.Set("flow", []byte("png"))
	c.Purge()
	_, ok = c.Get("flow")
	assert.False(t, ok)
}
