package imagegen

import (
	"errors"
	"fmt"
	"time"

	charts "github.com/vicanso/go-charts/v2"
)

// ErrNoData is returned when a chart has no points to draw.
var ErrNoData = errors.New("no data to chart")

const (
	ChartWidth  = 1200
	ChartHeight = 400
)

// Series is one metric over time, with an optional flat band drawn at
// Upper (the anomaly limit). Anomalies, when set, parallels Values.
type Series struct {
	Title     string
	Label     string
	Times     []time.Time
	Values    []float64
	Upper     *float64
	Anomalies []bool
}

// anomalyValues keeps the flagged values of s and nulls the rest, so the
// anomaly series draws only at flagged points.
func anomalyValues(s Series) ([]float64, int) {
	out := make([]float64, len(s.Values))
	n := 0
	for i, v := range s.Values {
		if i < len(s.Anomalies) && s.Anomalies[i] {
			out[i] = v
			n++
			continue
		}
		out[i] = charts.GetNullValue()
	}
	return out, n
}

// RenderLineChart draws s as a PNG line chart.
func RenderLineChart(s Series) ([]byte, error) {
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}
	if len(s.Times) != len(s.Values) {
		return nil, fmt.Errorf("chart %q: %d times for %d values", s.Title, len(s.Times), len(s.Values))
	}
	if s.Anomalies != nil && len(s.Anomalies) != len(s.Values) {
		return nil, fmt.Errorf("chart %q: %d anomaly flags for %d values", s.Title, len(s.Anomalies), len(s.Values))
	}

	labels := make([]string, len(s.Times))
	layout := labelLayout(s.Times)
	for i, t := range s.Times {
		labels[i] = t.Format(layout)
	}

	values := [][]float64{s.Values}
	legend := []string{s.Label}
	if s.Upper != nil {
		band := make([]float64, len(s.Values))
		for i := range band {
			band[i] = *s.Upper
		}
		values = append(values, band)
		legend = append(legend, "Anomaly limit")
	}
	title := charts.TitleOption{Text: s.Title}
	if marks, n := anomalyValues(s); n > 0 {
		values = append(values, marks)
		legend = append(legend, "Anomalies")
		title.Subtext = fmt.Sprintf("%d anomalous points", n)
	}

	p, err := charts.LineRender(
		values,
		charts.TitleOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legend, charts.PositionRight),
		charts.ThemeOptionFunc("light"),
		charts.WidthOptionFunc(ChartWidth),
		charts.HeightOptionFunc(ChartHeight),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render chart %q: %w", s.Title, err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode chart %q: %w", s.Title, err)
	}
	return buf, nil
}

// labelLayout picks an axis label format from the span of the series.
func labelLayout(times []time.Time) string {
	if len(times) < 2 {
		return "2006-01-02"
	}
	span := times[len(times)-1].Sub(times[0])
	switch {
	case span <= 48*time.Hour:
		return "15:04"
	case span <= 14*24*time.Hour:
		return "Mon 15:04"
	case span <= 400*24*time.Hour:
		return "Jan 2"
	}
	return "Jan 2006"
}
