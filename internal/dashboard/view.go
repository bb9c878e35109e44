package dashboard

import (
	"math"
	"time"

	"github.com/lox/energydash/internal/models"
)

// Selection is the set of scalar choices a render is made for.
type Selection struct {
	DeviceID  string
	PowerYear int             // 0 selects the newest year
	FlowYear  int             // 0 selects the newest year
	Week      models.YearWeek // zero selects the default week
}

// View is everything one render of the dashboard needs.
type View struct {
	Title     string
	Device    models.Device
	Devices   []models.Device
	Threshold float64

	PowerSeasons []SeasonCard
	FlowSeasons  []SeasonCard
	YearlyMax    []models.YearMax

	Power  MetricPanel
	Flow   MetricPanel
	Weekly WeeklyPanel

	Narrative string
	Warnings  []string
	Generated time.Time

	days int
}

// SeasonCard is one metric card. Present is false when the season has no
// rows in the source.
type SeasonCard struct {
	Season  models.Season
	Metric  models.Metric
	Value   float64
	Present bool
}

// MetricPanel holds the full-history and single-year series of a metric.
type MetricPanel struct {
	Metric       models.Metric
	All          []Point
	Year         []Point
	Years        []int
	SelectedYear int
	Anomalies    int // over the full history
	YearAnomaly  int // within the selected year
	Upper        *float64
	Lower        *float64
	Unavailable  bool // the source failed to load
}

func (p MetricPanel) NoYearData() bool {
	return len(p.Year) == 0
}

type WeeklyPanel struct {
	Options     []models.YearWeek
	Selected    models.YearWeek
	Rows        []models.FlaggedReading
	Power       []Point
	Flow        []Point
	Unavailable bool
}

func (w WeeklyPanel) NoData() bool {
	return len(w.Rows) == 0
}

// Point is one plotted sample; Anomaly drives the highlight marker.
type Point struct {
	Time    time.Time `json:"t"`
	Value   float64   `json:"v"`
	Anomaly bool      `json:"anomaly"`
}

// points plots one metric of rows. Rows missing the metric are left out.
func points(rows []models.FlaggedReading, m models.Metric) []Point {
	out := make([]Point, 0, len(rows))
	for _, r := range rows {
		v := r.Value(m)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, Point{Time: r.Time, Value: v, Anomaly: r.IsAnomaly(m)})
	}
	return out
}
