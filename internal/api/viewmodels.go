package api

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lox/energydash/internal/config"
	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/models"
)

// Flow is stored in m³/s; values that small read badly, so pages show L/s.
const flowDisplayScale = 1000

func displayValue(m models.Metric, v float64) float64 {
	if m == models.Flow {
		return v * flowDisplayScale
	}
	return v
}

func displayUnit(m models.Metric) string {
	if m == models.Flow {
		return "L/s"
	}
	return m.Unit()
}

func formatValue(m models.Metric, v float64) string {
	return humanize.CommafWithDigits(displayValue(m, v), 2)
}

// PageData is the template data for the dashboard page.
type PageData struct {
	*dashboard.View
	Selection   dashboard.Selection
	PowerCards  []CardData
	FlowCards   []CardData
	PowerPanel  PanelData
	FlowPanel   PanelData
	WeeklyPanel WeeklyData
}

type CardData struct {
	Season  models.Season
	Value   string
	Unit    string
	Present bool
}

// ChartData is the payload handed to the client-side chart.
type ChartData struct {
	Label  string            `json:"label"`
	Unit   string            `json:"unit"`
	Points []dashboard.Point `json:"points"`
	Upper  *float64          `json:"upper,omitempty"`
}

type PanelData struct {
	Metric       models.Metric
	Label        string
	Unit         string
	DeviceID     string
	Years        []int
	SelectedYear int
	Anomalies    int
	YearAnomaly  int
	Unavailable  bool
	NoData       bool
	Chart        ChartData
	AllChart     ChartData
}

type WeekOption struct {
	Value    string
	Label    string
	Selected bool
}

type WeeklyData struct {
	DeviceID    string
	Options     []WeekOption
	Label       string
	Unavailable bool
	NoData      bool
	Power       ChartData
	Flow        ChartData
}

func newPageData(view *dashboard.View, sel dashboard.Selection) PageData {
	return PageData{
		View:        view,
		Selection:   sel,
		PowerCards:  newCards(view.PowerSeasons, models.Power),
		FlowCards:   newCards(view.FlowSeasons, models.Flow),
		PowerPanel:  newPanelData(view, view.Power),
		FlowPanel:   newPanelData(view, view.Flow),
		WeeklyPanel: newWeeklyData(view),
	}
}

func newCards(cards []dashboard.SeasonCard, m models.Metric) []CardData {
	out := make([]CardData, 0, len(cards))
	for _, c := range cards {
		cd := CardData{Season: c.Season, Unit: displayUnit(m), Present: c.Present}
		if c.Present {
			cd.Value = formatValue(m, c.Value)
		}
		out = append(out, cd)
	}
	return out
}

func newChartData(m models.Metric, points []dashboard.Point, upper *float64) ChartData {
	scaled := make([]dashboard.Point, len(points))
	for i, p := range points {
		p.Value = displayValue(m, p.Value)
		scaled[i] = p
	}
	cd := ChartData{Label: m.Label(), Unit: displayUnit(m), Points: scaled}
	if upper != nil {
		u := displayValue(m, *upper)
		cd.Upper = &u
	}
	return cd
}

func newPanelData(view *dashboard.View, p dashboard.MetricPanel) PanelData {
	return PanelData{
		Metric:       p.Metric,
		Label:        p.Metric.Label(),
		Unit:         displayUnit(p.Metric),
		DeviceID:     view.Device.ID,
		Years:        p.Years,
		SelectedYear: p.SelectedYear,
		Anomalies:    p.Anomalies,
		YearAnomaly:  p.YearAnomaly,
		Unavailable:  p.Unavailable,
		NoData:       p.NoYearData(),
		Chart:        newChartData(p.Metric, p.Year, p.Upper),
		AllChart:     newChartData(p.Metric, p.All, p.Upper),
	}
}

func newWeeklyData(view *dashboard.View) WeeklyData {
	w := view.Weekly
	data := WeeklyData{
		DeviceID:    view.Device.ID,
		Label:       w.Selected.Label(),
		Unavailable: w.Unavailable,
		NoData:      w.NoData(),
		Power:       newChartData(models.Power, w.Power, nil),
		Flow:        newChartData(models.Flow, w.Flow, nil),
	}
	for _, o := range w.Options {
		data.Options = append(data.Options, WeekOption{
			Value:    o.String(),
			Label:    o.Label(),
			Selected: o == w.Selected,
		})
	}
	return data
}

// parseSelection reads device, power_year, flow_year and week from a query.
func parseSelection(q url.Values) (dashboard.Selection, error) {
	sel := dashboard.Selection{DeviceID: q.Get("device")}

	var err error
	if sel.PowerYear, err = parseYear(q, "power_year"); err != nil {
		return sel, err
	}
	if sel.FlowYear, err = parseYear(q, "flow_year"); err != nil {
		return sel, err
	}
	if w := q.Get("week"); w != "" {
		if sel.Week, err = config.ParseYearWeek(w); err != nil {
			return sel, err
		}
	}
	return sel, nil
}

func parseYear(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return year, nil
}

// JSON payloads.

type summaryResponse struct {
	Device       models.Device    `json:"device"`
	Threshold    float64          `json:"threshold"`
	PowerSeasons []seasonJSON     `json:"power_seasons"`
	FlowSeasons  []seasonJSON     `json:"flow_seasons"`
	YearlyMax    []models.YearMax `json:"yearly_max"`
	Anomalies    map[string]int   `json:"anomalies"`
	Narrative    string           `json:"narrative,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Generated    time.Time        `json:"generated"`
	Sources      config.Sources   `json:"sources"`
}

type seasonJSON struct {
	Season  models.Season `json:"season"`
	Value   *float64      `json:"value"`
	Present bool          `json:"present"`
}

func seasonsJSON(cards []dashboard.SeasonCard) []seasonJSON {
	out := make([]seasonJSON, 0, len(cards))
	for _, c := range cards {
		s := seasonJSON{Season: c.Season, Present: c.Present}
		if c.Present {
			v := c.Value
			s.Value = &v
		}
		out = append(out, s)
	}
	return out
}

type readingsResponse struct {
	Device    string            `json:"device"`
	Metric    models.Metric     `json:"metric"`
	Unit      string            `json:"unit"`
	Year      int               `json:"year,omitempty"`
	Anomalies int               `json:"anomalies"`
	Upper     *float64          `json:"upper,omitempty"`
	Lower     *float64          `json:"lower,omitempty"`
	Points    []dashboard.Point `json:"points"`
}

type weeklyResponse struct {
	Device  string      `json:"device"`
	Week    string      `json:"week"`
	Options []string    `json:"options"`
	Rows    []weeklyRow `json:"rows"`
}

// weeklyRow is a FlaggedReading with missing metrics encoded as null;
// encoding/json rejects NaN.
type weeklyRow struct {
	Time           time.Time     `json:"time"`
	Power          *float64      `json:"avg_abs_power"`
	Flow           *float64      `json:"avg_abs_flow"`
	Season         models.Season `json:"season"`
	ZScorePower    *float64      `json:"z_score_power,omitempty"`
	IsAnomalyPower bool          `json:"is_anomaly_power"`
	ZScoreFlow     *float64      `json:"z_score_flow,omitempty"`
	IsAnomalyFlow  bool          `json:"is_anomaly_flow"`
}

func weeklyRows(rows []models.FlaggedReading) []weeklyRow {
	out := make([]weeklyRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, weeklyRow{
			Time:           r.Time,
			Power:          present(r.Power),
			Flow:           present(r.Flow),
			Season:         r.Season,
			ZScorePower:    r.ZScorePower,
			IsAnomalyPower: r.IsAnomalyPower,
			ZScoreFlow:     r.ZScoreFlow,
			IsAnomalyFlow:  r.IsAnomalyFlow,
		})
	}
	return out
}

func present(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

type healthResponse struct {
	Status string   `json:"status"`
	Cached []string `json:"cached"`
}
