package models

import (
	"fmt"
	"time"
)

type Season string

const (
	Winter Season = "Winter"
	Spring Season = "Spring"
	Summer Season = "Summer"
	Fall   Season = "Fall"
)

// Seasons is the canonical display and aggregation order.
var Seasons = []Season{Winter, Spring, Summer, Fall}

type Metric string

const (
	Power Metric = "power"
	Flow  Metric = "flow"
)

var Metrics = []Metric{Power, Flow}

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Power, Flow:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Column is the source column the metric is read from.
func (m Metric) Column() string {
	switch m {
	case Power:
		return "avg_abs_power"
	case Flow:
		return "avg_abs_flow"
	}
	return ""
}

func (m Metric) Label() string {
	switch m {
	case Power:
		return "Power"
	case Flow:
		return "Flow"
	}
	return string(m)
}

func (m Metric) Unit() string {
	switch m {
	case Power:
		return "W"
	case Flow:
		return "m³/s"
	}
	return ""
}

// Reading is one time bucket (a day or a 30-minute interval) of a device.
type Reading struct {
	Time   time.Time `json:"time"`
	Power  float64   `json:"avg_abs_power"`
	Flow   float64   `json:"avg_abs_flow"`
	Season Season    `json:"season"`
}

func (r Reading) Value(m Metric) float64 {
	if m == Flow {
		return r.Flow
	}
	return r.Power
}

type MonthlyRecord struct {
	Month string  `json:"month"` // "YYYY-MM"
	Power float64 `json:"power"`
}

// FlaggedReading is a Reading with independent power and flow anomaly
// annotations. A nil z-score means the score is undefined for the column.
type FlaggedReading struct {
	Reading
	ZScorePower    *float64 `json:"z_score_power,omitempty"`
	IsAnomalyPower bool     `json:"is_anomaly_power"`
	ZScoreFlow     *float64 `json:"z_score_flow,omitempty"`
	IsAnomalyFlow  bool     `json:"is_anomaly_flow"`
}

func (f FlaggedReading) IsAnomaly(m Metric) bool {
	if m == Flow {
		return f.IsAnomalyFlow
	}
	return f.IsAnomalyPower
}

func (f FlaggedReading) ZScore(m Metric) *float64 {
	if m == Flow {
		return f.ZScoreFlow
	}
	return f.ZScorePower
}

type YearMax struct {
	Year string  `json:"year"`
	Max  float64 `json:"max_power"`
}

type SeasonValue struct {
	Season Season  `json:"season"`
	Value  float64 `json:"value"`
}

// YearWeek is an ISO year and week pair.
type YearWeek struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

func (yw YearWeek) String() string {
	return fmt.Sprintf("%d-W%02d", yw.Year, yw.Week)
}

// Label is the human form shown in the week selector.
func (yw YearWeek) Label() string {
	return fmt.Sprintf("%d - Week %d", yw.Year, yw.Week)
}

func (yw YearWeek) IsZero() bool {
	return yw.Year == 0 && yw.Week == 0
}

func (yw YearWeek) Before(o YearWeek) bool {
	if yw.Year != o.Year {
		return yw.Year < o.Year
	}
	return yw.Week < o.Week
}

type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
