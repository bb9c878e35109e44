package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindMonthly Kind = "monthly"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
)

type schema struct {
	keyColumn    string
	valueColumns []string
}

var schemas = map[Kind]schema{
	KindMonthly: {keyColumn: "month", valueColumns: []string{"power"}},
	KindDaily:   {keyColumn: "day", valueColumns: []string{"avg_abs_power", "avg_abs_flow"}},
	KindWeekly:  {keyColumn: "start_time", valueColumns: []string{"avg_abs_power", "avg_abs_flow"}},
}

func (k Kind) schema() (schema, error) {
	s, ok := schemas[k]
	if !ok {
		return schema{}, fmt.Errorf("unknown table kind %q", k)
	}
	return s, nil
}

// Required lists the columns a table of this kind must carry.
func (k Kind) Required() []string {
	s, err := k.schema()
	if err != nil {
		return nil
	}
	return append([]string{s.keyColumn}, s.valueColumns...)
}

var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05 -0700 MST",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04",
}

// ParseTime parses a date or timestamp cell into a timezone-naive value:
// any offset in the input is dropped and the wall clock is kept, in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// isMissing reports whether a numeric cell holds no value.
func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "nan", "null", "<nil>", "none":
		return true
	}
	return false
}

// parseCell parses a metric cell, mapping a missing value to NaN.
func parseCell(s string) (float64, error) {
	if isMissing(s) {
		return math.NaN(), nil
	}
	return parseNumber(s)
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
