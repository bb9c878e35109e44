package ingest

import (
	"time"

	"github.com/lox/energydash/internal/models"
)

const (
	FlagPowerNegative   = "power_negative"
	FlagFlowNegative    = "flow_negative"
	FlagFutureTimestamp = "future_timestamp"
)

// ValidateReading returns quality flags for a loaded reading. Flagged rows
// are kept; the flags only feed logging.
func ValidateReading(r models.Reading, now time.Time) []string {
	var flags []string

	// Both columns hold absolute magnitudes.
	if r.Power < 0 {
		flags = append(flags, FlagPowerNegative)
	}
	if r.Flow < 0 {
		flags = append(flags, FlagFlowNegative)
	}

	if !now.IsZero() && r.Time.After(now) {
		flags = append(flags, FlagFutureTimestamp)
	}

	return flags
}

func ValidateMonthly(r models.MonthlyRecord) []string {
	if r.Power < 0 {
		return []string{FlagPowerNegative}
	}
	return nil
}
