// Package narrative writes a short plain-language summary of a dashboard
// render.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lox/energydash/internal/models"
)

// Summary is the distilled input a narrative is written from.
type Summary struct {
	Device         string
	PowerSeasons   []models.SeasonValue
	FlowSeasons    []models.SeasonValue
	YearlyMax      []models.YearMax
	PowerAnomalies int
	FlowAnomalies  int
	Days           int
	Threshold      float64
}

// Key identifies a summary for caching.
func (s Summary) Key() string {
	return fmt.Sprintf("%+v", s)
}

type Generator interface {
	Generate(ctx context.Context, s Summary) (string, error)
}

// Template writes the narrative from fixed sentences.
type Template struct{}

func (Template) Generate(_ context.Context, s Summary) (string, error) {
	var parts []string

	if hi, lo, ok := extremes(s.PowerSeasons); ok {
		parts = append(parts, fmt.Sprintf("Power use peaks in %s at %s W on average and is lowest in %s (%s W).",
			strings.ToLower(string(hi.Season)), humanize.CommafWithDigits(hi.Value, 2),
			strings.ToLower(string(lo.Season)), humanize.CommafWithDigits(lo.Value, 2)))
	}

	if n := len(s.YearlyMax); n > 0 {
		last := s.YearlyMax[n-1]
		sentence := fmt.Sprintf("The highest monthly power in %s was %s W", last.Year, humanize.CommafWithDigits(last.Max, 2))
		if n > 1 {
			prev := s.YearlyMax[n-2]
			if prev.Max != 0 {
				change := (last.Max - prev.Max) / prev.Max * 100
				sentence += fmt.Sprintf(", %s%% against %s", signed(change), prev.Year)
			}
		}
		parts = append(parts, sentence+".")
	}

	if s.Days > 0 {
		switch {
		case s.PowerAnomalies == 0 && s.FlowAnomalies == 0:
			parts = append(parts, fmt.Sprintf("No day in %s departs more than %.1f standard deviations from the norm.",
				plural(s.Days, "day"), s.Threshold))
		default:
			parts = append(parts, fmt.Sprintf("Across %s, %s of power and %s of flow stand out by more than %.1f standard deviations.",
				plural(s.Days, "day"), plural(s.PowerAnomalies, "day"), plural(s.FlowAnomalies, "day"), s.Threshold))
		}
	}

	if len(parts) == 0 {
		return "Not enough data to summarise this device yet.", nil
	}
	return strings.Join(parts, " "), nil
}

func extremes(values []models.SeasonValue) (hi, lo models.SeasonValue, ok bool) {
	if len(values) < 2 {
		return hi, lo, false
	}
	hi, lo = values[0], values[0]
	for _, v := range values[1:] {
		if v.Value > hi.Value {
			hi = v
		}
		if v.Value < lo.Value {
			lo = v
		}
	}
	return hi, lo, true
}

func signed(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.1f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}

// Cached memoizes another generator per summary for ttl, and falls back to
// the template when it fails.
type Cached struct {
	gen      Generator
	fallback Generator
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]cachedText
}

type cachedText struct {
	text      string
	expiresAt time.Time
}

func NewCached(gen Generator, ttl time.Duration) *Cached {
	return &Cached{
		gen:      gen,
		fallback: Template{},
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cachedText),
	}
}

func (c *Cached) Generate(ctx context.Context, s Summary) (string, error) {
	key := s.Key()
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.text, nil
	}

	text, err := c.gen.Generate(ctx, s)
	if err != nil {
		return c.fallback.Generate(ctx, s)
	}

	c.mu.Lock()
	c.entries[key] = cachedText{text: text, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return text, nil
}
