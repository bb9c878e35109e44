package ingest

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/lox/energydash/internal/analysis"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/metrics"
	"github.com/lox/energydash/internal/models"
	"github.com/lox/energydash/internal/store"
)

// Loader turns named sources into typed tables and memoizes the result for
// the life of the process. Entries change only through Reload/ReloadAll.
type Loader struct {
	dataDir  string
	monthly  *store.Cache[[]models.MonthlyRecord]
	readings *store.Cache[[]models.Reading]
	now      func() time.Time
}

func NewLoader(dataDir string) *Loader {
	return &Loader{
		dataDir:  dataDir,
		monthly:  store.NewCache[[]models.MonthlyRecord]("monthly"),
		readings: store.NewCache[[]models.Reading]("readings"),
		now:      time.Now,
	}
}

func (l *Loader) DataDir() string {
	return l.dataDir
}

// LoadMonthly loads a monthly-summary table (month, power).
func (l *Loader) LoadMonthly(ctx context.Context, sourceID string) ([]models.MonthlyRecord, error) {
	src, err := ParseSource(sourceID, l.dataDir)
	if err != nil {
		return nil, err
	}
	return l.monthly.Get(src.ID(), func() ([]models.MonthlyRecord, error) {
		df, err := l.frame(ctx, src, KindMonthly)
		if err != nil {
			return nil, err
		}
		return l.decodeMonthly(ctx, src.ID(), df)
	})
}

// LoadReadings loads a daily or weekly readings table and annotates each
// row with its season.
func (l *Loader) LoadReadings(ctx context.Context, sourceID string, kind Kind) ([]models.Reading, error) {
	if kind != KindDaily && kind != KindWeekly {
		return nil, fmt.Errorf("load readings: unsupported kind %q", kind)
	}
	src, err := ParseSource(sourceID, l.dataDir)
	if err != nil {
		return nil, err
	}
	return l.readings.Get(string(kind)+":"+src.ID(), func() ([]models.Reading, error) {
		df, err := l.frame(ctx, src, kind)
		if err != nil {
			return nil, err
		}
		return l.decodeReadings(ctx, src.ID(), kind, df)
	})
}

// Reload drops every cached table read from sourceID. It returns the
// number of entries dropped.
func (l *Loader) Reload(sourceID string) int {
	src, err := ParseSource(sourceID, l.dataDir)
	if err != nil {
		return 0
	}
	n := 0
	if l.monthly.Invalidate(src.ID()) {
		n++
	}
	for _, kind := range []Kind{KindDaily, KindWeekly} {
		if l.readings.Invalidate(string(kind) + ":" + src.ID()) {
			n++
		}
	}
	return n
}

func (l *Loader) ReloadAll() int {
	return l.monthly.InvalidateAll() + l.readings.InvalidateAll()
}

// Cached lists the cache keys currently held.
func (l *Loader) Cached() []string {
	return append(l.monthly.Keys(), l.readings.Keys()...)
}

func (l *Loader) frame(ctx context.Context, src Source, kind Kind) (dataframe.DataFrame, error) {
	start := time.Now()
	df, err := src.Frame(ctx)
	metrics.TableLoadLatency.WithLabelValues(string(kind), src.Scheme()).Observe(time.Since(start).Seconds())
	if err == nil {
		err = checkColumns(src.ID(), kind, df.Names())
	}
	if err != nil {
		metrics.TableLoadsTotal.WithLabelValues(string(kind), src.Scheme(), "error").Inc()
		log.Ctx(ctx).WarnContext(ctx, "table load failed", "source_id", src.ID(), "kind", kind, "error", err)
		return df, err
	}
	metrics.TableLoadsTotal.WithLabelValues(string(kind), src.Scheme(), "ok").Inc()
	log.Ctx(ctx).InfoContext(ctx, "table loaded", "source_id", src.ID(), "kind", kind, "rows", df.Nrow(), "duration", time.Since(start))
	return df, nil
}

func checkColumns(id string, kind Kind, names []string) error {
	var missing []string
	for _, col := range kind.Required() {
		if !slices.Contains(names, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &DataSourceError{Source: id, Reason: "required columns absent", Missing: missing}
	}
	return nil
}

func (l *Loader) decodeMonthly(ctx context.Context, id string, df dataframe.DataFrame) ([]models.MonthlyRecord, error) {
	months := df.Col("month").Records()
	powers := df.Col("power").Records()

	records := make([]models.MonthlyRecord, 0, len(months))
	skipped := 0
	flagged := make(map[string]int)
	for i := range months {
		if isMissing(powers[i]) {
			skipped++
			continue
		}
		p, err := parseNumber(powers[i])
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: fmt.Sprintf("row %d: bad power value", i+1), Err: err}
		}
		rec := models.MonthlyRecord{Month: strings.TrimSpace(months[i]), Power: p}
		for _, f := range ValidateMonthly(rec) {
			flagged[f]++
		}
		records = append(records, rec)
	}
	l.report(ctx, id, KindMonthly, skipped, flagged)
	return records, nil
}

func (l *Loader) decodeReadings(ctx context.Context, id string, kind Kind, df dataframe.DataFrame) ([]models.Reading, error) {
	sc, _ := kind.schema()
	times := df.Col(sc.keyColumn).Records()
	powers := df.Col("avg_abs_power").Records()
	flows := df.Col("avg_abs_flow").Records()

	now := l.now()
	readings := make([]models.Reading, 0, len(times))
	skipped, partial := 0, 0
	flagged := make(map[string]int)
	for i := range times {
		t, err := ParseTime(times[i])
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: fmt.Sprintf("row %d: bad %s", i+1, sc.keyColumn), Err: err}
		}
		// a blank cell leaves NaN in that metric only; the other metric
		// still counts toward its own column statistics
		if isMissing(powers[i]) && isMissing(flows[i]) {
			skipped++
			continue
		}
		p, err := parseCell(powers[i])
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: fmt.Sprintf("row %d: bad avg_abs_power", i+1), Err: err}
		}
		f, err := parseCell(flows[i])
		if err != nil {
			return nil, &DataSourceError{Source: id, Reason: fmt.Sprintf("row %d: bad avg_abs_flow", i+1), Err: err}
		}
		if math.IsNaN(p) || math.IsNaN(f) {
			partial++
		}
		season, err := analysis.Classify(int(t.Month()))
		if err != nil {
			return nil, err
		}

		r := models.Reading{Time: t, Power: p, Flow: f, Season: season}
		for _, flag := range ValidateReading(r, now) {
			flagged[flag]++
		}
		readings = append(readings, r)
	}
	if partial > 0 {
		log.Ctx(ctx).InfoContext(ctx, "rows with one metric missing", "source_id", id, "kind", kind, "count", partial)
	}
	l.report(ctx, id, kind, skipped, flagged)
	return readings, nil
}

func (l *Loader) report(ctx context.Context, id string, kind Kind, skipped int, flagged map[string]int) {
	if skipped > 0 {
		metrics.RowsSkipped.WithLabelValues(string(kind)).Add(float64(skipped))
		log.Ctx(ctx).WarnContext(ctx, "rows skipped for missing values", "source_id", id, "kind", kind, "count", skipped)
	}
	for flag, n := range flagged {
		log.Ctx(ctx).WarnContext(ctx, "rows failed quality check", "source_id", id, "kind", kind, "flag", flag, "count", n)
	}
}
