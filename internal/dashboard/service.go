package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/lox/energydash/internal/analysis"
	"github.com/lox/energydash/internal/config"
	"github.com/lox/energydash/internal/ingest"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/metrics"
	"github.com/lox/energydash/internal/models"
	"github.com/lox/energydash/internal/narrative"
)

// Loader is the part of ingest.Loader a render pass needs.
type Loader interface {
	LoadMonthly(ctx context.Context, sourceID string) ([]models.MonthlyRecord, error)
	LoadReadings(ctx context.Context, sourceID string, kind ingest.Kind) ([]models.Reading, error)
}

type Service struct {
	cfg      *config.Config
	loader   Loader
	narrator narrative.Generator
	now      func() time.Time
}

func NewService(cfg *config.Config, loader Loader) *Service {
	return &Service{
		cfg:      cfg,
		loader:   loader,
		narrator: narrative.Template{},
		now:      time.Now,
	}
}

// SetNarrator replaces the template narrative writer.
func (s *Service) SetNarrator(g narrative.Generator) {
	s.narrator = g
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

// Build runs one full pass for sel. Source failures become warnings on the
// view; only data-contract violations are returned as errors.
func (s *Service) Build(ctx context.Context, sel Selection) (*View, error) {
	device := s.cfg.Device(sel.DeviceID)
	sources := s.cfg.SourcesFor(device.ID)
	ctx = log.With(ctx, log.Ctx(ctx).With("device", device.ID))

	view := &View{
		Title:     s.cfg.Title,
		Devices:   s.cfg.DeviceList(),
		Threshold: s.cfg.AnomalyThreshold,
		Generated: s.now(),
	}
	for _, d := range view.Devices {
		if d.ID == device.ID {
			view.Device = d
		}
	}

	if err := s.buildMonthly(ctx, view, sources.Monthly); err != nil {
		return nil, err
	}
	if err := s.buildDaily(ctx, view, sources.Daily, sel); err != nil {
		return nil, err
	}
	if err := s.buildWeekly(ctx, view, sources.Weekly, sel.Week); err != nil {
		return nil, err
	}

	view.Narrative = s.narrate(ctx, view)

	metrics.AnomaliesFlagged.WithLabelValues(device.ID, string(models.Power)).Set(float64(view.Power.Anomalies))
	metrics.AnomaliesFlagged.WithLabelValues(device.ID, string(models.Flow)).Set(float64(view.Flow.Anomalies))
	return view, nil
}

func (s *Service) buildMonthly(ctx context.Context, view *View, source string) error {
	records, err := s.loader.LoadMonthly(ctx, source)
	if err != nil {
		view.PowerSeasons = cards(nil, models.Power)
		return warn(view, err)
	}

	view.YearlyMax, err = analysis.YearlyMax(records)
	if err != nil {
		return err
	}
	seasons, err := analysis.MonthlySeasonalMean(records)
	if err != nil {
		return err
	}
	view.PowerSeasons = cards(seasons, models.Power)
	return nil
}

func (s *Service) buildDaily(ctx context.Context, view *View, source string, sel Selection) error {
	view.Power.Metric = models.Power
	view.Flow.Metric = models.Flow

	readings, err := s.loader.LoadReadings(ctx, source, ingest.KindDaily)
	if err != nil {
		view.Power.Unavailable = true
		view.Flow.Unavailable = true
		view.FlowSeasons = cards(nil, models.Flow)
		return warn(view, err)
	}

	view.FlowSeasons = cards(analysis.SeasonalMean(readings, models.Flow), models.Flow)
	view.days = len(readings)

	rows := analysis.Annotate(readings, s.cfg.AnomalyThreshold)
	years := analysis.Years(rows)
	view.Power = s.panel(readings, rows, years, models.Power, sel.PowerYear)
	view.Flow = s.panel(readings, rows, years, models.Flow, sel.FlowYear)
	return nil
}

func (s *Service) panel(readings []models.Reading, rows []models.FlaggedReading, years []int, m models.Metric, year int) MetricPanel {
	p := MetricPanel{
		Metric:    m,
		All:       points(rows, m),
		Years:     years,
		Anomalies: analysis.CountAnomalies(rows, m),
	}
	if year == 0 && len(years) > 0 {
		year = years[0]
	}
	p.SelectedYear = year
	yearRows := analysis.ByYear(rows, year)
	p.Year = points(yearRows, m)
	p.YearAnomaly = analysis.CountAnomalies(yearRows, m)

	if lower, upper, ok := analysis.Band(readings, m, s.cfg.AnomalyThreshold); ok {
		p.Lower, p.Upper = &lower, &upper
	}
	return p
}

func (s *Service) buildWeekly(ctx context.Context, view *View, source string, week models.YearWeek) error {
	readings, err := s.loader.LoadReadings(ctx, source, ingest.KindWeekly)
	if err != nil {
		view.Weekly.Unavailable = true
		view.Weekly.Options = s.cfg.PinnedWeeks()
		view.Weekly.Selected = pick(view.Weekly.Options, week)
		return warn(view, err)
	}

	rows := analysis.Annotate(readings, s.cfg.AnomalyThreshold)
	options := s.cfg.PinnedWeeks()
	if len(options) == 0 {
		options = analysis.YearWeeks(rows)
	}

	selected := pick(options, week)
	view.Weekly = WeeklyPanel{
		Options:  options,
		Selected: selected,
		Rows:     analysis.ByYearWeek(rows, selected.Year, selected.Week),
	}
	view.Weekly.Power = points(view.Weekly.Rows, models.Power)
	view.Weekly.Flow = points(view.Weekly.Rows, models.Flow)
	return nil
}

// pick returns the requested week, or the newest option when none was
// requested.
func pick(options []models.YearWeek, want models.YearWeek) models.YearWeek {
	if !want.IsZero() || len(options) == 0 {
		return want
	}
	return options[0]
}

func cards(values []models.SeasonValue, m models.Metric) []SeasonCard {
	out := make([]SeasonCard, 0, len(models.Seasons))
	for _, season := range models.Seasons {
		v, ok := analysis.Lookup(values, season)
		out = append(out, SeasonCard{Season: season, Metric: m, Value: v, Present: ok})
	}
	return out
}

// warn records a source failure on the view. Anything other than a
// DataSourceError is passed back to fail the render.
func warn(view *View, err error) error {
	var dsErr *ingest.DataSourceError
	if !errors.As(err, &dsErr) {
		return err
	}
	view.Warnings = append(view.Warnings, dsErr.Error())
	return nil
}

func (s *Service) narrate(ctx context.Context, view *View) string {
	sum := narrative.Summary{
		Device:         view.Device.ID,
		PowerSeasons:   values(view.PowerSeasons),
		FlowSeasons:    values(view.FlowSeasons),
		YearlyMax:      view.YearlyMax,
		PowerAnomalies: view.Power.Anomalies,
		FlowAnomalies:  view.Flow.Anomalies,
		Days:           view.days,
		Threshold:      view.Threshold,
	}
	text, err := s.narrator.Generate(ctx, sum)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "narrative unavailable", "error", err)
		return ""
	}
	return text
}

func values(cards []SeasonCard) []models.SeasonValue {
	var out []models.SeasonValue
	for _, c := range cards {
		if c.Present {
			out = append(out, models.SeasonValue{Season: c.Season, Value: c.Value})
		}
	}
	return out
}
