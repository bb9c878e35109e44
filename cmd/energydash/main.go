package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/energydash/internal/analysis"
	"github.com/lox/energydash/internal/api"
	"github.com/lox/energydash/internal/config"
	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/httputil"
	"github.com/lox/energydash/internal/ingest"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/models"
	"github.com/lox/energydash/internal/narrative"
)

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `kong:"optional,name=env-file,default='.env',help='Path to .env file'"`

	Config    string  `help:"Path to the dashboard YAML config." env:"ENERGYDASH_CONFIG" type:"path"`
	DataDir   string  `help:"Directory relative table paths resolve against." env:"ENERGYDASH_DATA_DIR"`
	Threshold float64 `help:"Anomaly z-score threshold." env:"ENERGYDASH_THRESHOLD"`
	LogLevel  string  `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"ENERGYDASH_LOG_LEVEL"`

	Serve     ServeCmd     `cmd:"" default:"withargs" help:"Run the dashboard web server."`
	Summary   SummaryCmd   `cmd:"" help:"Print season means and yearly maxima for a device."`
	Anomalies AnomaliesCmd `cmd:"" help:"List anomalous days for a device."`
	Check     CheckCmd     `cmd:"" help:"Load every configured table and report problems."`
}

// app is what every command runs against.
type app struct {
	cfg    *config.Config
	loader *ingest.Loader
	svc    *dashboard.Service
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("energydash"),
		kong.Description("Energy dashboard over device power and flow tables."),
		kong.UsageOnError(),
	)

	level, err := log.ParseLevel(cli.LogLevel)
	kctx.FatalIfErrorf(err)
	log.SetLevel(level)

	a, err := newApp(cli)
	kctx.FatalIfErrorf(err)

	kctx.FatalIfErrorf(kctx.Run(a))
}

func newApp(cli CLI) (*app, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, err
	}
	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}
	if cli.Threshold != 0 {
		cfg.AnomalyThreshold = cli.Threshold
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	loader := ingest.NewLoader(cfg.DataDir)
	return &app{
		cfg:    cfg,
		loader: loader,
		svc:    dashboard.NewService(cfg, loader),
	}, nil
}

// tables lists every distinct table the configured devices read.
func (a *app) tables() []ingest.Table {
	seen := make(map[ingest.Table]bool)
	var out []ingest.Table
	for _, d := range a.cfg.Devices {
		src := a.cfg.SourcesFor(d.ID)
		for _, t := range []ingest.Table{
			{Source: src.Monthly, Kind: ingest.KindMonthly},
			{Source: src.Daily, Kind: ingest.KindDaily},
			{Source: src.Weekly, Kind: ingest.KindWeekly},
		} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

type ServeCmd struct {
	Listen         string        `help:"Address to listen on." default:":8080" env:"ENERGYDASH_LISTEN"`
	ReloadInterval time.Duration `help:"How often to reload tables changed on disk (0 disables)." default:"0s" env:"ENERGYDASH_RELOAD_INTERVAL"`
	OpenAIKey      string        `help:"OpenAI API key for written summaries." env:"OPENAI_API_KEY"`
	OpenAIModel    string        `help:"OpenAI chat model." default:"gpt-4o-mini" env:"ENERGYDASH_OPENAI_MODEL"`
	NarrativeTTL   time.Duration `help:"How long a written summary is reused." default:"1h"`
}

func (c *ServeCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = log.With(ctx, log.Default())

	if c.OpenAIKey != "" {
		gen, err := narrative.NewOpenAI(c.OpenAIKey, c.OpenAIModel, httputil.NewClient(0))
		if err != nil {
			return err
		}
		a.svc.SetNarrator(narrative.NewCached(gen, c.NarrativeTTL))
		log.Ctx(ctx).InfoContext(ctx, "openai narratives enabled", "model", c.OpenAIModel)
	} else {
		log.Ctx(ctx).InfoContext(ctx, "openai narratives disabled, using template")
	}

	scheduler := ingest.NewScheduler(a.loader, a.tables(), c.ReloadInterval)
	go scheduler.Run(ctx)

	return api.NewServer(a.svc, a.loader, c.Listen).Run(ctx)
}

type SummaryCmd struct {
	Device string `help:"Device id (defaults to the first configured device)."`
}

func (c *SummaryCmd) Run(a *app) error {
	ctx := context.Background()
	view, err := a.svc.Build(ctx, dashboard.Selection{DeviceID: c.Device})
	if err != nil {
		return err
	}

	fmt.Printf("%s\n\n", view.Device.Name)
	for _, w := range view.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEASON\tPOWER (W)\tFLOW (m³/s)")
	for i, season := range models.Seasons {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", season, cardValue(view.PowerSeasons, i, 2), cardValue(view.FlowSeasons, i, 6))
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "YEAR\tMAX POWER (W)")
	for _, ym := range view.YearlyMax {
		fmt.Fprintf(tw, "%s\t%s\n", ym.Year, humanize.CommafWithDigits(ym.Max, 2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if view.Narrative != "" {
		fmt.Printf("\n%s\n", view.Narrative)
	}
	return nil
}

func cardValue(cards []dashboard.SeasonCard, i, digits int) string {
	if i >= len(cards) || !cards[i].Present {
		return "-"
	}
	return humanize.CommafWithDigits(cards[i].Value, digits)
}

type AnomaliesCmd struct {
	Device string `help:"Device id (defaults to the first configured device)."`
	Metric string `help:"Metric to list." default:"power" enum:"power,flow"`
	Year   int    `help:"Only list days in this year."`
	Weekly bool   `help:"Use the half-hourly table instead of the daily one."`
}

func (c *AnomaliesCmd) Run(a *app) error {
	ctx := context.Background()
	metric, err := models.ParseMetric(c.Metric)
	if err != nil {
		return err
	}

	device := a.cfg.Device(c.Device)
	src := a.cfg.SourcesFor(device.ID)
	source, kind := src.Daily, ingest.KindDaily
	if c.Weekly {
		source, kind = src.Weekly, ingest.KindWeekly
	}

	readings, err := a.loader.LoadReadings(ctx, source, kind)
	if err != nil {
		return err
	}
	rows := analysis.Annotate(readings, a.cfg.AnomalyThreshold)
	if c.Year != 0 {
		rows = analysis.ByYear(rows, c.Year)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\t%s (%s)\tZ\n", metric.Label(), metric.Unit())
	n := 0
	for _, r := range rows {
		if !r.IsAnomaly(metric) {
			continue
		}
		n++
		fmt.Fprintf(tw, "%s\t%g\t%+.2f\n", r.Time.Format("2006-01-02 15:04"), r.Value(metric), *r.ZScore(metric))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d rows beyond %.1f standard deviations\n", n, len(rows), a.cfg.AnomalyThreshold)
	return nil
}

type CheckCmd struct{}

func (c *CheckCmd) Run(a *app) error {
	ctx := context.Background()
	var errs []error
	for _, t := range a.tables() {
		var rows int
		var err error
		if t.Kind == ingest.KindMonthly {
			var records []models.MonthlyRecord
			records, err = a.loader.LoadMonthly(ctx, t.Source)
			rows = len(records)
		} else {
			var readings []models.Reading
			readings, err = a.loader.LoadReadings(ctx, t.Source, t.Kind)
			rows = len(readings)
		}
		if err != nil {
			fmt.Printf("FAIL  %-8s %s: %v\n", t.Kind, t.Source, err)
			errs = append(errs, err)
			continue
		}
		fmt.Printf("ok    %-8s %s (%s rows)\n", t.Kind, t.Source, humanize.Comma(int64(rows)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d tables failed: %w", len(errs), len(a.tables()), errors.Join(errs...))
	}
	return nil
}
