package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/energydash/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "energydash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, cfg.AnomalyThreshold)
	assert.Len(t, cfg.Devices, 6)
	assert.Equal(t, "monthly_summary.csv", cfg.Sources.Monthly)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
title: Pump house
data_dir: /srv/data
anomaly_threshold: 2.5
sources:
  daily: sqlite:///srv/data/energy.db?table=daily
devices:
  - id: pump-a
    name: Pump A
  - id: pump-b
    sources:
      weekly: ftp://logger.local/pump-b/weekly.csv
weeks: ["2021-W01"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Pump house", cfg.Title)
	assert.Equal(t, 2.5, cfg.AnomalyThreshold)
	assert.Equal(t, "monthly_summary.csv", cfg.Sources.Monthly, "unset fields keep defaults")
	assert.Equal(t, "sqlite:///srv/data/energy.db?table=daily", cfg.Sources.Daily)

	assert.Equal(t, []models.Device{
		{ID: "pump-a", Name: "Pump A"},
		{ID: "pump-b", Name: "pump-b"},
	}, cfg.DeviceList())

	src := cfg.SourcesFor("pump-b")
	assert.Equal(t, "ftp://logger.local/pump-b/weekly.csv", src.Weekly)
	assert.Equal(t, cfg.Sources.Daily, src.Daily)
	assert.Equal(t, cfg.Sources.Monthly, src.Monthly)

	assert.Equal(t, []models.YearWeek{{Year: 2021, Week: 1}}, cfg.PinnedWeeks())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = Load(writeConfig(t, "devices: [unterminated"))
	assert.ErrorContains(t, err, "parse config file")

	_, err = Load(writeConfig(t, `
anomaly_threshold: -1
devices:
  - id: a
  - id: a
  - id: ""
weeks: ["2020-W60"]
`))
	require.Error(t, err)
	assert.ErrorContains(t, err, "anomaly_threshold must be positive")
	assert.ErrorContains(t, err, "duplicate id a")
	assert.ErrorContains(t, err, "devices[2]: id is required")
	assert.ErrorContains(t, err, "week out of range")
}

func TestDevice_FallsBackToFirst(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "96e6013a-9e90-4dbd-9070-d6b4732f42b8", cfg.Device("96e6013a-9e90-4dbd-9070-d6b4732f42b8").ID)
	assert.Equal(t, cfg.Devices[0].ID, cfg.Device("nope").ID)
	assert.Equal(t, cfg.Devices[0].ID, cfg.Device("").ID)

	empty := &Config{}
	assert.Equal(t, Device{}, empty.Device("x"))
}

func TestPinnedWeeks_NewestFirst(t *testing.T) {
	cfg := &Config{Weeks: []string{"2020-W31", "2021-W02", "bogus", "2020 - Week 32"}}
	assert.Equal(t, []models.YearWeek{
		{Year: 2021, Week: 2},
		{Year: 2020, Week: 32},
		{Year: 2020, Week: 31},
	}, cfg.PinnedWeeks())
}

func TestPinnedWeeks_ManyYears(t *testing.T) {
	cfg := &Config{Weeks: []string{"2019-W52", "2022-W01", "2020-W01", "2021-W53", "2020-W52", "2022-W10"}}
	assert.Equal(t, []models.YearWeek{
		{Year: 2022, Week: 10},
		{Year: 2022, Week: 1},
		{Year: 2021, Week: 53},
		{Year: 2020, Week: 52},
		{Year: 2020, Week: 1},
		{Year: 2019, Week: 52},
	}, cfg.PinnedWeeks())
}

func TestParseYearWeek(t *testing.T) {
	tests := []struct {
		in      string
		want    models.YearWeek
		wantErr bool
	}{
		{in: "2020-W32", want: models.YearWeek{Year: 2020, Week: 32}},
		{in: "2020-W05", want: models.YearWeek{Year: 2020, Week: 5}},
		{in: " 2020 - Week 31 ", want: models.YearWeek{Year: 2020, Week: 31}},
		{in: "2020-32", want: models.YearWeek{Year: 2020, Week: 32}},
		{in: "2020-W0", wantErr: true},
		{in: "2020-W54", wantErr: true},
		{in: "week 32", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseYearWeek(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
