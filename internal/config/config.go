package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lox/energydash/internal/models"
)

const DefaultThreshold = 3.0

// Sources names the three tables a dashboard reads. Each value is a source
// identity understood by the ingest package.
type Sources struct {
	Monthly string `yaml:"monthly" json:"monthly"`
	Daily   string `yaml:"daily" json:"daily"`
	Weekly  string `yaml:"weekly" json:"weekly"`
}

// merge fills empty fields from fallback.
func (s Sources) merge(fallback Sources) Sources {
	if s.Monthly == "" {
		s.Monthly = fallback.Monthly
	}
	if s.Daily == "" {
		s.Daily = fallback.Daily
	}
	if s.Weekly == "" {
		s.Weekly = fallback.Weekly
	}
	return s
}

type Device struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Sources Sources `yaml:"sources"`
}

type Config struct {
	Title            string   `yaml:"title"`
	DataDir          string   `yaml:"data_dir"`
	AnomalyThreshold float64  `yaml:"anomaly_threshold"`
	Sources          Sources  `yaml:"sources"`
	Devices          []Device `yaml:"devices"`

	// Weeks pins the options of the weekly selector ("2020-W31"). When
	// empty the options come from the weekly table.
	Weeks []string `yaml:"weeks"`
}

var defaultDeviceIDs = []string{
	"14e5bc06-9e32-4938-96df-82a070581e7d",
	"26245f9f-8f9f-41b8-90bc-fa47640395f2",
	"25ff3a33-6eba-4238-9b8f-c0dea3f2e2c3",
	"5dd3b941-aab6-44de-bdb6-b5e82026cc54",
	"96e6013a-9e90-4dbd-9070-d6b4732f42b8",
	"968cc402-586d-4d47-ba8b-97c065762d0d",
}

func Default() *Config {
	cfg := &Config{
		Title:            "Energy Dashboard",
		DataDir:          ".",
		AnomalyThreshold: DefaultThreshold,
		Sources: Sources{
			Monthly: "monthly_summary.csv",
			Daily:   "device_data_analysis_2years.csv",
			Weekly:  "device_data_analysis_weekly_30min.csv",
		},
		Weeks: []string{"2020-W31", "2020-W32"},
	}
	for _, id := range defaultDeviceIDs {
		cfg.Devices = append(cfg.Devices, Device{ID: id})
	}
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.AnomalyThreshold <= 0 {
		errs = append(errs, fmt.Errorf("anomaly_threshold must be positive, got %v", c.AnomalyThreshold))
	}
	if len(c.Devices) == 0 {
		errs = append(errs, errors.New("at least one device is required"))
	}
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if strings.TrimSpace(d.ID) == "" {
			errs = append(errs, fmt.Errorf("devices[%d]: id is required", i))
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("devices[%d]: duplicate id %s", i, d.ID))
		}
		seen[d.ID] = true
	}
	for _, w := range c.Weeks {
		if _, err := ParseYearWeek(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Device returns the device with the given id, or the first configured
// device when the id is unknown.
func (c *Config) Device(id string) Device {
	for _, d := range c.Devices {
		if d.ID == id {
			return d
		}
	}
	if len(c.Devices) > 0 {
		return c.Devices[0]
	}
	return Device{}
}

// SourcesFor resolves the sources of a device, falling back to the
// dashboard-wide sources for any table the device does not override.
func (c *Config) SourcesFor(id string) Sources {
	return c.Device(id).Sources.merge(c.Sources)
}

func (c *Config) DeviceList() []models.Device {
	out := make([]models.Device, 0, len(c.Devices))
	for _, d := range c.Devices {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		out = append(out, models.Device{ID: d.ID, Name: name})
	}
	return out
}

// PinnedWeeks returns the configured week options, newest first.
func (c *Config) PinnedWeeks() []models.YearWeek {
	var out []models.YearWeek
	for _, w := range c.Weeks {
		yw, err := ParseYearWeek(w)
		if err != nil {
			continue
		}
		out = append(out, yw)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Before(out[i]) })
	return out
}

// ParseYearWeek accepts "2020-W32", "2020-32" and "2020 - Week 32".
func ParseYearWeek(s string) (models.YearWeek, error) {
	var yw models.YearWeek
	s = strings.TrimSpace(s)
	for _, layout := range []string{"%d-W%d", "%d - Week %d", "%d-%d"} {
		if n, err := fmt.Sscanf(s, layout, &yw.Year, &yw.Week); err == nil && n == 2 {
			if yw.Week < 1 || yw.Week > 53 {
				return models.YearWeek{}, fmt.Errorf("week out of range in %q", s)
			}
			return yw, nil
		}
	}
	return models.YearWeek{}, fmt.Errorf("invalid year-week %q", s)
}
