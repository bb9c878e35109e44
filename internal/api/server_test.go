package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/energydash/internal/api"
	"github.com/lox/energydash/internal/config"
	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/ingest"
)

const monthlyCSV = `month,power
2020-01,10
2020-06,50
2021-03,5
2021-07,40
`

// dailyCSV spans 2020 and 2021 with a single power spike on 2021-02-04.
func dailyCSV() string {
	var b strings.Builder
	b.WriteString("day,avg_abs_power,avg_abs_flow\n")
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 731; i++ {
		power := 100 + float64(i%7)
		if i == 400 {
			power = 5000
		}
		fmt.Fprintf(&b, "%s,%g,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), power, 0.01+float64(i%5)/1000)
	}
	return b.String()
}

func weeklyCSV() string {
	var b strings.Builder
	b.WriteString("start_time,avg_abs_power,avg_abs_flow\n")
	for _, day := range []time.Time{
		time.Date(2020, 7, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 8, 3, 0, 0, 0, 0, time.UTC),
	} {
		for i := 0; i < 48; i++ {
			fmt.Fprintf(&b, "%s,%d,0.004\n", day.Add(time.Duration(i)*30*time.Minute).Format("2006-01-02 15:04:05"), 50+i%4)
		}
	}
	return b.String()
}

func setupServer(t *testing.T, files map[string]string) *api.Server {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.DataDir = dir
	loader := ingest.NewLoader(dir)
	svc := dashboard.NewService(cfg, loader)
	return api.NewServer(svc, loader, ":0")
}

func allFiles() map[string]string {
	return map[string]string{
		"monthly_summary.csv":                   monthlyCSV,
		"device_data_analysis_2years.csv":       dailyCSV(),
		"device_data_analysis_weekly_30min.csv": weeklyCSV(),
	}
}

func get(t *testing.T, srv *api.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<h1>Energy Dashboard</h1>")
	assert.Contains(t, body, "Average power by season")
	assert.Contains(t, body, `id="chart-power"`)
	assert.Contains(t, body, `id="chart-power-all"`)
	assert.Contains(t, body, `id="chart-flow-all"`)
	assert.Contains(t, body, "Daily power over time")
	assert.Contains(t, body, `id="chart-weekly-flow"`)
	assert.Contains(t, body, "2020 - Week 32")
	assert.Contains(t, body, "<td>2021</td><td>40</td>")
	assert.NotContains(t, body, `class="warnings"`)
	assert.Contains(t, body, `"anomaly":true`, "power spike is flagged in the chart payload")
}

func TestIndexPage_NoDataMessages(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/?week=2020-W33&power_year=2019")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "No data available for 2020 - Week 33.")
	assert.Contains(t, body, "No data available for 2019.")
	assert.NotContains(t, body, `id="chart-weekly-power"`)
	assert.NotContains(t, body, `id="chart-power"`)
	assert.Contains(t, body, `id="chart-power-all"`, "full history is shown when the selected year is empty")
}

func TestIndexPage_MissingSourceIsWarning(t *testing.T) {
	t.Parallel()
	files := allFiles()
	delete(files, "device_data_analysis_2years.csv")
	srv := setupServer(t, files)

	w := get(t, srv, "/")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `class="warnings"`)
	assert.Contains(t, body, "device_data_analysis_2years.csv")
	assert.Contains(t, body, "the daily table could not be loaded")
	assert.Contains(t, body, "Maximum monthly power per year")
}

func TestBadQueryParameters(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	for _, target := range []string{
		"/?power_year=abc",
		"/?week=2020-W99",
		"/api/readings?metric=heat",
		"/api/readings?metric=power&year=-1",
		"/charts/heat.png",
	} {
		t.Run(target, func(t *testing.T) {
			w := get(t, srv, target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

type pointJSON struct {
	Time    time.Time `json:"t"`
	Value   float64   `json:"v"`
	Anomaly bool      `json:"anomaly"`
}

type readingsJSON struct {
	Metric    string      `json:"metric"`
	Year      int         `json:"year"`
	Anomalies int         `json:"anomalies"`
	Upper     *float64    `json:"upper"`
	Points    []pointJSON `json:"points"`
}

func TestAPIReadings(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/api/readings?metric=power")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp readingsJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "power", resp.Metric)
	assert.Len(t, resp.Points, 731)
	assert.Equal(t, 1, resp.Anomalies)
	require.NotNil(t, resp.Upper)

	var flagged []pointJSON
	for _, p := range resp.Points {
		if p.Anomaly {
			flagged = append(flagged, p)
		}
	}
	require.Len(t, flagged, 1)
	assert.Equal(t, 5000.0, flagged[0].Value)
	assert.Equal(t, time.Date(2021, 2, 4, 0, 0, 0, 0, time.UTC), flagged[0].Time)

	w = get(t, srv, "/api/readings?metric=flow&year=2020")
	require.Equal(t, http.StatusOK, w.Code)
	resp = readingsJSON{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2020, resp.Year)
	assert.Len(t, resp.Points, 366)
	assert.Equal(t, 0, resp.Anomalies)

	w = get(t, srv, "/api/readings?metric=power&year=2019")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"points":[]`)
}

func TestAPIReadings_SourceUnavailable(t *testing.T) {
	t.Parallel()
	files := allFiles()
	delete(files, "device_data_analysis_2years.csv")
	srv := setupServer(t, files)

	w := get(t, srv, "/api/readings?metric=power")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "file not found")
}

func TestAPIWeekly(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/api/weekly?week=2020-W31")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Week    string   `json:"week"`
		Options []string `json:"options"`
		Rows    []struct {
			Power          float64 `json:"avg_abs_power"`
			IsAnomalyPower bool    `json:"is_anomaly_power"`
			IsAnomalyFlow  bool    `json:"is_anomaly_flow"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2020-W31", resp.Week)
	assert.Equal(t, []string{"2020-W32", "2020-W31"}, resp.Options)
	assert.Len(t, resp.Rows, 48)
	assert.Contains(t, w.Body.String(), `"is_anomaly_power":false`)
}

func TestAPIWeekly_MissingFlowIsNull(t *testing.T) {
	t.Parallel()
	files := allFiles()
	files["device_data_analysis_weekly_30min.csv"] = weeklyCSV() + "2020-08-04 00:00:00,900,\n"
	srv := setupServer(t, files)

	w := get(t, srv, "/api/weekly?week=2020-W32")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Rows []struct {
			Power *float64 `json:"avg_abs_power"`
			Flow  *float64 `json:"avg_abs_flow"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 49)
	last := resp.Rows[48]
	require.NotNil(t, last.Power)
	assert.Equal(t, 900.0, *last.Power)
	assert.Nil(t, last.Flow)

	page := get(t, srv, "/?week=2020-W32")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `id="chart-weekly-power"`)
}

func TestAPISummaryAndDevices(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/api/summary")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"yearly_max":[{"year":"2020","max_power":50},{"year":"2021","max_power":40}]`)
	assert.Contains(t, body, `{"season":"Fall","value":null,"present":false}`)
	assert.Contains(t, body, `"anomalies":{"flow":0,"power":1}`)

	w = get(t, srv, "/api/devices")
	require.Equal(t, http.StatusOK, w.Code)
	var devices []map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &devices))
	assert.Len(t, devices, 6)
}

func TestReload(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	require.Equal(t, http.StatusOK, get(t, srv, "/").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"invalidated":3`)

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, srv, "/api/reload").Code)
}

func TestImages(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	w := get(t, srv, "/charts/power.png?year=2021")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = get(t, srv, "/charts/flow.png?year=2019")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No data available for 2019")

	w = get(t, srv, "/og-image.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t, allFiles())

	get(t, srv, "/")
	w := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "energydash_renders_total")
}
