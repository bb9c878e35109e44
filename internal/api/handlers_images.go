package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/imagegen"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/models"
)

// handleChart serves /charts/{metric}.png, the selected year of a daily
// metric with its upper anomaly limit.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}
	metric, err := models.ParseMetric(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	if year := q.Get("year"); year != "" {
		q.Set(string(metric)+"_year", year)
		r.URL.RawQuery = q.Encode()
	}

	view, _, ok := s.build(w, r, "chart")
	if !ok {
		return
	}
	panel := view.Power
	if metric == models.Flow {
		panel = view.Flow
	}
	if panel.Unavailable {
		http.Error(w, strings.Join(view.Warnings, "; "), http.StatusBadGateway)
		return
	}

	key := fmt.Sprintf("chart|%s|%s|%d", view.Device.ID, metric, panel.SelectedYear)
	if data, ok := s.images.Get(key); ok {
		servePNG(w, data)
		return
	}

	data, err := imagegen.RenderLineChart(chartSeries(view, panel))
	if errors.Is(err, imagegen.ErrNoData) {
		http.Error(w, fmt.Sprintf("No data available for %d", panel.SelectedYear), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "render chart", "metric", metric, "error", err)
		http.Error(w, "chart rendering failed", http.StatusInternalServerError)
		return
	}
	s.images.Set(key, data)
	servePNG(w, data)
}

func chartSeries(view *dashboard.View, p dashboard.MetricPanel) imagegen.Series {
	cd := newChartData(p.Metric, p.Year, p.Upper)
	s := imagegen.Series{
		Title: fmt.Sprintf("%s %d (%s)", p.Metric.Label(), p.SelectedYear, view.Device.Name),
		Label: fmt.Sprintf("%s (%s)", cd.Label, cd.Unit),
		Upper: cd.Upper,
	}
	for _, pt := range cd.Points {
		s.Times = append(s.Times, pt.Time)
		s.Values = append(s.Values, pt.Value)
		s.Anomalies = append(s.Anomalies, pt.Anomaly)
	}
	return s
}

// handleOGImage serves the summary card for the selected device.
func (s *Server) handleOGImage(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.build(w, r, "card")
	if !ok {
		return
	}

	key := "card|" + view.Device.ID
	if data, ok := s.images.Get(key); ok {
		servePNG(w, data)
		return
	}

	data, err := imagegen.RenderSummaryCard(cardData(view))
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "render summary card", "error", err)
		http.Error(w, "card rendering failed", http.StatusInternalServerError)
		return
	}
	s.images.Set(key, data)
	servePNG(w, data)
}

func cardData(view *dashboard.View) imagegen.CardData {
	card := imagegen.CardData{
		Title:    view.Title,
		Device:   view.Device.Name,
		Headline: "No power data yet",
		Footer:   "Updated " + view.Generated.Format("2 Jan 2006 15:04"),
	}

	var peak *dashboard.SeasonCard
	for i, c := range view.PowerSeasons {
		if c.Present && (peak == nil || c.Value > peak.Value) {
			peak = &view.PowerSeasons[i]
		}
	}
	if peak != nil {
		card.Headline = fmt.Sprintf("Peak season: %s (%s %s)", peak.Season, formatValue(models.Power, peak.Value), displayUnit(models.Power))
	}

	if n := len(view.YearlyMax); n > 0 {
		last := view.YearlyMax[n-1]
		card.Lines = append(card.Lines, fmt.Sprintf("%s max: %s W", last.Year, humanize.CommafWithDigits(last.Max, 2)))
	}
	card.Lines = append(card.Lines,
		fmt.Sprintf("Power anomalies: %d", view.Power.Anomalies),
		fmt.Sprintf("Flow anomalies: %d", view.Flow.Anomalies),
	)
	for _, warning := range view.Warnings {
		card.Lines = append(card.Lines, "! "+warning)
	}
	return card
}

func servePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
