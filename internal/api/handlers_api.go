package api

import (
	"encoding/json"
	"net/http"

	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/models"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "write response", "error", err)
	}
}

type errorResponse struct {
	Error    string   `json:"error"`
	Warnings []string `json:"warnings,omitempty"`
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.build(w, r, "api")
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, summaryResponse{
		Device:       view.Device,
		Threshold:    view.Threshold,
		PowerSeasons: seasonsJSON(view.PowerSeasons),
		FlowSeasons:  seasonsJSON(view.FlowSeasons),
		YearlyMax:    view.YearlyMax,
		Anomalies: map[string]int{
			string(models.Power): view.Power.Anomalies,
			string(models.Flow):  view.Flow.Anomalies,
		},
		Narrative: view.Narrative,
		Warnings:  view.Warnings,
		Generated: view.Generated,
		Sources:   s.svc.Config().SourcesFor(view.Device.ID),
	})
}

// handleAPIReadings returns one metric of the daily table, either the full
// history or the year given by ?year=.
func (s *Server) handleAPIReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric, err := models.ParseMetric(q.Get("metric"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	year, err := parseYear(q, "year")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// route the single year through the panel selection
	if year != 0 {
		q.Set(string(metric)+"_year", q.Get("year"))
		r.URL.RawQuery = q.Encode()
	}

	view, _, ok := s.build(w, r, "api")
	if !ok {
		return
	}
	panel := view.Power
	if metric == models.Flow {
		panel = view.Flow
	}
	if panel.Unavailable {
		writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "daily table unavailable", Warnings: view.Warnings})
		return
	}

	resp := readingsResponse{
		Device:    view.Device.ID,
		Metric:    metric,
		Unit:      metric.Unit(),
		Anomalies: panel.Anomalies,
		Upper:     panel.Upper,
		Lower:     panel.Lower,
		Points:    panel.All,
	}
	if year != 0 {
		resp.Year = year
		resp.Anomalies = panel.YearAnomaly
		resp.Points = panel.Year
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleAPIWeekly(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.build(w, r, "api")
	if !ok {
		return
	}
	if view.Weekly.Unavailable {
		writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "weekly table unavailable", Warnings: view.Warnings})
		return
	}

	resp := weeklyResponse{
		Device:  view.Device.ID,
		Week:    view.Weekly.Selected.String(),
		Options: make([]string, 0, len(view.Weekly.Options)),
		Rows:    weeklyRows(view.Weekly.Rows),
	}
	for _, o := range view.Weekly.Options {
		resp.Options = append(resp.Options, o.String())
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleAPIDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.svc.Config().DeviceList())
}

func (s *Server) handleAPIReload(w http.ResponseWriter, r *http.Request) {
	n := s.loader.ReloadAll()
	s.images.Purge()
	log.Ctx(r.Context()).InfoContext(r.Context(), "tables reloaded", "entries", n)
	writeJSON(w, r, http.StatusOK, map[string]int{"invalidated": n})
}
