package api

import (
	"net/http"

	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/log"
	"github.com/lox/energydash/internal/metrics"
)

// build parses the selection from the request and runs a render pass. It
// writes the error response itself and returns false on failure.
func (s *Server) build(w http.ResponseWriter, r *http.Request, view string) (*dashboard.View, dashboard.Selection, bool) {
	sel, err := parseSelection(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, sel, false
	}

	metrics.RendersTotal.WithLabelValues(view).Inc()
	v, err := s.svc.Build(r.Context(), sel)
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "render failed", "view", view, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, sel, false
	}
	return v, sel, true
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "template error", "template", name, "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, sel, ok := s.build(w, r, "page")
	if !ok {
		return
	}
	s.render(w, r, "index.html", newPageData(view, sel))
}

func (s *Server) handlePanelPartial(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.build(w, r, "partial")
	if !ok {
		return
	}
	panel := view.Power
	if r.URL.Path == "/partials/flow" {
		panel = view.Flow
	}
	s.render(w, r, "panel.html", newPanelData(view, panel))
}

func (s *Server) handleWeeklyPartial(w http.ResponseWriter, r *http.Request) {
	view, _, ok := s.build(w, r, "partial")
	if !ok {
		return
	}
	s.render(w, r, "weekly.html", newWeeklyData(view))
}
