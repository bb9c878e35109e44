package api

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/energydash/internal/dashboard"
	"github.com/lox/energydash/internal/imagegen"
	"github.com/lox/energydash/internal/log"
)

// Reloader is the part of the table loader the server drives directly.
type Reloader interface {
	ReloadAll() int
	Cached() []string
}

type Server struct {
	svc    *dashboard.Service
	loader Reloader
	addr   string
	tmpl   *template.Template
	images *imagegen.Cache
}

func NewServer(svc *dashboard.Service, loader Reloader, addr string) *Server {
	return &Server{
		svc:    svc,
		loader: loader,
		addr:   addr,
		tmpl:   newTemplates(),
		images: imagegen.NewCache(10 * time.Minute),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /partials/power", s.handlePanelPartial)
	mux.HandleFunc("GET /partials/flow", s.handlePanelPartial)
	mux.HandleFunc("GET /partials/weekly", s.handleWeeklyPartial)
	mux.HandleFunc("GET /api/summary", s.handleAPISummary)
	mux.HandleFunc("GET /api/readings", s.handleAPIReadings)
	mux.HandleFunc("GET /api/weekly", s.handleAPIWeekly)
	mux.HandleFunc("GET /api/devices", s.handleAPIDevices)
	mux.HandleFunc("POST /api/reload", s.handleAPIReload)
	mux.HandleFunc("GET /charts/{file}", s.handleChart)
	mux.HandleFunc("GET /og-image.png", s.handleOGImage)
	mux.Handle("GET /metrics", promhttp.Handler())
	return s.logRequests(gziphandler.GzipHandler(mux))
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "server shutdown", "error", err)
		}
	}()

	log.Ctx(ctx).InfoContext(ctx, "starting server", "addr", s.addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// logRequests attaches a request-scoped logger and logs each response.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.Ctx(r.Context()).With("method", r.Method, "path", r.URL.Path)
		ctx := log.With(r.Context(), logger)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.DebugContext(ctx, "request", "status", rec.status, "duration", time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status: "ok",
		Cached: s.loader.Cached(),
	})
}
