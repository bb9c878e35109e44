package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lox/energydash/internal/log"
)

// Table pairs a source identity with the kind of table it holds.
type Table struct {
	Source string
	Kind   Kind
}

// Scheduler warms the load cache at startup and, when an interval is set,
// reloads file sources whose modification time has moved on. Non-file
// sources are only ever reloaded by an explicit Reload.
type Scheduler struct {
	loader   *Loader
	tables   []Table
	interval time.Duration

	mu     sync.Mutex
	mtimes map[string]time.Time
}

func NewScheduler(loader *Loader, tables []Table, interval time.Duration) *Scheduler {
	return &Scheduler{
		loader:   loader,
		tables:   tables,
		interval: interval,
		mtimes:   make(map[string]time.Time),
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.Warm(ctx)
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "scheduler: shutting down")
			return
		case <-ticker.C:
			s.CheckModified(ctx)
		}
	}
}

// Warm loads every table once so the first render is served from cache.
// Failures are logged; a failing table is retried on the next render.
func (s *Scheduler) Warm(ctx context.Context) {
	for _, t := range s.tables {
		var err error
		if t.Kind == KindMonthly {
			_, err = s.loader.LoadMonthly(ctx, t.Source)
		} else {
			_, err = s.loader.LoadReadings(ctx, t.Source, t.Kind)
		}
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "scheduler: warm failed", "source_id", t.Source, "kind", t.Kind, "error", err)
		}
		s.recordMtime(t.Source)
	}
}

// CheckModified reloads file-backed tables changed on disk since last seen.
// It returns the sources that were reloaded.
func (s *Scheduler) CheckModified(ctx context.Context) []string {
	var reloaded []string
	seen := make(map[string]bool)
	for _, t := range s.tables {
		if seen[t.Source] {
			continue
		}
		seen[t.Source] = true

		path, ok := s.localPath(t.Source)
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		s.mu.Lock()
		prev, known := s.mtimes[path]
		s.mtimes[path] = info.ModTime()
		s.mu.Unlock()

		if known && info.ModTime().After(prev) {
			n := s.loader.Reload(t.Source)
			log.Ctx(ctx).InfoContext(ctx, "scheduler: source changed, reloaded", "source_id", t.Source, "entries", n)
			reloaded = append(reloaded, t.Source)
		}
	}
	return reloaded
}

func (s *Scheduler) recordMtime(source string) {
	path, ok := s.localPath(source)
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.mtimes[path] = info.ModTime()
	s.mu.Unlock()
}

func (s *Scheduler) localPath(source string) (string, bool) {
	src, err := ParseSource(source, s.loader.DataDir())
	if err != nil {
		return "", false
	}
	switch v := src.(type) {
	case *csvFile:
		return filepath.Clean(v.path), true
	case *sqliteTable:
		return filepath.Clean(v.path), true
	}
	return "", false
}
