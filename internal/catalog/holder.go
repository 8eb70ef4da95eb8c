package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/commute-heatmap/internal/observability"
	"github.com/go-co-op/gocron"
)

// Holder keeps the most recently loaded catalog from a file and can reload it
// on a schedule. A failed reload keeps the previous catalog.
type Holder struct {
	path      string
	current   atomic.Pointer[Catalog]
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewHolder creates a Holder for path. Nothing is loaded until Reload.
func NewHolder(path string, logger *slog.Logger, metrics *observability.Metrics) *Holder {
	return &Holder{
		path:      path,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
		metrics:   metrics,
	}
}

// Reload reads the catalog file and swaps it in.
func (h *Holder) Reload() error {
	c, err := Load(h.path)
	if err != nil {
		return err
	}
	prev := h.current.Swap(c)
	h.metrics.CatalogCities.Set(float64(c.Len()))
	if prev == nil || prev.Len() != c.Len() {
		h.logger.Info("catalog loaded", "path", h.path, "cities", c.Len())
	}
	return nil
}

// Catalog returns the current catalog, or nil before the first successful load.
func (h *Holder) Catalog() *Catalog {
	return h.current.Load()
}

// Names returns the current city names; empty before the first load.
func (h *Holder) Names() []string {
	c := h.current.Load()
	if c == nil {
		return []string{}
	}
	return c.Names()
}

// CheckReadiness reports ready once a catalog has been loaded.
func (h *Holder) CheckReadiness(_ context.Context) error {
	if h.current.Load() == nil {
		return errors.New("catalog not loaded")
	}
	return nil
}

// Start reloads the catalog every interval until Stop.
func (h *Holder) Start(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	_, err := h.scheduler.Every(interval).WaitForSchedule().Do(func() {
		if err := h.Reload(); err != nil {
			h.logger.Warn("catalog reload failed, keeping previous", "path", h.path, "error", err)
		}
	})
	if err != nil {
		return err
	}
	h.scheduler.StartAsync()
	return nil
}

// Stop cancels scheduled reloads.
func (h *Holder) Stop() {
	h.scheduler.Stop()
}
