package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Handlers holds the maintenance job handlers the beat triggers.
type Handlers struct {
	store *jobs.Store
	db    *bun.DB
	cfg   *config.Config
	log   *slog.Logger
}

func NewHandlers(store *jobs.Store, db *bun.DB, cfg *config.Config, log *slog.Logger) *Handlers {
	return &Handlers{
		store: store,
		db:    db,
		cfg:   cfg,
		log:   log.With(logger.Scope("scheduler.handlers")),
	}
}

// Register attaches handlers to the worker.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.TypeStaleSweep, h.StaleSweep)
	w.Register(jobs.TypeViewRefresh, h.ViewRefresh)
}

// StaleSweep reclaims jobs stuck in running past the stale timeout.
func (h *Handlers) StaleSweep(ctx context.Context, _ *jobs.Job, _ jobs.ProgressFunc) (*jobs.Result, error) {
	requeued, failed, err := h.store.WatchdogSweep(ctx, h.cfg.Worker.StaleTimeout)
	if err != nil {
		return nil, err
	}
	return &jobs.Result{
		Message:        fmt.Sprintf("sweep: %d requeued, %d failed", requeued, failed),
		ItemsProcessed: requeued + failed,
	}, nil
}

// ViewRefresh rebuilds the reporting materialized views.
func (h *Handlers) ViewRefresh(ctx context.Context, _ *jobs.Job, _ jobs.ProgressFunc) (*jobs.Result, error) {
	if _, err := h.db.ExecContext(ctx,
		"REFRESH MATERIALIZED VIEW CONCURRENTLY incident_daily_counts"); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return &jobs.Result{Message: "refreshed incident_daily_counts", ItemsProcessed: 1}, nil
}
