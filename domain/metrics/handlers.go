package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Handlers exposes the rollup as a scheduled job.
type Handlers struct {
	rollup *Rollup
	log    *slog.Logger
}

func NewHandlers(rollup *Rollup, log *slog.Logger) *Handlers {
	return &Handlers{
		rollup: rollup,
		log:    log.With(logger.Scope("metrics.handlers")),
	}
}

// Register attaches handlers to the worker.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.TypeMetricsRollup, h.MetricsRollup)
}

// MetricsRollup aggregates raw task metrics into 5-minute buckets.
func (h *Handlers) MetricsRollup(ctx context.Context, _ *jobs.Job, _ jobs.ProgressFunc) (*jobs.Result, error) {
	buckets, err := h.rollup.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &jobs.Result{
		Message:        fmt.Sprintf("aggregated %d buckets", buckets),
		ItemsProcessed: buckets,
	}, nil
}
