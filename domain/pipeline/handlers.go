package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Handlers exposes pipeline job handlers to the worker pool.
type Handlers struct {
	orchestrator *Orchestrator
	articles     *articles.Repository
	log          *slog.Logger
}

func NewHandlers(orchestrator *Orchestrator, articleRepo *articles.Repository, log *slog.Logger) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		articles:     articleRepo,
		log:          log.With(logger.Scope("pipeline.handlers")),
	}
}

// Register attaches handlers to the worker.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.TypeFullPipeline, h.FullPipeline)
}

// FullPipeline runs the configured stage sequence, either for one article
// (article_id param) or for a batch of pending articles.
func (h *Handlers) FullPipeline(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (*jobs.Result, error) {
	if rawID, ok := job.Params["article_id"].(string); ok && rawID != "" {
		articleID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("invalid article_id param: %w", err)
		}
		article, err := h.articles.GetByID(ctx, articleID)
		if err != nil {
			return nil, err
		}
		res, err := h.orchestrator.Execute(ctx, article, nil, skipStagesParam(job))
		if err != nil {
			return nil, err
		}
		return &jobs.Result{
			Message:        fmt.Sprintf("pipeline %s", res.FinalDecision),
			ItemsProcessed: 1,
			Metadata:       jobs.JSON{"final_decision": res.FinalDecision, "stages": res.Stages},
		}, nil
	}

	limit := 20
	if v, ok := job.Params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	pending, err := h.articles.ListByStatus(ctx, articles.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &jobs.Result{Message: "no pending articles"}, nil
	}

	opts := BatchOptions{Delay: time.Second}
	if v, ok := job.Params["concurrency"].(float64); ok && v > 1 {
		opts = BatchOptions{Concurrency: int(v)}
	}

	progress(0, len(pending), "running pipeline batch")
	summary, err := h.orchestrator.ExecuteBatch(ctx, pending, nil, opts)
	if err != nil {
		return nil, err
	}
	progress(len(pending), len(pending), "pipeline batch complete")

	return &jobs.Result{
		Message: fmt.Sprintf("batch complete: %d approved, %d rejected, %d skipped, %d errors",
			summary.Approved, summary.Rejected, summary.Skipped, summary.Errors),
		ItemsProcessed: len(pending),
		Metadata: jobs.JSON{
			"approved": summary.Approved,
			"rejected": summary.Rejected,
			"skipped":  summary.Skipped,
			"errors":   summary.Errors,
		},
	}, nil
}

func skipStagesParam(job *jobs.Job) []string {
	raw, ok := job.Params["skip_stages"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
