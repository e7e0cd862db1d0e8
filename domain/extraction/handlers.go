package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/llm"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Handlers exposes extraction job handlers to the worker pool.
type Handlers struct {
	service  *Service
	articles *articles.Repository
	router   *llm.Router
	log      *slog.Logger
}

// NewHandlers wires the extraction job handlers.
func NewHandlers(service *Service, articleRepo *articles.Repository, router *llm.Router, log *slog.Logger) *Handlers {
	return &Handlers{
		service:  service,
		articles: articleRepo,
		router:   router,
		log:      log.With(logger.Scope("extraction.handlers")),
	}
}

// Register attaches handlers to the worker.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.TypeProcessArticle, h.ProcessArticle)
	w.Register(jobs.TypeBatchExtract, h.BatchExtract)
	w.Register(jobs.TypeEnrich, h.Enrich)
}

// ProcessArticle handles a single-article extraction job.
func (h *Handlers) ProcessArticle(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (*jobs.Result, error) {
	rawID, _ := job.Params["article_id"].(string)
	articleID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid article_id param: %w", err)
	}

	opts := Stage1Options{}
	if force, ok := job.Params["force"].(bool); ok {
		opts.Force = force
	}

	merged, err := h.service.ProcessArticle(ctx, articleID, opts)
	if err != nil {
		h.recordArticleFailure(ctx, articleID, err)
		return nil, err
	}

	msg := "no usable extraction"
	if merged != nil {
		msg = fmt.Sprintf("extracted with confidence %.2f", merged.Confidence)
	}
	return &jobs.Result{Message: msg, ItemsProcessed: 1}, nil
}

// BatchExtract handles a batch extraction job over pending articles. A
// per-batch circuit breaker stops dispatch on systemic provider failure.
func (h *Handlers) BatchExtract(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (*jobs.Result, error) {
	limit := 50
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

	breaker := llm.NewBatchBreaker()
	processed := 0
	for i, article := range pending {
		if breaker.Tripped() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		progress(i, len(pending), fmt.Sprintf("extracting %s", article.ID))

		_, err := h.service.ProcessArticle(ctx, article.ID, Stage1Options{})
		if err != nil {
			var llmErr *llm.Error
			if errors.As(err, &llmErr) {
				h.recordArticleFailure(ctx, article.ID, err)
				if breaker.RecordError(article.ID.String(), llmErr) {
					h.log.Error("batch breaker tripped",
						slog.String("reason", breaker.TripReason()),
						slog.Int("processed", processed))
				}
				continue
			}
			return nil, err
		}
		breaker.RecordSuccess()
		processed++
	}

	summary := breaker.Summary()
	msg := fmt.Sprintf("batch complete: %d ok, %d failed", summary.Successes, len(summary.Failures))
	if summary.Tripped {
		msg = fmt.Sprintf("batch stopped: %s (%d ok, %d failed, %d skipped)",
			summary.TripReason, summary.Successes, len(summary.Failures),
			len(pending)-summary.Successes-len(summary.Failures))
	}

	return &jobs.Result{
		Message:        msg,
		ItemsProcessed: processed,
		Metadata: jobs.JSON{
			"tripped":     summary.Tripped,
			"trip_reason": summary.TripReason,
			"failures":    summary.Failures,
		},
	}, nil
}

// Enrich re-runs the full extraction for an already-processed article using
// the enrichment re-extract stage settings. Used when a stronger model can
// recover fields the first pass missed.
func (h *Handlers) Enrich(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (*jobs.Result, error) {
	rawID, _ := job.Params["article_id"].(string)
	articleID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("invalid article_id param: %w", err)
	}

	stage := h.router.StageConfig(llm.StageEnrichmentReextract)
	if !stage.Enabled {
		return &jobs.Result{Message: "enrichment re-extract stage disabled"}, nil
	}

	opts := Stage1Options{
		Force:            true,
		ProviderOverride: stage.Provider,
		ModelOverride:    stage.Model,
	}
	merged, err := h.service.ProcessArticle(ctx, articleID, opts)
	if err != nil {
		h.recordArticleFailure(ctx, articleID, err)
		return nil, err
	}

	msg := "no usable extraction after enrichment"
	if merged != nil {
		msg = fmt.Sprintf("re-extracted with confidence %.2f", merged.Confidence)
	}
	return &jobs.Result{Message: msg, ItemsProcessed: 1}, nil
}

func (h *Handlers) recordArticleFailure(ctx context.Context, articleID uuid.UUID, err error) {
	category := "unknown"
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		category = string(llmErr.Category)
	}
	if recErr := h.articles.RecordExtractionError(ctx, articleID, err.Error(), category); recErr != nil {
		h.log.Error("failed to record extraction error", logger.Error(recErr))
	}
}
