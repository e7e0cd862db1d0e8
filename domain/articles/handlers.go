package articles

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Handlers exposes the article fetch job to the worker pool.
type Handlers struct {
	repo    *Repository
	fetcher Fetcher
	log     *slog.Logger
}

// HandlersParams collects the fetch handler's dependencies. The fetcher is
// optional: without one the fetch job is a no-op.
type HandlersParams struct {
	fx.In

	Repo    *Repository
	Fetcher Fetcher `optional:"true"`
	Log     *slog.Logger
}

func NewHandlers(p HandlersParams) *Handlers {
	return &Handlers{
		repo:    p.Repo,
		fetcher: p.Fetcher,
		log:     p.Log.With(logger.Scope("articles.handlers")),
	}
}

// Register attaches handlers to the worker.
func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.TypeFetchArticles, h.FetchArticles)
}

// FetchArticles pulls new articles from every active source and upserts
// them. URL and content-hash collisions are silently dropped.
func (h *Handlers) FetchArticles(ctx context.Context, job *jobs.Job, progress jobs.ProgressFunc) (*jobs.Result, error) {
	if h.fetcher == nil {
		return &jobs.Result{Message: "no fetcher configured"}, nil
	}

	sources, err := h.repo.ListActiveSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return &jobs.Result{Message: "no active sources"}, nil
	}

	inserted := 0
	failedSources := 0
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(i, len(sources), fmt.Sprintf("fetching %s", source.Name))

		fetched, err := h.fetcher.Fetch(ctx, source)
		if err != nil {
			failedSources++
			h.log.Error("source fetch failed",
				slog.String("source", source.Name),
				logger.Error(err))
			continue
		}

		for _, article := range fetched {
			if article.SourceID == nil {
				id := source.ID
				article.SourceID = &id
			}
			if article.ContentHash == nil && article.Content != "" {
				hash := ContentHash(article.Content)
				article.ContentHash = &hash
			}
			isNew, err := h.repo.Upsert(ctx, article)
			if err != nil {
				return nil, err
			}
			if isNew {
				inserted++
			}
		}
	}

	return &jobs.Result{
		Message:        fmt.Sprintf("fetched %d new articles from %d sources", inserted, len(sources)),
		ItemsProcessed: inserted,
		Metadata: jobs.JSON{
			"sources":        len(sources),
			"failed_sources": failedSources,
		},
	}, nil
}
