// Package main starts a queue worker: it claims jobs from the configured
// queues and runs the registered handlers until stopped.
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/incidentwire/incidentwire/domain/actors"
	"github.com/incidentwire/incidentwire/domain/approval"
	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/domain/dedup"
	"github.com/incidentwire/incidentwire/domain/extraction"
	"github.com/incidentwire/incidentwire/domain/incidents"
	"github.com/incidentwire/incidentwire/domain/metrics"
	"github.com/incidentwire/incidentwire/domain/pipeline"
	"github.com/incidentwire/incidentwire/domain/scheduler"
	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/domain/taxonomy"
	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/database"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/llm"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		logger.Module,
		config.Module,
		database.Module,
		jobs.Module,
		llm.Module,

		articles.Module,
		schemas.Module,
		taxonomy.Module,
		actors.Module,
		extraction.Module,
		dedup.Module,
		approval.Module,
		incidents.Module,
		pipeline.Module,
		metrics.Module,
		scheduler.HandlersModule,

		fx.Provide(newWorker),
		fx.Invoke(registerHandlers, runWorker),
	).Run()
}

func newWorker(store *jobs.Store, cfg *config.Config, sink jobs.MetricSink, log *slog.Logger) *jobs.Worker {
	w := cfg.Worker
	return jobs.NewWorker(store, jobs.WorkerConfig{
		Queues:       w.Queues,
		PollInterval: w.PollInterval,
		Timeouts: map[string]jobs.Timeouts{
			jobs.TypeFetchArticles:  {Soft: w.FetchSoftTimeout, Hard: w.FetchHardTimeout},
			jobs.TypeProcessArticle: {Soft: w.ProcessSoftTimeout, Hard: w.ProcessHardTimeout},
			jobs.TypeBatchExtract:   {Soft: w.BatchSoftTimeout, Hard: w.BatchHardTimeout},
			jobs.TypeEnrich:         {Soft: w.EnrichSoftTimeout, Hard: w.EnrichHardTimeout},
			jobs.TypeFullPipeline:   {Soft: w.PipelineSoftTimeout, Hard: w.PipelineHardTimeout},
		},
		DefaultTimeouts: jobs.Timeouts{Soft: w.ProcessSoftTimeout, Hard: w.ProcessHardTimeout},
	}, sink, log)
}

func registerHandlers(
	w *jobs.Worker,
	fetch *articles.Handlers,
	extract *extraction.Handlers,
	pipe *pipeline.Handlers,
	rollup *metrics.Handlers,
	maintenance *scheduler.Handlers,
) {
	fetch.Register(w)
	extract.Register(w)
	pipe.Register(w)
	rollup.Register(w)
	maintenance.Register(w)
}

func runWorker(lc fx.Lifecycle, w *jobs.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return w.Start(context.Background()) },
		OnStop:  func(ctx context.Context) error { return w.Stop(ctx) },
	})
}
