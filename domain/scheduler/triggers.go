package scheduler

import (
	"context"
	"log/slog"

	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Daily, off-peak.
const terminalPurgeCron = "0 30 3 * * *"

// Triggers wires the beat schedule: each trigger enqueues a job for the
// worker pool rather than doing the work in-process, so a crashed beat
// never loses work mid-flight. Terminal purge is the exception; it is a
// single bounded DELETE.
type Triggers struct {
	store *jobs.Store
	cfg   *config.Config
	log   *slog.Logger
}

func NewTriggers(store *jobs.Store, cfg *config.Config, log *slog.Logger) *Triggers {
	return &Triggers{
		store: store,
		cfg:   cfg,
		log:   log.With(logger.Scope("scheduler.triggers")),
	}
}

// Register installs the beat schedule on the scheduler.
func (t *Triggers) Register(s *Scheduler) error {
	schedule := t.cfg.Scheduler

	entries := []struct {
		name string
		cron string
		task TaskFunc
	}{
		{"fetch_articles", schedule.FetchCron, t.enqueue(jobs.TypeFetchArticles, jobs.QueueFetch)},
		{"stale_sweep", schedule.StaleSweepCron, t.enqueue(jobs.TypeStaleSweep, jobs.QueueDefault)},
		{"metrics_rollup", schedule.MetricsRollupCron, t.enqueue(jobs.TypeMetricsRollup, jobs.QueueDefault)},
		{"view_refresh", schedule.ViewRefreshCron, t.enqueue(jobs.TypeViewRefresh, jobs.QueueDefault)},
		{"terminal_purge", terminalPurgeCron, t.purgeTerminal},
	}

	for _, entry := range entries {
		if err := s.AddCronTask(entry.name, entry.cron, entry.task); err != nil {
			return err
		}
	}
	return nil
}

// enqueue returns a trigger that creates one pending job, skipping when an
// identical job is already waiting or running.
func (t *Triggers) enqueue(jobType, queue string) TaskFunc {
	return func(ctx context.Context) error {
		pending, err := t.store.List(ctx, jobs.StatusPending, queue, 50)
		if err != nil {
			return err
		}
		for _, job := range pending {
			if job.Type == jobType {
				t.log.Debug("skipping trigger, job already pending",
					slog.String("type", jobType))
				return nil
			}
		}

		jobID, err := t.store.Enqueue(ctx, jobType, queue, nil)
		if err != nil {
			return err
		}
		t.log.Debug("trigger enqueued job",
			slog.String("type", jobType),
			slog.String("job_id", jobID))
		return nil
	}
}

func (t *Triggers) purgeTerminal(ctx context.Context) error {
	n, err := t.store.PurgeTerminal(ctx, t.cfg.Scheduler.TerminalJobMaxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		t.log.Info("purged terminal jobs", slog.Int("count", n))
	}
	return nil
}
