// Package jobs provides the PostgreSQL-backed durable job store and the
// polling worker that drains it.
//
// The store keeps the queue patterns proven elsewhere in this codebase's
// lineage:
//   - Atomic claim with FOR UPDATE SKIP LOCKED
//   - Exponential backoff for retries
//   - Stale job recovery via a watchdog sweep
//   - Queue statistics
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/logger"
)

// StoreConfig contains tuning for the job store
type StoreConfig struct {
	// DefaultMaxRetries applies when Enqueue is not given a retry budget
	DefaultMaxRetries int
	// BaseRetryDelaySec is the base delay in seconds for retries
	BaseRetryDelaySec int
	// MaxRetryDelaySec caps the retry delay
	MaxRetryDelaySec int
}

// DefaultStoreConfig returns a StoreConfig with sensible defaults
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DefaultMaxRetries: 3,
		BaseRetryDelaySec: 60,
		MaxRetryDelaySec:  3600,
	}
}

// Store owns the background_jobs table. Exactly one worker may transition a
// row from pending to running at a time; the watchdog is the only other
// writer, and only after the stale interval has elapsed.
type Store struct {
	db     bun.IDB
	config StoreConfig
	log    *slog.Logger
}

// NewStore creates a job store
func NewStore(db bun.IDB, config StoreConfig, log *slog.Logger) *Store {
	if config.DefaultMaxRetries == 0 {
		config.DefaultMaxRetries = 3
	}
	if config.BaseRetryDelaySec == 0 {
		config.BaseRetryDelaySec = 60
	}
	if config.MaxRetryDelaySec == 0 {
		config.MaxRetryDelaySec = 3600
	}
	return &Store{
		db:     db,
		config: config,
		log:    log.With(logger.Scope("jobs.store")),
	}
}

// Enqueue creates a pending job and returns its id.
func (s *Store) Enqueue(ctx context.Context, jobType, queue string, params JSON) (string, error) {
	if queue == "" {
		queue = QueueDefault
	}
	if params == nil {
		params = JSON{}
	}

	job := &Job{
		Type:       jobType,
		Queue:      queue,
		Status:     StatusPending,
		Params:     params,
		MaxRetries: s.config.DefaultMaxRetries,
	}

	if _, err := s.db.NewInsert().Model(job).Returning("id").Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}

	s.log.Debug("job enqueued",
		slog.String("job_id", job.ID),
		slog.String("type", jobType),
		slog.String("queue", queue))

	return job.ID, nil
}

// ClaimNext atomically claims the next pending job on the given queues for
// workerID. Returns nil when no job is available.
//
// The claim CTE is strategic SQL that the query builder cannot express:
//
//	WITH cte AS (
//	  SELECT id FROM background_jobs
//	  WHERE status='pending' AND queue IN (...) AND scheduled_at <= now()
//	  ORDER BY scheduled_at ASC
//	  FOR UPDATE SKIP LOCKED
//	  LIMIT 1
//	)
//	UPDATE background_jobs SET status='running', worker_task_id=$1, ...
//	FROM cte ... RETURNING *
//
// A job is owned only once status=running AND worker_task_id is set; both
// happen in this single UPDATE.
func (s *Store) ClaimNext(ctx context.Context, workerID string, queues []string) (*Job, error) {
	if len(queues) == 0 {
		queues = []string{QueueDefault}
	}

	job := &Job{}
	err := s.db.NewRaw(`
		WITH cte AS (
			SELECT id FROM background_jobs
			WHERE status = 'pending'
			  AND queue IN (?)
			  AND scheduled_at <= now()
			ORDER BY scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE background_jobs bj
		SET status = 'running',
		    worker_task_id = ?,
		    started_at = now(),
		    updated_at = now()
		FROM cte WHERE bj.id = cte.id
		RETURNING bj.*`,
		bun.In(queues), workerID,
	).Scan(ctx, job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	return job, nil
}

// ReportProgress updates the job's progress counters and message.
func (s *Store) ReportProgress(ctx context.Context, jobID string, current, total int, message string) error {
	_, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("progress = ?", current).
		Set("total = ?", total).
		Set("message = ?", message).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("status = ?", StatusRunning).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("report progress: %w", err)
	}
	return nil
}

// Complete marks a job completed.
func (s *Store) Complete(ctx context.Context, jobID, message string) error {
	_, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusCompleted).
		Set("message = ?", message).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// Fail marks a job failed with its error message.
func (s *Store) Fail(ctx context.Context, jobID, errMsg string) error {
	_, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusFailed).
		Set("error = ?", truncateError(errMsg)).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// ScheduleRetry requeues a job with exponential backoff: base * attempt²,
// capped at MaxRetryDelaySec.
func (s *Store) ScheduleRetry(ctx context.Context, jobID string, attempt int, errMsg string) error {
	delay := math.Min(
		float64(s.config.MaxRetryDelaySec),
		float64(s.config.BaseRetryDelaySec)*float64(attempt)*float64(attempt),
	)

	_, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusPending).
		Set("retry_count = ?", attempt).
		Set("error = ?", truncateError(errMsg)).
		Set("worker_task_id = NULL").
		Set("started_at = NULL").
		Set("scheduled_at = now() + (? || ' seconds')::interval", fmt.Sprintf("%d", int(delay))).
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	s.log.Debug("job scheduled for retry",
		slog.String("job_id", jobID),
		slog.Int("attempt", attempt),
		slog.Duration("delay", time.Duration(delay)*time.Second))

	return nil
}

// Cancel transitions a job to cancelled. Cancelled jobs never retry.
func (s *Store) Cancel(ctx context.Context, jobID string) error {
	res, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusCancelled).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("status IN (?)", bun.In([]Status{StatusPending, StatusRunning})).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cancel job: job %s is not pending or running", jobID)
	}
	return nil
}

// RetryFailed requeues a failed job immediately with a fresh retry budget.
// Manual operator action; running and pending jobs are left alone.
func (s *Store) RetryFailed(ctx context.Context, jobID string) error {
	res, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusPending).
		Set("retry_count = 0").
		Set("error = NULL").
		Set("worker_task_id = NULL").
		Set("started_at = NULL").
		Set("completed_at = NULL").
		Set("scheduled_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Where("status = ?", StatusFailed).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("retry job: job %s is not failed", jobID)
	}
	return nil
}

// WatchdogSweep reclaims running jobs whose started_at predates the stale
// timeout. Jobs with retry budget left go back to pending with retry_count
// incremented and worker_task_id cleared, in one UPDATE; exhausted jobs are
// failed with a crash reason. Returns (requeued, failed).
func (s *Store) WatchdogSweep(ctx context.Context, staleTimeout time.Duration) (int, int, error) {
	secs := int(staleTimeout.Seconds())

	requeued, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusPending).
		Set("retry_count = retry_count + 1").
		Set("worker_task_id = NULL").
		Set("started_at = NULL").
		Set("scheduled_at = now()").
		Set("updated_at = now()").
		Where("status = ?", StatusRunning).
		Where("started_at < now() - (? || ' seconds')::interval", fmt.Sprintf("%d", secs)).
		Where("retry_count < max_retries").
		Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("watchdog requeue: %w", err)
	}

	failed, err := s.db.NewUpdate().
		Model((*Job)(nil)).
		Set("status = ?", StatusFailed).
		Set("error = ?", "worker crash detected (stale timeout)").
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("status = ?", StatusRunning).
		Where("started_at < now() - (? || ' seconds')::interval", fmt.Sprintf("%d", secs)).
		Where("retry_count >= max_retries").
		Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("watchdog fail: %w", err)
	}

	nRequeued, _ := requeued.RowsAffected()
	nFailed, _ := failed.RowsAffected()

	if nRequeued > 0 || nFailed > 0 {
		s.log.Warn("watchdog reclaimed stale jobs",
			slog.Int64("requeued", nRequeued),
			slog.Int64("failed", nFailed),
			slog.Duration("stale_timeout", staleTimeout))
	}

	return int(nRequeued), int(nFailed), nil
}

// PurgeTerminal deletes terminal jobs older than maxAge. Terminal rows are
// retained 30 days by default (see scheduler config).
func (s *Store) PurgeTerminal(ctx context.Context, maxAge time.Duration) (int, error) {
	res, err := s.db.NewDelete().
		Model((*Job)(nil)).
		Where("status IN (?)", bun.In([]Status{StatusCompleted, StatusFailed, StatusCancelled})).
		Where("completed_at < now() - (? || ' seconds')::interval", fmt.Sprintf("%d", int(maxAge.Seconds()))).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge terminal jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetByID retrieves a job by id. Returns nil if not found.
func (s *Store) GetByID(ctx context.Context, jobID string) (*Job, error) {
	job := &Job{}
	err := s.db.NewSelect().Model(job).Where("id = ?", jobID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs ordered newest-first, optionally filtered by status and queue.
func (s *Store) List(ctx context.Context, status Status, queue string, limit int) ([]*Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.NewSelect().Model((*[]*Job)(nil)).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if queue != "" {
		q = q.Where("queue = ?", queue)
	}
	var out []*Job
	if err := q.Model(&out).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

// Stats represents queue statistics
type Stats struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// GetStats returns counts by status, optionally restricted to one queue.
func (s *Store) GetStats(ctx context.Context, queue string) (*Stats, error) {
	q := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'running') AS running,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM background_jobs`
	args := []any{}
	if queue != "" {
		q += ` WHERE queue = ?`
		args = append(args, queue)
	}

	stats := &Stats{}
	err := s.db.NewRaw(q, args...).Scan(ctx, &stats.Pending, &stats.Running, &stats.Completed, &stats.Failed, &stats.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

// truncateError truncates an error message to 500 characters
func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
