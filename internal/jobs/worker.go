package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/pkg/logger"
)

// ErrSoftTimeout is the cancel cause delivered to a handler when its soft
// timeout elapses. The handler observes it at its next suspension point;
// the hard timeout terminates the attempt regardless.
var ErrSoftTimeout = errors.New("job soft timeout exceeded")

// ProgressFunc reports handler progress at suspension points.
type ProgressFunc func(current, total int, message string)

// HandlerFunc processes one job. The worker wrapper owns the status
// transitions and metric recording around it.
type HandlerFunc func(ctx context.Context, job *Job, progress ProgressFunc) (*Result, error)

// Timeouts holds the soft/hard deadline pair for a job type.
type Timeouts struct {
	Soft time.Duration
	Hard time.Duration
}

// TaskMetricRecord is what the worker hands to the metric sink per run.
type TaskMetricRecord struct {
	JobID          string
	TaskName       string
	Queue          string
	Status         string
	StartedAt      time.Time
	CompletedAt    time.Time
	ItemsProcessed int
	Error          string
	Metadata       JSON
}

// MetricSink records per-run task metrics. Implemented by domain/metrics.
type MetricSink interface {
	RecordTaskMetric(ctx context.Context, rec TaskMetricRecord) error
}

// WorkerConfig configures a worker instance.
type WorkerConfig struct {
	// ID identifies this worker in worker_task_id claims. Defaults to a
	// fresh uuid per process.
	ID string
	// Queues this worker drains, in priority order
	Queues []string
	// PollInterval between empty claims
	PollInterval time.Duration
	// Timeouts per job type; types without an entry get DefaultTimeouts
	Timeouts map[string]Timeouts
	// DefaultTimeouts applies to unlisted job types
	DefaultTimeouts Timeouts
}

// Worker claims jobs from the store and runs registered handlers. One job
// runs at a time per worker; handler hygiene (connections, clients) is
// per-attempt.
type Worker struct {
	store    *Store
	config   WorkerConfig
	log      *slog.Logger
	metrics  MetricSink
	handlers map[string]HandlerFunc

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWorker creates a worker bound to the given queues.
func NewWorker(store *Store, config WorkerConfig, metrics MetricSink, log *slog.Logger) *Worker {
	if config.ID == "" {
		config.ID = "worker-" + uuid.NewString()
	}
	if len(config.Queues) == 0 {
		config.Queues = []string{QueueDefault}
	}
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.DefaultTimeouts.Hard == 0 {
		config.DefaultTimeouts = Timeouts{Soft: 600 * time.Second, Hard: 720 * time.Second}
	}

	return &Worker{
		store:    store,
		config:   config,
		metrics:  metrics,
		log:      log.With(logger.Scope("jobs.worker"), slog.String("worker_id", config.ID)),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a job type. Not safe after Start.
func (w *Worker) Register(jobType string, handler HandlerFunc) {
	w.handlers[jobType] = handler
}

// ID returns the worker's claim identity.
func (w *Worker) ID() string {
	return w.config.ID
}

// Start begins the claim loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.mu.Unlock()

	w.log.Info("worker starting",
		slog.Any("queues", w.config.Queues),
		slog.Duration("poll_interval", w.config.PollInterval))

	go w.run(ctx)
	return nil
}

// Stop gracefully stops the worker, waiting for the current job.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	select {
	case <-w.stoppedCh:
		w.log.Info("worker stopped gracefully")
	case <-ctx.Done():
		w.log.Warn("worker stop timeout, forcing shutdown")
	}
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain until the queues are empty, then wait for the next tick.
			for {
				claimed, err := w.processNext(ctx)
				if err != nil {
					w.log.Warn("process job failed", logger.Error(err))
					break
				}
				if !claimed {
					break
				}
				select {
				case <-w.stopCh:
					return
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// processNext claims and runs one job. Returns whether a job was claimed.
func (w *Worker) processNext(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNext(ctx, w.config.ID, w.config.Queues)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.runJob(ctx, job)
	return true, nil
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	log := w.log.With(slog.String("job_id", job.ID), slog.String("type", job.Type))

	handler, ok := w.handlers[job.Type]
	if !ok {
		log.Error("no handler registered for job type")
		_ = w.store.Fail(ctx, job.ID, fmt.Sprintf("no handler registered for job type %q", job.Type))
		return
	}

	timeouts, ok := w.config.Timeouts[job.Type]
	if !ok {
		timeouts = w.config.DefaultTimeouts
	}

	startedAt := time.Now().UTC()
	log.Info("job started", slog.Int("retry_count", job.RetryCount))

	result, err := w.invoke(ctx, job, handler, timeouts)

	rec := TaskMetricRecord{
		JobID:       job.ID,
		TaskName:    job.Type,
		Queue:       job.Queue,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}

	switch {
	case errors.Is(err, errHardTimeout):
		// Leave the job row untouched; the watchdog reclaims it.
		rec.Status = "failed"
		rec.Error = err.Error()
		log.Error("job hard timeout, abandoning attempt", slog.Duration("hard", timeouts.Hard))

	case err != nil:
		rec.Status = "failed"
		rec.Error = err.Error()
		w.settleFailure(ctx, job, err, log)

	default:
		rec.Status = "completed"
		if result != nil {
			rec.ItemsProcessed = result.ItemsProcessed
			rec.Metadata = result.Metadata
		}
		message := ""
		if result != nil {
			message = result.Message
		}
		if cerr := w.store.Complete(ctx, job.ID, message); cerr != nil {
			log.Error("mark completed failed", logger.Error(cerr))
		}
		log.Info("job completed",
			slog.Duration("duration", rec.CompletedAt.Sub(startedAt)),
			slog.Int("items", rec.ItemsProcessed))
	}

	if w.metrics != nil {
		if merr := w.metrics.RecordTaskMetric(ctx, rec); merr != nil {
			log.Warn("record task metric failed", logger.Error(merr))
		}
	}
}

var errHardTimeout = errors.New("job hard timeout exceeded")

// invoke runs the handler under the soft/hard timeout pair. The soft
// timeout cancels the handler context with ErrSoftTimeout; the hard timeout
// abandons the attempt entirely.
func (w *Worker) invoke(ctx context.Context, job *Job, handler HandlerFunc, timeouts Timeouts) (*Result, error) {
	handlerCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if timeouts.Soft > 0 {
		softTimer := time.AfterFunc(timeouts.Soft, func() {
			cancel(ErrSoftTimeout)
		})
		defer softTimer.Stop()
	}

	progress := func(current, total int, message string) {
		if perr := w.store.ReportProgress(ctx, job.ID, current, total, message); perr != nil {
			w.log.Debug("report progress failed", logger.Error(perr))
		}
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := handler(handlerCtx, job, progress)
		if err != nil && context.Cause(handlerCtx) == ErrSoftTimeout {
			err = fmt.Errorf("%w: %v", ErrSoftTimeout, err)
		}
		done <- outcome{result, err}
	}()

	var hardCh <-chan time.Time
	if timeouts.Hard > 0 {
		hardTimer := time.NewTimer(timeouts.Hard)
		defer hardTimer.Stop()
		hardCh = hardTimer.C
	}

	select {
	case out := <-done:
		return out.result, out.err
	case <-hardCh:
		return nil, errHardTimeout
	}
}

// settleFailure decides retry vs fail based on the error's own retryability
// and the job's retry budget.
func (w *Worker) settleFailure(ctx context.Context, job *Job, err error, log *slog.Logger) {
	retryable := true
	var re RetryableError
	if errors.As(err, &re) {
		retryable = re.Retryable()
	}

	if retryable && job.RetryCount < job.MaxRetries {
		attempt := job.RetryCount + 1
		if rerr := w.store.ScheduleRetry(ctx, job.ID, attempt, err.Error()); rerr != nil {
			log.Error("schedule retry failed", logger.Error(rerr))
		}
		log.Warn("job failed, retry scheduled",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", job.MaxRetries),
			logger.Error(err))
		return
	}

	if ferr := w.store.Fail(ctx, job.ID, err.Error()); ferr != nil {
		log.Error("mark failed failed", logger.Error(ferr))
	}
	log.Error("job failed permanently", logger.Error(err))
}
