package jobs

import (
	"time"

	"github.com/uptrace/bun"
)

// JSON is a dynamic bag persisted as jsonb.
type JSON map[string]any

// Status represents the state of a background job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a job in this status will never run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Well-known job types. Handlers are registered per type at worker startup.
const (
	TypeFetchArticles  = "fetch_articles"
	TypeProcessArticle = "process_article"
	TypeBatchExtract   = "batch_extract"
	TypeEnrich         = "enrich"
	TypeFullPipeline   = "full_pipeline"
	TypeMetricsRollup  = "metrics_rollup"
	TypeStaleSweep     = "stale_sweep"
	TypeViewRefresh    = "view_refresh"
)

// Queue names. Workers declare which queues they drain.
const (
	QueueFetch      = "fetch"
	QueueExtraction = "extraction"
	QueueEnrichment = "enrichment"
	QueueDefault    = "default"
)

// Job represents a durable work item in background_jobs.
type Job struct {
	bun.BaseModel `bun:"table:background_jobs,alias:bj"`

	ID           string     `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Type         string     `bun:"type,notnull"`
	Queue        string     `bun:"queue,notnull,default:'default'"`
	Status       Status     `bun:"status,notnull,default:'pending'"`
	Params       JSON       `bun:"params,type:jsonb,default:'{}'"`
	Progress     int        `bun:"progress,notnull,default:0"`
	Total        int        `bun:"total,notnull,default:0"`
	Message      *string    `bun:"message"`
	Error        *string    `bun:"error"`
	RetryCount   int        `bun:"retry_count,notnull,default:0"`
	MaxRetries   int        `bun:"max_retries,notnull,default:3"`
	WorkerTaskID *string    `bun:"worker_task_id"`
	ScheduledAt  time.Time  `bun:"scheduled_at,notnull,default:now()"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:now()"`
	StartedAt    *time.Time `bun:"started_at"`
	CompletedAt  *time.Time `bun:"completed_at"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:now()"`
}

// Result is returned by a job handler on success.
type Result struct {
	Message        string
	ItemsProcessed int
	Metadata       JSON
}

// RetryableError is implemented by errors that carry their own retry
// decision (LLM errors classify themselves at the provider boundary).
type RetryableError interface {
	error
	Retryable() bool
}
