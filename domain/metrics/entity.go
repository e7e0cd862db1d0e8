// Package metrics records per-run task metrics and rolls them up into
// 5-minute aggregates.
package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TaskMetric is one raw job-run measurement.
type TaskMetric struct {
	bun.BaseModel `bun:"table:task_metrics,alias:tm"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	JobID          *uuid.UUID     `bun:"job_id,type:uuid" json:"jobId,omitempty"`
	TaskName       string         `bun:"task_name,notnull" json:"taskName"`
	Queue          string         `bun:"queue,notnull" json:"queue"`
	Status         string         `bun:"status,notnull" json:"status"`
	StartedAt      time.Time      `bun:"started_at,notnull" json:"startedAt"`
	CompletedAt    time.Time      `bun:"completed_at,notnull" json:"completedAt"`
	DurationMs     int64          `bun:"duration_ms,notnull" json:"durationMs"`
	ItemsProcessed int            `bun:"items_processed,notnull" json:"itemsProcessed"`
	Error          *string        `bun:"error" json:"error,omitempty"`
	Metadata       map[string]any `bun:"metadata,type:jsonb" json:"metadata"`
}

// TaskMetricAggregate is one 5-minute bucket for one task.
type TaskMetricAggregate struct {
	bun.BaseModel `bun:"table:task_metrics_aggregate,alias:tma"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	PeriodStart    time.Time `bun:"period_start,notnull" json:"periodStart"`
	PeriodEnd      time.Time `bun:"period_end,notnull" json:"periodEnd"`
	TaskName       string    `bun:"task_name,notnull" json:"taskName"`
	TotalRuns      int       `bun:"total_runs,notnull" json:"totalRuns"`
	Successful     int       `bun:"successful,notnull" json:"successful"`
	Failed         int       `bun:"failed,notnull" json:"failed"`
	AvgDurationMs  float64   `bun:"avg_duration_ms,notnull" json:"avgDurationMs"`
	P95DurationMs  float64   `bun:"p95_duration_ms,notnull" json:"p95DurationMs"`
	ItemsProcessed int64     `bun:"items_processed,notnull" json:"itemsProcessed"`
}
