package metrics

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Recorder persists raw task metrics. It is the worker's MetricSink.
type Recorder struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRecorder(db bun.IDB, log *slog.Logger) *Recorder {
	return &Recorder{
		db:  db,
		log: log.With(logger.Scope("metrics.recorder")),
	}
}

// RecordTaskMetric writes one raw measurement row.
func (r *Recorder) RecordTaskMetric(ctx context.Context, rec jobs.TaskMetricRecord) error {
	row := &TaskMetric{
		TaskName:       rec.TaskName,
		Queue:          rec.Queue,
		Status:         rec.Status,
		StartedAt:      rec.StartedAt,
		CompletedAt:    rec.CompletedAt,
		DurationMs:     rec.CompletedAt.Sub(rec.StartedAt).Milliseconds(),
		ItemsProcessed: rec.ItemsProcessed,
		Metadata:       rec.Metadata,
	}
	if rec.JobID != "" {
		if id, err := uuid.Parse(rec.JobID); err == nil {
			row.JobID = &id
		}
	}
	if rec.Error != "" {
		row.Error = &rec.Error
	}
	if row.Metadata == nil {
		row.Metadata = map[string]any{}
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}
