package metrics

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

const bucketSize = 5 * time.Minute

// Rollup folds raw task metrics into 5-minute aggregate buckets.
type Rollup struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRollup(db bun.IDB, log *slog.Logger) *Rollup {
	return &Rollup{
		db:  db,
		log: log.With(logger.Scope("metrics.rollup")),
	}
}

// Run aggregates raw rows newer than the latest aggregated period into
// buckets and upserts them. Re-running without new raw rows is a no-op.
func (r *Rollup) Run(ctx context.Context) (int, error) {
	since, err := r.latestPeriodEnd(ctx)
	if err != nil {
		return 0, err
	}

	var raw []*TaskMetric
	err = r.db.NewSelect().
		Model(&raw).
		Where("tm.completed_at > ?", since).
		OrderExpr("tm.completed_at ASC").
		Scan(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	if len(raw) == 0 {
		return 0, nil
	}

	aggregates := aggregate(raw)
	for _, agg := range aggregates {
		_, err := r.db.NewInsert().
			Model(agg).
			On("CONFLICT (period_start, task_name) DO UPDATE SET "+
				"period_end = EXCLUDED.period_end, "+
				"total_runs = EXCLUDED.total_runs, "+
				"successful = EXCLUDED.successful, "+
				"failed = EXCLUDED.failed, "+
				"avg_duration_ms = EXCLUDED.avg_duration_ms, "+
				"p95_duration_ms = EXCLUDED.p95_duration_ms, "+
				"items_processed = EXCLUDED.items_processed").
			Exec(ctx)
		if err != nil {
			return 0, apperror.ErrDatabase.WithInternal(err)
		}
	}

	r.log.Info("metrics rollup complete",
		slog.Int("raw_rows", len(raw)),
		slog.Int("buckets", len(aggregates)))
	return len(aggregates), nil
}

func (r *Rollup) latestPeriodEnd(ctx context.Context) (time.Time, error) {
	var latest time.Time
	err := r.db.NewSelect().
		Model((*TaskMetricAggregate)(nil)).
		ColumnExpr("COALESCE(MAX(period_end), 'epoch'::timestamptz)").
		Scan(ctx, &latest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, apperror.ErrDatabase.WithInternal(err)
	}
	return latest, nil
}

// BucketStart truncates a completion time to its 5-minute bucket: the top
// of the hour plus 5 minutes times the floored minute group.
func BucketStart(t time.Time) time.Time {
	t = t.UTC()
	hour := t.Truncate(time.Hour)
	return hour.Add(bucketSize * time.Duration(t.Minute()/5))
}

type bucketKey struct {
	start time.Time
	task  string
}

func aggregate(raw []*TaskMetric) []*TaskMetricAggregate {
	groups := map[bucketKey][]*TaskMetric{}
	var order []bucketKey
	for _, row := range raw {
		key := bucketKey{start: BucketStart(row.CompletedAt), task: row.TaskName}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]*TaskMetricAggregate, 0, len(order))
	for _, key := range order {
		rows := groups[key]
		agg := &TaskMetricAggregate{
			PeriodStart: key.start,
			PeriodEnd:   key.start.Add(bucketSize),
			TaskName:    key.task,
			TotalRuns:   len(rows),
		}
		durations := make([]float64, 0, len(rows))
		var durationSum float64
		for _, row := range rows {
			if row.Status == "completed" {
				agg.Successful++
			} else {
				agg.Failed++
			}
			agg.ItemsProcessed += int64(row.ItemsProcessed)
			durations = append(durations, float64(row.DurationMs))
			durationSum += float64(row.DurationMs)
		}
		agg.AvgDurationMs = durationSum / float64(len(rows))
		agg.P95DurationMs = percentile(durations, 0.95)
		out = append(out, agg)
	}
	return out
}

// percentile uses nearest-rank on a sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
