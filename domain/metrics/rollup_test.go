package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStart(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025-06-01T10:00:00Z", "2025-06-01T10:00:00Z"},
		{"2025-06-01T10:04:59Z", "2025-06-01T10:00:00Z"},
		{"2025-06-01T10:05:00Z", "2025-06-01T10:05:00Z"},
		{"2025-06-01T10:07:30Z", "2025-06-01T10:05:00Z"},
		{"2025-06-01T10:59:59Z", "2025-06-01T10:55:00Z"},
	}
	for _, tt := range tests {
		in, err := time.Parse(time.RFC3339, tt.in)
		require.NoError(t, err)
		want, err := time.Parse(time.RFC3339, tt.want)
		require.NoError(t, err)
		assert.Equal(t, want, BucketStart(in), "BucketStart(%s)", tt.in)
	}
}

func metric(task, status string, completed string, durationMs int64, items int) *TaskMetric {
	t, _ := time.Parse(time.RFC3339, completed)
	return &TaskMetric{
		TaskName:       task,
		Status:         status,
		StartedAt:      t.Add(-time.Duration(durationMs) * time.Millisecond),
		CompletedAt:    t,
		DurationMs:     durationMs,
		ItemsProcessed: items,
	}
}

func TestAggregateBuckets(t *testing.T) {
	raw := []*TaskMetric{
		metric("batch_extract", "completed", "2025-06-01T10:01:00Z", 100, 5),
		metric("batch_extract", "completed", "2025-06-01T10:03:00Z", 200, 3),
		metric("batch_extract", "failed", "2025-06-01T10:04:00Z", 300, 0),
		metric("batch_extract", "completed", "2025-06-01T10:06:00Z", 400, 2),
		metric("metrics_rollup", "completed", "2025-06-01T10:02:00Z", 50, 1),
	}

	aggs := aggregate(raw)
	require.Len(t, aggs, 3)

	byKey := map[string]*TaskMetricAggregate{}
	for _, a := range aggs {
		byKey[a.TaskName+"/"+a.PeriodStart.Format(time.RFC3339)] = a
	}

	first := byKey["batch_extract/2025-06-01T10:00:00Z"]
	require.NotNil(t, first)
	assert.Equal(t, 3, first.TotalRuns)
	assert.Equal(t, 2, first.Successful)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, int64(8), first.ItemsProcessed)
	assert.InDelta(t, 200.0, first.AvgDurationMs, 0.001)
	assert.Equal(t, 300.0, first.P95DurationMs)
	assert.Equal(t, "2025-06-01T10:05:00Z", first.PeriodEnd.Format(time.RFC3339))

	second := byKey["batch_extract/2025-06-01T10:05:00Z"]
	require.NotNil(t, second)
	assert.Equal(t, 1, second.TotalRuns)

	other := byKey["metrics_rollup/2025-06-01T10:00:00Z"]
	require.NotNil(t, other)
	assert.Equal(t, 1, other.TotalRuns)
}

func TestAggregateIdempotent(t *testing.T) {
	raw := []*TaskMetric{
		metric("enrich", "completed", "2025-06-01T12:01:00Z", 120, 4),
		metric("enrich", "failed", "2025-06-01T12:02:00Z", 240, 0),
	}

	a := aggregate(raw)
	b := aggregate(raw)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0], b[0])
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, 100.0, percentile(values, 0.95))
	assert.Equal(t, 50.0, percentile(values, 0.5))
	assert.Zero(t, percentile(nil, 0.95))

	assert.Equal(t, 42.0, percentile([]float64{42}, 0.95))
}
