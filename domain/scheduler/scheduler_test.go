package scheduler

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewScheduler(log)
}

func TestNewSchedulerNotRunning(t *testing.T) {
	s := newTestScheduler()
	assert.False(t, s.IsRunning())
	assert.Empty(t, s.ListTasks())
}

func TestAddCronTask(t *testing.T) {
	s := newTestScheduler()
	err := s.AddCronTask("sweep", "0 */15 * * * *", func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep"}, s.ListTasks())
}

func TestAddCronTaskInvalidSchedule(t *testing.T) {
	s := newTestScheduler()
	err := s.AddCronTask("bad", "not a schedule", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Empty(t, s.ListTasks())
}

func TestAddCronTaskReplacesExisting(t *testing.T) {
	s := newTestScheduler()
	task := func(context.Context) error { return nil }

	require.NoError(t, s.AddCronTask("rollup", "0 */5 * * * *", task))
	require.NoError(t, s.AddCronTask("rollup", "0 */10 * * * *", task))
	assert.Len(t, s.ListTasks(), 1)
}

func TestAddIntervalTask(t *testing.T) {
	s := newTestScheduler()
	err := s.AddIntervalTask("purge", 15*time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"purge"}, s.ListTasks())
}

func TestRemoveTask(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddIntervalTask("gone", time.Hour, func(context.Context) error { return nil }))
	s.RemoveTask("gone")
	assert.Empty(t, s.ListTasks())
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	// Start is idempotent.
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestGetTaskInfo(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddCronTask("fetch", "0 0 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.AddIntervalTask("sweep", 15*time.Minute, func(context.Context) error { return nil }))

	info := s.GetTaskInfo()
	require.Len(t, info, 2)
	names := map[string]bool{}
	for _, ti := range info {
		names[ti.Name] = true
	}
	assert.True(t, names["fetch"])
	assert.True(t, names["sweep"])
}
