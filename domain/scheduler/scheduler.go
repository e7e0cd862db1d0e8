// Package scheduler runs the beat: cron triggers that enqueue recurring
// jobs and light maintenance work.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/incidentwire/incidentwire/pkg/logger"
)

// TaskFunc is the signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// Per-tick budget. A trigger mostly just enqueues a job, so anything
// approaching this is stuck.
const taskTimeout = 10 * time.Minute

// Scheduler wraps robfig/cron with named, replaceable entries. Schedules
// use the six-field form with a leading seconds column.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	mu      sync.RWMutex
	tasks   map[string]cron.EntryID
	running bool
}

func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		log:   log.With(logger.Scope("scheduler")),
		tasks: map[string]cron.EntryID{},
	}
}

// Start begins firing triggers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.tasks)))
	return nil
}

// Stop waits for in-flight tasks, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
	s.running = false
	return nil
}

// AddCronTask registers a named task; an existing task with the same name
// is replaced.
func (s *Scheduler) AddCronTask(name, schedule string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runTask(name, task)
	})
	if err != nil {
		return err
	}
	s.tasks[name] = entryID
	s.log.Info("scheduled task",
		slog.String("name", name),
		slog.String("schedule", schedule))
	return nil
}

// AddIntervalTask registers a task on a fixed interval.
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration, task TaskFunc) error {
	return s.AddCronTask(name, "@every "+interval.String(), task)
}

// RemoveTask unschedules a task by name.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}
}

func (s *Scheduler) runTask(name string, task TaskFunc) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	if err := task(ctx); err != nil {
		s.log.Error("scheduled task failed",
			slog.String("name", name),
			slog.Duration("duration", time.Since(start)),
			logger.Error(err))
		return
	}
	s.log.Debug("scheduled task completed",
		slog.String("name", name),
		slog.Duration("duration", time.Since(start)))
}

// ListTasks returns the names of registered tasks.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

// TaskInfo describes a registered task's timing.
type TaskInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	PrevRun time.Time `json:"prevRun,omitempty"`
}

// GetTaskInfo reports next/previous fire times per task.
func (s *Scheduler) GetTaskInfo() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.cron.Entries()
	var info []TaskInfo
	for name, entryID := range s.tasks {
		for _, entry := range entries {
			if entry.ID == entryID {
				info = append(info, TaskInfo{Name: name, NextRun: entry.Next, PrevRun: entry.Prev})
				break
			}
		}
	}
	return info
}

// IsRunning reports whether the scheduler has started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
