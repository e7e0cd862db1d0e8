package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/articles"
)

// StageContext carries the article and the data accumulated by earlier
// stages through one pipeline run.
type StageContext struct {
	Article        *articles.Article
	IncidentTypeID *uuid.UUID
	Data           map[string]any
}

// StageResult is one stage's verdict. Data entries are merged into the
// stage context on continue.
type StageResult struct {
	Outcome string
	Reason  string
	Data    map[string]any
	Err     error
}

// Continue passes data to later stages.
func Continue(data map[string]any) StageResult {
	return StageResult{Outcome: OutcomeContinue, Data: data}
}

// Skip ends the run early, e.g. for a duplicate.
func Skip(reason string) StageResult {
	return StageResult{Outcome: OutcomeSkip, Reason: reason}
}

// Reject ends the run with a rejected final decision.
func Reject(reason string) StageResult {
	return StageResult{Outcome: OutcomeReject, Reason: reason}
}

// Fail records a stage error; the pipeline continues.
func Fail(err error) StageResult {
	return StageResult{Outcome: OutcomeError, Err: err}
}

// StageFunc is the stage contract.
type StageFunc func(ctx context.Context, sc *StageContext, config map[string]any) StageResult

// Registry maps stage slugs to their implementations.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]StageFunc
}

func NewRegistry() *Registry {
	return &Registry{stages: map[string]StageFunc{}}
}

// Register binds a slug to its implementation. Later registrations win.
func (r *Registry) Register(slug string, fn StageFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[slug] = fn
}

func (r *Registry) get(slug string) (StageFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.stages[slug]
	return fn, ok
}

// Slugs lists registered stages in sorted order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stages))
	for slug := range r.stages {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
