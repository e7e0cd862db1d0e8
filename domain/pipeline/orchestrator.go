package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// StageRun records one stage's outcome within a run.
type StageRun struct {
	Slug    string `json:"slug"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is one article's pipeline outcome.
type Result struct {
	ArticleID     uuid.UUID      `json:"articleId"`
	FinalDecision string         `json:"finalDecision"`
	Stages        []StageRun     `json:"stages"`
	Data          map[string]any `json:"data,omitempty"`
}

// BatchSummary accumulates outcomes across a batch run.
type BatchSummary struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// BatchOptions controls batch pacing: a per-article delay when sequential,
// or a concurrency bound when parallel.
type BatchOptions struct {
	Delay       time.Duration
	Concurrency int
}

// StageSource loads the active stage sequence. Satisfied by *Repository.
type StageSource interface {
	ActiveStages(ctx context.Context, incidentTypeID *uuid.UUID) ([]*Stage, error)
}

// Orchestrator drives registered stages over articles.
type Orchestrator struct {
	stages   StageSource
	registry *Registry
	log      *slog.Logger
}

func NewOrchestrator(stages StageSource, registry *Registry, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		stages:   stages,
		registry: registry,
		log:      log.With(logger.Scope("pipeline")),
	}
}

// Execute runs the configured stages for one article. A skip outcome ends
// the run early; reject sets the rejected decision; stage errors are
// logged and the pipeline moves on.
func (o *Orchestrator) Execute(ctx context.Context, article *articles.Article, incidentTypeID *uuid.UUID, skipStages []string) (*Result, error) {
	stages, err := o.stages.ActiveStages(ctx, incidentTypeID)
	if err != nil {
		return nil, err
	}

	skip := map[string]bool{}
	for _, slug := range skipStages {
		skip[slug] = true
	}

	sc := &StageContext{
		Article:        article,
		IncidentTypeID: incidentTypeID,
		Data:           map[string]any{},
	}
	result := &Result{ArticleID: article.ID, FinalDecision: DecisionCompleted}

	for _, stage := range stages {
		if skip[stage.Slug] {
			continue
		}
		fn, ok := o.registry.get(stage.Slug)
		if !ok {
			o.log.Warn("no handler registered for stage", slog.String("stage", stage.Slug))
			continue
		}

		res := fn(ctx, sc, stage.Config)
		run := StageRun{Slug: stage.Slug, Outcome: res.Outcome, Reason: res.Reason}

		switch res.Outcome {
		case OutcomeContinue:
			for k, v := range res.Data {
				sc.Data[k] = v
			}
		case OutcomeSkip:
			result.FinalDecision = DecisionSkipped
		case OutcomeReject:
			result.FinalDecision = DecisionRejected
		case OutcomeError:
			if res.Err != nil {
				run.Error = res.Err.Error()
			}
			o.log.Error("stage failed",
				slog.String("stage", stage.Slug),
				slog.String("article_id", article.ID.String()),
				logger.Error(res.Err))
		}

		result.Stages = append(result.Stages, run)
		if res.Outcome == OutcomeSkip || res.Outcome == OutcomeReject {
			break
		}
	}

	if result.FinalDecision == DecisionCompleted {
		if decision, _ := sc.Data["decision"].(string); decision == "auto_approve" {
			result.FinalDecision = DecisionApproved
		}
	}
	result.Data = sc.Data
	return result, nil
}

// ExecuteBatch processes articles sequentially with a delay, or under a
// bounded worker group when a concurrency limit is set.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, batch []*articles.Article, incidentTypeID *uuid.UUID, opts BatchOptions) (*BatchSummary, error) {
	summary := &BatchSummary{}

	if opts.Concurrency > 1 {
		results := make([]*Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i, article := range batch {
			i, article := i, article
			g.Go(func() error {
				res, err := o.Execute(gctx, article, incidentTypeID, nil)
				if err != nil {
					o.log.Error("pipeline run failed",
						slog.String("article_id", article.ID.String()),
						logger.Error(err))
					return nil
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return summary, err
		}
		for _, res := range results {
			summary.record(res)
		}
		return summary, nil
	}

	for i, article := range batch {
		if i > 0 && opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
		res, err := o.Execute(ctx, article, incidentTypeID, nil)
		if err != nil {
			o.log.Error("pipeline run failed",
				slog.String("article_id", article.ID.String()),
				logger.Error(err))
			summary.Errors++
			continue
		}
		summary.record(res)
	}
	return summary, nil
}

func (s *BatchSummary) record(res *Result) {
	if res == nil {
		s.Errors++
		return
	}
	switch res.FinalDecision {
	case DecisionApproved:
		s.Approved++
	case DecisionRejected:
		s.Rejected++
	case DecisionSkipped:
		s.Skipped++
	}
	for _, run := range res.Stages {
		if run.Outcome == OutcomeError {
			s.Errors++
		}
	}
}
