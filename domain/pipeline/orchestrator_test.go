package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentwire/incidentwire/domain/articles"
)

type staticStages struct {
	stages []*Stage
}

func (s *staticStages) ActiveStages(context.Context, *uuid.UUID) ([]*Stage, error) {
	return s.stages, nil
}

func testOrchestrator(registry *Registry, stages ...*Stage) *Orchestrator {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewOrchestrator(&staticStages{stages: stages}, registry, log)
}

func stage(slug string, order int) *Stage {
	return &Stage{ID: uuid.New(), Slug: slug, Name: slug, DefaultOrder: order, IsActive: true}
}

func testArticle() *articles.Article {
	return &articles.Article{ID: uuid.New(), SourceURL: "https://example.com/a"}
}

func TestExecuteRunsStagesInOrder(t *testing.T) {
	registry := NewRegistry()
	var order []string
	for _, slug := range []string{"first", "second", "third"} {
		slug := slug
		registry.Register(slug, func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
			order = append(order, slug)
			return Continue(nil)
		})
	}

	o := testOrchestrator(registry, stage("first", 10), stage("second", 20), stage("third", 30))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Stages, 3)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, DecisionCompleted, res.FinalDecision)
}

func TestExecuteSkipBreaksEarly(t *testing.T) {
	registry := NewRegistry()
	registry.Register("dup", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		return Skip("duplicate")
	})
	ran := false
	registry.Register("later", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		ran = true
		return Continue(nil)
	})

	o := testOrchestrator(registry, stage("dup", 10), stage("later", 20))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionSkipped, res.FinalDecision)
	assert.False(t, ran)
	assert.Len(t, res.Stages, 1)
}

func TestExecuteRejectSetsFinalDecision(t *testing.T) {
	registry := NewRegistry()
	registry.Register("approval", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		return Reject("below threshold")
	})

	o := testOrchestrator(registry, stage("approval", 10))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DecisionRejected, res.FinalDecision)
	assert.Equal(t, "below threshold", res.Stages[0].Reason)
}

func TestExecuteErrorContinues(t *testing.T) {
	registry := NewRegistry()
	registry.Register("broken", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		return Fail(errors.New("boom"))
	})
	ran := false
	registry.Register("after", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		ran = true
		return Continue(nil)
	})

	o := testOrchestrator(registry, stage("broken", 10), stage("after", 20))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "boom", res.Stages[0].Error)
	assert.Equal(t, DecisionCompleted, res.FinalDecision)
}

func TestExecuteDataFlowsBetweenStages(t *testing.T) {
	registry := NewRegistry()
	registry.Register("producer", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		return Continue(map[string]any{"decision": "auto_approve"})
	})
	var seen string
	registry.Register("consumer", func(_ context.Context, sc *StageContext, _ map[string]any) StageResult {
		seen, _ = sc.Data["decision"].(string)
		return Continue(nil)
	})

	o := testOrchestrator(registry, stage("producer", 10), stage("consumer", 20))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "auto_approve", seen)
	assert.Equal(t, DecisionApproved, res.FinalDecision)
}

func TestExecuteSkipStagesParam(t *testing.T) {
	registry := NewRegistry()
	ran := false
	registry.Register("skippable", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		ran = true
		return Continue(nil)
	})

	o := testOrchestrator(registry, stage("skippable", 10))
	res, err := o.Execute(context.Background(), testArticle(), nil, []string{"skippable"})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, res.Stages)
}

func TestExecuteUnregisteredStageIgnored(t *testing.T) {
	registry := NewRegistry()
	o := testOrchestrator(registry, stage("ghost", 10))
	res, err := o.Execute(context.Background(), testArticle(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Stages)
	assert.Equal(t, DecisionCompleted, res.FinalDecision)
}

func TestExecuteBatchSequential(t *testing.T) {
	registry := NewRegistry()
	registry.Register("approve", func(_ context.Context, sc *StageContext, _ map[string]any) StageResult {
		if sc.Article.SourceURL == "https://example.com/reject" {
			return Reject("nope")
		}
		return Continue(map[string]any{"decision": "auto_approve"})
	})

	o := testOrchestrator(registry, stage("approve", 10))
	batch := []*articles.Article{
		{ID: uuid.New(), SourceURL: "https://example.com/a"},
		{ID: uuid.New(), SourceURL: "https://example.com/reject"},
		{ID: uuid.New(), SourceURL: "https://example.com/b"},
	}

	summary, err := o.ExecuteBatch(context.Background(), batch, nil, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Approved)
	assert.Equal(t, 1, summary.Rejected)
	assert.Zero(t, summary.Skipped)
}

func TestExecuteBatchConcurrent(t *testing.T) {
	registry := NewRegistry()
	registry.Register("approve", func(_ context.Context, _ *StageContext, _ map[string]any) StageResult {
		return Continue(map[string]any{"decision": "auto_approve"})
	})

	o := testOrchestrator(registry, stage("approve", 10))
	batch := make([]*articles.Article, 10)
	for i := range batch {
		batch[i] = testArticle()
	}

	summary, err := o.ExecuteBatch(context.Background(), batch, nil, BatchOptions{Concurrency: 4})
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Approved)
}

func TestApplyOverrides(t *testing.T) {
	a := stage("a", 10)
	b := stage("b", 20)
	inactive := false
	newOrder := 5

	out := applyOverrides([]*Stage{a, b}, []*StageOverride{
		{StageID: a.ID, IsActive: &inactive},
		{StageID: b.ID, ExecutionOrder: &newOrder},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Slug)
	assert.Equal(t, 5, out[0].Order())
}
