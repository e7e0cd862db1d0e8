package llm

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name  string
	resp  *Response
	err   error
	calls []Request
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Available() bool  { return true }
func (f *fakeProvider) Call(_ context.Context, req Request) (*Response, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testRouter(cfg RouterConfig, providers ...Provider) *Router {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(cfg, log, providers...)
}

func TestRouterStageOverrides(t *testing.T) {
	r := testRouter(RouterConfig{
		DefaultProvider:  "anthropic",
		DefaultModel:     "model-a",
		DefaultMaxTokens: 4096,
		Stages: map[string]StageConfig{
			StageStage1: {Provider: "ollama", Model: "model-b", MaxTokens: 8192, Enabled: true},
			StageTriage: {Enabled: true},
		},
	})

	s1 := r.StageConfig(StageStage1)
	assert.Equal(t, "ollama", s1.Provider)
	assert.Equal(t, "model-b", s1.Model)
	assert.Equal(t, 8192, s1.MaxTokens)

	// Empty override fields fall through to defaults.
	triage := r.StageConfig(StageTriage)
	assert.Equal(t, "anthropic", triage.Provider)
	assert.Equal(t, "model-a", triage.Model)
	assert.Equal(t, 4096, triage.MaxTokens)

	unknown := r.StageConfig("nonexistent")
	assert.Equal(t, "anthropic", unknown.Provider)
	assert.True(t, unknown.Enabled)
}

func TestRouterCallUsesStageModel(t *testing.T) {
	p := &fakeProvider{name: "anthropic", resp: &Response{Text: "ok", Provider: "anthropic"}}
	r := testRouter(RouterConfig{
		DefaultProvider: "anthropic",
		DefaultModel:    "model-a",
		Stages: map[string]StageConfig{
			StageStage2: {Model: "model-c", MaxTokens: 2048, Enabled: true},
		},
	}, p)

	resp, err := r.Call(context.Background(), StageStage2, Request{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	require.Len(t, p.calls, 1)
	assert.Equal(t, "model-c", p.calls[0].Model)
	assert.Equal(t, 2048, p.calls[0].MaxTokens)
}

func TestRouterFallbackOnce(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: &httpStatusError{StatusCode: 500, Body: "boom"}}
	fallback := &fakeProvider{name: "ollama", resp: &Response{Text: "fallback ok", Provider: "ollama"}}

	r := testRouter(RouterConfig{
		DefaultProvider:  "anthropic",
		DefaultModel:     "model-a",
		FallbackProvider: "ollama",
		FallbackModel:    "model-local",
	}, primary, fallback)

	resp, err := r.Call(context.Background(), StageStage1, Request{UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "fallback ok", resp.Text)
	require.Len(t, fallback.calls, 1)
	assert.Equal(t, "model-local", fallback.calls[0].Model)
}

func TestRouterFallbackFailureReturnsOriginal(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: &httpStatusError{StatusCode: 500, Body: "primary boom"}}
	fallback := &fakeProvider{name: "ollama", err: &httpStatusError{StatusCode: 401, Body: "fallback boom"}}

	r := testRouter(RouterConfig{
		DefaultProvider:  "anthropic",
		FallbackProvider: "ollama",
	}, primary, fallback)

	_, err := r.Call(context.Background(), StageStage1, Request{UserMessage: "hi"})
	require.Error(t, err)

	classified := Classify("anthropic", err)
	assert.Equal(t, "server_error", classified.Code)
	assert.Equal(t, 500, classified.StatusCode)
}

func TestRouterNoFallbackWhenSameProvider(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", err: &httpStatusError{StatusCode: 429, Body: "slow down"}}
	r := testRouter(RouterConfig{
		DefaultProvider:  "anthropic",
		FallbackProvider: "anthropic",
	}, primary)

	_, err := r.Call(context.Background(), StageStage1, Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.Len(t, primary.calls, 1)
}

func TestRouterDisabledStage(t *testing.T) {
	r := testRouter(RouterConfig{
		DefaultProvider: "anthropic",
		Stages: map[string]StageConfig{
			StageRelevance: {Enabled: false},
		},
	})

	_, err := r.Call(context.Background(), StageRelevance, Request{UserMessage: "hi"})
	require.Error(t, err)
	classified := Classify("anthropic", err)
	assert.Equal(t, "stage_disabled", classified.Code)
	assert.Equal(t, CategoryPermanent, classified.Category)
}

func TestRouterUnknownProvider(t *testing.T) {
	r := testRouter(RouterConfig{DefaultProvider: "missing"})
	_, err := r.Call(context.Background(), StageStage1, Request{UserMessage: "hi"})
	require.Error(t, err)
	classified := Classify("missing", err)
	assert.Equal(t, CategoryPermanent, classified.Category)
}
