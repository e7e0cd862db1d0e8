package extraction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidentwire/incidentwire/pkg/llm"
)

// scriptedProvider pops queued responses in order and records every request
// it receives.
type scriptedProvider struct {
	name  string
	queue []*llm.Response
	calls []llm.Request
}

func (p *scriptedProvider) Name() string    { return p.name }
func (p *scriptedProvider) Available() bool { return true }

func (p *scriptedProvider) Call(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.calls = append(p.calls, req)
	if len(p.queue) == 0 {
		return nil, errors.New("scripted provider exhausted")
	}
	resp := p.queue[0]
	p.queue = p.queue[1:]
	return resp, nil
}

func stage1Response(text, stopReason string, outputTokens int) *llm.Response {
	return &llm.Response{
		Text:         text,
		StopReason:   stopReason,
		Provider:     "anthropic",
		Model:        "model-a",
		InputTokens:  100,
		OutputTokens: outputTokens,
		Latency:      20 * time.Millisecond,
	}
}

func stage1TestExtractor(p llm.Provider) *Stage1Extractor {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Stage1Extractor{
		router: llm.NewRouter(llm.RouterConfig{
			DefaultProvider: "anthropic",
			DefaultModel:    "model-a",
		}, log, p),
		log: log,
	}
}

// Cut off inside a classification hint string; repairs to two entities and
// one event.
const truncatedStage1 = `{"entities":[{"name":"Alice"},{"name":"ICE Denver"}],` +
	`"events":[{"summary":"arrest"}],"classification_hints":[{"domain_slug":"immigr`

const richStage1 = `{"entities":[{"name":"Alice"},{"name":"ICE Denver"},{"name":"DHS"}],` +
	`"events":[{"summary":"arrest"},{"summary":"protest"}],"extraction_confidence":0.8}`

const sparseStage1 = `{"entities":[{"name":"Alice"}],"events":[],"extraction_confidence":0.4}`

func TestExtractCleanResponse(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response(richStage1, "end_turn", 800),
	}}
	e := stage1TestExtractor(provider)

	data, resp, notes, err := e.extract(context.Background(), llm.Request{UserMessage: "article"})
	require.NoError(t, err)
	assert.Len(t, data.Entities, 3)
	assert.Len(t, data.Events, 2)
	assert.Empty(t, notes)
	assert.Equal(t, 800, resp.OutputTokens)
	assert.Len(t, provider.calls, 1)
}

func TestExtractTruncationRetryWins(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response(truncatedStage1, "max_tokens", 2048),
		stage1Response(richStage1, "end_turn", 900),
	}}
	e := stage1TestExtractor(provider)

	data, resp, notes, err := e.extract(context.Background(), llm.Request{
		UserMessage: "article",
		MaxTokens:   2048,
	})
	require.NoError(t, err)
	require.Len(t, provider.calls, 2)

	// Richer retry replaces the repaired partial without a truncation note.
	assert.Len(t, data.Entities, 3)
	assert.Len(t, data.Events, 2)
	assert.Empty(t, notes)
	assert.Equal(t, 900, resp.OutputTokens)

	// Retry doubles the budget and narrows the ask.
	retry := provider.calls[1]
	assert.Equal(t, 4096, retry.MaxTokens)
	assert.True(t, strings.HasPrefix(retry.UserMessage, "article"))
	assert.Contains(t, retry.UserMessage, "previous response was cut off")
}

func TestExtractTruncationKeepsRicherPartial(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response(truncatedStage1, "max_tokens", 12000),
		stage1Response(sparseStage1, "end_turn", 200),
	}}
	e := stage1TestExtractor(provider)

	data, resp, notes, err := e.extract(context.Background(), llm.Request{
		UserMessage: "article",
		MaxTokens:   12000,
	})
	require.NoError(t, err)
	require.Len(t, provider.calls, 2)

	// The repaired partial (3 items) beats the sparse retry (1 item), and the
	// stored notes flag the truncation.
	assert.Len(t, data.Entities, 2)
	assert.Len(t, data.Events, 1)
	assert.Equal(t, "[TRUNCATED] kept repaired partial after truncation", notes)
	assert.Equal(t, 12000, resp.OutputTokens)

	// Doubling 12000 exceeds the adaptive ceiling, so the retry is capped.
	assert.Equal(t, 16384, provider.calls[1].MaxTokens)
}

func TestExtractTruncationUnparseableRetry(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response(truncatedStage1, "max_tokens", 4096),
		stage1Response("I could not produce JSON this time.", "end_turn", 10),
	}}
	e := stage1TestExtractor(provider)

	data, _, notes, err := e.extract(context.Background(), llm.Request{UserMessage: "article"})
	require.NoError(t, err)
	assert.Len(t, data.Entities, 2)
	assert.Equal(t, "[TRUNCATED] kept repaired partial after truncation", notes)
}

func TestExtractTruncationUnrecovered(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response("garbled output with no braces", "max_tokens", 4096),
		stage1Response("still garbled", "max_tokens", 4096),
	}}
	e := stage1TestExtractor(provider)

	data, _, _, err := e.extract(context.Background(), llm.Request{UserMessage: "article"})
	require.Error(t, err)
	assert.Nil(t, data)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "truncation_unrecovered", llmErr.Code)
	assert.Equal(t, llm.CategoryPartial, llmErr.Category)
}

func TestExtractInvalidJSON(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", queue: []*llm.Response{
		stage1Response("no json here", "end_turn", 50),
	}}
	e := stage1TestExtractor(provider)

	_, _, _, err := e.extract(context.Background(), llm.Request{UserMessage: "article"})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, "invalid_json", llmErr.Code)
}
