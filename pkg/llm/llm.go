// Package llm routes model calls across providers with per-stage
// configuration, fallback, error classification, and batch circuit breaking.
package llm

import (
	"context"
	"time"
)

// Provider names recognized by the router.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// Pipeline stages with independent provider/model/max_tokens settings.
const (
	StageTriage              = "triage"
	StageStage1              = "stage1"
	StageStage2              = "stage2"
	StageRelevance           = "relevance_ai"
	StageEnrichmentReextract = "enrichment_reextract"
)

// Request is a single model call. Provider and Model, when set, override
// the stage configuration.
type Request struct {
	System      string
	UserMessage string
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Response is the unified response shape returned regardless of provider.
type Response struct {
	Text         string
	StopReason   string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Truncated reports whether the model stopped because it ran out of output
// budget.
func (r *Response) Truncated() bool {
	return r.StopReason == "max_tokens" || r.StopReason == "length"
}

// Provider is a hot-swappable model backend.
type Provider interface {
	Name() string
	// Available reports whether the provider is configured and reachable
	// enough to attempt a call.
	Available() bool
	Call(ctx context.Context, req Request) (*Response, error)
}

// StageConfig overrides router defaults for one pipeline stage.
type StageConfig struct {
	Provider  string
	Model     string
	MaxTokens int
	Enabled   bool
}
