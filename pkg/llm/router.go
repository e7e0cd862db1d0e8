package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/incidentwire/incidentwire/pkg/logger"
)

// RouterConfig holds router defaults and per-stage overrides.
type RouterConfig struct {
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	FallbackModel    string
	DefaultMaxTokens int
	CallTimeout      time.Duration
	// Concurrency bounds parallel Stage 2 calls per article.
	Concurrency int
	Stages      map[string]StageConfig
}

// Router dispatches calls to providers, applying stage config and the
// fallback-once policy.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    RouterConfig
	log       *slog.Logger
}

// NewRouter creates a router over the given providers.
func NewRouter(config RouterConfig, log *slog.Logger, providers ...Provider) *Router {
	if config.DefaultMaxTokens == 0 {
		config.DefaultMaxTokens = 4096
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = 300 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}

	r := &Router{
		providers: make(map[string]Provider),
		config:    config,
		log:       log.With(logger.Scope("llm.router")),
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Concurrency returns the provider concurrency bound.
func (r *Router) Concurrency() int {
	return r.config.Concurrency
}

// RegisterProvider adds or replaces a provider at runtime.
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// StageConfig resolves the effective settings for a stage.
func (r *Router) StageConfig(stage string) StageConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg := StageConfig{
		Provider:  r.config.DefaultProvider,
		Model:     r.config.DefaultModel,
		MaxTokens: r.config.DefaultMaxTokens,
		Enabled:   true,
	}
	override, ok := r.config.Stages[stage]
	if !ok {
		return cfg
	}
	if override.Provider != "" {
		cfg.Provider = override.Provider
	}
	if override.Model != "" {
		cfg.Model = override.Model
	}
	if override.MaxTokens > 0 {
		cfg.MaxTokens = override.MaxTokens
	}
	cfg.Enabled = override.Enabled
	return cfg
}

// Call dispatches to the request's stage provider, falling back once if a
// different fallback is configured. When the fallback also fails, the
// original error is returned.
func (r *Router) Call(ctx context.Context, stage string, req Request) (*Response, error) {
	cfg := r.StageConfig(stage)
	if !cfg.Enabled {
		return nil, &Error{
			Category: CategoryPermanent,
			Code:     "stage_disabled",
			Message:  fmt.Sprintf("llm stage %q is disabled", stage),
			Provider: cfg.Provider,
		}
	}

	primary := cfg.Provider
	if req.Provider != "" {
		primary = req.Provider
	}
	if req.Model == "" {
		req.Model = cfg.Model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = cfg.MaxTokens
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	defer cancel()

	resp, primaryErr := r.callProvider(callCtx, primary, req)
	if primaryErr == nil {
		return resp, nil
	}

	fbProvider := r.config.FallbackProvider
	if fbProvider == "" || fbProvider == primary {
		return nil, primaryErr
	}

	r.log.Warn("primary provider failed, trying fallback",
		slog.String("stage", stage),
		slog.String("primary", primary),
		slog.String("fallback", fbProvider),
		logger.Error(primaryErr))

	fbReq := req
	if r.config.FallbackModel != "" {
		fbReq.Model = r.config.FallbackModel
	}

	resp, fbErr := r.callProvider(callCtx, fbProvider, fbReq)
	if fbErr != nil {
		// Surface the original failure for classification and breaker logic.
		return nil, primaryErr
	}
	return resp, nil
}

func (r *Router) callProvider(ctx context.Context, name string, req Request) (*Response, error) {
	r.mu.RLock()
	provider, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &Error{
			Category: CategoryPermanent,
			Code:     "invalid_request",
			Message:  fmt.Sprintf("unknown llm provider %q", name),
			Provider: name,
		}
	}

	resp, err := provider.Call(ctx, req)
	if err != nil {
		return nil, Classify(name, err)
	}

	r.log.Debug("llm call completed",
		slog.String("provider", resp.Provider),
		slog.String("model", resp.Model),
		slog.String("stop_reason", resp.StopReason),
		slog.Int("input_tokens", resp.InputTokens),
		slog.Int("output_tokens", resp.OutputTokens),
		slog.Duration("latency", resp.Latency))

	return resp, nil
}
