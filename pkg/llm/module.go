package llm

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/internal/config"
)

var Module = fx.Module("llm",
	fx.Provide(NewRouterFromConfig),
)

// NewRouterFromConfig wires both providers and the router from app config.
func NewRouterFromConfig(cfg *config.Config, log *slog.Logger) *Router {
	anthropic := NewAnthropicProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.RequestsPerMin)
	ollama := NewOllamaProvider(cfg.LLM.OllamaBaseURL, cfg.LLM.CallTimeout)

	return NewRouter(RouterConfig{
		DefaultProvider:  cfg.LLM.DefaultProvider,
		DefaultModel:     cfg.LLM.DefaultModel,
		FallbackProvider: cfg.LLM.FallbackProvider,
		FallbackModel:    cfg.LLM.FallbackModel,
		DefaultMaxTokens: cfg.LLM.DefaultMaxTokens,
		CallTimeout:      cfg.LLM.CallTimeout,
		Concurrency:      cfg.LLM.Concurrency,
		Stages: map[string]StageConfig{
			StageTriage:              stageConfig(cfg.LLM.Triage),
			StageStage1:              stageConfig(cfg.LLM.Stage1),
			StageStage2:              stageConfig(cfg.LLM.Stage2),
			StageRelevance:           stageConfig(cfg.LLM.RelevanceAI),
			StageEnrichmentReextract: stageConfig(cfg.LLM.EnrichmentReextract),
		},
	}, log, anthropic, ollama)
}

func stageConfig(o config.StageOverride) StageConfig {
	return StageConfig{
		Provider:  o.Provider,
		Model:     o.Model,
		MaxTokens: o.MaxTokens,
		Enabled:   o.Enabled,
	}
}
