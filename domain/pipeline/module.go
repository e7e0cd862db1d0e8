package pipeline

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/domain/approval"
	"github.com/incidentwire/incidentwire/domain/dedup"
	"github.com/incidentwire/incidentwire/domain/extraction"
	"github.com/incidentwire/incidentwire/domain/incidents"
)

var Module = fx.Module("pipeline",
	fx.Provide(
		NewRepository,
		NewRegistry,
		NewHandlers,
		func(repo *Repository, registry *Registry, log *slog.Logger) *Orchestrator {
			return NewOrchestrator(repo, registry, log)
		},
	),
	fx.Invoke(func(
		registry *Registry,
		extractionSvc *extraction.Service,
		crossSource *dedup.CrossSourceDetector,
		decider *approval.Decider,
		writer *incidents.Writer,
	) {
		RegisterDefaultStages(registry, StageDeps{
			Extraction: extractionSvc,
			Dedup:      crossSource,
			Approval:   decider,
			Writer:     writer,
		})
	}),
)
