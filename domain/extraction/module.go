package extraction

import "go.uber.org/fx"

var Module = fx.Module("extraction",
	fx.Provide(
		NewRepository,
		NewStage1Extractor,
		NewStage2Router,
		NewService,
		NewHandlers,
	),
)
