package articles

import "go.uber.org/fx"

var Module = fx.Module("articles",
	fx.Provide(
		NewRepository,
		NewHandlers,
	),
)
