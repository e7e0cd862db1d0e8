package monitoring

import "go.uber.org/fx"

var Module = fx.Module("monitoring",
	fx.Provide(
		NewCollector,
		NewRegistry,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
