package incidents

import "go.uber.org/fx"

var Module = fx.Module("incidents",
	fx.Provide(
		NewRepository,
		NewWriter,
	),
)
