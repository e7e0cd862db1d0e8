package actors

import "go.uber.org/fx"

var Module = fx.Module("actors",
	fx.Provide(NewRepository),
)
