package schemas

import "go.uber.org/fx"

var Module = fx.Module("schemas",
	fx.Provide(NewRepository),
)
