package taxonomy

import "go.uber.org/fx"

var Module = fx.Module("taxonomy",
	fx.Provide(NewRepository),
)
