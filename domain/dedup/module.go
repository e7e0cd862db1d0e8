package dedup

import "go.uber.org/fx"

var Module = fx.Module("dedup",
	fx.Provide(
		NewDetector,
		NewCrossSourceDetector,
	),
)
