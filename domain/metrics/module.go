package metrics

import (
	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/internal/jobs"
)

var Module = fx.Module("metrics",
	fx.Provide(
		NewRecorder,
		NewRollup,
		NewHandlers,
		func(r *Recorder) jobs.MetricSink { return r },
	),
)
