package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the beat scheduler. Only the beat process should invoke
// the lifecycle; workers use HandlersModule instead.
var Module = fx.Module("scheduler",
	fx.Provide(
		NewScheduler,
		NewTriggers,
		NewHandlers,
	),
	fx.Invoke(registerLifecycle),
)

// HandlersModule provides the maintenance job handlers without the beat
// lifecycle, for worker processes.
var HandlersModule = fx.Module("scheduler-handlers",
	fx.Provide(NewHandlers),
)

func registerLifecycle(lc fx.Lifecycle, s *Scheduler, triggers *Triggers) error {
	if err := triggers.Register(s); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return s.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return s.Stop(ctx) },
	})
	return nil
}
