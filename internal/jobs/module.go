package jobs

import (
	"log/slog"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
)

// Module provides the job store. Workers are constructed by the worker
// entrypoint, which registers handlers before starting the claim loop.
var Module = fx.Module("jobs",
	fx.Provide(
		func(db bun.IDB, log *slog.Logger) *Store {
			return NewStore(db, DefaultStoreConfig(), log)
		},
	),
)
