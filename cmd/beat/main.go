// Package main starts the beat process: cron triggers that enqueue
// periodic jobs. Exactly one beat instance should run per deployment.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/incidentwire/incidentwire/domain/scheduler"
	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/database"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		logger.Module,
		config.Module,
		database.Module,
		jobs.Module,

		scheduler.Module,
	).Run()
}
