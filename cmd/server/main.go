// Package main starts the ops/admin HTTP server: health probes, the jobs
// admin API, monitoring endpoints, and the Prometheus scrape target.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/incidentwire/incidentwire/domain/monitoring"
	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/database"
	"github.com/incidentwire/incidentwire/internal/jobs"
	"github.com/incidentwire/incidentwire/internal/server"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

func main() {
	// Load .env files if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
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

		server.Module,
		monitoring.Module,
	).Run()
}
