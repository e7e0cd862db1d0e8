// Package main runs database migrations and exits.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/incidentwire/incidentwire/internal/config"
	"github.com/incidentwire/incidentwire/internal/database"
	"github.com/incidentwire/incidentwire/internal/migrate"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

func main() {
	down := flag.Bool("down", false, "Roll back the last migration instead of migrating up")
	flag.Parse()

	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	var exitCode int
	app := fx.New(
		fx.NopLogger,
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		fx.Invoke(func(m *migrate.Migrator, log *slog.Logger, shutdowner fx.Shutdowner) {
			ctx := context.Background()
			var err error
			if *down {
				err = m.Down(ctx)
			} else {
				err = m.Up(ctx)
			}
			if err != nil {
				log.Error("migration failed", logger.Error(err))
				exitCode = 1
			}
			_ = shutdowner.Shutdown()
		}),
	)
	app.Run()
	os.Exit(exitCode)
}
