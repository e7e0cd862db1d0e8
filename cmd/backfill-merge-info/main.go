// Package main backfills incidents.merge_info from the source article's
// stored extraction payload for rows written before merge provenance was
// recorded.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

type backfillRow struct {
	IncidentID string          `bun:"incident_id"`
	ArticleID  string          `bun:"article_id"`
	MergeInfo  json.RawMessage `bun:"merge_info"`
}

func main() {
	var (
		batchSize int
		apply     bool
	)

	flag.IntVar(&batchSize, "batch", 200, "Incidents per batch")
	flag.BoolVar(&apply, "apply", false, "Write changes (default is dry run)")
	flag.Parse()

	_ = godotenv.Load(".env")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if !apply {
		log.Info("DRY RUN mode, pass -apply to write changes")
	}

	db := openDB()
	defer db.Close()

	ctx := context.Background()

	updated := 0
	skipped := 0
	for {
		var rows []backfillRow
		err := db.NewRaw(`
			SELECT i.id AS incident_id, isrc.article_id,
			       art.extracted_data -> 'merge_info' AS merge_info
			FROM incidents i
			JOIN incident_sources isrc ON isrc.incident_id = i.id
			JOIN ingested_articles art ON art.id = isrc.article_id
			WHERE i.merge_info IS NULL
			ORDER BY i.created_at ASC
			LIMIT ?`, batchSize).Scan(ctx, &rows)
		if err != nil {
			log.Error("select failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if len(rows) == 0 {
			break
		}

		batchUpdated := 0
		for _, row := range rows {
			if len(row.MergeInfo) == 0 || string(row.MergeInfo) == "null" {
				skipped++
				continue
			}

			if !apply {
				log.Info("would backfill",
					slog.String("incident_id", row.IncidentID),
					slog.String("article_id", row.ArticleID))
				updated++
				batchUpdated++
				continue
			}

			_, err := db.NewUpdate().
				Table("incidents").
				Set("merge_info = ?::jsonb", string(row.MergeInfo)).
				Set("updated_at = now()").
				Where("id = ?", row.IncidentID).
				Where("merge_info IS NULL").
				Exec(ctx)
			if err != nil {
				log.Error("update failed",
					slog.String("incident_id", row.IncidentID),
					slog.String("error", err.Error()))
				os.Exit(1)
			}
			updated++
			batchUpdated++
		}

		// Dry runs never shrink the NULL set, so one batch is enough. Live
		// runs that only skipped rows are done too.
		if !apply || batchUpdated == 0 {
			if !apply && len(rows) == batchSize {
				log.Info("more rows remain beyond this batch")
			}
			break
		}
	}

	log.Info("done",
		slog.Int("updated", updated),
		slog.Int("skipped_no_merge_info", skipped),
		slog.Bool("applied", apply))
}

func openDB() *bun.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getEnv("POSTGRES_HOST", "localhost")
		port := getEnv("POSTGRES_PORT", "5432")
		user := getEnv("POSTGRES_USER", "incidentwire")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := getEnv("POSTGRES_DB", "incidentwire")
		ssl := getEnv("POSTGRES_SSL_MODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, name, ssl)
	}

	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening database: %v\n", err)
		os.Exit(1)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
