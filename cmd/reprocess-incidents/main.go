// Package main re-enqueues pipeline jobs for existing incidents, used after
// prompt or schema changes to re-run extraction and approval on the source
// articles.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/incidentwire/incidentwire/internal/jobs"
)

func main() {
	var (
		status   string
		category string
		since    string
		limit    int
		dryRun   bool
	)

	flag.StringVar(&status, "status", "needs_review", "Curation status to reprocess")
	flag.StringVar(&category, "category", "", "Filter to one category (crime, enforcement)")
	flag.StringVar(&since, "since", "", "Only incidents created on or after this date (YYYY-MM-DD)")
	flag.IntVar(&limit, "limit", 500, "Maximum incidents to reprocess")
	flag.BoolVar(&dryRun, "dry-run", true, "Print what would be enqueued without writing")
	flag.Parse()

	_ = godotenv.Load(".env")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if dryRun {
		log.Info("DRY RUN mode enabled, no jobs will be enqueued")
	}

	db := openDB()
	defer db.Close()

	ctx := context.Background()

	q := db.NewSelect().
		TableExpr("incidents AS i").
		Join("JOIN incident_sources AS isrc ON isrc.incident_id = i.id").
		ColumnExpr("i.id AS incident_id").
		ColumnExpr("isrc.article_id AS article_id").
		Where("i.curation_status = ?", status).
		OrderExpr("i.created_at ASC").
		Limit(limit)
	if category != "" {
		q = q.Where("i.category = ?", category)
	}
	if since != "" {
		q = q.Where("i.created_at >= ?::date", since)
	}

	var rows []struct {
		IncidentID string `bun:"incident_id"`
		ArticleID  string `bun:"article_id"`
	}
	if err := q.Scan(ctx, &rows); err != nil {
		log.Error("select incidents failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(rows) == 0 {
		log.Info("nothing to reprocess", slog.String("status", status))
		return
	}

	store := jobs.NewStore(db, jobs.DefaultStoreConfig(), log)

	seen := map[string]bool{}
	enqueued := 0
	for _, row := range rows {
		if seen[row.ArticleID] {
			continue
		}
		seen[row.ArticleID] = true

		if dryRun {
			log.Info("would enqueue",
				slog.String("incident_id", row.IncidentID),
				slog.String("article_id", row.ArticleID))
			enqueued++
			continue
		}

		jobID, err := store.Enqueue(ctx, jobs.TypeFullPipeline, jobs.QueueExtraction, jobs.JSON{
			"article_id": row.ArticleID,
			"force":      true,
		})
		if err != nil {
			log.Error("enqueue failed",
				slog.String("article_id", row.ArticleID),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("enqueued",
			slog.String("job_id", jobID),
			slog.String("article_id", row.ArticleID))
		enqueued++
	}

	log.Info("done",
		slog.Int("incidents", len(rows)),
		slog.Int("jobs", enqueued),
		slog.Bool("dry_run", dryRun))
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
