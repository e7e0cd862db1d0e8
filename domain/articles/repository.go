package articles

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository handles database operations for articles and sources
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new articles repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("articles.repo")),
	}
}

// GetByID fetches one article.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	article := &Article{}
	err := r.db.NewSelect().
		Model(article).
		Where("art.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("article not found")
		}
		r.log.Error("failed to get article", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return article, nil
}

// GetBySourceURL fetches an article by its unique source URL, or nil.
func (r *Repository) GetBySourceURL(ctx context.Context, sourceURL string) (*Article, error) {
	article := &Article{}
	err := r.db.NewSelect().
		Model(article).
		Where("art.source_url = ?", sourceURL).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return article, nil
}

// Upsert inserts a fetched article, ignoring URL and content-hash
// collisions. Returns true when a new row was written.
func (r *Repository) Upsert(ctx context.Context, article *Article) (bool, error) {
	if article.Status == "" {
		article.Status = StatusPending
	}
	res, err := r.db.NewInsert().
		Model(article).
		On("CONFLICT (source_url) DO NOTHING").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to upsert article", logger.Error(err))
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListByStatus returns articles in a status, oldest fetched first.
func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*Article
	err := r.db.NewSelect().
		Model(&out).
		Where("art.status = ?", status).
		Order("art.fetched_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// SetStatus transitions an article's lifecycle status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.db.NewUpdate().
		Model((*Article)(nil)).
		Set("status = ?", status).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// RecordExtractionError increments the error counter and stores the latest
// classified failure on the article.
func (r *Repository) RecordExtractionError(ctx context.Context, id uuid.UUID, message, category string) error {
	_, err := r.db.NewUpdate().
		Model((*Article)(nil)).
		Set("extraction_error_count = extraction_error_count + 1").
		Set("last_extraction_error = ?", message).
		Set("last_extraction_error_at = ?", time.Now()).
		Set("extraction_error_category = ?", category).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// SetExtracted stores the merged extraction result and advances the status.
func (r *Repository) SetExtracted(ctx context.Context, id uuid.UUID, extracted map[string]any) error {
	_, err := r.db.NewUpdate().
		Model((*Article)(nil)).
		Set("extracted_data = ?", extracted).
		Set("status = ?", StatusExtracted).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListActiveSources returns sources eligible for fetching.
func (r *Repository) ListActiveSources(ctx context.Context) ([]*Source, error) {
	var out []*Source
	err := r.db.NewSelect().
		Model(&out).
		Where("src.is_active = true").
		Order("src.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}
