package extraction

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository handles database operations for extraction rows
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new extraction repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("extraction.repo")),
	}
}

// GetStage1ByID fetches a Stage 1 row.
func (r *Repository) GetStage1ByID(ctx context.Context, id uuid.UUID) (*ArticleExtraction, error) {
	row := &ArticleExtraction{}
	err := r.db.NewSelect().
		Model(row).
		Where("aex.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("stage1 extraction not found")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row, nil
}

// LatestCompletedStage1 returns the most recent completed Stage 1 row for
// an article, or nil.
func (r *Repository) LatestCompletedStage1(ctx context.Context, articleID uuid.UUID) (*ArticleExtraction, error) {
	row := &ArticleExtraction{}
	err := r.db.NewSelect().
		Model(row).
		Where("aex.article_id = ?", articleID).
		Where("aex.status = ?", StatusCompleted).
		Order("aex.created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row, nil
}

// InsertStage1 writes a pending Stage 1 row.
func (r *Repository) InsertStage1(ctx context.Context, row *ArticleExtraction) error {
	if row.Status == "" {
		row.Status = StatusPending
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		r.log.Error("failed to insert stage1 row", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FinalizeStage1 completes a Stage 1 row and updates the owning article's
// latest_extraction_id and pipeline marker in the same transaction.
func (r *Repository) FinalizeStage1(ctx context.Context, row *ArticleExtraction) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		row.Status = StatusCompleted
		if _, err := tx.NewUpdate().
			Model(row).
			Column("extraction_data", "entity_count", "event_count", "overall_confidence",
				"status", "provider", "model", "input_tokens", "output_tokens",
				"latency_ms", "extraction_notes").
			Set("updated_at = now()").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*articles.Article)(nil)).
			Set("latest_extraction_id = ?", row.ID).
			Set("extraction_pipeline = ?", articles.PipelineTwoStage).
			Set("updated_at = now()").
			Where("id = ?", row.ArticleID).
			Exec(ctx)
		return err
	})
	if err != nil {
		r.log.Error("failed to finalize stage1 row", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FailStage1 marks a Stage 1 row failed with the classified error message.
func (r *Repository) FailStage1(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.NewUpdate().
		Model((*ArticleExtraction)(nil)).
		Set("status = ?", StatusFailed).
		Set("error = ?", message).
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// InsertStage2 writes a Stage 2 result, superseding any prior live row for
// the same (extraction, schema) pair in the same transaction.
func (r *Repository) InsertStage2(ctx context.Context, row *SchemaExtractionResult) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*SchemaExtractionResult)(nil)).
			Set("status = ?", StatusSuperseded).
			Set("updated_at = now()").
			Where("article_extraction_id = ?", row.ArticleExtractionID).
			Where("schema_id = ?", row.SchemaID).
			Where("status != ?", StatusSuperseded).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		r.log.Error("failed to insert stage2 row", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListStage2 returns the live Stage 2 rows for a Stage 1 extraction.
func (r *Repository) ListStage2(ctx context.Context, extractionID uuid.UUID) ([]*SchemaExtractionResult, error) {
	var out []*SchemaExtractionResult
	err := r.db.NewSelect().
		Model(&out).
		Where("ser.article_extraction_id = ?", extractionID).
		Where("ser.status != ?", StatusSuperseded).
		Order("ser.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}
