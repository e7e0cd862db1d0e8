package schemas

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository handles database operations for extraction schemas. Reads go
// through a small read-mostly cache invalidated on writes.
type Repository struct {
	db  bun.IDB
	log *slog.Logger

	mu       sync.RWMutex
	cache    map[string][]*ExtractionSchema
	cachedAt time.Time
	cacheTTL time.Duration
}

// NewRepository creates a new schemas repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:       db,
		log:      log.With(logger.Scope("schemas.repo")),
		cache:    make(map[string][]*ExtractionSchema),
		cacheTTL: 30 * time.Second,
	}
}

// GetByID fetches one schema.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*ExtractionSchema, error) {
	schema := &ExtractionSchema{}
	err := r.db.NewSelect().
		Model(schema).
		Where("sch.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("schema not found")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return schema, nil
}

// ActiveStage1 returns the single active production stage1 schema.
func (r *Repository) ActiveStage1(ctx context.Context) (*ExtractionSchema, error) {
	rows, err := r.productionByType(ctx, TypeStage1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound("no active stage1 schema")
	}
	return rows[0], nil
}

// ProductionStage2 returns all active production stage2 schemas.
func (r *Repository) ProductionStage2(ctx context.Context) ([]*ExtractionSchema, error) {
	return r.productionByType(ctx, TypeStage2)
}

func (r *Repository) productionByType(ctx context.Context, schemaType string) ([]*ExtractionSchema, error) {
	r.mu.RLock()
	if cached, ok := r.cache[schemaType]; ok && time.Since(r.cachedAt) < r.cacheTTL {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	var out []*ExtractionSchema
	err := r.db.NewSelect().
		Model(&out).
		ColumnExpr("sch.*").
		ColumnExpr("dom.slug AS domain_slug").
		ColumnExpr("cat.slug AS category_slug").
		Join("LEFT JOIN event_domains AS dom ON dom.id = sch.domain_id").
		Join("LEFT JOIN event_categories AS cat ON cat.id = sch.category_id").
		Where("sch.schema_type = ?", schemaType).
		Where("sch.is_active = true").
		Where("sch.is_production = true").
		Order("sch.name ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list production schemas", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	r.mu.Lock()
	r.cache[schemaType] = out
	r.cachedAt = time.Now()
	r.mu.Unlock()
	return out, nil
}

// Invalidate drops the schema cache. Called after any schema write.
func (r *Repository) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string][]*ExtractionSchema)
	r.mu.Unlock()
}

// Deploy marks a schema as production, demoting any prior production row
// for the same (domain, category, schema_type) in one transaction.
func (r *Repository) Deploy(ctx context.Context, id uuid.UUID) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		schema := &ExtractionSchema{}
		if err := tx.NewSelect().Model(schema).Where("sch.id = ?", id).Scan(ctx); err != nil {
			return err
		}

		demote := tx.NewUpdate().
			Model((*ExtractionSchema)(nil)).
			Set("is_production = false").
			Set("updated_at = now()").
			Where("schema_type = ?", schema.SchemaType).
			Where("is_production = true").
			Where("id != ?", id)
		if schema.DomainID != nil {
			demote = demote.Where("domain_id = ?", *schema.DomainID)
		} else {
			demote = demote.Where("domain_id IS NULL")
		}
		if schema.CategoryID != nil {
			demote = demote.Where("category_id = ?", *schema.CategoryID)
		} else {
			demote = demote.Where("category_id IS NULL")
		}
		if _, err := demote.Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*ExtractionSchema)(nil)).
			Set("is_production = true").
			Set("is_active = true").
			Set("deployed_at = now()").
			Set("updated_at = now()").
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		r.log.Error("failed to deploy schema", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	r.Invalidate()
	return nil
}

// Rollback reactivates the previous version of a production schema and
// records the reason on the demoted row.
func (r *Repository) Rollback(ctx context.Context, id uuid.UUID, reason string) error {
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		schema := &ExtractionSchema{}
		if err := tx.NewSelect().Model(schema).Where("sch.id = ?", id).Scan(ctx); err != nil {
			return err
		}
		if schema.PreviousVersionID == nil {
			return apperror.NewBadRequest("schema has no previous version to roll back to")
		}

		if _, err := tx.NewUpdate().
			Model((*ExtractionSchema)(nil)).
			Set("is_production = false").
			Set("rollback_reason = ?", reason).
			Set("updated_at = now()").
			Where("id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*ExtractionSchema)(nil)).
			Set("is_production = true").
			Set("is_active = true").
			Set("deployed_at = now()").
			Set("updated_at = now()").
			Where("id = ?", *schema.PreviousVersionID).
			Exec(ctx)
		return err
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.ErrDatabase.WithInternal(err)
	}
	r.Invalidate()
	return nil
}
