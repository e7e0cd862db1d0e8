package actors

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository handles database operations for actors
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new actors repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("actors.repo")),
	}
}

// GetByID fetches one actor, merged or not.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Actor, error) {
	actor := &Actor{}
	err := r.db.NewSelect().
		Model(actor).
		Where("act.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("actor not found")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return actor, nil
}

// FindByName locates a live actor by case-insensitive canonical name or
// alias match. Merged actors are never returned.
func (r *Repository) FindByName(ctx context.Context, name string) (*Actor, error) {
	actor := &Actor{}
	err := r.db.NewSelect().
		Model(actor).
		Where("act.is_merged = false").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("lower(act.canonical_name) = lower(?)", name).
				WhereOr("EXISTS (SELECT 1 FROM jsonb_array_elements_text(act.aliases) AS alias WHERE lower(alias) = lower(?))", name)
		}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return actor, nil
}

// FindOrCreate returns the live actor for a name, creating it when absent.
// Returns the actor and whether it was created.
func (r *Repository) FindOrCreate(ctx context.Context, name, actorType string) (*Actor, bool, error) {
	existing, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	actor := &Actor{
		CanonicalName: name,
		ActorType:     actorType,
		Aliases:       []string{},
		ExternalIDs:   map[string]any{},
		MergedFrom:    []string{},
	}
	if _, err := r.db.NewInsert().Model(actor).Exec(ctx); err != nil {
		r.log.Error("failed to create actor", logger.Error(err))
		return nil, false, apperror.ErrDatabase.WithInternal(err)
	}
	return actor, true, nil
}

// List returns live actors, optionally filtered by type.
func (r *Repository) List(ctx context.Context, actorType string, limit, offset int) ([]*Actor, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*Actor
	q := r.db.NewSelect().
		Model(&out).
		Where("act.is_merged = false").
		Order("act.canonical_name ASC").
		Limit(limit).
		Offset(offset)
	if actorType != "" {
		q = q.Where("act.actor_type = ?", actorType)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// Update persists mutable actor fields.
func (r *Repository) Update(ctx context.Context, actor *Actor) error {
	_, err := r.db.NewUpdate().
		Model(actor).
		Column("canonical_name", "aliases", "immigration_status", "prior_deportations",
			"nationality", "gender", "external_ids", "jurisdiction").
		Set("updated_at = now()").
		WherePK().
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// RoleTypeID resolves a role slug to its vocabulary row id, creating the
// row when missing.
func (r *Repository) RoleTypeID(ctx context.Context, slug string) (uuid.UUID, error) {
	role := &RoleType{}
	err := r.db.NewSelect().
		Model(role).
		Where("art.slug = ?", slug).
		Scan(ctx)
	if err == nil {
		return role.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}

	role = &RoleType{Slug: slug, Name: slug}
	if _, err := r.db.NewInsert().
		Model(role).
		On("CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}
	return role.ID, nil
}
