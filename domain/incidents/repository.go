package incidents

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

// Repository handles database operations for incidents and their links
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new incidents repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("incidents.repo")),
	}
}

// GetByID fetches one incident.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Incident, error) {
	incident := &Incident{}
	err := r.db.NewSelect().
		Model(incident).
		Where("inc.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("incident not found")
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return incident, nil
}

// Insert writes a new incident row.
func (r *Repository) Insert(ctx context.Context, incident *Incident) error {
	if incident.CurationStatus == "" {
		incident.CurationStatus = CurationPending
	}
	if _, err := r.db.NewInsert().Model(incident).Exec(ctx); err != nil {
		r.log.Error("failed to insert incident", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// FindBySourceURL returns the incident with an exact source URL, or nil.
func (r *Repository) FindBySourceURL(ctx context.Context, sourceURL string) (*Incident, error) {
	incident := &Incident{}
	err := r.db.NewSelect().
		Model(incident).
		Where("inc.source_url = ?", sourceURL).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return incident, nil
}

// FindByDescription returns an incident with an exact description, or nil.
func (r *Repository) FindByDescription(ctx context.Context, description string) (*Incident, error) {
	incident := &Incident{}
	err := r.db.NewSelect().
		Model(incident).
		Where("inc.description = ?", description).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return incident, nil
}

// EntityCandidate is an incident row plus its linked or legacy names, as
// returned by the entity-match prefilter.
type EntityCandidate struct {
	Incident     *Incident
	OffenderName string
	VictimName   string
}

// EntityPrefilter returns incidents in a state within a day window of the
// date, joined with linked actor names and the legacy victim column, for
// in-process fuzzy matching. Capped at 50 rows.
func (r *Repository) EntityPrefilter(ctx context.Context, state string, date time.Time, windowDays int) ([]EntityCandidate, error) {
	type row struct {
		Incident     `bun:",extend"`
		ActorName    *string `bun:"actor_name"`
		ActorRole    *string `bun:"actor_role"`
		LegacyVictim *string `bun:"legacy_victim"`
	}

	var rows []row
	err := r.db.NewSelect().
		Model((*Incident)(nil)).
		ColumnExpr("inc.*").
		ColumnExpr("act.canonical_name AS actor_name").
		ColumnExpr("ia.role AS actor_role").
		ColumnExpr("inc.victim_name AS legacy_victim").
		Join("LEFT JOIN incident_actors AS ia ON ia.incident_id = inc.id").
		Join("LEFT JOIN actors AS act ON act.id = ia.actor_id").
		Where("inc.state = ?", state).
		Where("inc.incident_date BETWEEN ? AND ?",
			date.AddDate(0, 0, -windowDays), date.AddDate(0, 0, windowDays)).
		OrderExpr("inc.incident_date DESC").
		Limit(50).
		Scan(ctx, &rows)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	byID := map[uuid.UUID]*EntityCandidate{}
	var out []EntityCandidate
	order := []uuid.UUID{}
	for i := range rows {
		c, ok := byID[rows[i].ID]
		if !ok {
			inc := rows[i].Incident
			c = &EntityCandidate{Incident: &inc}
			if inc.OffenderName != nil {
				c.OffenderName = *inc.OffenderName
			}
			if rows[i].LegacyVictim != nil {
				c.VictimName = *rows[i].LegacyVictim
			}
			byID[inc.ID] = c
			order = append(order, inc.ID)
		}
		if rows[i].ActorName != nil && rows[i].ActorRole != nil {
			switch *rows[i].ActorRole {
			case "offender":
				if c.OffenderName == "" {
					c.OffenderName = *rows[i].ActorName
				}
			case "victim":
				if c.VictimName == "" {
					c.VictimName = *rows[i].ActorName
				}
			}
		}
	}
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// LinkActor upserts an incident-actor link.
func (r *Repository) LinkActor(ctx context.Context, link *IncidentActor) error {
	_, err := r.db.NewInsert().
		Model(link).
		On("CONFLICT (incident_id, actor_id, role) DO UPDATE SET role_type_id = EXCLUDED.role_type_id, confidence = EXCLUDED.confidence").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// LinkEvent attaches an event; repeated links are ignored.
func (r *Repository) LinkEvent(ctx context.Context, incidentID, eventID uuid.UUID) error {
	link := &IncidentEvent{IncidentID: incidentID, EventID: eventID}
	_, err := r.db.NewInsert().
		Model(link).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// LinkSource attaches the source article; repeated links are ignored.
func (r *Repository) LinkSource(ctx context.Context, incidentID, articleID uuid.UUID, confidence *float64) error {
	link := &IncidentSource{IncidentID: incidentID, ArticleID: articleID, Confidence: confidence}
	_, err := r.db.NewInsert().
		Model(link).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// IncidentTypeID find-or-creates an incident type row.
func (r *Repository) IncidentTypeID(ctx context.Context, slug string) (uuid.UUID, error) {
	row := &IncidentType{Slug: slug, Name: slug}
	if _, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row.ID, nil
}

// OutcomeTypeID find-or-creates an outcome type row.
func (r *Repository) OutcomeTypeID(ctx context.Context, slug string) (uuid.UUID, error) {
	row := &OutcomeType{Slug: slug, Name: slug}
	if _, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row.ID, nil
}

// VictimTypeID find-or-creates a victim type row.
func (r *Repository) VictimTypeID(ctx context.Context, slug string) (uuid.UUID, error) {
	row := &VictimType{Slug: slug, Name: slug}
	if _, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return uuid.Nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row.ID, nil
}

// GetIncidentType loads an incident type with its threshold overrides.
func (r *Repository) GetIncidentType(ctx context.Context, id uuid.UUID) (*IncidentType, error) {
	row := &IncidentType{}
	err := r.db.NewSelect().
		Model(row).
		Where("ity.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return row, nil
}

// FindOrCreateEvent resolves an event by slug, creating it when missing.
func (r *Repository) FindOrCreateEvent(ctx context.Context, name, slug string) (*Event, error) {
	event := &Event{}
	err := r.db.NewSelect().
		Model(event).
		Where("evt.slug = ?", slug).
		Scan(ctx)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	event = &Event{Name: name, Slug: slug, Tags: []string{}}
	if _, err := r.db.NewInsert().
		Model(event).
		On("CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		Returning("*").
		Exec(ctx); err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return event, nil
}
