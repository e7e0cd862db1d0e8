package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository loads stage configuration.
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("pipeline.repo")),
	}
}

// ActiveStages returns active stages ordered by effective position, with
// per-type overrides applied when an incident type is given.
func (r *Repository) ActiveStages(ctx context.Context, incidentTypeID *uuid.UUID) ([]*Stage, error) {
	var stages []*Stage
	err := r.db.NewSelect().
		Model(&stages).
		Where("ps.is_active = true").
		Scan(ctx)
	if err != nil {
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if incidentTypeID != nil {
		var overrides []*StageOverride
		err := r.db.NewSelect().
			Model(&overrides).
			Where("pso.incident_type_id = ?", *incidentTypeID).
			Scan(ctx)
		if err != nil {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		stages = applyOverrides(stages, overrides)
	}

	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order() < stages[j].Order()
	})
	return stages, nil
}

func applyOverrides(stages []*Stage, overrides []*StageOverride) []*Stage {
	byStage := map[uuid.UUID]*StageOverride{}
	for _, o := range overrides {
		byStage[o.StageID] = o
	}

	out := stages[:0]
	for _, stage := range stages {
		o, ok := byStage[stage.ID]
		if !ok {
			out = append(out, stage)
			continue
		}
		if o.IsActive != nil && !*o.IsActive {
			continue
		}
		if o.ExecutionOrder != nil {
			stage.ExecutionOrder = o.ExecutionOrder
		}
		if o.Config != nil {
			stage.Config = o.Config
		}
		out = append(out, stage)
	}
	return out
}
