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

// Merge folds the duplicate actor into the survivor: aliases and person
// attributes are absorbed, incident links are transferred (dropping links
// that would collide with the survivor's existing links), relations between
// the pair are deleted, and the duplicate is marked merged. All in one
// transaction.
func (r *Repository) Merge(ctx context.Context, survivorID, duplicateID uuid.UUID) error {
	if survivorID == duplicateID {
		return apperror.NewBadRequest("cannot merge an actor into itself")
	}

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		survivor := &Actor{}
		if err := tx.NewSelect().Model(survivor).Where("act.id = ?", survivorID).Scan(ctx); err != nil {
			return err
		}
		duplicate := &Actor{}
		if err := tx.NewSelect().Model(duplicate).Where("act.id = ?", duplicateID).Scan(ctx); err != nil {
			return err
		}
		if duplicate.IsMerged {
			return apperror.NewBadRequest("actor is already merged")
		}

		// Absorb the duplicate's name and aliases.
		survivor.Aliases = AppendAlias(survivor.Aliases, duplicate.CanonicalName)
		for _, alias := range duplicate.Aliases {
			survivor.Aliases = AppendAlias(survivor.Aliases, alias)
		}

		// Absorb person attributes the survivor lacks.
		if survivor.ImmigrationStatus == nil {
			survivor.ImmigrationStatus = duplicate.ImmigrationStatus
		}
		if survivor.PriorDeportations == nil {
			survivor.PriorDeportations = duplicate.PriorDeportations
		}
		if survivor.Nationality == nil {
			survivor.Nationality = duplicate.Nationality
		}
		if survivor.DateOfBirth == nil {
			survivor.DateOfBirth = duplicate.DateOfBirth
		}

		survivor.MergedFrom = append(survivor.MergedFrom, duplicate.ID.String())

		if _, err := tx.NewUpdate().
			Model(survivor).
			Column("aliases", "immigration_status", "prior_deportations", "nationality",
				"date_of_birth", "merged_from").
			Set("updated_at = now()").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}

		// Relations between the pair would become self-referential.
		if _, err := tx.NewRaw(`
			DELETE FROM actor_relations
			WHERE (actor_id = ? AND related_actor_id = ?)
			   OR (actor_id = ? AND related_actor_id = ?)`,
			survivorID, duplicateID, duplicateID, survivorID).
			Exec(ctx); err != nil {
			return err
		}

		// Drop duplicate links that would collide with the survivor's
		// existing links, then transfer the rest in place.
		if _, err := tx.NewRaw(`
			DELETE FROM incident_actors dup
			WHERE dup.actor_id = ?
			  AND EXISTS (
				SELECT 1 FROM incident_actors surv
				WHERE surv.actor_id = ?
				  AND surv.incident_id = dup.incident_id
				  AND surv.role = dup.role
			  )`, duplicateID, survivorID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw(`
			UPDATE incident_actors SET actor_id = ? WHERE actor_id = ?`,
			survivorID, duplicateID).
			Exec(ctx); err != nil {
			return err
		}

		// Re-point remaining relations at the survivor.
		if _, err := tx.NewRaw(`
			UPDATE actor_relations SET actor_id = ? WHERE actor_id = ?`,
			survivorID, duplicateID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw(`
			UPDATE actor_relations SET related_actor_id = ? WHERE related_actor_id = ?`,
			survivorID, duplicateID).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewUpdate().
			Model((*Actor)(nil)).
			Set("is_merged = true").
			Set("merged_into_id = ?", survivorID).
			Set("updated_at = now()").
			Where("id = ?", duplicateID).
			Exec(ctx)
		return err
	})
	if err != nil {
		r.log.Error("actor merge failed",
			slog.String("survivor", survivorID.String()),
			slog.String("duplicate", duplicateID.String()),
			logger.Error(err))
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.ErrDatabase.WithInternal(err)
	}

	r.log.Info("actors merged",
		slog.String("survivor", survivorID.String()),
		slog.String("duplicate", duplicateID.String()))
	return nil
}
