package taxonomy

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/uptrace/bun"

	"github.com/incidentwire/incidentwire/pkg/apperror"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Repository handles database operations for the taxonomy
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new taxonomy repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("taxonomy.repo")),
	}
}

// ListActiveDomains returns all active domains.
func (r *Repository) ListActiveDomains(ctx context.Context) ([]*Domain, error) {
	var out []*Domain
	err := r.db.NewSelect().
		Model(&out).
		Where("dom.is_active = true").
		Order("dom.slug ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to list domains", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return out, nil
}

// GetDomainBySlug resolves a domain by its normalized slug, or nil.
func (r *Repository) GetDomainBySlug(ctx context.Context, slug string) (*Domain, error) {
	domain := &Domain{}
	err := r.db.NewSelect().
		Model(domain).
		Where("dom.slug = ?", NormalizeSlug(slug)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return domain, nil
}

// GetCategory resolves (domain slug, category slug) to a category with its
// domain loaded, or nil.
func (r *Repository) GetCategory(ctx context.Context, domainSlug, categorySlug string) (*Category, error) {
	category := &Category{}
	err := r.db.NewSelect().
		Model(category).
		Relation("Domain").
		Where("dom.slug = ?", NormalizeSlug(domainSlug)).
		Where("cat.slug = ?", NormalizeSlug(categorySlug)).
		Where("cat.is_active = true").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return category, nil
}

// RelevanceCriteria renders the active domains' relevance scopes as a
// bulleted block for prompt substitution.
func (r *Repository) RelevanceCriteria(ctx context.Context) (string, error) {
	domains, err := r.ListActiveDomains(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, d := range domains {
		if d.RelevanceScope == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(d.Name)
		b.WriteString(": ")
		b.WriteString(d.RelevanceScope)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// NormalizeSlug lowercases and converts separators to underscores.
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
