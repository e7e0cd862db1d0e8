// Package taxonomy holds the two-level domain/category tree that schemas
// and incidents are keyed by.
package taxonomy

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Well-known domain slugs.
const (
	DomainImmigration     = "immigration"
	DomainCriminalJustice = "criminal_justice"
	DomainCivilRights     = "civil_rights"
)

// Domain is the top taxonomy level.
type Domain struct {
	bun.BaseModel `bun:"table:event_domains,alias:dom"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug           string    `bun:"slug,notnull" json:"slug"`
	Name           string    `bun:"name,notnull" json:"name"`
	IsActive       bool      `bun:"is_active,notnull" json:"isActive"`
	RelevanceScope string    `bun:"relevance_scope,notnull" json:"relevanceScope"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// Category is the second taxonomy level, owned by a domain.
type Category struct {
	bun.BaseModel `bun:"table:event_categories,alias:cat"`

	ID               uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	DomainID         uuid.UUID      `bun:"domain_id,notnull,type:uuid" json:"domainId"`
	Slug             string         `bun:"slug,notnull" json:"slug"`
	Name             string         `bun:"name,notnull" json:"name"`
	RequiredFields   []string       `bun:"required_fields,type:jsonb" json:"requiredFields"`
	OptionalFields   []string       `bun:"optional_fields,type:jsonb" json:"optionalFields"`
	FieldDefinitions map[string]any `bun:"field_definitions,type:jsonb" json:"fieldDefinitions"`
	IsActive         bool           `bun:"is_active,notnull" json:"isActive"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`

	Domain *Domain `bun:"rel:belongs-to,join:domain_id=id" json:"domain,omitempty"`
}
