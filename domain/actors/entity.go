// Package actors canonicalizes incident participants: people, agencies,
// organizations, and groups.
package actors

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Actor types.
const (
	TypePerson       = "person"
	TypeOrganization = "organization"
	TypeAgency       = "agency"
	TypeGroup        = "group"
)

// Incident link roles.
const (
	RoleOffender = "offender"
	RoleVictim   = "victim"
	RoleAgency   = "agency"
	RoleWitness  = "witness"
)

// Actor is a canonicalized participant linkable to many incidents.
type Actor struct {
	bun.BaseModel `bun:"table:actors,alias:act"`

	ID            uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CanonicalName string    `bun:"canonical_name,notnull" json:"canonicalName"`
	ActorType     string    `bun:"actor_type,notnull" json:"actorType"`
	Aliases       []string  `bun:"aliases,type:jsonb" json:"aliases"`

	DateOfBirth       *time.Time `bun:"date_of_birth" json:"dateOfBirth,omitempty"`
	Gender            *string    `bun:"gender" json:"gender,omitempty"`
	Nationality       *string    `bun:"nationality" json:"nationality,omitempty"`
	ImmigrationStatus *string    `bun:"immigration_status" json:"immigrationStatus,omitempty"`
	PriorDeportations *int       `bun:"prior_deportations" json:"priorDeportations,omitempty"`

	ParentOrgID        *uuid.UUID `bun:"parent_org_id,type:uuid" json:"parentOrgId,omitempty"`
	IsGovernmentEntity bool       `bun:"is_government_entity,notnull" json:"isGovernmentEntity"`
	IsLawEnforcement   bool       `bun:"is_law_enforcement,notnull" json:"isLawEnforcement"`
	Jurisdiction       *string    `bun:"jurisdiction" json:"jurisdiction,omitempty"`

	ExternalIDs  map[string]any `bun:"external_ids,type:jsonb" json:"externalIds"`
	IsMerged     bool           `bun:"is_merged,notnull" json:"isMerged"`
	MergedIntoID *uuid.UUID     `bun:"merged_into_id,type:uuid" json:"mergedIntoId,omitempty"`
	MergedFrom   []string       `bun:"merged_from,type:jsonb" json:"mergedFrom"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// RoleType is a controlled vocabulary row for incident-actor links.
type RoleType struct {
	bun.BaseModel `bun:"table:actor_role_types,alias:art"`

	ID   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug string    `bun:"slug,notnull" json:"slug"`
	Name string    `bun:"name,notnull" json:"name"`
}

// Relation links two actors (parent org, membership, aliases of record).
type Relation struct {
	bun.BaseModel `bun:"table:actor_relations,alias:rel"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ActorID        uuid.UUID `bun:"actor_id,notnull,type:uuid" json:"actorId"`
	RelatedActorID uuid.UUID `bun:"related_actor_id,notnull,type:uuid" json:"relatedActorId"`
	RelationType   string    `bun:"relation_type,notnull" json:"relationType"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}
