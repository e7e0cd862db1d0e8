// Package incidents writes approved structured records and their actor,
// event, and source links.
package incidents

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Legacy category enum.
const (
	CategoryEnforcement = "enforcement"
	CategoryCrime       = "crime"
)

// Curation statuses.
const (
	CurationPending  = "pending"
	CurationApproved = "approved"
	CurationRejected = "rejected"
)

// Incident is the approved structured record written for downstream use.
type Incident struct {
	bun.BaseModel `bun:"table:incidents,alias:inc"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Category   string     `bun:"category,notnull" json:"category"`
	DomainID   *uuid.UUID `bun:"domain_id,type:uuid" json:"domainId,omitempty"`
	CategoryID *uuid.UUID `bun:"category_id,type:uuid" json:"categoryId,omitempty"`

	IncidentDate   *time.Time `bun:"incident_date" json:"incidentDate,omitempty"`
	State          *string    `bun:"state" json:"state,omitempty"`
	City           *string    `bun:"city" json:"city,omitempty"`
	IncidentTypeID *uuid.UUID `bun:"incident_type_id,type:uuid" json:"incidentTypeId,omitempty"`
	IncidentType   *string    `bun:"incident_type" json:"incidentType,omitempty"`
	Description    string     `bun:"description,notnull" json:"description"`
	SourceURL      *string    `bun:"source_url" json:"sourceUrl,omitempty"`
	SourceTier     int        `bun:"source_tier,notnull" json:"sourceTier"`

	VictimName     *string    `bun:"victim_name" json:"victimName,omitempty"`
	VictimCategory *string    `bun:"victim_category" json:"victimCategory,omitempty"`
	VictimTypeID   *uuid.UUID `bun:"victim_type_id,type:uuid" json:"victimTypeId,omitempty"`

	OffenderName              *string `bun:"offender_name" json:"offenderName,omitempty"`
	OffenderAge               *int    `bun:"offender_age" json:"offenderAge,omitempty"`
	OffenderImmigrationStatus *string `bun:"offender_immigration_status" json:"offenderImmigrationStatus,omitempty"`
	PriorDeportations         *int    `bun:"prior_deportations" json:"priorDeportations,omitempty"`
	GangAffiliation           *string `bun:"gang_affiliation" json:"gangAffiliation,omitempty"`

	OutcomeCategory *string    `bun:"outcome_category" json:"outcomeCategory,omitempty"`
	OutcomeTypeID   *uuid.UUID `bun:"outcome_type_id,type:uuid" json:"outcomeTypeId,omitempty"`

	Tags         []string       `bun:"tags,type:jsonb" json:"tags"`
	CustomFields map[string]any `bun:"custom_fields,type:jsonb" json:"customFields"`

	Latitude  *float64 `bun:"latitude" json:"latitude,omitempty"`
	Longitude *float64 `bun:"longitude" json:"longitude,omitempty"`

	CurationStatus       string         `bun:"curation_status,notnull" json:"curationStatus"`
	ExtractionConfidence *float64       `bun:"extraction_confidence" json:"extractionConfidence,omitempty"`
	MergeInfo            map[string]any `bun:"merge_info,type:jsonb" json:"mergeInfo,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// IncidentType is a controlled vocabulary row carrying optional approval
// threshold overrides.
type IncidentType struct {
	bun.BaseModel `bun:"table:incident_types,alias:ity"`

	ID                   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug                 string    `bun:"slug,notnull" json:"slug"`
	Name                 string    `bun:"name,notnull" json:"name"`
	RequiredFields       []string  `bun:"required_fields,type:jsonb" json:"requiredFields,omitempty"`
	FieldConfidenceMin   *float64  `bun:"field_confidence_min" json:"fieldConfidenceMin,omitempty"`
	MinConfidenceReview  *float64  `bun:"min_confidence_review" json:"minConfidenceReview,omitempty"`
	AutoApproveThreshold *float64  `bun:"auto_approve_threshold" json:"autoApproveThreshold,omitempty"`
}

// OutcomeType is a controlled vocabulary row.
type OutcomeType struct {
	bun.BaseModel `bun:"table:outcome_types,alias:oty"`

	ID   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug string    `bun:"slug,notnull" json:"slug"`
	Name string    `bun:"name,notnull" json:"name"`
}

// VictimType is a controlled vocabulary row.
type VictimType struct {
	bun.BaseModel `bun:"table:victim_types,alias:vty"`

	ID   uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug string    `bun:"slug,notnull" json:"slug"`
	Name string    `bun:"name,notnull" json:"name"`
}

// Event is a named happening incidents can be linked to.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:evt"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name            string     `bun:"name,notnull" json:"name"`
	Slug            string     `bun:"slug,notnull" json:"slug"`
	EventType       *string    `bun:"event_type" json:"eventType,omitempty"`
	StartDate       *time.Time `bun:"start_date" json:"startDate,omitempty"`
	EndDate         *time.Time `bun:"end_date" json:"endDate,omitempty"`
	GeographicScope *string    `bun:"geographic_scope" json:"geographicScope,omitempty"`
	AISummary       *string    `bun:"ai_summary" json:"aiSummary,omitempty"`
	Tags            []string   `bun:"tags,type:jsonb" json:"tags"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// IncidentActor links an actor to an incident in a role.
type IncidentActor struct {
	bun.BaseModel `bun:"table:incident_actors,alias:ia"`

	IncidentID uuid.UUID  `bun:"incident_id,pk,type:uuid" json:"incidentId"`
	ActorID    uuid.UUID  `bun:"actor_id,pk,type:uuid" json:"actorId"`
	Role       string     `bun:"role,pk" json:"role"`
	RoleTypeID *uuid.UUID `bun:"role_type_id,type:uuid" json:"roleTypeId,omitempty"`
	Confidence *float64   `bun:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}

// IncidentEvent links an incident to an event.
type IncidentEvent struct {
	bun.BaseModel `bun:"table:incident_events,alias:ie"`

	IncidentID uuid.UUID `bun:"incident_id,pk,type:uuid" json:"incidentId"`
	EventID    uuid.UUID `bun:"event_id,pk,type:uuid" json:"eventId"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}

// IncidentSource links an incident to the article it came from.
type IncidentSource struct {
	bun.BaseModel `bun:"table:incident_sources,alias:is"`

	IncidentID uuid.UUID `bun:"incident_id,pk,type:uuid" json:"incidentId"`
	ArticleID  uuid.UUID `bun:"article_id,pk,type:uuid" json:"articleId"`
	Confidence *float64  `bun:"confidence" json:"confidence,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}

// Geocoder resolves a (city, state) pair to coordinates. External
// implementations are injected; a nil geocoder skips coordinates.
type Geocoder interface {
	Geocode(city, state string) (lat, lon float64, ok bool)
}
