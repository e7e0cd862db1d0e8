// Package pipeline sequences per-article processing stages configured in
// the database.
package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Stage outcomes.
const (
	OutcomeContinue = "continue"
	OutcomeSkip     = "skip"
	OutcomeReject   = "reject"
	OutcomeError    = "error"
)

// Final decisions.
const (
	DecisionApproved  = "approved"
	DecisionRejected  = "rejected"
	DecisionSkipped   = "skipped"
	DecisionCompleted = "completed"
)

// Stage is one configurable pipeline step.
type Stage struct {
	bun.BaseModel `bun:"table:pipeline_stages,alias:ps"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Slug           string         `bun:"slug,notnull" json:"slug"`
	Name           string         `bun:"name,notnull" json:"name"`
	DefaultOrder   int            `bun:"default_order,notnull" json:"defaultOrder"`
	ExecutionOrder *int           `bun:"execution_order" json:"executionOrder,omitempty"`
	IsActive       bool           `bun:"is_active,notnull" json:"isActive"`
	Config         map[string]any `bun:"config,type:jsonb" json:"config"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// Order is the effective position: execution_order when set, else the
// default.
func (s *Stage) Order() int {
	if s.ExecutionOrder != nil {
		return *s.ExecutionOrder
	}
	return s.DefaultOrder
}

// StageOverride adjusts one stage for one incident type.
type StageOverride struct {
	bun.BaseModel `bun:"table:pipeline_stage_overrides,alias:pso"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	StageID        uuid.UUID      `bun:"stage_id,type:uuid,notnull" json:"stageId"`
	IncidentTypeID uuid.UUID      `bun:"incident_type_id,type:uuid,notnull" json:"incidentTypeId"`
	ExecutionOrder *int           `bun:"execution_order" json:"executionOrder,omitempty"`
	IsActive       *bool          `bun:"is_active" json:"isActive,omitempty"`
	Config         map[string]any `bun:"config,type:jsonb" json:"config,omitempty"`
}
