// Package schemas manages extraction schema rows: typed prompt contracts
// with versioning and production deployment state.
package schemas

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Schema types.
const (
	TypeStage1 = "stage1"
	TypeStage2 = "stage2"
)

// Prompt template placeholders.
const (
	PlaceholderArticleText       = "{article_text}"
	PlaceholderStage1Output      = "{stage1_output}"
	PlaceholderRelevanceCriteria = "{domain_relevance_criteria}"
)

// ExtractionSchema is a typed extraction contract: prompts, field
// requirements, validation rules, and deployment state.
type ExtractionSchema struct {
	bun.BaseModel `bun:"table:extraction_schemas,alias:sch"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SchemaType string     `bun:"schema_type,notnull" json:"schemaType"`
	DomainID   *uuid.UUID `bun:"domain_id,type:uuid" json:"domainId,omitempty"`
	CategoryID *uuid.UUID `bun:"category_id,type:uuid" json:"categoryId,omitempty"`
	Name       string     `bun:"name,notnull" json:"name"`

	SystemPrompt       string   `bun:"system_prompt,notnull" json:"systemPrompt"`
	UserPromptTemplate string   `bun:"user_prompt_template,notnull" json:"userPromptTemplate"`
	ModelName          *string  `bun:"model_name" json:"modelName,omitempty"`
	Temperature        *float64 `bun:"temperature" json:"temperature,omitempty"`
	MaxTokens          *int     `bun:"max_tokens" json:"maxTokens,omitempty"`

	RequiredFields       []string       `bun:"required_fields,type:jsonb" json:"requiredFields"`
	OptionalFields       []string       `bun:"optional_fields,type:jsonb" json:"optionalFields"`
	FieldDefinitions     map[string]any `bun:"field_definitions,type:jsonb" json:"fieldDefinitions"`
	ValidationRules      map[string]any `bun:"validation_rules,type:jsonb" json:"validationRules"`
	ConfidenceThresholds map[string]any `bun:"confidence_thresholds,type:jsonb" json:"confidenceThresholds"`
	MinQualityThreshold  *float64       `bun:"min_quality_threshold" json:"minQualityThreshold,omitempty"`

	SchemaVersion     int            `bun:"schema_version,notnull" json:"schemaVersion"`
	IsActive          bool           `bun:"is_active,notnull" json:"isActive"`
	IsProduction      bool           `bun:"is_production,notnull" json:"isProduction"`
	DeployedAt        *time.Time     `bun:"deployed_at" json:"deployedAt,omitempty"`
	PreviousVersionID *uuid.UUID     `bun:"previous_version_id,type:uuid" json:"previousVersionId,omitempty"`
	RollbackReason    *string        `bun:"rollback_reason" json:"rollbackReason,omitempty"`
	GitCommitSHA      *string        `bun:"git_commit_sha" json:"gitCommitSha,omitempty"`
	QualityMetrics    map[string]any `bun:"quality_metrics,type:jsonb" json:"qualityMetrics"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`

	// Resolved from the taxonomy join on read.
	DomainSlug   string `bun:"domain_slug,scanonly" json:"domainSlug,omitempty"`
	CategorySlug string `bun:"category_slug,scanonly" json:"categorySlug,omitempty"`
}
