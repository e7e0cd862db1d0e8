// Package extraction implements the two-stage extraction pipeline: a
// comprehensive Stage 1 pass per article, schema-specific Stage 2 passes,
// and selection/merging of Stage 2 results.
package extraction

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Extraction row statuses.
const (
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusSuperseded = "superseded"
)

// ClassificationHint is a Stage 1 routing signal toward a (domain,
// category) pair.
type ClassificationHint struct {
	DomainSlug   string  `json:"domain_slug"`
	CategorySlug string  `json:"category_slug"`
	Confidence   float64 `json:"confidence"`
}

// DomainRelevance is Stage 1's per-domain relevance verdict.
type DomainRelevance struct {
	DomainSlug string  `json:"domain_slug"`
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
}

// Stage1Data is the parsed shape of a Stage 1 extraction payload.
type Stage1Data struct {
	Entities             []map[string]any     `json:"entities"`
	Events               []map[string]any     `json:"events"`
	Quotes               []map[string]any     `json:"quotes,omitempty"`
	LegalData            map[string]any       `json:"legal_data,omitempty"`
	ClassificationHints  []ClassificationHint `json:"classification_hints"`
	DomainRelevance      []DomainRelevance    `json:"domain_relevance,omitempty"`
	ExtractionConfidence float64              `json:"extraction_confidence"`
}

// ArticleExtraction is one Stage 1 run over an article.
type ArticleExtraction struct {
	bun.BaseModel `bun:"table:article_extractions,alias:aex"`

	ID                uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ArticleID         uuid.UUID      `bun:"article_id,notnull,type:uuid" json:"articleId"`
	ExtractionData    map[string]any `bun:"extraction_data,type:jsonb" json:"extractionData"`
	EntityCount       int            `bun:"entity_count,notnull" json:"entityCount"`
	EventCount        int            `bun:"event_count,notnull" json:"eventCount"`
	OverallConfidence *float64       `bun:"overall_confidence" json:"overallConfidence,omitempty"`
	Status            string         `bun:"status,notnull" json:"status"`

	Stage1SchemaVersion *int    `bun:"stage1_schema_version" json:"stage1SchemaVersion,omitempty"`
	Stage1PromptHash    *string `bun:"stage1_prompt_hash" json:"stage1PromptHash,omitempty"`

	Provider        *string `bun:"provider" json:"provider,omitempty"`
	Model           *string `bun:"model" json:"model,omitempty"`
	InputTokens     int     `bun:"input_tokens,notnull" json:"inputTokens"`
	OutputTokens    int     `bun:"output_tokens,notnull" json:"outputTokens"`
	LatencyMS       int64   `bun:"latency_ms,notnull" json:"latencyMs"`
	Error           *string `bun:"error" json:"error,omitempty"`
	ExtractionNotes string  `bun:"extraction_notes,notnull" json:"extractionNotes"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// Span is a validated offset range into the original article text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// SchemaExtractionResult is one Stage 2 run of a schema against a Stage 1
// row. Unique on (article_extraction_id, schema_id) among live rows.
type SchemaExtractionResult struct {
	bun.BaseModel `bun:"table:schema_extraction_results,alias:ser"`

	ID                  uuid.UUID      `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	ArticleExtractionID uuid.UUID      `bun:"article_extraction_id,notnull,type:uuid" json:"articleExtractionId"`
	SchemaID            uuid.UUID      `bun:"schema_id,notnull,type:uuid" json:"schemaId"`
	ExtractedData       map[string]any `bun:"extracted_data,type:jsonb" json:"extractedData"`
	SourceSpans         []Span         `bun:"source_spans,type:jsonb" json:"sourceSpans"`
	Confidence          *float64       `bun:"confidence" json:"confidence,omitempty"`
	ValidationErrors    []string       `bun:"validation_errors,type:jsonb" json:"validationErrors"`
	Status              string         `bun:"status,notnull" json:"status"`
	ErrorMessage        *string        `bun:"error_message" json:"errorMessage,omitempty"`
	Stage1Version       *int           `bun:"stage1_version" json:"stage1Version,omitempty"`
	UsedOriginalText    bool           `bun:"used_original_text,notnull" json:"usedOriginalText"`

	Provider     *string `bun:"provider" json:"provider,omitempty"`
	Model        *string `bun:"model" json:"model,omitempty"`
	InputTokens  int     `bun:"input_tokens,notnull" json:"inputTokens"`
	OutputTokens int     `bun:"output_tokens,notnull" json:"outputTokens"`
	LatencyMS    int64   `bun:"latency_ms,notnull" json:"latencyMs"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// MergeInfo records which schemas contributed to a merged Stage 2 result.
type MergeInfo struct {
	Sources       []MergeSource `json:"sources"`
	ClusterEntity string        `json:"cluster_entity,omitempty"`
	Merged        bool          `json:"merged"`
	SchemasMerged []string      `json:"schemas_merged,omitempty"`
}

// Merge source roles.
const (
	RoleBase       = "base"
	RoleSupplement = "supplement"
	RoleSole       = "sole"
)

// MergeSource is one contributing Stage 2 result.
type MergeSource struct {
	SchemaName        string   `json:"schema_name"`
	DomainSlug        string   `json:"domain_slug"`
	CategorySlug      string   `json:"category_slug"`
	Confidence        float64  `json:"confidence"`
	Role              string   `json:"role"`
	FieldsContributed []string `json:"fields_contributed,omitempty"`
}
