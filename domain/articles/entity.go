// Package articles stores ingested news items and their pipeline status.
package articles

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Article lifecycle statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusExtracted  = "extracted"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
	StatusArchived   = "archived"
)

// Extraction pipeline markers.
const (
	PipelineLegacy   = "legacy"
	PipelineTwoStage = "two_stage"
)

// Source is a news feed we ingest from.
type Source struct {
	bun.BaseModel `bun:"table:sources,alias:src"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	BaseURL    string    `bun:"base_url,notnull" json:"baseUrl"`
	SourceTier int       `bun:"source_tier,notnull" json:"sourceTier"`
	IsActive   bool      `bun:"is_active,notnull" json:"isActive"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// Article is one ingested news item. Never deleted; status tracks its
// progress through extraction and approval.
type Article struct {
	bun.BaseModel `bun:"table:ingested_articles,alias:art"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	SourceID    *uuid.UUID `bun:"source_id,type:uuid" json:"sourceId,omitempty"`
	SourceURL   string     `bun:"source_url,notnull" json:"sourceUrl"`
	ContentHash *string    `bun:"content_hash" json:"contentHash,omitempty"`
	Title       string     `bun:"title,notnull" json:"title"`
	Content     string     `bun:"content,notnull" json:"content"`
	FetchedAt   time.Time  `bun:"fetched_at,nullzero,notnull,default:now()" json:"fetchedAt"`
	PublishedAt *time.Time `bun:"published_at" json:"publishedAt,omitempty"`
	Status      string     `bun:"status,notnull" json:"status"`

	ExtractedData      map[string]any `bun:"extracted_data,type:jsonb" json:"extractedData,omitempty"`
	LatestExtractionID *uuid.UUID     `bun:"latest_extraction_id,type:uuid" json:"latestExtractionId,omitempty"`
	ExtractionPipeline *string        `bun:"extraction_pipeline" json:"extractionPipeline,omitempty"`

	ExtractionErrorCount    int        `bun:"extraction_error_count,notnull" json:"extractionErrorCount"`
	LastExtractionError     *string    `bun:"last_extraction_error" json:"lastExtractionError,omitempty"`
	LastExtractionErrorAt   *time.Time `bun:"last_extraction_error_at" json:"lastExtractionErrorAt,omitempty"`
	ExtractionErrorCategory *string    `bun:"extraction_error_category" json:"extractionErrorCategory,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}
