package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/domain/taxonomy"
	"github.com/incidentwire/incidentwire/pkg/llm"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

const hintConfidenceMin = 0.3
const relevanceConfidenceMin = 0.5

// Stage2Router runs schema-specific second-pass extractions against a
// Stage 1 row.
type Stage2Router struct {
	repo     *Repository
	articles *articles.Repository
	schemas  *schemas.Repository
	router   *llm.Router
	log      *slog.Logger
}

// NewStage2Router wires the Stage 2 router.
func NewStage2Router(
	repo *Repository,
	articleRepo *articles.Repository,
	schemaRepo *schemas.Repository,
	router *llm.Router,
	log *slog.Logger,
) *Stage2Router {
	return &Stage2Router{
		repo:     repo,
		articles: articleRepo,
		schemas:  schemaRepo,
		router:   router,
		log:      log.With(logger.Scope("extraction.stage2")),
	}
}

// Run executes Stage 2 schemas against a Stage 1 row. When schemaIDs is
// empty, schemas are auto-selected from the Stage 1 classification hints.
// Schemas run in parallel bounded by provider concurrency.
func (s *Stage2Router) Run(ctx context.Context, stage1ID uuid.UUID, schemaIDs []uuid.UUID) ([]*SchemaExtractionResult, error) {
	stage1, err := s.repo.GetStage1ByID(ctx, stage1ID)
	if err != nil {
		return nil, err
	}

	article, err := s.articles.GetByID(ctx, stage1.ArticleID)
	if err != nil {
		return nil, err
	}

	var selected []*schemas.ExtractionSchema
	if len(schemaIDs) > 0 {
		for _, id := range schemaIDs {
			schema, err := s.schemas.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			selected = append(selected, schema)
		}
	} else {
		stage1Data := decodeStage1(stage1.ExtractionData)
		candidates, err := s.schemas.ProductionStage2(ctx)
		if err != nil {
			return nil, err
		}
		selected = SelectSchemas(stage1Data, candidates)
	}

	if len(selected) == 0 {
		s.log.Info("no stage2 schemas selected",
			slog.String("stage1_id", stage1ID.String()))
		return nil, nil
	}

	stage1JSON, _ := json.MarshalIndent(stage1.ExtractionData, "", "  ")

	// Schemas fail independently: one schema's error is recorded on its own
	// row and must not cancel or discard the sibling runs.
	results := make([]*SchemaExtractionResult, len(selected))
	errs := make([]error, len(selected))
	var g errgroup.Group
	g.SetLimit(s.router.Concurrency())
	for i, schema := range selected {
		i, schema := i, schema
		g.Go(func() error {
			row, err := s.runSchema(ctx, stage1, article, schema, string(stage1JSON))
			if err != nil {
				errs[i] = err
				s.log.Error("stage2 schema failed",
					slog.String("schema", schema.Name),
					logger.Error(err))
				s.recordSchemaFailure(ctx, stage1, schema, err)
				return nil
			}
			results[i] = row
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*SchemaExtractionResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	if err := settleStage2Errors(len(out), errs); err != nil {
		return nil, err
	}
	return out, nil
}

// settleStage2Errors decides whether a Stage 2 run failed as a whole. With
// at least one completed schema the run succeeds; the per-schema failures
// are already on their own rows. When every schema failed, a
// permanent-category error is surfaced over transient ones so the caller
// sees the systemic cause.
func settleStage2Errors(successes int, errs []error) error {
	if successes > 0 {
		return nil
	}
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		var llmErr *llm.Error
		if errors.As(err, &llmErr) && llmErr.Category == llm.CategoryPermanent {
			return err
		}
	}
	return first
}

// recordSchemaFailure stores the failure on the pair's own row so the
// history shows which schema failed and why. Best effort: a failed insert
// is logged, not escalated.
func (s *Stage2Router) recordSchemaFailure(
	ctx context.Context,
	stage1 *ArticleExtraction,
	schema *schemas.ExtractionSchema,
	cause error,
) {
	row := failedStage2Row(stage1, schema, cause)
	if err := s.repo.InsertStage2(ctx, row); err != nil {
		s.log.Error("failed to record stage2 failure",
			slog.String("schema", schema.Name),
			logger.Error(err))
	}
}

// failedStage2Row builds the failed-status row for a schema run.
func failedStage2Row(stage1 *ArticleExtraction, schema *schemas.ExtractionSchema, cause error) *SchemaExtractionResult {
	msg := cause.Error()
	row := &SchemaExtractionResult{
		ArticleExtractionID: stage1.ID,
		SchemaID:            schema.ID,
		ExtractedData:       map[string]any{},
		Status:              StatusFailed,
		ErrorMessage:        &msg,
		Stage1Version:       stage1.Stage1SchemaVersion,
	}
	var llmErr *llm.Error
	if errors.As(cause, &llmErr) && llmErr.Provider != "" {
		provider := llmErr.Provider
		row.Provider = &provider
	}
	return row
}

// runSchema executes one Stage 2 schema and persists the result, superseding
// any prior live row for the pair.
func (s *Stage2Router) runSchema(
	ctx context.Context,
	stage1 *ArticleExtraction,
	article *articles.Article,
	schema *schemas.ExtractionSchema,
	stage1JSON string,
) (*SchemaExtractionResult, error) {
	userPrompt := strings.ReplaceAll(schema.UserPromptTemplate, schemas.PlaceholderStage1Output, stage1JSON)
	usedOriginal := strings.Contains(schema.UserPromptTemplate, schemas.PlaceholderArticleText)
	userPrompt = strings.ReplaceAll(userPrompt, schemas.PlaceholderArticleText, article.Content)

	req := llm.Request{
		System:      schema.SystemPrompt,
		UserMessage: userPrompt,
	}
	if schema.ModelName != nil {
		req.Model = *schema.ModelName
	}
	if schema.MaxTokens != nil {
		req.MaxTokens = *schema.MaxTokens
	}
	if schema.Temperature != nil {
		req.Temperature = *schema.Temperature
	}

	resp, err := s.router.Call(ctx, llm.StageStage2, req)
	if err != nil {
		return nil, err
	}

	text := resp.Text
	if resp.Truncated() {
		repaired, ok := repairTruncatedJSON(text)
		if !ok {
			return nil, llm.NewPartial(resp.Provider, "truncation_unrecovered",
				fmt.Sprintf("stage2 output for schema %s truncated and repair failed", schema.Name), nil)
		}
		text = repaired
	}

	data := map[string]any{}
	if err := json.Unmarshal([]byte(extractJSON(text)), &data); err != nil {
		return nil, llm.NewPartial(resp.Provider, "invalid_json",
			fmt.Sprintf("stage2 output for schema %s did not parse: %v", schema.Name, err), err)
	}

	spans := ValidateSpans(article.Content, spansFromPayload(data))

	validationErrs := coerceFields(data, schema.FieldDefinitions)
	confidence, missing := scoreConfidence(data, schema)
	for _, field := range missing {
		validationErrs = append(validationErrs, fmt.Sprintf("missing required field: %s", field))
	}

	row := &SchemaExtractionResult{
		ArticleExtractionID: stage1.ID,
		SchemaID:            schema.ID,
		ExtractedData:       data,
		SourceSpans:         spans,
		Confidence:          &confidence,
		ValidationErrors:    validationErrs,
		Status:              StatusCompleted,
		Stage1Version:       stage1.Stage1SchemaVersion,
		UsedOriginalText:    usedOriginal,
		Provider:            &resp.Provider,
		Model:               &resp.Model,
		InputTokens:         resp.InputTokens,
		OutputTokens:        resp.OutputTokens,
		LatencyMS:           resp.Latency.Milliseconds(),
	}
	if err := s.repo.InsertStage2(ctx, row); err != nil {
		return nil, err
	}

	s.log.Debug("stage2 schema complete",
		slog.String("schema", schema.Name),
		slog.Float64("confidence", confidence),
		slog.Int("validation_errors", len(validationErrs)))

	return row, nil
}

// SelectSchemas picks Stage 2 schemas from Stage 1 classification hints.
// Hints below the confidence floor are dropped; when domain relevance data
// exists, hints outside relevant domains are dropped; each remaining hint is
// matched against schema (domain, category) pairs by four rules in order.
func SelectSchemas(data *Stage1Data, candidates []*schemas.ExtractionSchema) []*schemas.ExtractionSchema {
	if data == nil {
		return nil
	}

	var hints []ClassificationHint
	for _, h := range data.ClassificationHints {
		if h.Confidence >= hintConfidenceMin {
			h.DomainSlug = taxonomy.NormalizeSlug(h.DomainSlug)
			h.CategorySlug = taxonomy.NormalizeSlug(h.CategorySlug)
			hints = append(hints, h)
		}
	}
	if len(hints) == 0 {
		return nil
	}

	if len(data.DomainRelevance) > 0 {
		relevant := map[string]bool{}
		for _, r := range data.DomainRelevance {
			if r.IsRelevant && r.Confidence >= relevanceConfidenceMin {
				relevant[taxonomy.NormalizeSlug(r.DomainSlug)] = true
			}
		}
		if len(relevant) == 0 {
			return nil
		}
		filtered := hints[:0]
		for _, h := range hints {
			if relevant[h.DomainSlug] {
				filtered = append(filtered, h)
			}
		}
		hints = filtered
		if len(hints) == 0 {
			return nil
		}
	}

	seen := map[uuid.UUID]bool{}
	var out []*schemas.ExtractionSchema
	for _, schema := range candidates {
		domainSlug, categorySlug := schemaSlugs(schema)
		for _, h := range hints {
			if matchesHint(domainSlug, categorySlug, h) {
				if !seen[schema.ID] {
					seen[schema.ID] = true
					out = append(out, schema)
				}
				break
			}
		}
	}
	return out
}

// matchesHint applies the four matching rules in order.
func matchesHint(domainSlug, categorySlug string, h ClassificationHint) bool {
	if domainSlug == h.DomainSlug && categorySlug == h.CategorySlug {
		return true
	}
	if domainSlug+"_"+categorySlug == h.DomainSlug {
		return true
	}
	if domainSlug == h.DomainSlug {
		return true
	}
	return strings.HasPrefix(h.DomainSlug, domainSlug+"_")
}

// schemaSlugs resolves a schema's (domain, category) slugs, falling back to
// a "domain/category" name split when the taxonomy join is absent.
func schemaSlugs(schema *schemas.ExtractionSchema) (string, string) {
	if schema.DomainSlug != "" {
		return taxonomy.NormalizeSlug(schema.DomainSlug), taxonomy.NormalizeSlug(schema.CategorySlug)
	}
	name := taxonomy.NormalizeSlug(schema.Name)
	if domain, category, ok := strings.Cut(name, "/"); ok {
		return domain, category
	}
	return name, ""
}

func decodeStage1(raw map[string]any) *Stage1Data {
	data := &Stage1Data{}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return data
	}
	_ = json.Unmarshal(encoded, data)
	return data
}
