package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/domain/taxonomy"
	"github.com/incidentwire/incidentwire/pkg/llm"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

const (
	maxAdaptiveTokens = 16384
	truncatedPrefix   = "[TRUNCATED] "

	retrySuffix = "\n\nIMPORTANT: The previous response was cut off. " +
		"Extract only the top 10 most significant incidents."
)

// Stage1Options tune one run of the Stage 1 extractor.
type Stage1Options struct {
	Force            bool
	ProviderOverride string
	ModelOverride    string
}

// Stage1Extractor runs the comprehensive first-pass extraction.
type Stage1Extractor struct {
	repo     *Repository
	articles *articles.Repository
	schemas  *schemas.Repository
	taxonomy *taxonomy.Repository
	router   *llm.Router
	log      *slog.Logger
}

// NewStage1Extractor wires the Stage 1 extractor.
func NewStage1Extractor(
	repo *Repository,
	articleRepo *articles.Repository,
	schemaRepo *schemas.Repository,
	taxonomyRepo *taxonomy.Repository,
	router *llm.Router,
	log *slog.Logger,
) *Stage1Extractor {
	return &Stage1Extractor{
		repo:     repo,
		articles: articleRepo,
		schemas:  schemaRepo,
		taxonomy: taxonomyRepo,
		router:   router,
		log:      log.With(logger.Scope("extraction.stage1")),
	}
}

// Run executes Stage 1 for an article. Idempotent: an existing completed
// row is returned as-is unless opts.Force is set.
func (e *Stage1Extractor) Run(ctx context.Context, articleID uuid.UUID, opts Stage1Options) (*ArticleExtraction, error) {
	if !opts.Force {
		existing, err := e.repo.LatestCompletedStage1(ctx, articleID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	article, err := e.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}

	schema, err := e.schemas.ActiveStage1(ctx)
	if err != nil {
		return nil, err
	}

	criteria, err := e.taxonomy.RelevanceCriteria(ctx)
	if err != nil {
		return nil, err
	}

	// Criteria first, article text second, so untrusted article text cannot
	// inject the criteria placeholder.
	userPrompt := strings.ReplaceAll(schema.UserPromptTemplate, schemas.PlaceholderRelevanceCriteria, criteria)
	userPrompt = strings.ReplaceAll(userPrompt, schemas.PlaceholderArticleText, article.Content)

	promptHash := hashPrompts(schema.SystemPrompt, schema.UserPromptTemplate)
	row := &ArticleExtraction{
		ArticleID:           articleID,
		Status:              StatusPending,
		Stage1SchemaVersion: &schema.SchemaVersion,
		Stage1PromptHash:    &promptHash,
	}
	if err := e.repo.InsertStage1(ctx, row); err != nil {
		return nil, err
	}

	maxTokens := 0
	if schema.MaxTokens != nil {
		maxTokens = *schema.MaxTokens
	}
	req := llm.Request{
		System:      schema.SystemPrompt,
		UserMessage: userPrompt,
		MaxTokens:   maxTokens,
		Provider:    opts.ProviderOverride,
		Model:       opts.ModelOverride,
	}
	if req.Model == "" && schema.ModelName != nil {
		req.Model = *schema.ModelName
	}
	if schema.Temperature != nil {
		req.Temperature = *schema.Temperature
	}

	data, resp, notes, callErr := e.extract(ctx, req)
	if callErr != nil {
		classified := llm.Classify("", callErr)
		msg := classified.Error()
		_ = e.repo.FailStage1(ctx, row.ID, msg)
		_ = e.articles.RecordExtractionError(ctx, articleID, msg, string(classified.Category))
		return nil, classified
	}

	row.ExtractionData = toMap(data)
	row.EntityCount = len(data.Entities)
	row.EventCount = len(data.Events)
	row.OverallConfidence = &data.ExtractionConfidence
	row.Provider = &resp.Provider
	row.Model = &resp.Model
	row.InputTokens = resp.InputTokens
	row.OutputTokens = resp.OutputTokens
	row.LatencyMS = resp.Latency.Milliseconds()
	row.ExtractionNotes = notes

	if err := e.repo.FinalizeStage1(ctx, row); err != nil {
		return nil, err
	}

	e.log.Info("stage1 extraction complete",
		slog.String("article_id", articleID.String()),
		slog.Int("entities", row.EntityCount),
		slog.Int("events", row.EventCount),
		slog.Bool("truncated", strings.HasPrefix(notes, truncatedPrefix)))

	return row, nil
}

// extract performs the LLM call with truncation recovery: JSON repair of a
// cut-off response, then one adaptive retry at doubled max_tokens asking
// for the top incidents only. The richer result wins.
func (e *Stage1Extractor) extract(ctx context.Context, req llm.Request) (*Stage1Data, *llm.Response, string, error) {
	resp, err := e.router.Call(ctx, llm.StageStage1, req)
	if err != nil {
		return nil, nil, "", err
	}

	if !resp.Truncated() {
		data, parseErr := parseStage1(resp.Text)
		if parseErr != nil {
			return nil, nil, "", llm.NewPartial(resp.Provider, "invalid_json",
				fmt.Sprintf("stage1 output did not parse: %v", parseErr), parseErr)
		}
		return data, resp, "", nil
	}

	e.log.Warn("stage1 response truncated, attempting repair",
		slog.String("stop_reason", resp.StopReason))

	var partial *Stage1Data
	if repaired, ok := repairTruncatedJSON(resp.Text); ok {
		if data, parseErr := parseStage1(repaired); parseErr == nil {
			partial = data
		}
	}

	retryReq := req
	retryReq.MaxTokens = req.MaxTokens * 2
	if retryReq.MaxTokens <= 0 {
		retryReq.MaxTokens = maxAdaptiveTokens
	}
	if retryReq.MaxTokens > maxAdaptiveTokens {
		retryReq.MaxTokens = maxAdaptiveTokens
	}
	retryReq.UserMessage = req.UserMessage + retrySuffix

	retryResp, retryErr := e.router.Call(ctx, llm.StageStage1, retryReq)
	if retryErr == nil {
		retryText := retryResp.Text
		if retryResp.Truncated() {
			if repaired, ok := repairTruncatedJSON(retryText); ok {
				retryText = repaired
			}
		}
		if retryData, parseErr := parseStage1(retryText); parseErr == nil {
			if partial == nil || richness(retryData) >= richness(partial) {
				return retryData, retryResp, "", nil
			}
		}
	}

	if partial != nil {
		return partial, resp, truncatedPrefix + "kept repaired partial after truncation", nil
	}

	return nil, nil, "", llm.NewPartial(resp.Provider, "truncation_unrecovered",
		"stage1 output truncated and repair failed", nil)
}

func richness(d *Stage1Data) int {
	return len(d.Events) + len(d.Entities)
}

func parseStage1(text string) (*Stage1Data, error) {
	data := &Stage1Data{}
	if err := json.Unmarshal([]byte(extractJSON(text)), data); err != nil {
		return nil, err
	}
	return data, nil
}

func toMap(d *Stage1Data) map[string]any {
	raw, err := json.Marshal(d)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func hashPrompts(systemPrompt, userTemplate string) string {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(userTemplate))
	return hex.EncodeToString(h.Sum(nil))
}
