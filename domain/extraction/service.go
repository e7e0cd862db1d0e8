package extraction

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/articles"
	"github.com/incidentwire/incidentwire/domain/schemas"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Service drives the full two-stage extraction for one article and stores
// the merged result.
type Service struct {
	stage1   *Stage1Extractor
	stage2   *Stage2Router
	selector *Selector
	schemas  *schemas.Repository
	articles *articles.Repository
	log      *slog.Logger
}

// NewService wires the extraction service.
func NewService(
	stage1 *Stage1Extractor,
	stage2 *Stage2Router,
	schemaRepo *schemas.Repository,
	articleRepo *articles.Repository,
	log *slog.Logger,
) *Service {
	return &Service{
		stage1:   stage1,
		stage2:   stage2,
		selector: NewSelector(nil),
		schemas:  schemaRepo,
		articles: articleRepo,
		log:      log.With(logger.Scope("extraction.service")),
	}
}

// ProcessArticle runs Stage 1, Stage 2, and selection for an article, then
// stores the merged result on the article row. Returns the merged result,
// or nil when nothing usable was extracted.
func (s *Service) ProcessArticle(ctx context.Context, articleID uuid.UUID, opts Stage1Options) (*MergedResult, error) {
	stage1Row, err := s.stage1.Run(ctx, articleID, opts)
	if err != nil {
		return nil, err
	}

	stage2Rows, err := s.stage2.Run(ctx, stage1Row.ID, nil)
	if err != nil {
		return nil, err
	}
	if len(stage2Rows) == 0 {
		s.log.Info("no stage2 results for article",
			slog.String("article_id", articleID.String()))
		return nil, nil
	}

	labels := map[uuid.UUID]*schemas.ExtractionSchema{}
	if production, err := s.schemas.ProductionStage2(ctx); err == nil {
		for _, schema := range production {
			labels[schema.ID] = schema
		}
	}

	candidates := make([]CandidateResult, 0, len(stage2Rows))
	for _, row := range stage2Rows {
		c := CandidateResult{ExtractedData: row.ExtractedData}
		if row.Confidence != nil {
			c.Confidence = *row.Confidence
		}
		if schema, ok := labels[row.SchemaID]; ok {
			c.SchemaName = schema.Name
			c.DomainSlug = schema.DomainSlug
			c.CategorySlug = schema.CategorySlug
		}
		candidates = append(candidates, c)
	}

	merged := s.selector.Select(candidates)
	if merged == nil {
		return nil, nil
	}

	payload := make(map[string]any, len(merged.ExtractedData)+2)
	for k, v := range merged.ExtractedData {
		payload[k] = v
	}
	payload["overall_confidence"] = merged.Confidence
	payload["merge_info"] = encodeMergeInfo(merged.MergeInfo)

	if err := s.articles.SetExtracted(ctx, articleID, payload); err != nil {
		return nil, err
	}
	return merged, nil
}

func encodeMergeInfo(info MergeInfo) map[string]any {
	raw, err := json.Marshal(info)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}
