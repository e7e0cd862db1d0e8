package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/incidentwire/incidentwire/domain/approval"
	"github.com/incidentwire/incidentwire/domain/dedup"
	"github.com/incidentwire/incidentwire/domain/extraction"
	"github.com/incidentwire/incidentwire/domain/incidents"
)

// StageDeps carries the services behind the built-in stages.
type StageDeps struct {
	Extraction *extraction.Service
	Dedup      *dedup.CrossSourceDetector
	Approval   *approval.Decider
	Writer     *incidents.Writer
}

// RegisterDefaultStages binds the built-in stage slugs seeded in the
// pipeline_stages table.
func RegisterDefaultStages(r *Registry, deps StageDeps) {
	r.Register("extraction", extractionStage(deps))
	r.Register("duplicate_check", duplicateStage(deps))
	r.Register("approval", approvalStage(deps))
	r.Register("incident_write", incidentWriteStage(deps))
}

func extractionStage(deps StageDeps) StageFunc {
	return func(ctx context.Context, sc *StageContext, _ map[string]any) StageResult {
		merged, err := deps.Extraction.ProcessArticle(ctx, sc.Article.ID, extraction.Stage1Options{})
		if err != nil {
			return Fail(err)
		}
		if merged == nil {
			return Skip("nothing extractable")
		}

		extracted := make(map[string]any, len(merged.ExtractedData)+1)
		for k, v := range merged.ExtractedData {
			extracted[k] = v
		}
		extracted["overall_confidence"] = merged.Confidence

		return Continue(map[string]any{
			"extracted":  extracted,
			"merge_info": mergeInfoMap(merged),
		})
	}
}

func duplicateStage(deps StageDeps) StageFunc {
	return func(ctx context.Context, sc *StageContext, _ map[string]any) StageResult {
		extracted, _ := sc.Data["extracted"].(map[string]any)
		res, err := deps.Dedup.Check(ctx, sc.Article.SourceURL,
			stringField(extracted, "description"), entitiesFromExtracted(extracted))
		if err != nil {
			return Fail(err)
		}
		if res.IsDuplicate {
			return Skip(fmt.Sprintf("duplicate of incident %s (%s, %.2f)",
				res.IncidentID, res.MatchType, res.Confidence))
		}
		return Continue(nil)
	}
}

func approvalStage(deps StageDeps) StageFunc {
	return func(ctx context.Context, sc *StageContext, config map[string]any) StageResult {
		extracted, _ := sc.Data["extracted"].(map[string]any)
		category, _ := config["category"].(string)
		if category == "" {
			category = approval.CategoryCrime
		}

		decision := deps.Approval.Decide(ctx, extracted, category, sc.IncidentTypeID, nil)
		if decision.Decision == approval.DecisionAutoReject {
			return Reject(decision.Reason)
		}
		return Continue(map[string]any{
			"decision":        decision.Decision,
			"decision_reason": decision.Reason,
			"confidence":      decision.Confidence,
		})
	}
}

func incidentWriteStage(deps StageDeps) StageFunc {
	return func(ctx context.Context, sc *StageContext, _ map[string]any) StageResult {
		if decision, _ := sc.Data["decision"].(string); decision != approval.DecisionAutoApprove {
			return Continue(nil)
		}
		extracted, _ := sc.Data["extracted"].(map[string]any)
		mergeInfo, _ := sc.Data["merge_info"].(map[string]any)

		res, err := deps.Writer.Create(ctx, extracted, sc.Article, nil, mergeInfo)
		if err != nil {
			return Fail(err)
		}
		return Continue(map[string]any{
			"incident_id":    res.IncidentID.String(),
			"actors_created": res.ActorsCreated,
			"category":       res.Category,
		})
	}
}

func entitiesFromExtracted(extracted map[string]any) dedup.Entities {
	e := dedup.Entities{
		OffenderName: stringField(extracted, "offender_name"),
		VictimName:   stringField(extracted, "victim_name"),
		IncidentType: stringField(extracted, "incident_type"),
		State:        stringField(extracted, "state"),
		City:         stringField(extracted, "city"),
	}
	if raw := stringField(extracted, "date"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			e.Date = &t
		}
	}
	return e
}

func stringField(data map[string]any, field string) string {
	if v, ok := data[field].(string); ok {
		return v
	}
	return ""
}

func mergeInfoMap(merged *extraction.MergedResult) map[string]any {
	raw := merged.MergeInfo
	out := map[string]any{
		"merged":         raw.Merged,
		"cluster_entity": raw.ClusterEntity,
		"schemas_merged": raw.SchemasMerged,
	}
	sources := make([]any, 0, len(raw.Sources))
	for _, src := range raw.Sources {
		sources = append(sources, map[string]any{
			"schema_name":        src.SchemaName,
			"domain_slug":        src.DomainSlug,
			"category_slug":      src.CategorySlug,
			"confidence":         src.Confidence,
			"role":               src.Role,
			"fields_contributed": src.FieldsContributed,
		})
	}
	out["sources"] = sources
	return out
}
