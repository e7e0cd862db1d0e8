package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/domain/incidents"
	"github.com/incidentwire/incidentwire/pkg/logger"
)

// Universal minimums used when neither caller, type row, nor category
// supplies required fields.
var universalRequiredFields = []string{"date", "state"}

// TypeThresholdSource loads database-backed per-type threshold overrides.
type TypeThresholdSource interface {
	GetIncidentType(ctx context.Context, id uuid.UUID) (*incidents.IncidentType, error)
}

// Overrides lets the caller pin decision inputs.
type Overrides struct {
	RequiredFields []string
}

// Decision is the decider's output.
type Decision struct {
	Decision   string         `json:"decision"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Details    map[string]any `json:"details,omitempty"`
}

// Decider evaluates one extraction against the gate sequence.
type Decider struct {
	config DeciderConfig
	types  TypeThresholdSource
	log    *slog.Logger
}

func NewDecider(config DeciderConfig, types TypeThresholdSource, log *slog.Logger) *Decider {
	return &Decider{
		config: config,
		types:  types,
		log:    log.With(logger.Scope("approval")),
	}
}

// Decide runs the gates in order: relevance, reject floor, required fields,
// per-field confidence, severity, confidence bands. The first applicable
// gate wins.
func (d *Decider) Decide(
	ctx context.Context,
	extraction map[string]any,
	category string,
	incidentTypeID *uuid.UUID,
	overrides *Overrides,
) Decision {
	data := normalize(extraction)
	confidence := overallConfidence(data)
	catCfg := d.config.categoryConfig(category)

	var typeRow *incidents.IncidentType
	if incidentTypeID != nil && d.types != nil {
		if row, err := d.types.GetIncidentType(ctx, *incidentTypeID); err == nil {
			typeRow = row
		} else {
			d.log.Warn("type threshold lookup failed", logger.Error(err))
		}
	}

	if relevant, ok := data["is_relevant"].(bool); ok && !relevant && d.config.AutoRejectEnabled {
		return Decision{
			Decision:   DecisionAutoReject,
			Confidence: confidence,
			Reason:     "Article marked not relevant",
		}
	}

	rejectBelow := d.config.AutoRejectBelow
	if rejectBelow == 0 {
		rejectBelow = DefaultAutoRejectBelow
	}
	if confidence < rejectBelow && d.config.AutoRejectEnabled {
		return Decision{
			Decision:   DecisionAutoReject,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Extraction confidence (%.0f%%) below threshold", confidence*100),
		}
	}

	required := resolveRequiredFields(overrides, typeRow, catCfg)
	if missing := missingFields(data, required); len(missing) > 0 {
		return Decision{
			Decision:   DecisionNeedsReview,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")),
			Details:    map[string]any{"missing_fields": missing},
		}
	}

	fieldMin := catCfg.FieldConfidenceMin
	if fieldMin == 0 {
		fieldMin = DefaultFieldConfidenceMin
	}
	if typeRow != nil && typeRow.FieldConfidenceMin != nil {
		fieldMin = *typeRow.FieldConfidenceMin
	}
	if low := lowConfidenceFields(data, required, fieldMin); len(low) > 0 {
		return Decision{
			Decision:   DecisionNeedsReview,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Low field confidence: %s", strings.Join(low, ", ")),
			Details:    map[string]any{"low_confidence_fields": low},
		}
	}

	severity := SeverityOf(stringValue(data, "incident_type"))
	if !catCfg.SeverityGateDisabled {
		if d.config.AutoRejectEnabled && catCfg.MaxSeverityAutoReject > 0 && severity < catCfg.MaxSeverityAutoReject {
			return Decision{
				Decision:   DecisionAutoReject,
				Confidence: confidence,
				Reason:     fmt.Sprintf("Severity %d below auto-reject floor", severity),
				Details:    map[string]any{"severity": severity},
			}
		}
	}
	severityOK := catCfg.SeverityGateDisabled || severity >= catCfg.MinSeverityAutoApprove

	approveThreshold := catCfg.AutoApproveThreshold
	if typeRow != nil && typeRow.AutoApproveThreshold != nil {
		approveThreshold = *typeRow.AutoApproveThreshold
	}
	if d.config.AutoApproveEnabled && approveThreshold > 0 && confidence >= approveThreshold && severityOK {
		return Decision{
			Decision:   DecisionAutoApprove,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Confidence %.0f%% meets auto-approve threshold", confidence*100),
			Details:    map[string]any{"severity": severity},
		}
	}

	reviewMin := catCfg.MinConfidenceReview
	if reviewMin == 0 {
		reviewMin = DefaultMinConfidenceReview
	}
	if typeRow != nil && typeRow.MinConfidenceReview != nil {
		reviewMin = *typeRow.MinConfidenceReview
	}
	if confidence >= reviewMin {
		return Decision{
			Decision:   DecisionNeedsReview,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Confidence %.0f%% requires review", confidence*100),
		}
	}
	return Decision{
		Decision:   DecisionNeedsReview,
		Confidence: confidence,
		Reason:     "evaluation complete",
	}
}

// normalize copies the extraction and flattens the legacy shapes the
// decider understands.
func normalize(extraction map[string]any) map[string]any {
	data := make(map[string]any, len(extraction))
	for k, v := range extraction {
		data[k] = v
	}

	if loc, ok := data["location"].(map[string]any); ok {
		if _, has := data["state"]; !has {
			if v, ok := loc["state"]; ok {
				data["state"] = v
			}
		}
		if _, has := data["city"]; !has {
			if v, ok := loc["city"]; ok {
				data["city"] = v
			}
		}
	}

	if stringValue(data, "incident_type") == "" {
		if charges, ok := data["charges"].([]any); ok && len(charges) > 0 {
			data["incident_type"] = fmt.Sprint(charges[0])
		} else {
			for _, key := range []string{"violation_type", "case_type", "event_type"} {
				if v, ok := data[key]; ok && fmt.Sprint(v) != "" {
					data["incident_type"] = fmt.Sprint(v)
					break
				}
			}
		}
	}

	if _, has := data["offender_immigration_status"]; !has {
		if v, ok := data["immigration_status"]; ok {
			data["offender_immigration_status"] = v
		}
	}

	if _, has := data["overall_confidence"]; !has {
		if v, ok := data["confidence"]; ok {
			data["overall_confidence"] = v
		}
	}
	return data
}

func overallConfidence(data map[string]any) float64 {
	if v, ok := data["overall_confidence"].(float64); ok {
		if v > 1.0 {
			return v / 100
		}
		return v
	}
	return 0
}

func resolveRequiredFields(overrides *Overrides, typeRow *incidents.IncidentType, catCfg CategoryConfig) []string {
	if overrides != nil && len(overrides.RequiredFields) > 0 {
		return overrides.RequiredFields
	}
	if typeRow != nil && len(typeRow.RequiredFields) > 0 {
		return typeRow.RequiredFields
	}
	if len(catCfg.RequiredFields) > 0 {
		return catCfg.RequiredFields
	}
	return universalRequiredFields
}

func missingFields(data map[string]any, required []string) []string {
	var missing []string
	for _, field := range required {
		if stringValue(data, field) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

// lowConfidenceFields checks field_confidence[field] then the flat
// <field>_confidence key; absent scores pass.
func lowConfidenceFields(data map[string]any, required []string, min float64) []string {
	perField, _ := data["field_confidence"].(map[string]any)

	var low []string
	for _, field := range required {
		score, ok := perField[field].(float64)
		if !ok {
			score, ok = data[field+"_confidence"].(float64)
		}
		if ok && score < min {
			low = append(low, field)
		}
	}
	return low
}

func stringValue(data map[string]any, field string) string {
	v, ok := data[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
