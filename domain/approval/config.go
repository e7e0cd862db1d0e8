// Package approval routes merged extractions to auto-approve, auto-reject,
// or human review using required-field, field-confidence, severity, and
// confidence-band gates.
package approval

// Decisions.
const (
	DecisionAutoApprove = "auto_approve"
	DecisionAutoReject  = "auto_reject"
	DecisionNeedsReview = "needs_review"
)

// Legacy category names carried by the static config.
const (
	CategoryEnforcement = "enforcement"
	CategoryCrime       = "crime"
)

// Global defaults; category and per-type settings override these.
const (
	DefaultAutoRejectBelow     = 0.30
	DefaultFieldConfidenceMin  = 0.70
	DefaultMinConfidenceReview = 0.50
)

// CategoryConfig carries the per-category decision thresholds. Zero values
// fall back to the global defaults.
type CategoryConfig struct {
	RequiredFields         []string
	FieldConfidenceMin     float64
	AutoApproveThreshold   float64
	MinConfidenceReview    float64
	MinSeverityAutoApprove int
	MaxSeverityAutoReject  int
	SeverityGateDisabled   bool
}

// DeciderConfig is the static decision configuration. Database-backed
// per-type thresholds win over category entries; both win over globals.
type DeciderConfig struct {
	AutoRejectEnabled  bool
	AutoApproveEnabled bool
	AutoRejectBelow    float64
	Categories         map[string]CategoryConfig
}

// DefaultConfig mirrors the legacy two-tier enforcement/crime split, with
// taxonomy domain slugs treated like crime but without the severity gate.
func DefaultConfig() DeciderConfig {
	return DeciderConfig{
		AutoRejectEnabled:  true,
		AutoApproveEnabled: true,
		AutoRejectBelow:    DefaultAutoRejectBelow,
		Categories: map[string]CategoryConfig{
			CategoryEnforcement: {
				RequiredFields:       []string{"date", "state", "incident_type"},
				FieldConfidenceMin:   0.75,
				AutoApproveThreshold: 0.90,
				MinConfidenceReview:  DefaultMinConfidenceReview,
				SeverityGateDisabled: true,
			},
			CategoryCrime: {
				RequiredFields:         []string{"date", "state", "incident_type", "offender_name"},
				FieldConfidenceMin:     DefaultFieldConfidenceMin,
				AutoApproveThreshold:   0.85,
				MinConfidenceReview:    DefaultMinConfidenceReview,
				MinSeverityAutoApprove: 5,
				MaxSeverityAutoReject:  0,
			},
		},
	}
}

// categoryConfig resolves a category entry; unknown categories (taxonomy
// domain slugs) get the crime thresholds without the severity gate.
func (c DeciderConfig) categoryConfig(category string) CategoryConfig {
	if cfg, ok := c.Categories[category]; ok {
		return cfg
	}
	return CategoryConfig{
		RequiredFields:       []string{"date", "state"},
		FieldConfidenceMin:   DefaultFieldConfidenceMin,
		AutoApproveThreshold: 0.85,
		MinConfidenceReview:  DefaultMinConfidenceReview,
		SeverityGateDisabled: true,
	}
}
