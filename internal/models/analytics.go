package models

import "time"

// Outcome is the judged result of one constraint trigger.
type Outcome string

const (
	OutcomeTruePositive  Outcome = "true_positive"
	OutcomeFalsePositive Outcome = "false_positive"
	OutcomeUnknown       Outcome = "unknown"
)

// NormalizeOutcome maps any unrecognized outcome value to unknown.
func NormalizeOutcome(raw string) Outcome {
	switch Outcome(raw) {
	case OutcomeTruePositive:
		return OutcomeTruePositive
	case OutcomeFalsePositive:
		return OutcomeFalsePositive
	default:
		return OutcomeUnknown
	}
}

// TriggerEvent is one entry in a constraint's trigger history. Query holds a
// truncated excerpt, not the full text.
type TriggerEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Result    Outcome   `json:"result"`
}

// SuggestionType classifies an improvement suggestion.
type SuggestionType string

const (
	SuggestNarrowPattern       SuggestionType = "narrow_pattern"
	SuggestAddContextFilter    SuggestionType = "add_context_filter"
	SuggestIncreaseEnforcement SuggestionType = "increase_enforcement"
	SuggestDisableConstraint   SuggestionType = "disable_constraint"
	SuggestNewConstraint       SuggestionType = "new_constraint"
)

// Suggestion is one proposed tuning action for an existing constraint.
type Suggestion struct {
	Type       SuggestionType `json:"type"`
	Reason     string         `json:"reason"`
	Suggestion string         `json:"suggestion"`
	Confidence float64        `json:"confidence"`
}

// ConstraintCandidate proposes a brand-new constraint mined from query
// history: a word that keeps showing up but is not a trigger keyword on any
// existing constraint.
type ConstraintCandidate struct {
	Type                 SuggestionType    `json:"type"`
	Pattern              string            `json:"pattern"`
	Frequency            int               `json:"frequency"`
	SuggestedDescription string            `json:"suggested_description"`
	Confidence           float64           `json:"confidence"`
	EnforcementAction    EnforcementAction `json:"enforcement_action"`
}

// AnalyticsRecord tracks the real-world performance of one constraint. It
// has an independent lifecycle from the constraint itself: it is created on
// first feedback and survives constraint removal.
//
// Precision, EffectivenessScore and DriftScore are derived; they are
// recomputed after every recorded outcome and never hand-set.
type AnalyticsRecord struct {
	ConstraintID          string         `json:"constraint_id"`
	TotalTriggers         int            `json:"total_triggers"`
	FalsePositives        int            `json:"false_positives"`
	TruePositives         int            `json:"true_positives"`
	Unknown               int            `json:"unknown"`
	AutoDisabledCount     int            `json:"auto_disabled_count"`
	LastAnalyzed          *time.Time     `json:"last_analyzed"`
	Precision             float64        `json:"precision"`
	EffectivenessScore    float64        `json:"effectiveness_score"`
	DriftScore            float64        `json:"drift_score"`
	TriggerHistory        []TriggerEvent `json:"trigger_history"`
	SuggestedImprovements []Suggestion   `json:"suggested_improvements"`
}

// GlobalStats aggregates supervision activity across all constraints. Most
// fields are maintained by the surrounding tooling; the engine itself only
// bumps TotalSuggestionsGenerated and round-trips the rest.
type GlobalStats struct {
	TotalConstraints          int     `json:"total_constraints"`
	HealthyConstraints        int     `json:"healthy_constraints"`
	DriftingConstraints       int     `json:"drifting_constraints"`
	DisabledConstraints       int     `json:"disabled_constraints"`
	AveragePrecision          float64 `json:"average_precision"`
	TotalSuggestionsGenerated int     `json:"total_suggestions_generated"`
	SuggestionsAccepted       int     `json:"suggestions_accepted"`
}

// LearnedPattern is reserved for the auto-tuning collaborator; the engine
// round-trips it untouched.
type LearnedPattern struct {
	Pattern    string    `json:"pattern"`
	Confidence float64   `json:"confidence"`
	ObservedAt time.Time `json:"observed_at"`
}

// AnalyticsDocument is the durable envelope of the supervision store.
type AnalyticsDocument struct {
	Version         string                      `json:"analytics_version"`
	Created         time.Time                   `json:"created"`
	Constraints     map[string]*AnalyticsRecord `json:"constraints"`
	GlobalStats     GlobalStats                 `json:"global_stats"`
	LearnedPatterns []LearnedPattern            `json:"learned_patterns"`
}

// HealthStatus classifies a constraint's supervision state.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthAcceptable  HealthStatus = "acceptable"
	HealthNeedsReview HealthStatus = "needs_review"
	HealthUnhealthy   HealthStatus = "unhealthy"
	HealthNoData      HealthStatus = "no_data"
	HealthNoTriggers  HealthStatus = "no_triggers"
)

// Overall fleet status values reported by the dashboard.
const (
	OverallHealthy        = "healthy"
	OverallAcceptable     = "acceptable"
	OverallNeedsAttention = "needs_attention"
)

// HealthReport is the result of analyzing one constraint's analytics.
// TotalTriggers counts judged outcomes only (true plus false positives);
// unknown feedback does not move the health needle.
type HealthReport struct {
	ConstraintID      string       `json:"constraint_id,omitempty"`
	Status            HealthStatus `json:"status"`
	Message           string       `json:"message,omitempty"`
	Precision         float64      `json:"precision"`
	FalsePositiveRate float64      `json:"fp_rate"`
	Effectiveness     float64      `json:"effectiveness_score"`
	Drift             float64      `json:"drift_score"`
	TotalTriggers     int          `json:"total_triggers"`
	TruePositives     int          `json:"true_positives"`
	FalsePositives    int          `json:"false_positives"`
	Recommendations   []string     `json:"recommendations,omitempty"`
}

// OverallHealth summarizes the whole rule fleet.
type OverallHealth struct {
	Status           string  `json:"status"`
	AveragePrecision float64 `json:"average_precision"`
	TotalConstraints int     `json:"total_constraints"`
	HealthyCount     int     `json:"healthy_count"`
	NeedsReviewCount int     `json:"needs_review_count"`
	UnhealthyCount   int     `json:"unhealthy_count"`
}

// Dashboard is the fleet-wide supervision view. Constraints without judged
// feedback (no_data, no_triggers) are omitted from every bucket.
type Dashboard struct {
	OverallHealth        OverallHealth  `json:"overall_health"`
	Healthy              []HealthReport `json:"healthy_constraints"`
	NeedsReview          []HealthReport `json:"needs_review"`
	Unhealthy            []HealthReport `json:"unhealthy"`
	SuggestionsAvailable int            `json:"suggestions_available"`
}
