package models

import (
	"strings"
	"time"
)

// TriggerLogic determines how a constraint combines its predicate results.
type TriggerLogic string

const (
	LogicOR  TriggerLogic = "OR"
	LogicAND TriggerLogic = "AND"
	LogicNOT TriggerLogic = "NOT"
)

// NormalizeTriggerLogic maps any unrecognized logic value to OR.
func NormalizeTriggerLogic(raw string) TriggerLogic {
	switch TriggerLogic(strings.ToUpper(strings.TrimSpace(raw))) {
	case LogicAND:
		return LogicAND
	case LogicNOT:
		return LogicNOT
	default:
		return LogicOR
	}
}

// EnforcementAction is what the caller should do when a constraint matches.
type EnforcementAction string

const (
	ActionWarn          EnforcementAction = "warn"
	ActionBlock         EnforcementAction = "block"
	ActionRequireAction EnforcementAction = "require_action"
)

// Constraint versions. Version is fixed at creation and selects the
// predicate evaluator for the life of the constraint.
const (
	VersionKeyword  = 1
	VersionAdvanced = 2
)

// Constraint is a persisted behavioral rule plus its enforcement action.
type Constraint struct {
	ID                 string              `json:"constraint_id"`
	Description        string              `json:"description"`
	TriggerKeywords    []string            `json:"trigger_keywords"`
	TriggerPatterns    []string            `json:"trigger_patterns,omitempty"`
	TriggerLogic       TriggerLogic        `json:"trigger_logic,omitempty"`
	ContextFilters     map[string][]string `json:"context_filters,omitempty"`
	EnforcementAction  EnforcementAction   `json:"enforcement_action"`
	EnforcementMessage string              `json:"enforcement_message"`
	Created            time.Time           `json:"created"`
	TriggeredCount     int                 `json:"triggered_count"`
	LastTriggered      *time.Time          `json:"last_triggered"`
	Enabled            bool                `json:"enabled"`
	Version            int                 `json:"version"`
	FalsePositiveCount int                 `json:"false_positive_count,omitempty"`
}

// Clone returns a deep copy, so callers can hand out constraint values
// without exposing the store's internal state to mutation.
func (c *Constraint) Clone() Constraint {
	out := *c
	if c.TriggerKeywords != nil {
		out.TriggerKeywords = append([]string(nil), c.TriggerKeywords...)
	}
	if c.TriggerPatterns != nil {
		out.TriggerPatterns = append([]string(nil), c.TriggerPatterns...)
	}
	if c.ContextFilters != nil {
		out.ContextFilters = make(map[string][]string, len(c.ContextFilters))
		for k, v := range c.ContextFilters {
			out.ContextFilters[k] = append([]string(nil), v...)
		}
	}
	if c.LastTriggered != nil {
		t := *c.LastTriggered
		out.LastTriggered = &t
	}
	return out
}

// PredicateCount is the number of predicates the evaluator will consider.
func (c *Constraint) PredicateCount() int {
	return len(c.TriggerKeywords) + len(c.TriggerPatterns)
}

// Shape is the exportable form of a constraint: everything that defines its
// behavior, nothing that identifies or counts it. Template import/export
// round-trips shapes and regenerates ids on the way back in.
type Shape struct {
	Description        string              `json:"description"`
	TriggerKeywords    []string            `json:"trigger_keywords,omitempty"`
	TriggerPatterns    []string            `json:"trigger_patterns,omitempty"`
	TriggerLogic       TriggerLogic        `json:"trigger_logic,omitempty"`
	ContextFilters     map[string][]string `json:"context_filters,omitempty"`
	EnforcementAction  EnforcementAction   `json:"enforcement_action,omitempty"`
	EnforcementMessage string              `json:"enforcement_message,omitempty"`
}

// Advanced reports whether the shape needs the v2 evaluator.
func (s *Shape) Advanced() bool {
	return len(s.TriggerPatterns) > 0 || s.TriggerLogic != "" || len(s.ContextFilters) > 0
}

// EvaluationRequest asks the engine to check free text against the rule set.
type EvaluationRequest struct {
	Query   string            `json:"query"`
	Context map[string]string `json:"context,omitempty"`
	// LegacyOnly restricts evaluation to version-1 keyword matching.
	LegacyOnly bool `json:"legacy_only,omitempty"`
}

// EvaluationResult is the outcome of one engine evaluation.
type EvaluationResult struct {
	Query          string        `json:"query"`
	Matched        bool          `json:"matched"`
	Matches        []Constraint  `json:"matches"`
	ProcessingTime time.Duration `json:"processing_time"`
	Timestamp      time.Time     `json:"timestamp"`
}

// FeedbackEvent reports a later human judgment of one trigger.
type FeedbackEvent struct {
	ConstraintID string  `json:"constraint_id"`
	Query        string  `json:"query"`
	Outcome      Outcome `json:"outcome"`
}

// MostTriggered identifies the constraint with the highest trigger count.
type MostTriggered struct {
	ConstraintID   string `json:"constraint_id"`
	Description    string `json:"description"`
	TriggeredCount int    `json:"triggered_count"`
}

// StoreStats is the aggregate view over the rule set.
type StoreStats struct {
	TotalConstraints   int            `json:"total_constraints"`
	EnabledConstraints int            `json:"enabled_constraints"`
	TotalTriggers      int            `json:"total_triggers"`
	MostTriggered      *MostTriggered `json:"most_triggered,omitempty"`
}
