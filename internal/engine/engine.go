package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"constraint-engine/internal/match"
	"constraint-engine/internal/metrics"
	"constraint-engine/internal/models"
	"constraint-engine/internal/store"
	"constraint-engine/internal/supervisor"
)

// Evaluation modes reported to the metrics collector.
const (
	modeAdvanced = "advanced"
	modeLegacy   = "legacy"
)

var (
	// ErrNilRequest is returned when EvaluateQuery gets no request.
	ErrNilRequest = errors.New("evaluation request is required")

	// ErrMissingConstraintID is returned when feedback names no constraint.
	ErrMissingConstraintID = errors.New("constraint id is required")
)

// Engine is the single coordinating owner of the rule store, the
// supervisor, and the metrics collector. Callers go through it for
// evaluation, feedback, rule lifecycle, and reporting.
type Engine struct {
	logger     *zap.Logger
	store      *store.ConstraintStore
	supervisor *supervisor.Supervisor
	patterns   *match.PatternCache
	collector  *metrics.Collector
}

// New wires the engine facade and seeds the rule-set gauges.
func New(st *store.ConstraintStore, sv *supervisor.Supervisor, patterns *match.PatternCache, collector *metrics.Collector, logger *zap.Logger) *Engine {
	e := &Engine{
		logger:     logger,
		store:      st,
		supervisor: sv,
		patterns:   patterns,
		collector:  collector,
	}
	e.refreshGauges()
	return e
}

// EvaluateQuery checks the request's query text against the rule set and
// reports every matching rule. LegacyOnly restricts evaluation to
// version-1 keyword rules.
func (e *Engine) EvaluateQuery(ctx context.Context, req *models.EvaluationRequest) (*models.EvaluationResult, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var matches []models.Constraint
	mode := modeAdvanced
	if req.LegacyOnly {
		mode = modeLegacy
		matches = e.store.MatchLegacy(ctx, req.Query)
	} else {
		matches = e.store.MatchAdvanced(ctx, req.Query, req.Context)
	}
	if matches == nil {
		matches = []models.Constraint{}
	}

	duration := time.Since(start)
	e.collector.RecordEvaluation(mode, len(matches) > 0, duration)
	for _, m := range matches {
		e.collector.RecordMatch(string(m.EnforcementAction))
	}
	_, fallbacks := e.patterns.Stats()
	e.collector.SetPatternFallbacks(fallbacks)

	e.logger.Debug("Query evaluated",
		zap.String("mode", mode),
		zap.Int("matches", len(matches)),
		zap.Duration("duration", duration))

	return &models.EvaluationResult{
		Query:          req.Query,
		Matched:        len(matches) > 0,
		Matches:        matches,
		ProcessingTime: duration,
		Timestamp:      start,
	}, nil
}

// RecordFeedback records a human judgment of one trigger. The analytics
// update happens even for rules that have since been removed; false
// positive feedback is additionally mirrored onto the live rule's counter.
func (e *Engine) RecordFeedback(event models.FeedbackEvent) error {
	if event.ConstraintID == "" {
		return ErrMissingConstraintID
	}
	outcome := models.NormalizeOutcome(string(event.Outcome))

	constraintID := event.ConstraintID
	if c, ok := e.store.Get(event.ConstraintID); ok {
		constraintID = c.ID
	}

	if !e.supervisor.RecordTrigger(constraintID, event.Query, outcome) {
		e.collector.RecordPersistFailure("analytics")
	}
	if outcome == models.OutcomeFalsePositive {
		e.store.RecordFalsePositive(constraintID)
	}
	e.collector.RecordFeedback(string(outcome))
	return nil
}

// AddConstraint creates a rule from a shape.
func (e *Engine) AddConstraint(shape models.Shape) (models.Constraint, error) {
	c, err := e.store.ImportShape(shape)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidShape) {
			e.collector.RecordPersistFailure("rules")
		}
		return models.Constraint{}, err
	}
	e.refreshGauges()
	return c, nil
}

// RemoveConstraint deletes the rule matching idPrefix. Its analytics
// record survives.
func (e *Engine) RemoveConstraint(idPrefix string) bool {
	removed := e.store.Remove(idPrefix)
	if removed {
		e.refreshGauges()
	}
	return removed
}

// EnableConstraint turns the rule matching idPrefix back on.
func (e *Engine) EnableConstraint(idPrefix string) bool {
	enabled := e.store.Enable(idPrefix)
	if enabled {
		e.refreshGauges()
	}
	return enabled
}

// DisableConstraint turns the rule matching idPrefix off.
func (e *Engine) DisableConstraint(idPrefix string) bool {
	disabled := e.store.Disable(idPrefix)
	if disabled {
		e.refreshGauges()
	}
	return disabled
}

// GetConstraint returns the rule matching idPrefix.
func (e *Engine) GetConstraint(idPrefix string) (models.Constraint, bool) {
	return e.store.Get(idPrefix)
}

// ListConstraints returns all rules, disabled included, in stored order.
func (e *Engine) ListConstraints() []models.Constraint {
	return e.store.List()
}

// Stats summarizes the rule set.
func (e *Engine) Stats() models.StoreStats {
	return e.store.Stats()
}

// Health analyzes one rule's supervision state. The prefix resolves
// against live rules first so short prefixes work; removed rules are still
// reachable by their full ID.
func (e *Engine) Health(idPrefix string) models.HealthReport {
	return e.supervisor.AnalyzeHealth(e.resolveID(idPrefix))
}

// Suggestions proposes tuning actions for one rule.
func (e *Engine) Suggestions(idPrefix string) []models.Suggestion {
	return e.supervisor.SuggestImprovements(e.resolveID(idPrefix))
}

// SuggestNewConstraints mines query history for rule candidates.
func (e *Engine) SuggestNewConstraints(queryHistory []string) []models.ConstraintCandidate {
	return e.supervisor.SuggestNewConstraints(queryHistory)
}

// Dashboard builds the fleet-wide supervision view.
func (e *Engine) Dashboard() models.Dashboard {
	return e.supervisor.Dashboard()
}

// ExportShape returns one rule's definitional fields.
func (e *Engine) ExportShape(idPrefix string) (models.Shape, bool) {
	return e.store.ExportShape(idPrefix)
}

// ExportShapes returns every rule's definitional fields.
func (e *Engine) ExportShapes() []models.Shape {
	return e.store.ExportShapes()
}

func (e *Engine) resolveID(idPrefix string) string {
	if c, ok := e.store.Get(idPrefix); ok {
		return c.ID
	}
	return idPrefix
}

func (e *Engine) refreshGauges() {
	stats := e.store.Stats()
	e.collector.SetConstraintCounts(stats.TotalConstraints, stats.EnabledConstraints)
	e.collector.SetIndexTokens(e.store.IndexSize())
	_, fallbacks := e.patterns.Stats()
	e.collector.SetPatternFallbacks(fallbacks)
}
