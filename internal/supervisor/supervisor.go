package supervisor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"constraint-engine/internal/config"
	"constraint-engine/internal/models"
)

// ConstraintSource is the view of the rule store the supervisor needs: it
// looks rules up when generating suggestions but never mutates them.
type ConstraintSource interface {
	Get(idPrefix string) (models.Constraint, bool)
	List() []models.Constraint
}

// Supervisor tracks how rules perform in the real world. It keeps an
// analytics document keyed by constraint ID, recomputes derived metrics on
// every recorded outcome, and persists the document atomically. Analytics
// records outlive the rules they describe.
type Supervisor struct {
	cfg    *config.SupervisorConfig
	logger *zap.Logger
	source ConstraintSource

	mu   sync.Mutex
	doc  *models.AnalyticsDocument
	path string
}

// NewSupervisor loads the analytics document, migrating older schemas.
// Missing or corrupt files start a fresh document; a missing file is
// written out immediately so the store exists from first run.
func NewSupervisor(cfg *config.SupervisorConfig, source ConstraintSource, logger *zap.Logger) *Supervisor {
	sv := &Supervisor{
		cfg:    cfg,
		source: source,
		logger: logger,
		path:   cfg.AnalyticsPath,
	}
	sv.doc = sv.load()

	if _, err := os.Stat(sv.path); os.IsNotExist(err) {
		sv.mu.Lock()
		if err := sv.persistLocked(); err != nil {
			logger.Warn("Failed to write initial analytics file", zap.Error(err))
		}
		sv.mu.Unlock()
	}

	logger.Info("Supervisor initialized",
		zap.String("path", sv.path),
		zap.Int("tracked", len(sv.doc.Constraints)))
	return sv
}

func defaultDocument() *models.AnalyticsDocument {
	return &models.AnalyticsDocument{
		Version:         currentAnalyticsVersion,
		Created:         time.Now(),
		Constraints:     make(map[string]*models.AnalyticsRecord),
		LearnedPatterns: []models.LearnedPattern{},
	}
}

// load reads the analytics document from disk. Anything short of a valid
// document falls back to a fresh one; analytics must never block startup.
func (sv *Supervisor) load() *models.AnalyticsDocument {
	data, err := os.ReadFile(sv.path)
	if err != nil {
		if !os.IsNotExist(err) {
			sv.logger.Warn("Failed to read analytics file, starting fresh",
				zap.String("path", sv.path),
				zap.Error(err))
		}
		return defaultDocument()
	}

	var doc models.AnalyticsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		sv.logger.Warn("Failed to parse analytics file, starting fresh",
			zap.String("path", sv.path),
			zap.Error(err))
		return defaultDocument()
	}
	if doc.Version == "" || doc.Constraints == nil {
		sv.logger.Warn("Analytics file missing required fields, starting fresh",
			zap.String("path", sv.path))
		return defaultDocument()
	}
	return sv.migrate(&doc)
}

// persistLocked writes the analytics document atomically: temp file in the
// same directory, then rename. Callers must hold the mutex.
func (sv *Supervisor) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(sv.path), 0o700); err != nil {
		return fmt.Errorf("failed to create analytics directory: %w", err)
	}

	data, err := json.MarshalIndent(sv.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}

	tmp := strings.TrimSuffix(sv.path, filepath.Ext(sv.path)) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp analytics file: %w", err)
	}
	if err := os.Rename(tmp, sv.path); err != nil {
		return fmt.Errorf("failed to replace analytics file: %w", err)
	}
	return nil
}

// RecordTrigger records one judged trigger for a constraint and recomputes
// its derived metrics. The record is created on first feedback; unknown
// outcome values count as unknown. Reports whether the document persisted.
func (sv *Supervisor) RecordTrigger(constraintID, query string, outcome models.Outcome) bool {
	outcome = models.NormalizeOutcome(string(outcome))
	now := time.Now()

	sv.mu.Lock()
	defer sv.mu.Unlock()

	rec, ok := sv.doc.Constraints[constraintID]
	if !ok {
		rec = &models.AnalyticsRecord{
			ConstraintID:          constraintID,
			TriggerHistory:        []models.TriggerEvent{},
			SuggestedImprovements: []models.Suggestion{},
		}
		sv.doc.Constraints[constraintID] = rec
	}

	rec.TotalTriggers++
	switch outcome {
	case models.OutcomeTruePositive:
		rec.TruePositives++
	case models.OutcomeFalsePositive:
		rec.FalsePositives++
	default:
		rec.Unknown++
	}

	rec.TriggerHistory = append(rec.TriggerHistory, models.TriggerEvent{
		Timestamp: now,
		Query:     truncateExcerpt(query, sv.cfg.ExcerptLimit),
		Result:    outcome,
	})
	if over := len(rec.TriggerHistory) - sv.cfg.HistoryLimit; over > 0 {
		rec.TriggerHistory = rec.TriggerHistory[over:]
	}

	sv.recalculateLocked(rec)

	if err := sv.persistLocked(); err != nil {
		sv.logger.Warn("Failed to persist analytics", zap.Error(err))
		return false
	}

	sv.logger.Debug("Trigger recorded",
		zap.String("constraint_id", constraintID),
		zap.String("outcome", string(outcome)))
	return true
}

// recalculateLocked refreshes the derived metrics after a counter change.
// Precision and effectiveness consider judged outcomes only; effectiveness
// scales precision by trigger volume, saturating at 100 judged triggers.
func (sv *Supervisor) recalculateLocked(rec *models.AnalyticsRecord) {
	judged := rec.TruePositives + rec.FalsePositives

	if judged > 0 {
		rec.Precision = float64(rec.TruePositives) / float64(judged)
	} else {
		rec.Precision = 0
	}

	volume := math.Min(float64(judged)/100, 1)
	rec.EffectivenessScore = rec.Precision * volume

	rec.DriftScore = driftScore(rec.TriggerHistory, sv.cfg.DriftWindow)

	now := time.Now()
	rec.LastAnalyzed = &now
}

func truncateExcerpt(query string, limit int) string {
	runes := []rune(query)
	if len(runes) <= limit {
		return query
	}
	return string(runes[:limit])
}

// Record returns a copy of one constraint's analytics record.
func (sv *Supervisor) Record(constraintID string) (models.AnalyticsRecord, bool) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	rec, ok := sv.doc.Constraints[constraintID]
	if !ok {
		return models.AnalyticsRecord{}, false
	}
	out := *rec
	out.TriggerHistory = append([]models.TriggerEvent(nil), rec.TriggerHistory...)
	out.SuggestedImprovements = append([]models.Suggestion(nil), rec.SuggestedImprovements...)
	return out, true
}

// AnalyzeHealth classifies one constraint's performance. Constraints with
// no record report no_data; constraints with no judged feedback report
// no_triggers. Everything else gets a full report with recommendations.
func (sv *Supervisor) AnalyzeHealth(constraintID string) models.HealthReport {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.analyzeHealthLocked(constraintID)
}

func (sv *Supervisor) analyzeHealthLocked(constraintID string) models.HealthReport {
	rec, ok := sv.doc.Constraints[constraintID]
	if !ok {
		return models.HealthReport{
			Status:  models.HealthNoData,
			Message: "No analytics data available",
		}
	}

	judged := rec.TruePositives + rec.FalsePositives
	if judged == 0 {
		return models.HealthReport{
			Status:  models.HealthNoTriggers,
			Message: "Constraint has not been triggered yet",
		}
	}

	precision := float64(rec.TruePositives) / float64(judged)
	fpRate := float64(rec.FalsePositives) / float64(judged)

	var status models.HealthStatus
	switch {
	case precision >= 0.90 && rec.DriftScore < 0.2:
		status = models.HealthHealthy
	case precision >= 0.75 && rec.DriftScore < 0.5:
		status = models.HealthAcceptable
	case precision >= 0.50 || rec.DriftScore < 0.7:
		status = models.HealthNeedsReview
	default:
		status = models.HealthUnhealthy
	}

	return models.HealthReport{
		ConstraintID:      constraintID,
		Status:            status,
		Precision:         round3(precision),
		FalsePositiveRate: round3(fpRate),
		Effectiveness:     round3(rec.EffectivenessScore),
		Drift:             round3(rec.DriftScore),
		TotalTriggers:     judged,
		TruePositives:     rec.TruePositives,
		FalsePositives:    rec.FalsePositives,
		Recommendations:   healthRecommendations(precision, fpRate, rec.DriftScore),
	}
}

func healthRecommendations(precision, fpRate, drift float64) []string {
	var recs []string
	if precision < 0.70 {
		recs = append(recs, "Low precision - Consider narrowing trigger patterns or adding context filters")
	}
	if fpRate > 0.30 {
		recs = append(recs, "High false positive rate - Review recent false positives and adjust patterns")
	}
	if drift > 0.50 {
		recs = append(recs, "High drift detected - Constraint effectiveness is declining over time")
	}
	if drift > 0.70 {
		recs = append(recs, "CRITICAL: Very high drift - Consider disabling or rewriting this constraint")
	}
	if len(recs) == 0 {
		recs = append(recs, "Constraint is performing well - no action needed")
	}
	return recs
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Dashboard builds the fleet-wide supervision view. Constraints without
// judged feedback are left out of every bucket; acceptable constraints
// count as healthy for bucketing while keeping their own status.
func (sv *Supervisor) Dashboard() models.Dashboard {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	ids := make([]string, 0, len(sv.doc.Constraints))
	for id := range sv.doc.Constraints {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dashboard := models.Dashboard{
		Healthy:     []models.HealthReport{},
		NeedsReview: []models.HealthReport{},
		Unhealthy:   []models.HealthReport{},
	}

	totalPrecision := 0.0
	judged := 0
	for _, id := range ids {
		health := sv.analyzeHealthLocked(id)
		switch health.Status {
		case models.HealthHealthy, models.HealthAcceptable:
			dashboard.Healthy = append(dashboard.Healthy, health)
		case models.HealthNeedsReview:
			dashboard.NeedsReview = append(dashboard.NeedsReview, health)
		case models.HealthUnhealthy:
			dashboard.Unhealthy = append(dashboard.Unhealthy, health)
		default:
			continue
		}
		totalPrecision += health.Precision
		judged++
	}

	average := 0.0
	if judged > 0 {
		average = totalPrecision / float64(judged)
	}

	status := models.OverallNeedsAttention
	switch {
	case len(dashboard.Unhealthy) == 0 && len(dashboard.NeedsReview) <= 2:
		status = models.OverallHealthy
	case len(dashboard.Unhealthy) <= 1:
		status = models.OverallAcceptable
	}

	dashboard.OverallHealth = models.OverallHealth{
		Status:           status,
		AveragePrecision: round3(average),
		TotalConstraints: judged,
		HealthyCount:     len(dashboard.Healthy),
		NeedsReviewCount: len(dashboard.NeedsReview),
		UnhealthyCount:   len(dashboard.Unhealthy),
	}
	dashboard.SuggestionsAvailable = sv.doc.GlobalStats.TotalSuggestionsGenerated
	return dashboard
}

// Path returns the analytics file location.
func (sv *Supervisor) Path() string {
	return sv.path
}
