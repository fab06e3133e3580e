package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"constraint-engine/internal/config"
	"constraint-engine/internal/match"
	"constraint-engine/internal/models"
)

// minPrefixLen is the shortest ID prefix accepted by lookup operations.
// Shorter prefixes are too ambiguous to act on.
const minPrefixLen = 4

// ConstraintStore owns the rule set: in-memory state, the keyword index,
// and the JSON file both are loaded from and persisted to. All access goes
// through one RWMutex; evaluation takes the write lock because matching
// updates trigger counters.
type ConstraintStore struct {
	cfg       *config.StoreConfig
	logger    *zap.Logger
	evaluator *match.Evaluator

	mu          sync.RWMutex
	constraints []*models.Constraint
	index       *match.KeywordIndex
	path        string
}

// NewConstraintStore loads the rules file (missing or corrupt files start
// empty) and builds the keyword index.
func NewConstraintStore(cfg *config.StoreConfig, evaluator *match.Evaluator, logger *zap.Logger) *ConstraintStore {
	s := &ConstraintStore{
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		index:     match.NewKeywordIndex(),
		path:      cfg.RulesPath,
	}

	s.constraints = loadConstraints(s.path, logger)
	normalizeLoaded(s.constraints)
	s.index.Rebuild(s.constraints)

	logger.Info("Constraint store initialized",
		zap.String("path", s.path),
		zap.Int("constraints", len(s.constraints)),
		zap.Int("index_tokens", s.index.Size()))
	return s
}

// normalizeLoaded fills in fields older rule files omit. Rules written
// before versioning are keyword rules.
func normalizeLoaded(constraints []*models.Constraint) {
	for _, c := range constraints {
		if c.Version == 0 {
			c.Version = models.VersionKeyword
		}
	}
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func newConstraintID() string {
	return uuid.New().String()[:8]
}

// Add creates a version-1 keyword rule. Keywords are lowercased; the
// enforcement action defaults to warn and the message to the description.
func (s *ConstraintStore) Add(description string, keywords []string, action models.EnforcementAction, message string) (models.Constraint, error) {
	if action == "" {
		action = models.ActionWarn
	}
	if message == "" {
		message = description
	}

	c := &models.Constraint{
		ID:                 newConstraintID(),
		Description:        description,
		TriggerKeywords:    normalizeKeywords(keywords),
		EnforcementAction:  action,
		EnforcementMessage: message,
		Created:            time.Now(),
		Enabled:            true,
		Version:            models.VersionKeyword,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.constraints = append(s.constraints, c)
	s.index.Rebuild(s.constraints)
	if err := s.persistLocked(); err != nil {
		return models.Constraint{}, err
	}

	s.logger.Info("Constraint added",
		zap.String("constraint_id", c.ID),
		zap.Int("keywords", len(c.TriggerKeywords)))
	return c.Clone(), nil
}

// AddAdvanced creates a version-2 rule from a shape: patterns, keywords,
// trigger logic, and context filters. Unknown logic values fall back to OR;
// invalid patterns are logged here and degrade to literal matching later.
func (s *ConstraintStore) AddAdvanced(shape models.Shape) (models.Constraint, error) {
	action := shape.EnforcementAction
	if action == "" {
		action = models.ActionWarn
	}
	message := shape.EnforcementMessage
	if message == "" {
		message = shape.Description
	}

	c := &models.Constraint{
		ID:                 newConstraintID(),
		Description:        shape.Description,
		TriggerKeywords:    normalizeKeywords(shape.TriggerKeywords),
		TriggerPatterns:    append([]string(nil), shape.TriggerPatterns...),
		TriggerLogic:       models.NormalizeTriggerLogic(string(shape.TriggerLogic)),
		ContextFilters:     shape.ContextFilters,
		EnforcementAction:  action,
		EnforcementMessage: message,
		Created:            time.Now(),
		Enabled:            true,
		Version:            models.VersionAdvanced,
	}

	s.evaluator.Patterns().Warm(c.TriggerPatterns)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.constraints = append(s.constraints, c)
	s.index.Rebuild(s.constraints)
	if err := s.persistLocked(); err != nil {
		return models.Constraint{}, err
	}

	s.logger.Info("Constraint added",
		zap.String("constraint_id", c.ID),
		zap.String("logic", string(c.TriggerLogic)),
		zap.Int("keywords", len(c.TriggerKeywords)),
		zap.Int("patterns", len(c.TriggerPatterns)))
	return c.Clone(), nil
}

// ImportShape creates a rule from an exported shape, choosing the rule
// version from the fields the shape carries.
func (s *ConstraintStore) ImportShape(shape models.Shape) (models.Constraint, error) {
	if strings.TrimSpace(shape.Description) == "" {
		return models.Constraint{}, fmt.Errorf("%w: description is required", ErrInvalidShape)
	}
	if shape.Advanced() {
		return s.AddAdvanced(shape)
	}
	return s.Add(shape.Description, shape.TriggerKeywords, shape.EnforcementAction, shape.EnforcementMessage)
}

// MatchLegacy checks text against enabled version-1 rules only, using
// case-insensitive keyword containment. Matched rules get their trigger
// counters updated and the rule set is persisted once if anything matched.
func (s *ConstraintStore) MatchLegacy(ctx context.Context, text string) []models.Constraint {
	if ctx.Err() != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Constraint
	for _, c := range s.constraints {
		if !c.Enabled || c.Version != models.VersionKeyword {
			continue
		}
		if s.evaluator.MatchesKeywords(c, text) {
			s.recordHitLocked(c)
			matched = append(matched, c.Clone())
		}
	}

	if len(matched) > 0 {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("Failed to persist trigger counts", zap.Error(err))
		}
	}
	return matched
}

// MatchAdvanced checks text against all enabled rules. The keyword index
// narrows the scan to rules sharing a token with the text; if the index
// yields nothing, every rule is checked so unindexable patterns still fire.
// Rules are evaluated in stored order.
func (s *ConstraintStore) MatchAdvanced(ctx context.Context, text string, queryContext map[string]string) []models.Constraint {
	if ctx.Err() != nil {
		return nil
	}
	start := time.Now()

	candidates := s.index.Candidates(match.Tokenize(text))

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Constraint
	for _, c := range s.constraints {
		if len(candidates) > 0 {
			if _, ok := candidates[c.ID]; !ok {
				continue
			}
		}
		if !c.Enabled {
			continue
		}
		if s.evaluator.Evaluate(c, text, queryContext) {
			s.recordHitLocked(c)
			matched = append(matched, c.Clone())
		}
	}

	if len(matched) > 0 {
		if err := s.persistLocked(); err != nil {
			s.logger.Warn("Failed to persist trigger counts", zap.Error(err))
		}
	}

	s.logger.Debug("Constraint check completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(matched)),
		zap.Duration("duration", time.Since(start)))
	return matched
}

func (s *ConstraintStore) recordHitLocked(c *models.Constraint) {
	c.TriggeredCount++
	now := time.Now()
	c.LastTriggered = &now
}

// findLocked resolves an ID prefix to a rule. Prefixes shorter than four
// characters never match; the first rule in stored order wins.
func (s *ConstraintStore) findLocked(idPrefix string) *models.Constraint {
	if len(idPrefix) < minPrefixLen {
		return nil
	}
	for _, c := range s.constraints {
		if strings.HasPrefix(c.ID, idPrefix) {
			return c
		}
	}
	return nil
}

// Get returns a copy of the first rule whose ID starts with idPrefix.
func (s *ConstraintStore) Get(idPrefix string) (models.Constraint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findLocked(idPrefix)
	if c == nil {
		return models.Constraint{}, false
	}
	return c.Clone(), true
}

// List returns copies of all rules in stored order.
func (s *ConstraintStore) List() []models.Constraint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Constraint, 0, len(s.constraints))
	for _, c := range s.constraints {
		out = append(out, c.Clone())
	}
	return out
}

// Remove deletes the rule matching idPrefix. It reports whether a rule was
// removed; persistence failures are logged, the in-memory removal stands.
func (s *ConstraintStore) Remove(idPrefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.findLocked(idPrefix)
	if target == nil {
		return false
	}

	kept := s.constraints[:0]
	for _, c := range s.constraints {
		if c != target {
			kept = append(kept, c)
		}
	}
	s.constraints = kept
	s.index.Rebuild(s.constraints)

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("Failed to persist rule removal", zap.Error(err))
	}
	s.logger.Info("Constraint removed", zap.String("constraint_id", target.ID))
	return true
}

// Enable turns the rule matching idPrefix back on.
func (s *ConstraintStore) Enable(idPrefix string) bool {
	return s.setEnabled(idPrefix, true)
}

// Disable turns the rule matching idPrefix off. Disabled rules stay in the
// file and the index but are skipped during matching.
func (s *ConstraintStore) Disable(idPrefix string) bool {
	return s.setEnabled(idPrefix, false)
}

func (s *ConstraintStore) setEnabled(idPrefix string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(idPrefix)
	if c == nil {
		return false
	}
	c.Enabled = enabled

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("Failed to persist rule state", zap.Error(err))
	}
	s.logger.Info("Constraint state changed",
		zap.String("constraint_id", c.ID),
		zap.Bool("enabled", enabled))
	return true
}

// RecordFalsePositive increments the rule's false positive counter. The
// feedback path calls this when a human marks a trigger as wrong.
func (s *ConstraintStore) RecordFalsePositive(idPrefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.findLocked(idPrefix)
	if c == nil {
		return false
	}
	c.FalsePositiveCount++

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("Failed to persist false positive count", zap.Error(err))
	}
	return true
}

// Stats summarizes the rule set. MostTriggered is nil until some rule has
// fired; ties keep the earliest stored rule.
func (s *ConstraintStore) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.StoreStats{TotalConstraints: len(s.constraints)}

	var top *models.Constraint
	maxCount := 0
	for _, c := range s.constraints {
		if c.Enabled {
			stats.EnabledConstraints++
		}
		stats.TotalTriggers += c.TriggeredCount
		if c.TriggeredCount > maxCount {
			maxCount = c.TriggeredCount
			top = c
		}
	}
	if top != nil {
		stats.MostTriggered = &models.MostTriggered{
			ConstraintID:   top.ID,
			Description:    top.Description,
			TriggeredCount: top.TriggeredCount,
		}
	}
	return stats
}

// ExportShape returns the definitional fields of one rule, without identity
// or counters, so it can be re-imported elsewhere.
func (s *ConstraintStore) ExportShape(idPrefix string) (models.Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findLocked(idPrefix)
	if c == nil {
		return models.Shape{}, false
	}
	return shapeOf(c), true
}

// ExportShapes returns shapes for every rule in stored order.
func (s *ConstraintStore) ExportShapes() []models.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Shape, 0, len(s.constraints))
	for _, c := range s.constraints {
		out = append(out, shapeOf(c))
	}
	return out
}

func shapeOf(c *models.Constraint) models.Shape {
	clone := c.Clone()
	return models.Shape{
		Description:        clone.Description,
		TriggerKeywords:    clone.TriggerKeywords,
		TriggerPatterns:    clone.TriggerPatterns,
		TriggerLogic:       clone.TriggerLogic,
		ContextFilters:     clone.ContextFilters,
		EnforcementAction:  clone.EnforcementAction,
		EnforcementMessage: clone.EnforcementMessage,
	}
}

// Reload re-reads the rules file and swaps it in. On any failure the
// current in-memory rule set is kept.
func (s *ConstraintStore) Reload() error {
	constraints, err := readConstraints(s.path)
	if err != nil {
		return fmt.Errorf("failed to reload rules: %w", err)
	}
	normalizeLoaded(constraints)

	s.mu.Lock()
	s.constraints = constraints
	s.index.Rebuild(s.constraints)
	count := len(s.constraints)
	tokens := s.index.Size()
	s.mu.Unlock()

	s.logger.Info("Rules reloaded",
		zap.Int("constraints", count),
		zap.Int("index_tokens", tokens))
	return nil
}

// IndexSize returns the number of tokens in the keyword index.
func (s *ConstraintStore) IndexSize() int {
	return s.index.Size()
}

// Path returns the rules file location.
func (s *ConstraintStore) Path() string {
	return s.path
}
