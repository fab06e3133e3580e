package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"constraint-engine/internal/models"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(NewPatternCache(zap.NewNop()), zap.NewNop())
}

func TestEvaluateKeywordRule(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock", "demo"},
		Version:         models.VersionKeyword,
		Enabled:         true,
	}

	assert.True(t, e.Evaluate(c, "Create MOCK data", nil))
	assert.True(t, e.Evaluate(c, "run the demo", nil))
	assert.False(t, e.Evaluate(c, "deploy to production", nil))
}

func TestEvaluateLogicOR(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerPatterns: []string{"mock.*", "demo.*"},
		TriggerLogic:    models.LogicOR,
		Version:         models.VersionAdvanced,
	}

	assert.True(t, e.Evaluate(c, "Build a mockAPI now", nil))
	assert.False(t, e.Evaluate(c, "deploy to production", nil))
}

func TestEvaluateLogicAND(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock", "database"},
		TriggerLogic:    models.LogicAND,
		Version:         models.VersionAdvanced,
	}

	// One true, one false predicate.
	assert.False(t, e.Evaluate(c, "mock the service", nil))
	// Both true.
	assert.True(t, e.Evaluate(c, "mock the database layer", nil))
}

func TestEvaluateLogicNOT(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock", "demo"},
		TriggerLogic:    models.LogicNOT,
		Version:         models.VersionAdvanced,
	}

	// Matches only when no predicate matches.
	assert.True(t, e.Evaluate(c, "deploy to production", nil))
	assert.False(t, e.Evaluate(c, "create mock data", nil))
	assert.False(t, e.Evaluate(c, "mock demo everything", nil))
}

func TestEvaluateNoPredicatesNeverMatches(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerLogic: models.LogicNOT,
		Version:      models.VersionAdvanced,
	}

	assert.False(t, e.Evaluate(c, "anything at all", nil))
}

func TestEvaluateUnknownLogicFallsBackToOR(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock"},
		TriggerLogic:    models.TriggerLogic("XOR"),
		Version:         models.VersionAdvanced,
	}

	assert.True(t, e.Evaluate(c, "mock it", nil))
}

func TestContextFilterSkipsRule(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock"},
		ContextFilters:  map[string][]string{"query_type": {"generate"}},
		Version:         models.VersionAdvanced,
	}

	// Context mismatch skips the rule even though every keyword matches.
	assert.False(t, e.Evaluate(c, "create mock data", map[string]string{"query_type": "chat"}))
	// Missing key skips too.
	assert.False(t, e.Evaluate(c, "create mock data", nil))
	// Allowed value evaluates normally.
	assert.True(t, e.Evaluate(c, "create mock data", map[string]string{"query_type": "generate"}))
}

func TestContextFiltersAreANDedAcrossKeys(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"mock"},
		ContextFilters: map[string][]string{
			"query_type": {"generate", "refactor"},
			"language":   {"go"},
		},
		Version: models.VersionAdvanced,
	}

	assert.True(t, e.Evaluate(c, "mock data",
		map[string]string{"query_type": "refactor", "language": "go"}))
	assert.False(t, e.Evaluate(c, "mock data",
		map[string]string{"query_type": "generate", "language": "python"}))
}

func TestEvaluateInvalidPatternFallsBackToLiteral(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerPatterns: []string{"a("},
		Version:         models.VersionAdvanced,
	}

	assert.True(t, e.Evaluate(c, "calc A(b) please", nil))
	assert.False(t, e.Evaluate(c, "no parens here", nil))
}

func TestEvaluateMixesPatternsAndKeywords(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{
		TriggerKeywords: []string{"sample"},
		TriggerPatterns: []string{"mock.*data"},
		TriggerLogic:    models.LogicOR,
		Version:         models.VersionAdvanced,
	}

	assert.True(t, e.Evaluate(c, "need sample output", nil))
	assert.True(t, e.Evaluate(c, "mock some data", nil))
	assert.False(t, e.Evaluate(c, "nothing here", nil))
}

func TestMatchesKeywordsIsCaseInsensitiveSubstring(t *testing.T) {
	e := newTestEvaluator()
	c := &models.Constraint{TriggerKeywords: []string{"mock"}}

	assert.True(t, e.MatchesKeywords(c, "MOCKING the call"))
	assert.False(t, e.MatchesKeywords(c, "clean build"))
}
