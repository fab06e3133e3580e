package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constraint-engine/internal/models"
)

func TestSuggestImprovementsNeedsRecord(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{
		{ID: "abcd1111", TriggerKeywords: []string{"mock"}},
	}}
	sv := newTestSupervisor(t, nil, source)

	assert.Nil(t, sv.SuggestImprovements("abcd1111"))
}

func TestSuggestImprovementsNeedsLiveRule(t *testing.T) {
	sv := newTestSupervisor(t, nil, &fakeSource{})

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 10)

	assert.Nil(t, sv.SuggestImprovements("abcd1111"))
}

func TestSuggestNarrowPattern(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerPatterns:   []string{"mock.*data"},
		ContextFilters:    map[string][]string{"query_type": {"generate"}},
		EnforcementAction: models.ActionBlock,
	}}}
	sv := newTestSupervisor(t, nil, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 3)
	recordOutcomes(sv, "abcd1111", models.OutcomeTruePositive, 7)

	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SuggestNarrowPattern, suggestions[0].Type)
	assert.Equal(t, "Pattern 'mock.*data' too broad (FP rate: 0.30)", suggestions[0].Reason)
	assert.Equal(t, `Consider narrowing to 'mock\bdata' (word boundary)`, suggestions[0].Suggestion)
	assert.InDelta(t, 0.75, suggestions[0].Confidence, 1e-9)
}

func TestSuggestAddContextFilter(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerKeywords:   []string{"mock"},
		EnforcementAction: models.ActionBlock,
	}}}
	sv := newTestSupervisor(t, nil, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 2)
	recordOutcomes(sv, "abcd1111", models.OutcomeTruePositive, 8)

	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SuggestAddContextFilter, suggestions[0].Type)
	assert.Equal(t, "High false positive rate without context filters", suggestions[0].Reason)
	assert.Equal(t, `Consider restricting to 'generate' mode only: {"query_type": ["generate"]}`, suggestions[0].Suggestion)
	assert.InDelta(t, 0.65, suggestions[0].Confidence, 1e-9)
}

func TestSuggestIncreaseEnforcement(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerKeywords:   []string{"mock"},
		EnforcementAction: models.ActionWarn,
	}}}
	sv := newTestSupervisor(t, nil, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeTruePositive, 20)

	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SuggestIncreaseEnforcement, suggestions[0].Type)
	assert.Equal(t, "Very high precision (1.00)", suggestions[0].Reason)
	assert.Equal(t, "Consider escalating enforcement from 'warn' to 'block'", suggestions[0].Suggestion)
	assert.InDelta(t, 0.80, suggestions[0].Confidence, 1e-9)
}

func TestSuggestDisableConstraint(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerKeywords:   []string{"mock"},
		ContextFilters:    map[string][]string{"query_type": {"generate"}},
		EnforcementAction: models.ActionBlock,
	}}}
	sv := newTestSupervisor(t, nil, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 8)
	recordOutcomes(sv, "abcd1111", models.OutcomeTruePositive, 2)

	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SuggestDisableConstraint, suggestions[0].Type)
	assert.Equal(t, "Very low precision (0.20)", suggestions[0].Reason)
	assert.Equal(t, "Consider disabling this constraint and reviewing patterns", suggestions[0].Suggestion)
	assert.InDelta(t, 0.90, suggestions[0].Confidence, 1e-9)
}

func TestSuggestionFPRateCountsUnknowns(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerPatterns:   []string{"mock.*"},
		EnforcementAction: models.ActionBlock,
	}}}
	sv := newTestSupervisor(t, nil, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 1)
	recordOutcomes(sv, "abcd1111", models.OutcomeUnknown, 9)

	// Against judged triggers alone the false positive rate would be 1.0;
	// against all triggers it is 0.1, so only the precision rule fires.
	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.SuggestDisableConstraint, suggestions[0].Type)
}

func TestSuggestionsStoredAndCounted(t *testing.T) {
	cfg := testSupervisorConfig(t)
	source := &fakeSource{rules: []models.Constraint{{
		ID:                "abcd1111",
		TriggerKeywords:   []string{"mock"},
		EnforcementAction: models.ActionBlock,
	}}}
	sv := newTestSupervisor(t, cfg, source)

	recordOutcomes(sv, "abcd1111", models.OutcomeFalsePositive, 2)
	recordOutcomes(sv, "abcd1111", models.OutcomeTruePositive, 8)

	suggestions := sv.SuggestImprovements("abcd1111")
	require.Len(t, suggestions, 1)

	rec, found := sv.Record("abcd1111")
	require.True(t, found)
	assert.Equal(t, suggestions, rec.SuggestedImprovements)
	assert.Equal(t, 1, sv.Dashboard().SuggestionsAvailable)

	reopened := newTestSupervisor(t, cfg, source)
	rec, found = reopened.Record("abcd1111")
	require.True(t, found)
	assert.Equal(t, suggestions, rec.SuggestedImprovements)
	assert.Equal(t, 1, reopened.Dashboard().SuggestionsAvailable)
}

func TestSuggestNewConstraints(t *testing.T) {
	source := &fakeSource{rules: []models.Constraint{
		{ID: "abcd1111", TriggerKeywords: []string{"deploy"}},
	}}
	sv := newTestSupervisor(t, nil, source)

	history := []string{
		"deploy the canary",
		"deploy now please",
		"deploy again",
		"canary canary rollout",
		"rollout rollout",
	}
	candidates := sv.SuggestNewConstraints(history)

	// "deploy" repeats too but an existing rule already covers it.
	require.Len(t, candidates, 2)
	assert.Equal(t, "canary", candidates[0].Pattern)
	assert.Equal(t, "rollout", candidates[1].Pattern)

	first := candidates[0]
	assert.Equal(t, models.SuggestNewConstraint, first.Type)
	assert.Equal(t, 3, first.Frequency)
	assert.Equal(t, "Consider blocking 'canary' pattern", first.SuggestedDescription)
	assert.InDelta(t, 0.3, first.Confidence, 1e-9)
	assert.Equal(t, models.ActionWarn, first.EnforcementAction)

	assert.Equal(t, 2, sv.Dashboard().SuggestionsAvailable)
}

func TestSuggestNewConstraintsOrdering(t *testing.T) {
	sv := newTestSupervisor(t, nil, &fakeSource{})

	history := []string{
		"zeta zeta zeta zeta",
		"alpha alpha alpha alpha",
		"beta beta beta",
	}
	candidates := sv.SuggestNewConstraints(history)

	require.Len(t, candidates, 3)
	assert.Equal(t, "alpha", candidates[0].Pattern)
	assert.Equal(t, "zeta", candidates[1].Pattern)
	assert.Equal(t, "beta", candidates[2].Pattern)
}

func TestSuggestNewConstraintsConfidenceCap(t *testing.T) {
	sv := newTestSupervisor(t, nil, &fakeSource{})

	history := make([]string, 12)
	for i := range history {
		history[i] = "breach"
	}
	candidates := sv.SuggestNewConstraints(history)

	require.Len(t, candidates, 1)
	assert.Equal(t, 12, candidates[0].Frequency)
	assert.InDelta(t, 0.95, candidates[0].Confidence, 1e-9)
}

func TestSuggestNewConstraintsFiltersNoise(t *testing.T) {
	sv := newTestSupervisor(t, nil, &fakeSource{})

	assert.Nil(t, sv.SuggestNewConstraints(nil))
	// Words below three characters or three occurrences never qualify.
	assert.Nil(t, sv.SuggestNewConstraints([]string{"ab ab ab ab", "word word"}))
	assert.Zero(t, sv.Dashboard().SuggestionsAvailable)
}
