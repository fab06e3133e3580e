package supervisor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"constraint-engine/internal/match"
	"constraint-engine/internal/models"
)

// SuggestImprovements proposes tuning actions for one constraint based on
// its analytics. It needs both an analytics record and a live rule to work
// from; otherwise it returns nothing. Generated suggestions are stored on
// the record and counted in the global stats.
//
// The false positive rate here is measured against all triggers, unknowns
// included, unlike health analysis which considers judged outcomes only.
func (sv *Supervisor) SuggestImprovements(constraintID string) []models.Suggestion {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	rec, ok := sv.doc.Constraints[constraintID]
	if !ok {
		return nil
	}
	constraint, ok := sv.source.Get(constraintID)
	if !ok {
		return nil
	}

	precision := rec.Precision
	fpRate := float64(rec.FalsePositives) / math.Max(float64(rec.TotalTriggers), 1)

	var suggestions []models.Suggestion

	if fpRate > 0.20 {
		for _, pattern := range constraint.TriggerPatterns {
			if !strings.Contains(pattern, ".*") {
				continue
			}
			narrowed := strings.ReplaceAll(pattern, ".*", `\b`)
			suggestions = append(suggestions, models.Suggestion{
				Type:       models.SuggestNarrowPattern,
				Reason:     fmt.Sprintf("Pattern '%s' too broad (FP rate: %.2f)", pattern, fpRate),
				Suggestion: fmt.Sprintf("Consider narrowing to '%s' (word boundary)", narrowed),
				Confidence: 0.75,
			})
		}
	}

	if fpRate > 0.15 && len(constraint.ContextFilters) == 0 {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestAddContextFilter,
			Reason:     "High false positive rate without context filters",
			Suggestion: `Consider restricting to 'generate' mode only: {"query_type": ["generate"]}`,
			Confidence: 0.65,
		})
	}

	if precision > 0.95 && constraint.EnforcementAction == models.ActionWarn {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestIncreaseEnforcement,
			Reason:     fmt.Sprintf("Very high precision (%.2f)", precision),
			Suggestion: "Consider escalating enforcement from 'warn' to 'block'",
			Confidence: 0.80,
		})
	}

	if precision < 0.50 {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestDisableConstraint,
			Reason:     fmt.Sprintf("Very low precision (%.2f)", precision),
			Suggestion: "Consider disabling this constraint and reviewing patterns",
			Confidence: 0.90,
		})
	}

	if len(suggestions) > 0 {
		rec.SuggestedImprovements = suggestions
		sv.doc.GlobalStats.TotalSuggestionsGenerated += len(suggestions)
		if err := sv.persistLocked(); err != nil {
			sv.logger.Warn("Failed to persist analytics", zap.Error(err))
		}
	}
	return suggestions
}

// SuggestNewConstraints mines query history for recurring words not covered
// by any existing trigger keyword and proposes conservative new rules for
// them. A word must appear at least three times to qualify; candidates are
// ordered by frequency, then alphabetically.
func (sv *Supervisor) SuggestNewConstraints(queryHistory []string) []models.ConstraintCandidate {
	freq := make(map[string]int)
	for _, query := range queryHistory {
		for _, word := range match.Tokenize(query) {
			if len(word) >= 3 {
				freq[word]++
			}
		}
	}

	covered := make(map[string]struct{})
	for _, c := range sv.source.List() {
		for _, kw := range c.TriggerKeywords {
			covered[kw] = struct{}{}
		}
	}

	var candidates []models.ConstraintCandidate
	for word, count := range freq {
		if count < 3 {
			continue
		}
		if _, ok := covered[word]; ok {
			continue
		}
		candidates = append(candidates, models.ConstraintCandidate{
			Type:                 models.SuggestNewConstraint,
			Pattern:              word,
			Frequency:            count,
			SuggestedDescription: fmt.Sprintf("Consider blocking '%s' pattern", word),
			Confidence:           math.Min(float64(count)/10, 0.95),
			EnforcementAction:    models.ActionWarn,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Frequency != candidates[j].Frequency {
			return candidates[i].Frequency > candidates[j].Frequency
		}
		return candidates[i].Pattern < candidates[j].Pattern
	})

	if len(candidates) > 0 {
		sv.mu.Lock()
		sv.doc.GlobalStats.TotalSuggestionsGenerated += len(candidates)
		if err := sv.persistLocked(); err != nil {
			sv.logger.Warn("Failed to persist analytics", zap.Error(err))
		}
		sv.mu.Unlock()
	}
	return candidates
}
