package match

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"constraint-engine/internal/models"
)

// tokenDelimiters are the punctuation runes treated as token boundaries in
// addition to whitespace.
const tokenDelimiters = ",.;:!?"

// Tokenize lowercases text and splits it on whitespace and common
// punctuation. The resulting tokens drive candidate selection.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(tokenDelimiters, r)
	})
}

// Evaluator decides whether a single constraint matches a piece of text. It
// holds no rule state of its own; the pattern cache is the only thing shared
// across evaluations.
type Evaluator struct {
	patterns *PatternCache
	logger   *zap.Logger
}

// NewEvaluator creates an evaluator backed by the given pattern cache.
func NewEvaluator(patterns *PatternCache, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		patterns: patterns,
		logger:   logger,
	}
}

// Patterns exposes the underlying cache for warm-up at constraint creation.
func (e *Evaluator) Patterns() *PatternCache {
	return e.patterns
}

// MatchesKeywords is the version-1 predicate: true when any trigger keyword
// is a case-insensitive substring of text.
func (e *Evaluator) MatchesKeywords(c *models.Constraint, text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.TriggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ContextAllows reports whether the constraint's context filters admit the
// given context. Filters are an AND across keys: every filter key must be
// present in the context with a value from the allowed set. An empty filter
// map admits everything.
func (e *Evaluator) ContextAllows(c *models.Constraint, context map[string]string) bool {
	if len(c.ContextFilters) == 0 {
		return true
	}
	for key, allowed := range c.ContextFilters {
		value, ok := context[key]
		if !ok {
			return false
		}
		permitted := false
		for _, a := range allowed {
			if a == value {
				permitted = true
				break
			}
		}
		if !permitted {
			return false
		}
	}
	return true
}

// Evaluate runs the advanced match for one constraint: context filters
// first, then every pattern and keyword predicate, combined per the
// constraint's trigger logic. A constraint with no predicates never matches.
//
// Pattern predicates that fail to compile degrade to a case-insensitive
// literal substring check of the raw source, so invalid syntax is never
// fatal to evaluation.
func (e *Evaluator) Evaluate(c *models.Constraint, text string, context map[string]string) bool {
	if c.Version == models.VersionKeyword {
		return e.MatchesKeywords(c, text)
	}

	if !e.ContextAllows(c, context) {
		return false
	}

	lower := strings.ToLower(text)
	results := make([]bool, 0, c.PredicateCount())

	for _, source := range c.TriggerPatterns {
		if re, ok := e.patterns.Get(source); ok {
			results = append(results, re.MatchString(text))
		} else {
			results = append(results, strings.Contains(lower, strings.ToLower(source)))
		}
	}
	for _, kw := range c.TriggerKeywords {
		results = append(results, strings.Contains(lower, kw))
	}

	if len(results) == 0 {
		return false
	}

	switch models.NormalizeTriggerLogic(string(c.TriggerLogic)) {
	case models.LogicAND:
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case models.LogicNOT:
		// Matches only when nothing matches.
		for _, r := range results {
			if r {
				return false
			}
		}
		return true
	default:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
}
