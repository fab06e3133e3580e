package match

import (
	"strings"
	"sync"
	"unicode"

	"constraint-engine/internal/models"
)

// KeywordIndex is an inverted mapping from lowercase token to the ids of
// constraints that could plausibly match on that token. It is derived,
// disposable state: rebuilt in full after every rule-set mutation and never
// persisted.
//
// The index is a shortlist, not an oracle. A constraint whose predicates
// yield no indexable literal is invisible here, which is why an empty
// candidate union must send the caller to a full scan.
type KeywordIndex struct {
	mu    sync.RWMutex
	index map[string]map[string]struct{}
}

// NewKeywordIndex creates an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{index: make(map[string]map[string]struct{})}
}

// Rebuild replaces the index contents from the full constraint set. Disabled
// constraints are indexed too; enabled-ness is checked at evaluation time.
func (ki *KeywordIndex) Rebuild(constraints []*models.Constraint) {
	fresh := make(map[string]map[string]struct{})

	add := func(token, id string) {
		ids, ok := fresh[token]
		if !ok {
			ids = make(map[string]struct{})
			fresh[token] = ids
		}
		ids[id] = struct{}{}
	}

	for _, c := range constraints {
		if c.ID == "" {
			continue
		}
		for _, kw := range c.TriggerKeywords {
			add(kw, c.ID)
		}
		for _, pattern := range c.TriggerPatterns {
			if literal, ok := PatternLiteral(pattern); ok {
				add(literal, c.ID)
			}
		}
	}

	ki.mu.Lock()
	ki.index = fresh
	ki.mu.Unlock()
}

// Candidates returns the union of constraint ids indexed under any of the
// given tokens. An empty result means the caller must fall back to scanning
// every constraint.
func (ki *KeywordIndex) Candidates(tokens []string) map[string]struct{} {
	ki.mu.RLock()
	defer ki.mu.RUnlock()

	candidates := make(map[string]struct{})
	for _, token := range tokens {
		for id := range ki.index[token] {
			candidates[id] = struct{}{}
		}
	}
	return candidates
}

// Size returns the number of distinct tokens in the index.
func (ki *KeywordIndex) Size() int {
	ki.mu.RLock()
	defer ki.mu.RUnlock()
	return len(ki.index)
}

// patternMeta lists the metacharacter sequences stripped before attempting
// to pull an indexable literal out of a pattern source.
var patternMeta = []string{".*", ".+", "^", "$", `\b`, `\s*`}

// PatternLiteral extracts a best-effort literal from a pattern source for
// indexing. It strips known metacharacters, splits on alternation, and keeps
// the first part only if it is at least 3 characters of letters, digits, or
// underscores. Patterns that yield nothing clean rely on the full-scan
// fallback instead.
func PatternLiteral(pattern string) (string, bool) {
	cleaned := pattern
	for _, meta := range patternMeta {
		cleaned = strings.ReplaceAll(cleaned, meta, "")
	}

	first := cleaned
	if i := strings.IndexByte(cleaned, '|'); i >= 0 {
		first = cleaned[:i]
	}
	first = strings.TrimSpace(first)

	if len(first) < 3 {
		return "", false
	}
	seen := false
	for _, r := range first {
		if r == '_' {
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", false
		}
		seen = true
	}
	if !seen {
		return "", false
	}
	return strings.ToLower(first), true
}
