package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constraint-engine/internal/models"
)

func TestPatternLiteral(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
		ok      bool
	}{
		{"mock.*", "mock", true},
		{"delete|remove", "delete", true},
		{`\bmock\b`, "mock", true},
		{"^test$", "test", true},
		{"mock.*data", "mockdata", true},
		{`^\s*DROP.+TABLE`, "droptable", true},
		{"ab", "", false}, // too short
		{"a(", "", false}, // parenthesis survives cleaning
		{"___", "", false},
		{"snake_case.*", "snake_case", true},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := PatternLiteral(tt.pattern)
		if !tt.ok {
			assert.False(t, ok, "pattern %q", tt.pattern)
			continue
		}
		require.True(t, ok, "pattern %q", tt.pattern)
		assert.Equal(t, tt.want, got, "pattern %q", tt.pattern)
	}
}

func TestKeywordIndexRoundTrip(t *testing.T) {
	index := NewKeywordIndex()
	index.Rebuild([]*models.Constraint{
		{
			ID:              "aaaa1111",
			TriggerKeywords: []string{"mock"},
			Version:         models.VersionKeyword,
		},
	})

	candidates := index.Candidates(Tokenize("Create mock data"))
	assert.Contains(t, candidates, "aaaa1111")
}

func TestKeywordIndexIndexesPatternLiterals(t *testing.T) {
	index := NewKeywordIndex()
	index.Rebuild([]*models.Constraint{
		{
			ID:              "bbbb2222",
			TriggerPatterns: []string{"deploy.*prod"},
			Version:         models.VersionAdvanced,
		},
	})

	// "deploy.*prod" indexes under its cleaned literal.
	candidates := index.Candidates([]string{"deployprod"})
	assert.Contains(t, candidates, "bbbb2222")

	// Unrelated tokens select nothing.
	assert.Empty(t, index.Candidates([]string{"unrelated"}))
}

func TestKeywordIndexIncludesDisabledRules(t *testing.T) {
	index := NewKeywordIndex()
	index.Rebuild([]*models.Constraint{
		{ID: "cccc3333", TriggerKeywords: []string{"mock"}, Enabled: false, Version: models.VersionKeyword},
	})

	// Enabled filtering happens at evaluation, not candidate selection.
	assert.Contains(t, index.Candidates([]string{"mock"}), "cccc3333")
}

func TestKeywordIndexSize(t *testing.T) {
	index := NewKeywordIndex()
	assert.Equal(t, 0, index.Size())

	index.Rebuild([]*models.Constraint{
		{ID: "dddd4444", TriggerKeywords: []string{"mock", "demo"}, Version: models.VersionKeyword},
	})
	assert.Equal(t, 2, index.Size())
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"create", "mock", "data", "now"},
		Tokenize("Create mock, data. NOW!"))
	assert.Empty(t, Tokenize(""))
}
