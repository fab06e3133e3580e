package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"constraint-engine/internal/config"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestCollectorRecords(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: true}, zap.NewNop())

	c.RecordEvaluation("advanced", true, time.Millisecond)
	c.RecordEvaluation("advanced", false, time.Millisecond)
	c.RecordEvaluation("legacy", true, time.Millisecond)
	c.RecordMatch("block")
	c.RecordMatch("block")
	c.RecordFeedback("true_positive")
	c.RecordReload(nil)
	c.RecordReload(errors.New("parse failure"))
	c.RecordPersistFailure("rules")
	c.SetConstraintCounts(5, 3)
	c.SetIndexTokens(12)
	c.SetPatternFallbacks(1)

	body := scrape(t, c)
	assert.Contains(t, body, `constraint_engine_evaluations_total{mode="advanced",result="matched"} 1`)
	assert.Contains(t, body, `constraint_engine_evaluations_total{mode="advanced",result="clean"} 1`)
	assert.Contains(t, body, `constraint_engine_evaluations_total{mode="legacy",result="matched"} 1`)
	assert.Contains(t, body, `constraint_engine_evaluation_duration_seconds_count{mode="advanced"} 2`)
	assert.Contains(t, body, `constraint_engine_matches_total{action="block"} 2`)
	assert.Contains(t, body, `constraint_engine_feedback_total{outcome="true_positive"} 1`)
	assert.Contains(t, body, `constraint_engine_rule_reloads_total{result="success"} 1`)
	assert.Contains(t, body, `constraint_engine_rule_reloads_total{result="failure"} 1`)
	assert.Contains(t, body, `constraint_engine_persist_failures_total{file="rules"} 1`)
	assert.Contains(t, body, "constraint_engine_constraints_total 5")
	assert.Contains(t, body, "constraint_engine_constraints_enabled 3")
	assert.Contains(t, body, "constraint_engine_index_tokens 12")
	assert.Contains(t, body, "constraint_engine_pattern_fallbacks 1")
}

func TestDisabledCollectorIsNoOp(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: false}, zap.NewNop())

	c.RecordEvaluation("advanced", true, time.Millisecond)
	c.RecordMatch("block")
	c.RecordFeedback("unknown")
	c.RecordReload(nil)
	c.RecordPersistFailure("analytics")
	c.SetConstraintCounts(5, 3)
	c.SetIndexTokens(12)
	c.SetPatternFallbacks(1)

	body := scrape(t, c)
	assert.NotContains(t, body, "constraint_engine")
}

func TestCollectorsUseIndependentRegistries(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	first := NewCollector(cfg, zap.NewNop())
	second := NewCollector(cfg, zap.NewNop())

	first.RecordMatch("warn")

	assert.Contains(t, scrape(t, first), `constraint_engine_matches_total{action="warn"} 1`)
	assert.NotContains(t, scrape(t, second), `constraint_engine_matches_total{action="warn"}`)
}
