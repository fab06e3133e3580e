package api

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constraint-engine/internal/config"
	"constraint-engine/internal/models"
)

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "constraint-engine", body["service"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestLiveEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/health/live", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestReadyEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createConstraint(t, models.Shape{
		Description:     "No mock data",
		TriggerKeywords: []string{"mock"},
	})

	w, body := ts.do(t, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])

	checks := body["checks"].(map[string]interface{})
	rulesFile := checks["rules_file"].(map[string]interface{})
	assert.Equal(t, "healthy", rulesFile["status"])

	ruleSet := checks["rule_set"].(map[string]interface{})
	assert.Equal(t, float64(1), ruleSet["total_constraints"])
	assert.Equal(t, float64(1), ruleSet["enabled_constraints"])
}

func TestReadyEndpointReportsUnreachableRulesFile(t *testing.T) {
	dir := t.TempDir()
	// A regular file in the path makes os.Stat fail with ENOTDIR,
	// which is a readiness failure rather than a missing file.
	blocker := filepath.Join(dir, "blocker.txt")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	ts := newTestServerWithConfig(t,
		&config.StoreConfig{
			RulesPath:     filepath.Join(blocker, "constraints.json"),
			WatchDebounce: 50 * time.Millisecond,
		},
		&config.SupervisorConfig{
			AnalyticsPath: filepath.Join(dir, "analytics.json"),
			HistoryLimit:  50,
			ExcerptLimit:  100,
			DriftWindow:   10,
		})

	w, body := ts.do(t, http.MethodGet, "/health/ready", nil)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])

	checks := body["checks"].(map[string]interface{})
	rulesFile := checks["rules_file"].(map[string]interface{})
	assert.Equal(t, "unhealthy", rulesFile["status"])
}
