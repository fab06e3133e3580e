package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"constraint-engine/internal/config"
)

// defaultBuckets covers the sub-millisecond evaluations the keyword index
// makes common through the slow full-scan outliers.
var defaultBuckets = []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// Collector collects and exposes Prometheus metrics for the engine. It
// registers everything on its own registry so multiple engines in one
// process never collide. All record methods are no-ops when metrics are
// disabled.
type Collector struct {
	cfg      *config.MetricsConfig
	logger   *zap.Logger
	registry *prometheus.Registry

	evaluationsTotal     *prometheus.CounterVec
	evaluationDuration   *prometheus.HistogramVec
	matchesTotal         *prometheus.CounterVec
	feedbackTotal        *prometheus.CounterVec
	reloadsTotal         *prometheus.CounterVec
	persistFailuresTotal *prometheus.CounterVec

	constraintsTotal   prometheus.Gauge
	constraintsEnabled prometheus.Gauge
	indexTokens        prometheus.Gauge
	patternFallbacks   prometheus.Gauge
}

// NewCollector creates a metrics collector.
func NewCollector(cfg *config.MetricsConfig, logger *zap.Logger) *Collector {
	c := &Collector{
		cfg:    cfg,
		logger: logger,
	}
	if !cfg.Enabled {
		logger.Info("Metrics collection disabled")
		return c
	}

	c.registry = prometheus.NewRegistry()

	c.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_engine_evaluations_total",
			Help: "Total number of query evaluations by mode and result",
		},
		[]string{"mode", "result"},
	)
	c.evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "constraint_engine_evaluation_duration_seconds",
			Help:    "Query evaluation duration in seconds",
			Buckets: defaultBuckets,
		},
		[]string{"mode"},
	)
	c.matchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_engine_matches_total",
			Help: "Total number of rule matches by enforcement action",
		},
		[]string{"action"},
	)
	c.feedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_engine_feedback_total",
			Help: "Total number of recorded feedback events by outcome",
		},
		[]string{"outcome"},
	)
	c.reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_engine_rule_reloads_total",
			Help: "Total number of rules file reloads by result",
		},
		[]string{"result"},
	)
	c.persistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "constraint_engine_persist_failures_total",
			Help: "Total number of observed persistence failures by file",
		},
		[]string{"file"},
	)

	c.constraintsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constraint_engine_constraints_total",
		Help: "Number of rules in the store",
	})
	c.constraintsEnabled = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constraint_engine_constraints_enabled",
		Help: "Number of enabled rules in the store",
	})
	c.indexTokens = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constraint_engine_index_tokens",
		Help: "Number of distinct tokens in the keyword index",
	})
	c.patternFallbacks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "constraint_engine_pattern_fallbacks",
		Help: "Number of patterns degraded to literal substring matching",
	})

	c.registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.matchesTotal,
		c.feedbackTotal,
		c.reloadsTotal,
		c.persistFailuresTotal,
		c.constraintsTotal,
		c.constraintsEnabled,
		c.indexTokens,
		c.patternFallbacks,
	)

	logger.Info("Metrics collector initialized")
	return c
}

// RecordEvaluation records one query evaluation.
func (c *Collector) RecordEvaluation(mode string, matched bool, duration time.Duration) {
	if !c.cfg.Enabled {
		return
	}
	result := "clean"
	if matched {
		result = "matched"
	}
	c.evaluationsTotal.WithLabelValues(mode, result).Inc()
	c.evaluationDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordMatch records one rule match.
func (c *Collector) RecordMatch(action string) {
	if !c.cfg.Enabled {
		return
	}
	c.matchesTotal.WithLabelValues(action).Inc()
}

// RecordFeedback records one feedback event.
func (c *Collector) RecordFeedback(outcome string) {
	if !c.cfg.Enabled {
		return
	}
	c.feedbackTotal.WithLabelValues(outcome).Inc()
}

// RecordReload records one rules file reload attempt.
func (c *Collector) RecordReload(err error) {
	if !c.cfg.Enabled {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.reloadsTotal.WithLabelValues(result).Inc()
}

// RecordPersistFailure records a failed write of one of the durable files.
func (c *Collector) RecordPersistFailure(file string) {
	if !c.cfg.Enabled {
		return
	}
	c.persistFailuresTotal.WithLabelValues(file).Inc()
}

// SetConstraintCounts updates the rule set gauges.
func (c *Collector) SetConstraintCounts(total, enabled int) {
	if !c.cfg.Enabled {
		return
	}
	c.constraintsTotal.Set(float64(total))
	c.constraintsEnabled.Set(float64(enabled))
}

// SetIndexTokens updates the keyword index size gauge.
func (c *Collector) SetIndexTokens(n int) {
	if !c.cfg.Enabled {
		return
	}
	c.indexTokens.Set(float64(n))
}

// SetPatternFallbacks updates the degraded pattern gauge.
func (c *Collector) SetPatternFallbacks(n int) {
	if !c.cfg.Enabled {
		return
	}
	c.patternFallbacks.Set(float64(n))
}

// Handler returns the Prometheus scrape handler for this collector's
// registry. Disabled collectors serve an empty page.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
