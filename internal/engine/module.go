package engine

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"constraint-engine/internal/config"
	"constraint-engine/internal/match"
	"constraint-engine/internal/metrics"
	"constraint-engine/internal/store"
	"constraint-engine/internal/supervisor"
)

// Module wires the engine's dependency graph: pattern cache, evaluator,
// store, supervisor, metrics collector, watcher, and the facade itself.
// The binary supplies config, logging, and lifecycle on top.
var Module = fx.Module("engine",
	fx.Provide(
		storeConfig,
		supervisorConfig,
		metricsConfig,
		match.NewPatternCache,
		match.NewEvaluator,
		store.NewConstraintStore,
		constraintSource,
		supervisor.NewSupervisor,
		metrics.NewCollector,
		newWatcher,
		New,
	),
)

func storeConfig(cfg *config.Config) *config.StoreConfig { return &cfg.Store }

func supervisorConfig(cfg *config.Config) *config.SupervisorConfig { return &cfg.Supervisor }

func metricsConfig(cfg *config.Config) *config.MetricsConfig { return &cfg.Metrics }

func constraintSource(s *store.ConstraintStore) supervisor.ConstraintSource { return s }

// newWatcher feeds reload results into the metrics collector and keeps the
// rule-set gauges current after external edits.
func newWatcher(cfg *config.StoreConfig, st *store.ConstraintStore, collector *metrics.Collector, logger *zap.Logger) *store.Watcher {
	return store.NewWatcher(cfg, st, func(err error) {
		collector.RecordReload(err)
		if err == nil {
			stats := st.Stats()
			collector.SetConstraintCounts(stats.TotalConstraints, stats.EnabledConstraints)
			collector.SetIndexTokens(st.IndexSize())
		}
	}, logger)
}
