package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"

	"constraint-engine/internal/api"
	"constraint-engine/internal/config"
	"constraint-engine/internal/engine"
	"constraint-engine/internal/monitoring"
)

// Mirrors the provider set in main so wiring mistakes fail in tests
// instead of at startup. ValidateApp checks the graph without calling
// any constructor.
func TestAppGraphIsValid(t *testing.T) {
	err := fx.ValidateApp(
		fx.NopLogger,
		fx.Provide(config.Load),
		fx.Provide(NewLogger),
		engine.Module,
		fx.Provide(monitoring.NewAuditTrail),
		fx.Provide(api.NewConstraintHandler),
		fx.Provide(api.NewHealthHandler),
		fx.Provide(NewGinEngine),
		fx.Provide(NewHTTPServer),
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartWatcher),
		fx.Invoke(StartServer),
	)
	assert.NoError(t, err)
}
