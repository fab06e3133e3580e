package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"constraint-engine/internal/api"
	"constraint-engine/internal/config"
	"constraint-engine/internal/engine"
	"constraint-engine/internal/metrics"
	"constraint-engine/internal/monitoring"
	"constraint-engine/internal/store"
)

func main() {
	app := fx.New(
		// Configuration
		fx.Provide(config.Load),

		// Logging
		fx.Provide(NewLogger),

		// Store, supervisor, matching, metrics, facade
		engine.Module,

		// HTTP layer
		fx.Provide(monitoring.NewAuditTrail),
		fx.Provide(api.NewConstraintHandler),
		fx.Provide(api.NewHealthHandler),
		fx.Provide(NewGinEngine),
		fx.Provide(NewHTTPServer),

		// Lifecycle
		fx.Invoke(RegisterRoutes),
		fx.Invoke(StartWatcher),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Log.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

func NewGinEngine(cfg *config.Config) *gin.Engine {
	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	return router
}

func NewHTTPServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
}

func RegisterRoutes(
	router *gin.Engine,
	constraintHandler *api.ConstraintHandler,
	healthHandler *api.HealthHandler,
	collector *metrics.Collector,
) {
	// Health endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Evaluation and feedback
		v1.POST("/evaluate", constraintHandler.Evaluate)
		v1.POST("/feedback", constraintHandler.RecordFeedback)

		// Rule lifecycle
		v1.GET("/constraints", constraintHandler.ListConstraints)
		v1.POST("/constraints", constraintHandler.CreateConstraint)
		v1.GET("/constraints/:id", constraintHandler.GetConstraint)
		v1.DELETE("/constraints/:id", constraintHandler.DeleteConstraint)
		v1.POST("/constraints/:id/enable", constraintHandler.EnableConstraint)
		v1.POST("/constraints/:id/disable", constraintHandler.DisableConstraint)

		// Supervision and reporting
		v1.GET("/constraints/:id/health", constraintHandler.ConstraintHealth)
		v1.GET("/constraints/:id/suggestions", constraintHandler.ConstraintSuggestions)
		v1.GET("/dashboard", constraintHandler.Dashboard)
		v1.GET("/stats", constraintHandler.Stats)
		v1.POST("/suggest", constraintHandler.SuggestConstraints)

		// Bulk exchange and audit
		v1.GET("/export", constraintHandler.Export)
		v1.POST("/import", constraintHandler.Import)
		v1.GET("/audit", constraintHandler.AuditEvents)
	}
}

func StartWatcher(lc fx.Lifecycle, watcher *store.Watcher) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})
}

func StartServer(lc fx.Lifecycle, server *http.Server, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting constraint engine", zap.String("addr", server.Addr))

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down constraint engine")

			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	})
}
