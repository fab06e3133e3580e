package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"constraint-engine/internal/engine"
	"constraint-engine/internal/models"
	"constraint-engine/internal/monitoring"
	"constraint-engine/internal/store"
)

// ConstraintHandler exposes the engine's evaluation, feedback, rule
// lifecycle, and reporting operations over HTTP.
type ConstraintHandler struct {
	engine *engine.Engine
	audit  *monitoring.AuditTrail
	logger *zap.Logger
}

// NewConstraintHandler creates a new constraint API handler.
func NewConstraintHandler(eng *engine.Engine, audit *monitoring.AuditTrail, logger *zap.Logger) *ConstraintHandler {
	return &ConstraintHandler{
		engine: eng,
		audit:  audit,
		logger: logger,
	}
}

// Evaluate checks a query against the rule set and reports every match.
func (h *ConstraintHandler) Evaluate(c *gin.Context) {
	start := time.Now()

	var req models.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid evaluation request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	result, err := h.engine.EvaluateQuery(c.Request.Context(), &req)
	if err != nil {
		h.logger.Error("Evaluation failed", zap.Error(err), zap.String("query", req.Query))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Evaluation failed"})
		return
	}

	h.logger.Debug("Query evaluated via API",
		zap.Bool("matched", result.Matched),
		zap.Int("matches", len(result.Matches)),
		zap.Duration("duration", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "evaluate",
		},
	})
}

// RecordFeedback records a human judgment of one constraint trigger.
func (h *ConstraintHandler) RecordFeedback(c *gin.Context) {
	start := time.Now()

	var event models.FeedbackEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		h.logger.Warn("Invalid feedback request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.RecordFeedback(event); err != nil {
		if errors.Is(err, engine.ErrMissingConstraintID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "constraint_id is required"})
			return
		}
		h.logger.Error("Failed to record feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record feedback"})
		return
	}

	h.audit.Record(monitoring.Event{
		Type:         monitoring.EventFeedback,
		ConstraintID: event.ConstraintID,
		ClientIP:     c.ClientIP(),
		Details:      map[string]interface{}{"outcome": string(event.Outcome)},
	})

	c.JSON(http.StatusOK, gin.H{
		"message":       "Feedback recorded successfully",
		"constraint_id": event.ConstraintID,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "record_feedback",
		},
	})
}

// CreateConstraint adds a new rule from a definitional shape.
func (h *ConstraintHandler) CreateConstraint(c *gin.Context) {
	start := time.Now()

	var shape models.Shape
	if err := c.ShouldBindJSON(&shape); err != nil {
		h.logger.Warn("Invalid constraint shape", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	constraint, err := h.engine.AddConstraint(shape)
	if err != nil {
		if errors.Is(err, store.ErrInvalidShape) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to create constraint", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create constraint"})
		return
	}

	h.audit.Record(monitoring.Event{
		Type:         monitoring.EventRuleCreated,
		ConstraintID: constraint.ID,
		ClientIP:     c.ClientIP(),
		Details: map[string]interface{}{
			"description": constraint.Description,
			"action":      string(constraint.EnforcementAction),
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"constraint": constraint,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "create_constraint",
		},
	})
}

// ListConstraints returns every rule in the store.
func (h *ConstraintHandler) ListConstraints(c *gin.Context) {
	constraints := h.engine.ListConstraints()
	c.JSON(http.StatusOK, gin.H{
		"constraints": constraints,
		"meta":        gin.H{"count": len(constraints)},
	})
}

// GetConstraint looks up one rule by ID or unique ID prefix.
func (h *ConstraintHandler) GetConstraint(c *gin.Context) {
	constraint, ok := h.engine.GetConstraint(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Constraint not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"constraint": constraint})
}

// DeleteConstraint removes a rule. Its analytics record survives.
func (h *ConstraintHandler) DeleteConstraint(c *gin.Context) {
	id := c.Param("id")
	if !h.engine.RemoveConstraint(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Constraint not found"})
		return
	}

	h.audit.Record(monitoring.Event{
		Type:         monitoring.EventRuleRemoved,
		ConstraintID: id,
		ClientIP:     c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":       "Constraint removed",
		"constraint_id": id,
	})
}

// EnableConstraint re-enables a disabled rule.
func (h *ConstraintHandler) EnableConstraint(c *gin.Context) {
	h.setEnabled(c, true)
}

// DisableConstraint stops a rule from matching without deleting it.
func (h *ConstraintHandler) DisableConstraint(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *ConstraintHandler) setEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")

	var ok bool
	eventType := monitoring.EventRuleEnabled
	message := "Constraint enabled"
	if enabled {
		ok = h.engine.EnableConstraint(id)
	} else {
		ok = h.engine.DisableConstraint(id)
		eventType = monitoring.EventRuleDisabled
		message = "Constraint disabled"
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Constraint not found"})
		return
	}

	h.audit.Record(monitoring.Event{
		Type:         eventType,
		ConstraintID: id,
		ClientIP:     c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"message":       message,
		"constraint_id": id,
	})
}

// ConstraintHealth reports precision, drift, and recommendations for one
// constraint.
func (h *ConstraintHandler) ConstraintHealth(c *gin.Context) {
	start := time.Now()

	report := h.engine.Health(c.Param("id"))

	c.JSON(http.StatusOK, gin.H{
		"health": report,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "constraint_health",
		},
	})
}

// ConstraintSuggestions returns improvement suggestions for one constraint.
func (h *ConstraintHandler) ConstraintSuggestions(c *gin.Context) {
	suggestions := h.engine.Suggestions(c.Param("id"))
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"meta":        gin.H{"count": len(suggestions)},
	})
}

// Dashboard returns the fleet-wide health summary.
func (h *ConstraintHandler) Dashboard(c *gin.Context) {
	start := time.Now()

	dashboard := h.engine.Dashboard()

	c.JSON(http.StatusOK, gin.H{
		"dashboard": dashboard,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "dashboard",
		},
	})
}

// Stats returns aggregate rule-set statistics.
func (h *ConstraintHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": h.engine.Stats()})
}

type suggestRequest struct {
	Queries []string `json:"queries"`
}

// SuggestConstraints mines a query history for recurring uncovered
// keywords and proposes new rules.
func (h *ConstraintHandler) SuggestConstraints(c *gin.Context) {
	start := time.Now()

	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid suggest request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	candidates := h.engine.SuggestNewConstraints(req.Queries)
	if candidates == nil {
		candidates = []models.ConstraintCandidate{}
	}

	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"meta": gin.H{
			"count":              len(candidates),
			"queries_analyzed":   len(req.Queries),
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "suggest_constraints",
		},
	})
}

// Export returns every rule as a definitional shape suitable for
// re-import.
func (h *ConstraintHandler) Export(c *gin.Context) {
	shapes := h.engine.ExportShapes()

	c.Header("Content-Disposition", "attachment; filename=constraints.json")
	c.JSON(http.StatusOK, gin.H{
		"export_info": gin.H{
			"exported_at":       time.Now().UTC(),
			"total_constraints": len(shapes),
			"format":            "json",
		},
		"constraints": shapes,
	})
}

type importRequest struct {
	Constraints []models.Shape `json:"constraints"`
}

// Import creates rules from a list of definitional shapes. Shapes are
// imported independently; failures are reported per entry.
func (h *ConstraintHandler) Import(c *gin.Context) {
	start := time.Now()

	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid import request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if len(req.Constraints) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "constraints list is required"})
		return
	}

	created := make([]models.Constraint, 0, len(req.Constraints))
	failures := make([]gin.H, 0)
	for i, shape := range req.Constraints {
		constraint, err := h.engine.AddConstraint(shape)
		if err != nil {
			failures = append(failures, gin.H{"index": i, "error": err.Error()})
			continue
		}
		created = append(created, constraint)
	}

	h.audit.Record(monitoring.Event{
		Type:     monitoring.EventRuleImported,
		ClientIP: c.ClientIP(),
		Details: map[string]interface{}{
			"imported": len(created),
			"failed":   len(failures),
		},
	})

	h.logger.Info("Constraints imported",
		zap.Int("imported", len(created)),
		zap.Int("failed", len(failures)),
		zap.Duration("duration", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"imported":    len(created),
		"failed":      len(failures),
		"constraints": created,
		"errors":      failures,
		"meta": gin.H{
			"processing_time_ms": time.Since(start).Milliseconds(),
			"operation":          "import_constraints",
		},
	})
}

// AuditEvents returns recent administrative actions, newest first.
// Supports ?limit= and ?type= filters.
func (h *ConstraintHandler) AuditEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	events := h.audit.Recent(limit, monitoring.EventType(c.Query("type")))
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"meta":   gin.H{"count": len(events)},
	})
}
