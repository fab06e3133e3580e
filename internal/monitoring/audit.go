package monitoring

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies the kind of administrative action being audited.
type EventType string

const (
	EventRuleCreated  EventType = "rule_created"
	EventRuleImported EventType = "rule_imported"
	EventRuleRemoved  EventType = "rule_removed"
	EventRuleEnabled  EventType = "rule_enabled"
	EventRuleDisabled EventType = "rule_disabled"
	EventFeedback     EventType = "feedback_recorded"
)

// Event is a single audit trail entry.
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	ConstraintID string                 `json:"constraint_id,omitempty"`
	Status       string                 `json:"status"`
	ClientIP     string                 `json:"client_ip,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// AuditTrail keeps a bounded in-memory log of administrative actions and
// mirrors each entry to the structured log. Oldest entries are evicted
// when the buffer fills.
type AuditTrail struct {
	logger    *zap.Logger
	maxEvents int

	mu     sync.RWMutex
	events []Event
}

const defaultMaxEvents = 10000

// NewAuditTrail creates an audit trail with the default buffer size.
func NewAuditTrail(logger *zap.Logger) *AuditTrail {
	return &AuditTrail{
		logger:    logger,
		maxEvents: defaultMaxEvents,
	}
}

// Record stores an event, filling in its ID, timestamp, and default
// status. The stored event is returned.
func (a *AuditTrail) Record(event Event) Event {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now()
	if event.Status == "" {
		event.Status = "success"
	}

	a.mu.Lock()
	a.events = append(a.events, event)
	if len(a.events) > a.maxEvents {
		// Trim to half capacity so eviction is not per-append.
		keep := a.maxEvents / 2
		a.events = append([]Event(nil), a.events[len(a.events)-keep:]...)
	}
	a.mu.Unlock()

	a.logger.Info("Audit event",
		zap.String("audit_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("constraint_id", event.ConstraintID),
		zap.String("status", event.Status),
		zap.String("client_ip", event.ClientIP))

	return event
}

// Recent returns up to limit events, newest first. A non-empty eventType
// filters by type; limit <= 0 means no limit.
func (a *AuditTrail) Recent(limit int, eventType EventType) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Event, 0, len(a.events))
	for i := len(a.events) - 1; i >= 0; i-- {
		if eventType != "" && a.events[i].Type != eventType {
			continue
		}
		out = append(out, a.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Len reports how many events are currently buffered.
func (a *AuditTrail) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}
