// Package audit provides a best-effort structured audit sink.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"loginus/internal/audit/domain"
	auditrepo "loginus/internal/audit/repository"
	"loginus/internal/telemetry"
)

// SentinelActorID is recorded when an event has no acting user (system jobs, sweeps).
const SentinelActorID = "_system"

// AuditLogger writes a single audit event with explicit action/resource/result.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, action, resource, result, metadata string)
}

// Logger implements AuditLogger using the audit repository. When an event
// emitter is set, every entry is also emitted as a telemetry event.
type Logger struct {
	repo   auditrepo.Repository
	events telemetry.EventEmitter
}

// NewLogger returns an AuditLogger that persists to repo. repo and events may
// each be nil, in which case the corresponding sink is skipped.
func NewLogger(repo auditrepo.Repository, events telemetry.EventEmitter) *Logger {
	return &Logger{repo: repo, events: events}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, actorID, action, resource, result, metadata string) {
	if actorID == "" {
		actorID = SentinelActorID
	}
	now := time.Now().UTC()
	telemetry.EmitAsync(l.events, ctx, &telemetry.Event{
		EventType: action,
		ActorID:   actorID,
		Resource:  resource,
		Result:    result,
		Metadata:  map[string]string{"detail": metadata},
		CreatedAt: now,
	})
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Result:    result,
		Metadata:  metadata,
		CreatedAt: now,
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}

// Nop is an AuditLogger that discards events. Useful in tests.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string, string) {}
