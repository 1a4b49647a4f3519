// Package telemetry defines the structured event type emitted for
// authorization-relevant activity and the emitter interface backends implement.
package telemetry

import (
	"context"
	"time"
)

// Event is a single structured telemetry event. All fields are optional;
// emitters skip empty ones.
type Event struct {
	EventType string
	ActorID   string
	Resource  string
	Result    string
	Metadata  map[string]string
	CreatedAt time.Time
}

// EventEmitter emits telemetry events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
