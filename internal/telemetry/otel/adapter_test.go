package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"loginus/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: "role.create"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
}

func (r *recordCapture) Emit(_ context.Context, rec otellog.Record) {
	r.rec = rec
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		EventType: "role.update_permissions",
		ActorID:   "user1",
		Resource:  "role:r-1",
		Result:    "success",
		Metadata:  map[string]string{"scope": "global"},
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	if got := cap.rec.Timestamp(); !got.Equal(created) {
		t.Errorf("timestamp = %v, want %v", got, created)
	}
	if body := cap.rec.Body().AsString(); body != "role.update_permissions" {
		t.Errorf("body = %q", body)
	}
	attrs := map[string]string{}
	cap.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"event_type": "role.update_permissions",
		"actor_id":   "user1",
		"resource":   "role:r-1",
		"result":     "success",
		"meta.scope": "global",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_EmptyFieldsSkipped(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &telemetry.Event{EventType: "code.sweep"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	count := 0
	cap.rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("attribute count = %d, want only event_type", count)
	}
}
