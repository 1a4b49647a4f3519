package otel

import (
	"context"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"loginus/internal/telemetry"
)

// recordEmitter is the subset of otellog.Logger the adapter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("loginus.telemetry")}
}

// NewEventEmitterWithLogger returns an EventEmitter over an explicit record sink. Used in tests.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	}
	if event.EventType != "" {
		rec.SetBody(otellog.StringValue(event.EventType))
		rec.AddAttributes(otellog.String("event_type", event.EventType))
	}
	if event.ActorID != "" {
		rec.AddAttributes(otellog.String("actor_id", event.ActorID))
	}
	if event.Resource != "" {
		rec.AddAttributes(otellog.String("resource", event.Resource))
	}
	if event.Result != "" {
		rec.AddAttributes(otellog.String("result", event.Result))
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
