package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a point-in-time span with:
//   - Span name: event.Msg (e.g. "task_deleted", "file_deleted")
//   - Attributes: runID, taskID, process, path, and all Meta fields
//   - Status: set to error when event.Meta["error"] is present
//
// Usage:
//
//	tracer := otel.Tracer("flowreap")
//	emitter := emit.NewOTelEmitter(tracer)
//	engine := cleanup.New(deleter, cleanup.WithEmitter(emitter))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter that records one span per event
// on the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates a span for the event and ends it immediately: cleanup
// events mark points in time, not durations.
func (o *OTelEmitter) Emit(event Event) {
	o.emitSpan(context.Background(), event)
}

// EmitBatch creates spans for all events in order. The span processor
// batches them for export.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		o.emitSpan(ctx, event)
	}
	return nil
}

// Flush forces export of pending spans by calling ForceFlush on the
// registered tracer provider when it supports flushing. Call before
// shutdown so trailing deletion spans are exported.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) emitSpan(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("flowreap.run_id", event.RunID),
		attribute.Int64("flowreap.task_id", event.TaskID),
		attribute.String("flowreap.process", event.Process),
		attribute.String("flowreap.path", event.Path),
	)

	for key, value := range event.Meta {
		attrKey := "flowreap." + key
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
