// Package emit provides event emission and observability for the cleanup
// engine.
package emit

import "context"

// Emitter receives and processes observability events from the cleanup
// engine.
//
// Emitters enable pluggable observability backends: stdout/file logging,
// distributed tracing via OpenTelemetry, or nothing at all.
//
// Implementations should be:
//   - Non-blocking: the engine emits while holding its state mutex.
//   - Thread-safe: events arrive from multiple executor threads.
//   - Resilient: a failing backend must not crash the workflow.
type Emitter interface {
	// Emit sends one event to the configured backend.
	//
	// Emit must not panic and should not block; backend errors are
	// logged internally, never surfaced to the engine.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving
	// order. Returns an error only on catastrophic failures such as a
	// misconfigured backend; individual event failures are logged and
	// skipped.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush delivers any buffered events, blocking until done or the
	// context expires. Safe to call multiple times. Call it before
	// shutdown so trailing deletion events are not lost.
	Flush(ctx context.Context) error
}
