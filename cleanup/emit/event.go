package emit

// Event represents an observability event emitted by the cleanup engine.
//
// Events provide insight into cleanup behavior:
//   - Task working directories deleted
//   - Individual output files deleted
//   - Publish notifications reconciled out of order
//   - Process configurations incompatible with eager deletion
//
// Events are delivered to an Emitter which can log them, convert them to
// OpenTelemetry spans, or discard them.
type Event struct {
	// RunID identifies the workflow session that emitted this event.
	RunID string

	// TaskID identifies the task the event concerns. Zero for events
	// that are not task-scoped (e.g. compatibility warnings).
	TaskID int64

	// Process is the name of the process the event concerns.
	// Empty for session-level events.
	Process string

	// Path is the filesystem path involved, if any: a deleted file, a
	// removed working directory, or a published source.
	Path string

	// Msg is a short machine-stable event name, e.g. "task_deleted".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "error": failure details (the engine itself reports deleter
	//     failures through its logger and metrics, not as events)
	//   - "reason": why a compatibility warning fired
	//   - "consumers": number of consumer hashes in a finalize record
	Meta map[string]interface{}
}
