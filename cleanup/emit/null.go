package emit

import "context"

// NullEmitter implements Emitter by discarding all events.
//
// Use it when cleanup observability is not wanted; it is safe for
// concurrent use and has zero overhead.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}

// EmitBatch discards all events and returns nil.
func (n *NullEmitter) EmitBatch(context.Context, []Event) error {
	return nil
}

// Flush is a no-op.
func (n *NullEmitter) Flush(context.Context) error {
	return nil
}
