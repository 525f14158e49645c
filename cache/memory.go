package cache

import (
	"sync"
	"time"
)

// MemorySink is an in-memory Sink.
//
// Records are stored immediately, so there is nothing to drain on Close.
// Designed for tests and dry runs; data is lost when the process exits.
// Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FinalizeAsync stores the record. The consumer slice is copied so later
// mutation by the caller cannot affect the stored record.
func (m *MemorySink) FinalizeAsync(taskHash string, consumerHashes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	consumers := make([]string, len(consumerHashes))
	copy(consumers, consumerHashes)

	m.records = append(m.records, Record{
		TaskHash:       taskHash,
		ConsumerHashes: consumers,
		CreatedAt:      time.Now(),
	})
}

// Records returns a snapshot of all stored records in insertion order.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Record returns the record for the given task hash.
func (m *MemorySink) Record(taskHash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrClosed
	}
	for _, r := range m.records {
		if r.TaskHash == taskHash {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Close marks the sink closed; later FinalizeAsync calls are dropped.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
