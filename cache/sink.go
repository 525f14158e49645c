// Package cache provides persistence for task finalize records.
//
// When the cleanup engine deletes a task's working directory, it submits a
// finalize record naming the task and the hashes of the downstream tasks
// that consumed its outputs. Resume logic reads these records on a later
// run to decide which cached results are still reachable.
//
// Implementations:
//   - In-memory (memory.go): tests and dry runs.
//   - SQLite (sqlite.go): single-file database, zero setup.
//   - MySQL (mysql.go): shared database for centralized run metadata.
//   - BoltDB (bolt.go): file-backed key-value store without SQL.
package cache

import (
	"errors"
	"time"
)

// ErrClosed is returned by MemorySink.Record after Close. The
// database-backed sinks report reads after Close through their driver's
// error instead.
var ErrClosed = errors.New("cache: sink closed")

// ErrNotFound is returned when no record exists for the requested task.
var ErrNotFound = errors.New("cache: record not found")

// Record is one finalize entry: a completed task and the hashes of the
// successful tasks that consumed its outputs.
type Record struct {
	// TaskHash is the content hash of the finalized task.
	TaskHash string

	// ConsumerHashes are the hashes of the successful downstream tasks
	// that read this task's outputs, sorted for determinism.
	ConsumerHashes []string

	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// Sink receives finalize records from the cleanup engine.
//
// FinalizeAsync is fire-and-forget: the engine calls it while holding its
// state mutex, so implementations must not block. Persistence failures are
// logged by the implementation and never propagated; the cache is a
// best-effort optimization, not a correctness requirement.
type Sink interface {
	// FinalizeAsync enqueues a finalize record for the given task.
	FinalizeAsync(taskHash string, consumerHashes []string)

	// Close drains pending records and releases resources. FinalizeAsync
	// calls after Close are dropped.
	Close() error
}
