// Package flow defines the shared workflow model consumed by the cleanup
// engine and the task graph: the opaque task handle produced by the
// executor, the compile-time process DAG, and the publish-mode enumeration.
//
// The executor owns the concrete task implementation; this package only
// specifies the surface the cleanup subsystem reads. Mock implementations
// suitable for tests and examples live in mock.go.
package flow

// TaskID uniquely identifies one task execution within a workflow session.
//
// IDs are assigned by the executor and are stable for the lifetime of the
// run. They are used as map keys throughout the cleanup subsystem, so two
// handles for the same execution must report the same ID.
type TaskID int64

// Task is the executor's handle for a single task execution.
//
// A task is one run of a process on a specific input binding. It executes
// inside a dedicated working directory, reads the files listed in Inputs,
// and produces the files listed in OutputFiles. The handle is read-only
// from the cleanup subsystem's point of view.
//
// Implementations must be safe for concurrent reads: the cleanup engine
// and the task graph may hold the same handle and query it from different
// goroutines.
type Task interface {
	// ID returns the stable task identity.
	ID() TaskID

	// Hash returns the task's content hash as a lowercase hex string.
	// The hash identifies the task in the cache database and in
	// human-readable labels.
	Hash() string

	// Name returns the human-readable task name, e.g. "align (sample_3)".
	Name() string

	// WorkDir returns the absolute path of the task's working directory.
	WorkDir() string

	// Process returns the name of the process this task belongs to.
	// The name matches a process vertex in the static DAG.
	Process() string

	// Inputs returns the declared input-file map: parameter name to
	// absolute path. Callers must not mutate the returned map.
	Inputs() map[string]string

	// OutputFiles returns the declared file-typed outputs. The list is
	// only complete once the task has finished executing.
	OutputFiles() []OutputFile

	// Succeeded reports whether the task completed successfully.
	// Only meaningful after the task-complete lifecycle event.
	Succeeded() bool
}

// OutputFile is one file-typed output of a task.
type OutputFile struct {
	// Path is the absolute path of the output file inside the task's
	// working directory.
	Path string

	// Publish reports whether the publish subsystem is expected to copy
	// this file to a user-visible location. Files with Publish set must
	// not be deleted before the publish completion notification arrives.
	Publish bool
}
