package cleanup

import "github.com/dshills/flowreap-go/flow"

// The engine's state is three flat arenas keyed by opaque identity:
// process name, task ID, and absolute path. Cross-references between
// entries are stored as keys, not pointers, so there are no ownership
// cycles between the maps.

// processState tracks one process from the static DAG.
//
// Created once at workflow begin; never destroyed. closed flips exactly
// once, when the executor reports that no more tasks will be spawned for
// the process.
type processState struct {
	// consumers is the set of downstream process names derived from the
	// static DAG. A process with no downstream consumers holds itself,
	// so its deletions wait for its own close rather than an empty set.
	consumers map[string]struct{}

	closed bool
}

// taskState tracks one task execution.
//
// Created on task-pending; retained until workflow end. completed flips
// exactly once, deleted at most once.
type taskState struct {
	task flow.Task

	// consumers are the downstream tasks observed reading this task's
	// outputs. Handles are kept so the finalize record can filter by
	// success and collect hashes. Appended to only while the task is
	// not deleted.
	consumers map[flow.TaskID]flow.Task

	// publishOutputs are the output paths the publish subsystem is still
	// expected to report. The working directory must survive until the
	// set drains, so late file-published events can still be correlated.
	publishOutputs map[string]struct{}

	completed bool
	deleted   bool
}

// pathState tracks one output file.
//
// Created on task-complete for each declared output; retained until
// workflow end.
type pathState struct {
	// producer is the task that wrote the file.
	producer flow.TaskID

	// consumers are the downstream tasks observed declaring this path as
	// an input.
	consumers map[flow.TaskID]struct{}

	// published is true once the file needs no further publishing:
	// either it was never a publish target, or the publish subsystem
	// reported completion.
	published bool

	deleted bool
}
