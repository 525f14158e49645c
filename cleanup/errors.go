// Package cleanup implements the eager intermediate-file cleanup engine
// for a workflow executor: it observes task lifecycle events and deletes
// task working directories and output files as soon as no future task can
// read them.
package cleanup

import "errors"

// ErrNilTask indicates a nil task handle was passed to a lifecycle
// handler. This is an executor bug; the workflow should fail fast.
var ErrNilTask = errors.New("cleanup: nil task")

// ErrUnknownTask indicates a task-complete event arrived for a task that
// was never reported pending. This is an executor bug; the workflow
// should fail fast.
var ErrUnknownTask = errors.New("cleanup: completion for unknown task")

// ErrNilDAG indicates the workflow-begin event carried no static DAG.
var ErrNilDAG = errors.New("cleanup: nil static DAG")
