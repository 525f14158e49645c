package cleanup

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/flowreap-go/cache"
	"github.com/dshills/flowreap-go/cleanup/emit"
	"github.com/dshills/flowreap-go/flow"
)

// Engine is the eager cleanup state machine.
//
// It subscribes to five lifecycle events from the executor:
//
//	OnFlowBegin     - static process DAG is known
//	OnProcessClose  - a process will spawn no more tasks
//	OnTaskPending   - a task has been scheduled
//	OnTaskComplete  - a task finished executing
//	OnFilePublish   - the publish subsystem copied an output
//
// After each event the engine decides which task working directories and
// output files can no longer influence any future task and deletes them
// through the injected PathDeleter, submitting a finalize record to the
// cache sink for each deleted task.
//
// Deletion is safe (a file is never deleted while a pending task may read
// it or a publication is outstanding) and prompt (everything is deleted at
// the first event where safety is provable). Both properties follow from
// two predicates evaluated by a single sweep pass per event; each
// deletion-authorizing fact (process close, task completion, file
// publication) is itself an event that triggers its own sweep, so no
// fixed-point iteration is needed.
//
// All handlers serialize on a single mutex; the engine holds no
// goroutines or timers of its own. One Engine serves one workflow
// session; construct a fresh one per run.
type Engine struct {
	mu sync.Mutex

	deleter PathDeleter
	sink    cache.Sink
	emitter emit.Emitter
	metrics *PrometheusMetrics
	log     zerolog.Logger
	runID   string

	processes map[string]*processState
	tasks     map[flow.TaskID]*taskState
	paths     map[string]*pathState

	// publishedOutputs holds publish notifications that arrived before
	// the producing task reported completion, keyed by source path. They
	// are reconciled against the task's publish targets at completion.
	publishedOutputs map[string]struct{}

	// warned tracks processes already flagged as incompatible. The create
	// hook and the flow-begin inspection share it, so a process is
	// inspected and warned about at most once across both.
	warned map[string]struct{}

	stats Stats
}

// Stats is a snapshot of cleanup activity for end-of-run reporting.
type Stats struct {
	// TasksDeleted counts working directories removed.
	TasksDeleted int64

	// FilesDeleted counts output files removed individually. Files that
	// vanished with their task's working directory are not counted here.
	FilesDeleted int64

	// DeleteFailures counts deleter errors. Failed deletions are retried
	// on a later sweep while eligibility holds.
	DeleteFailures int64
}

// New creates an Engine using the given deleter. The cache sink arrives
// later, with the static DAG, via OnFlowBegin.
func New(deleter PathDeleter, opts ...Option) *Engine {
	e := &Engine{
		deleter:          deleter,
		emitter:          emit.NewNullEmitter(),
		log:              zerolog.Nop(),
		runID:            uuid.NewString(),
		processes:        make(map[string]*processState),
		tasks:            make(map[flow.TaskID]*taskState),
		paths:            make(map[string]*pathState),
		publishedOutputs: make(map[string]struct{}),
		warned:           make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnFlowBegin handles the workflow-begin event.
//
// It derives each process's consumer set from the static DAG (operators
// are transparent, processes terminal, an empty set becomes {self}) and
// inspects every process configuration for eager-deletion
// incompatibilities, warning without failing.
func (e *Engine) OnFlowBegin(dag flow.StaticDAG, sink cache.Sink) error {
	if dag == nil {
		return ErrNilDAG
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sink = sink

	for name, consumers := range deriveConsumers(dag) {
		e.processes[name] = &processState{consumers: consumers}
	}

	for _, v := range dag.Vertices() {
		if v.Kind == flow.VertexProcess {
			e.warnIfIncompatible(v.Config)
		}
	}
	return nil
}

// OnProcessCreate is a warning hook: it inspects a process configuration
// for eager-deletion incompatibilities as soon as the process is created.
// A process warns at most once per session across this hook and
// OnFlowBegin.
func (e *Engine) OnProcessCreate(cfg *flow.ProcessConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnIfIncompatible(cfg)
}

// OnProcessClose handles the process-closed event: no more tasks will be
// spawned for the named process. Downstream of this fact, tasks and files
// whose last blocker was this process become deletable, so a sweep runs.
func (e *Engine) OnProcessClose(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps, ok := e.processes[name]
	if !ok {
		e.log.Debug().Str("process", name).Msg("close for process not in static DAG")
		return
	}
	ps.closed = true
	e.sweep()
}

// OnTaskPending handles the task-pending event: a new task has been
// scheduled. The task is linked as a consumer of every known path it
// declares as an input, and of that path's producing task.
//
// No sweep runs: a new task can only block deletions, never unblock them.
func (e *Engine) OnTaskPending(t flow.Task) error {
	if t == nil {
		return fmt.Errorf("%w: task pending", ErrNilTask)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tasks[t.ID()]; ok {
		return nil
	}

	e.tasks[t.ID()] = &taskState{
		task:           t,
		consumers:      make(map[flow.TaskID]flow.Task),
		publishOutputs: make(map[string]struct{}),
	}

	for _, path := range t.Inputs() {
		ps, ok := e.paths[path]
		if !ok {
			continue
		}
		if producer, ok := e.tasks[ps.producer]; ok && !producer.deleted {
			producer.consumers[t.ID()] = t
		}
		ps.consumers[t.ID()] = struct{}{}
	}
	return nil
}

// OnTaskComplete handles the task-complete event.
//
// Failed tasks are only marked completed: they contribute no outputs and
// are never recorded as consumers in finalize records. For successful
// tasks the handler reconciles early publish notifications, records the
// outstanding publish targets, sweeps, and then registers a path state
// for each output.
//
// The sweep deliberately runs before the path states are created: the
// just-completed task's own working directory may already be deletable,
// but its individual files are not candidates until downstream consumers
// have been linked by later task-pending events.
func (e *Engine) OnTaskComplete(t flow.Task) error {
	if t == nil {
		return fmt.Errorf("%w: task complete", ErrNilTask)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.tasks[t.ID()]
	if !ok {
		return fmt.Errorf("%w: id=%d name=%q", ErrUnknownTask, t.ID(), t.Name())
	}
	if ts.completed {
		return nil
	}

	if !t.Succeeded() {
		ts.completed = true
		return nil
	}

	outputs := t.OutputFiles()

	// Reconcile publish notifications that raced ahead of completion.
	early := make(map[string]struct{})
	for _, out := range outputs {
		if !out.Publish {
			continue
		}
		if _, ok := e.publishedOutputs[out.Path]; ok {
			delete(e.publishedOutputs, out.Path)
			early[out.Path] = struct{}{}
			continue
		}
		ts.publishOutputs[out.Path] = struct{}{}
	}
	ts.completed = true
	e.metrics.AddPendingPublish(len(ts.publishOutputs))

	e.sweep()

	for _, out := range outputs {
		published := !out.Publish
		if _, ok := early[out.Path]; ok {
			published = true
		}
		e.paths[out.Path] = &pathState{
			producer:  t.ID(),
			consumers: make(map[flow.TaskID]struct{}),
			published: published,
		}
	}
	return nil
}

// OnFilePublish handles the file-published event for the given source
// path.
//
// When the source is a known output, the path is marked published,
// removed from its producer's outstanding publish set, and a targeted
// delete attempt runs: the whole working directory when the producer is
// now deletable, otherwise the single file when it is. When the source is
// not yet known, the notification is parked for reconciliation at the
// producer's completion.
func (e *Engine) OnFilePublish(destination, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps, ok := e.paths[source]
	if !ok {
		e.publishedOutputs[source] = struct{}{}
		e.emitter.Emit(emit.Event{
			RunID: e.runID,
			Path:  source,
			Msg:   "publish_before_complete",
			Meta:  map[string]interface{}{"destination": destination},
		})
		return
	}

	producer := e.tasks[ps.producer]
	if producer != nil {
		if _, pending := producer.publishOutputs[source]; pending {
			delete(producer.publishOutputs, source)
			e.metrics.AddPendingPublish(-1)
		}
	}
	ps.published = true

	switch {
	case producer != nil && e.taskDeletable(producer):
		e.deleteTask(producer)
	case e.pathDeletable(ps):
		e.deletePath(source, ps)
	}
}

// Stats returns a snapshot of cleanup activity.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// RunID returns the session identifier carried on emitted events.
func (e *Engine) RunID() string { return e.runID }

// sweep applies the deletion predicates once: a pass over all tasks, then
// a pass over all paths. A single pass suffices because every fact that
// widens eligibility arrives as an event with its own sweep.
//
// Callers must hold e.mu.
func (e *Engine) sweep() {
	start := time.Now()

	for _, ts := range e.tasks {
		if e.taskDeletable(ts) {
			e.deleteTask(ts)
		}
	}
	for path, ps := range e.paths {
		if e.pathDeletable(ps) {
			e.deletePath(path, ps)
		}
	}

	e.metrics.RecordSweepDuration(time.Since(start))
}

// taskDeletable reports whether the task's working directory can be
// removed: the task has completed, its publish queue is drained, every
// process consuming its process has closed, and every observed consumer
// task has completed.
func (e *Engine) taskDeletable(ts *taskState) bool {
	if !ts.completed || ts.deleted || len(ts.publishOutputs) > 0 {
		return false
	}
	if !e.processConsumersClosed(ts.task.Process()) {
		return false
	}
	return e.consumersCompleted(ts.consumers)
}

// pathDeletable reports whether the single file can be removed: it has
// been published (or never needed publishing), every process consuming
// its producer's process has closed, and every observed consumer task has
// completed.
//
// Note the asymmetry with taskDeletable: a file only needs its own
// publication settled, while a working directory needs the producer's
// whole publish queue drained so later publish events still find their
// sources.
func (e *Engine) pathDeletable(ps *pathState) bool {
	if !ps.published || ps.deleted {
		return false
	}
	producer, ok := e.tasks[ps.producer]
	if !ok {
		return false
	}
	if !e.processConsumersClosed(producer.task.Process()) {
		return false
	}
	for id := range ps.consumers {
		consumer, ok := e.tasks[id]
		if !ok || !consumer.completed {
			return false
		}
	}
	return true
}

func (e *Engine) processConsumersClosed(process string) bool {
	ps, ok := e.processes[process]
	if !ok {
		// Process missing from the static DAG: never provably safe.
		return false
	}
	for name := range ps.consumers {
		consumer, ok := e.processes[name]
		if !ok || !consumer.closed {
			return false
		}
	}
	return true
}

func (e *Engine) consumersCompleted(consumers map[flow.TaskID]flow.Task) bool {
	for id := range consumers {
		cs, ok := e.tasks[id]
		if !ok || !cs.completed {
			return false
		}
	}
	return true
}

// deleteTask removes the task's working directory and submits the
// finalize record. On deleter failure the deleted flag stays unset and no
// record is submitted, so a later sweep retries; the flag and the record
// move together.
//
// Callers must hold e.mu.
func (e *Engine) deleteTask(ts *taskState) {
	workDir := ts.task.WorkDir()
	if err := e.deleter.Delete(workDir); err != nil {
		e.stats.DeleteFailures++
		e.metrics.RecordDeleteFailure("task")
		e.log.Warn().Err(err).
			Str("process", ts.task.Process()).
			Str("work_dir", workDir).
			Msg("failed to delete task directory")
		return
	}
	ts.deleted = true
	e.stats.TasksDeleted++
	e.metrics.RecordDeletion("task")

	// Finalize records exist only for cacheable results, and failed
	// tasks are not cached.
	var consumers []string
	if ts.task.Succeeded() {
		for _, c := range ts.consumers {
			if c.Succeeded() {
				consumers = append(consumers, c.Hash())
			}
		}
		sort.Strings(consumers)
		if e.sink != nil {
			e.sink.FinalizeAsync(ts.task.Hash(), consumers)
		}
	}

	e.emitter.Emit(emit.Event{
		RunID:   e.runID,
		TaskID:  int64(ts.task.ID()),
		Process: ts.task.Process(),
		Path:    workDir,
		Msg:     "task_deleted",
		Meta:    map[string]interface{}{"consumers": len(consumers)},
	})
}

// deletePath removes one output file. When the producer's working
// directory is already gone the file went with it, so the path is only
// marked deleted; this keeps re-deletion idempotent across partial
// deleter failures.
//
// Callers must hold e.mu.
func (e *Engine) deletePath(path string, ps *pathState) {
	producer := e.tasks[ps.producer]
	if producer != nil && producer.deleted {
		ps.deleted = true
		return
	}

	if err := e.deleter.Delete(path); err != nil {
		e.stats.DeleteFailures++
		e.metrics.RecordDeleteFailure("file")
		e.log.Warn().Err(err).Str("path", path).Msg("failed to delete file")
		return
	}
	ps.deleted = true
	e.stats.FilesDeleted++
	e.metrics.RecordDeletion("file")

	var process string
	var taskID int64
	if producer != nil {
		process = producer.task.Process()
		taskID = int64(producer.task.ID())
	}
	e.emitter.Emit(emit.Event{
		RunID:   e.runID,
		TaskID:  taskID,
		Process: process,
		Path:    path,
		Msg:     "file_deleted",
	})
}

// warnIfIncompatible flags process configurations that defeat eager
// deletion: output parameters that re-export input files, and publish
// modes that leave the destination pointing into the work directory.
//
// Callers must hold e.mu.
func (e *Engine) warnIfIncompatible(cfg *flow.ProcessConfig) {
	if cfg == nil {
		return
	}
	if _, done := e.warned[cfg.Name]; done {
		return
	}

	var reasons []string
	for _, out := range cfg.Outputs {
		if out.IncludesInputs {
			reasons = append(reasons, fmt.Sprintf("output parameter %q re-exports input files", out.Name))
			break
		}
	}
	if cfg.PublishMode.Incompatible() {
		reasons = append(reasons, fmt.Sprintf("publish mode %q references the work directory", cfg.PublishMode))
	}
	if len(reasons) == 0 {
		return
	}

	e.warned[cfg.Name] = struct{}{}
	for _, reason := range reasons {
		e.metrics.RecordCompatWarning()
		e.log.Warn().Str("process", cfg.Name).Str("reason", reason).
			Msg("process is not eligible for eager cleanup")
		e.emitter.Emit(emit.Event{
			RunID:   e.runID,
			Process: cfg.Name,
			Msg:     "cleanup_incompatible",
			Meta:    map[string]interface{}{"reason": reason},
		})
	}
}
