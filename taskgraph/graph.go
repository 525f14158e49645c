// Package taskgraph records the dynamic task-level dataflow of a workflow
// session: every task that has been scheduled, its declared inputs, and
// (once known) its output files, with a reverse index from each output
// path to its producing task.
//
// The graph is append-only and is consumed by the cache layer and by
// resume logic; the cleanup engine maintains its own state and does not
// read it. The two structures are populated from the same lifecycle
// events but guard themselves independently.
package taskgraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/flowreap-go/flow"
)

// ErrNilTask is returned when a nil task handle is passed to a write
// operation. This indicates an executor bug.
var ErrNilTask = errors.New("taskgraph: nil task")

// ErrUnknownTask is returned when outputs are registered for a task that
// was never added. This indicates an executor bug.
var ErrUnknownTask = errors.New("taskgraph: outputs registered for unknown task")

// Vertex is the recorded state of one task.
//
// Vertices returned from queries are value snapshots: the maps they carry
// are the ones recorded at write time and are never mutated afterwards,
// so readers may hold them without synchronization.
type Vertex struct {
	// Index is the monotonically assigned insertion index, starting at 0.
	Index int

	// Label is the human-readable task label, e.g. "[9f/86d081] align (sample_1)".
	Label string

	// Inputs is the declared input-file map captured when the task was
	// added: parameter name to absolute path.
	Inputs map[string]string

	// Outputs is the set of output file paths, populated once the task's
	// outputs are registered.
	Outputs map[string]struct{}

	task flow.Task
}

// Task returns the underlying task handle.
func (v Vertex) Task() flow.Task { return v.task }

// Graph is the append-only task dataflow record.
//
// All write operations are serialized by an internal mutex. Reads return
// consistent snapshots but are not linearized with writes.
type Graph struct {
	mu        sync.Mutex
	vertices  map[flow.TaskID]*Vertex
	order     []flow.TaskID
	producers map[string]flow.TaskID
	log       zerolog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for workflow-shape warnings such as two
// tasks declaring the same output path. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Graph) { g.log = log }
}

// New creates an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		vertices:  make(map[flow.TaskID]*Vertex),
		producers: make(map[string]flow.TaskID),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddTask records a new vertex for the task.
//
// The vertex gets the next insertion index, a label derived from the task
// hash and name, and a copy of the task's declared input map: later
// mutation of the source map does not affect the recorded state.
//
// Adding a task whose vertex already exists is idempotent at the vertex
// level but overwrites the recorded inputs; callers must not rely on it.
func (g *Graph) AddTask(t flow.Task) error {
	if t == nil {
		return ErrNilTask
	}

	inputs := make(map[string]string, len(t.Inputs()))
	for name, path := range t.Inputs() {
		inputs[name] = path
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if v, ok := g.vertices[t.ID()]; ok {
		v.Inputs = inputs
		return nil
	}

	g.vertices[t.ID()] = &Vertex{
		Index:  len(g.order),
		Label:  taskLabel(t),
		Inputs: inputs,
		task:   t,
	}
	g.order = append(g.order, t.ID())
	return nil
}

// AddTaskOutputs sets the vertex's output set to the task's declared
// file-typed outputs and updates the reverse index from each path to its
// producing task.
//
// When the same path was previously registered to a different task, the
// later registration wins and the conflict is logged: two tasks writing
// the same output path is a workflow bug.
func (g *Graph) AddTaskOutputs(t flow.Task) error {
	if t == nil {
		return ErrNilTask
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.vertices[t.ID()]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrUnknownTask, t.ID())
	}

	outputs := make(map[string]struct{})
	for _, out := range t.OutputFiles() {
		outputs[out.Path] = struct{}{}
		if prev, exists := g.producers[out.Path]; exists && prev != t.ID() {
			g.log.Warn().
				Str("path", out.Path).
				Int64("previous_task", int64(prev)).
				Int64("task", int64(t.ID())).
				Msg("output path declared by more than one task")
		}
		g.producers[out.Path] = t.ID()
	}
	v.Outputs = outputs
	return nil
}

// ProducerTask returns the task that produced the given output path.
func (g *Graph) ProducerTask(path string) (flow.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.producers[path]
	if !ok {
		return nil, false
	}
	return g.vertices[id].task, true
}

// ProducerVertex returns the vertex of the task that produced the given
// output path.
func (g *Graph) ProducerVertex(path string) (Vertex, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.producers[path]
	if !ok {
		return Vertex{}, false
	}
	return *g.vertices[id], true
}

// Vertices returns a snapshot of all vertices sorted by insertion index.
func (g *Graph) Vertices() []Vertex {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Vertex, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.vertices[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// taskLabel formats the task label as "[xx/yyyyyy] <name>" from the first
// eight hex characters of the content hash.
func taskLabel(t flow.Task) string {
	hash := t.Hash()
	if len(hash) < 8 {
		return fmt.Sprintf("[%s] %s", hash, t.Name())
	}
	return fmt.Sprintf("[%s/%s] %s", hash[:2], hash[2:8], t.Name())
}
