package flow

import "sync"

// MockTask is an in-memory Task implementation for tests and examples.
//
// Fields mirror the Task interface one-to-one. The zero value is usable;
// set the fields you need and pass the pointer wherever a Task is expected.
//
// Example:
//
//	task := &flow.MockTask{
//	    TaskID:      1,
//	    TaskHash:    "9f86d081884c7d65",
//	    TaskName:    "align (sample_1)",
//	    Dir:         "/work/9f/86d081",
//	    ProcessName: "align",
//	    Outs:        []flow.OutputFile{{Path: "/work/9f/86d081/out.bam"}},
//	    Success:     true,
//	}
type MockTask struct {
	TaskID      TaskID
	TaskHash    string
	TaskName    string
	Dir         string
	ProcessName string
	InputFiles  map[string]string
	Outs        []OutputFile
	Success     bool
}

// ID implements Task.
func (m *MockTask) ID() TaskID { return m.TaskID }

// Hash implements Task.
func (m *MockTask) Hash() string { return m.TaskHash }

// Name implements Task.
func (m *MockTask) Name() string { return m.TaskName }

// WorkDir implements Task.
func (m *MockTask) WorkDir() string { return m.Dir }

// Process implements Task.
func (m *MockTask) Process() string { return m.ProcessName }

// Inputs implements Task.
func (m *MockTask) Inputs() map[string]string { return m.InputFiles }

// OutputFiles implements Task.
func (m *MockTask) OutputFiles() []OutputFile { return m.Outs }

// Succeeded implements Task.
func (m *MockTask) Succeeded() bool { return m.Success }

// MockDAG is a mutable StaticDAG for tests and examples.
//
// Build it with AddProcess, AddOperator, and Connect; reads are safe once
// construction is done. Construction methods are serialized internally so
// the builder can also be shared across setup goroutines.
type MockDAG struct {
	mu       sync.Mutex
	vertices []Vertex
	edges    []Edge
}

// NewMockDAG returns an empty DAG builder.
func NewMockDAG() *MockDAG {
	return &MockDAG{}
}

// AddProcess appends a process vertex. The vertex ID is the process name.
// A nil config gets a default ProcessConfig carrying only the name.
func (d *MockDAG) AddProcess(name string, cfg *ProcessConfig) *MockDAG {
	if cfg == nil {
		cfg = &ProcessConfig{Name: name}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vertices = append(d.vertices, Vertex{Kind: VertexProcess, ID: name, Config: cfg})
	return d
}

// AddOperator appends an operator vertex with the given ID.
func (d *MockDAG) AddOperator(id string) *MockDAG {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vertices = append(d.vertices, Vertex{Kind: VertexOperator, ID: id})
	return d
}

// Connect appends a directed edge between two vertex IDs.
func (d *MockDAG) Connect(from, to string) *MockDAG {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edges = append(d.edges, Edge{From: from, To: to})
	return d
}

// Vertices implements StaticDAG.
func (d *MockDAG) Vertices() []Vertex {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Vertex, len(d.vertices))
	copy(out, d.vertices)
	return out
}

// Edges implements StaticDAG.
func (d *MockDAG) Edges() []Edge {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Edge, len(d.edges))
	copy(out, d.edges)
	return out
}
