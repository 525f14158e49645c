package flow

// VertexKind discriminates the static DAG's vertex variants.
type VertexKind int

const (
	// VertexProcess is a workflow process that spawns tasks. Process
	// vertices are terminal for the consumer derivation walk.
	VertexProcess VertexKind = iota

	// VertexOperator is a dataflow operator (merge, filter, channel
	// plumbing). Operators are transparent transit points: the consumer
	// walk passes through them without recording a consumer.
	VertexOperator
)

// Vertex is one node of the compile-time workflow graph.
//
// It is a tagged variant rather than an interface hierarchy: Kind selects
// the variant and Config is populated only for process vertices. For a
// process vertex, ID equals the process name.
type Vertex struct {
	Kind VertexKind

	// ID uniquely identifies the vertex within the DAG. Edges reference
	// vertices by ID.
	ID string

	// Config carries the process configuration. Nil for operators.
	Config *ProcessConfig
}

// Edge is a directed edge of the static DAG, from producer to consumer.
type Edge struct {
	From string
	To   string
}

// StaticDAG is read-only access to the compile-time workflow graph
// produced by the workflow compiler.
type StaticDAG interface {
	Vertices() []Vertex
	Edges() []Edge
}

// ProcessConfig is the subset of a process definition the cleanup
// subsystem inspects for eager-deletion compatibility.
type ProcessConfig struct {
	// Name is the process name, matching the vertex ID.
	Name string

	// PublishMode is how the process publishes outputs, if at all.
	// Empty when the process does not publish.
	PublishMode PublishMode

	// Outputs describes the process's file-output parameters.
	Outputs []OutputParam
}

// OutputParam describes one file-output parameter of a process.
type OutputParam struct {
	// Name is the parameter name as declared in the workflow source.
	Name string

	// IncludesInputs reports whether the parameter re-exports input
	// files as outputs. Such processes are incompatible with eager
	// deletion because an upstream file may be deleted while still
	// reachable through the re-export.
	IncludesInputs bool
}
