package cleanup

import "github.com/dshills/flowreap-go/flow"

// deriveConsumers computes, for every process vertex in the static DAG,
// the set of downstream process names that consume its outputs.
//
// The walk follows forward edges from each process. Operator vertices are
// transparent transit points: the walk passes through them and keeps
// going. Process vertices are terminal: they are recorded as consumers
// and the walk does not continue past them.
//
// A process with no downstream process consumers is given a consumer set
// containing itself, so its deletion predicate waits for its own close
// instead of being vacuously satisfied before the process has finished
// spawning tasks.
func deriveConsumers(dag flow.StaticDAG) map[string]map[string]struct{} {
	vertices := dag.Vertices()

	kinds := make(map[string]flow.VertexKind, len(vertices))
	for _, v := range vertices {
		kinds[v.ID] = v.Kind
	}

	forward := make(map[string][]string)
	for _, e := range dag.Edges() {
		forward[e.From] = append(forward[e.From], e.To)
	}

	result := make(map[string]map[string]struct{})
	for _, v := range vertices {
		if v.Kind != flow.VertexProcess {
			continue
		}

		consumers := make(map[string]struct{})
		visited := map[string]struct{}{v.ID: {}}
		walkConsumers(v.ID, forward, kinds, visited, consumers)

		if len(consumers) == 0 {
			consumers[v.ID] = struct{}{}
		}
		result[v.ID] = consumers
	}
	return result
}

func walkConsumers(id string, forward map[string][]string, kinds map[string]flow.VertexKind, visited, consumers map[string]struct{}) {
	for _, next := range forward[id] {
		if _, seen := visited[next]; seen {
			continue
		}
		visited[next] = struct{}{}

		if kinds[next] == flow.VertexProcess {
			consumers[next] = struct{}{}
			continue
		}
		walkConsumers(next, forward, kinds, visited, consumers)
	}
}
