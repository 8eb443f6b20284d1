// Package graphapi is the builder surface: StateGraph lets callers declare
// nodes, static and conditional edges, and a state schema (one channel
// reducer per state field), then Compile it into a runnable pregel.PregelLoop.
package graphapi

import (
	"context"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/pregel"
)

// END is the sentinel target name a ConditionalRouter returns to stop
// execution along that branch instead of naming another node.
const END = "__end__"

// NodeFunc is a graph node's user-supplied computation: given the current
// state (assembled from every schema channel declared on the graph), it
// returns a partial update to merge in.
type NodeFunc func(ctx context.Context, state map[string]any) (map[string]any, error)

// ConditionalRouter inspects state after a node has run and names the
// destination node(s) to activate next, or END to stop that branch. It
// runs synchronously within the node's task and receives the RunConfig
// that scheduled it, matching §4.3's condition(state, config) contract.
// Returning more than one name fans out to all of them in the same step,
// the same as a node with multiple static AddEdge targets.
type ConditionalRouter func(state map[string]any, config pregel.RunConfig) ([]string, error)

// StateGraph is the mutable builder. Build it up with AddNode/AddEdge/
// AddConditionalEdges, then Compile it; the builder itself never runs
// anything.
type StateGraph struct {
	schema      map[string]channel.Definition
	nodes       map[string]NodeFunc
	staticEdges map[string][]string
	condEdges   map[string]ConditionalRouter
	// condPathMap holds, per conditional-edge source, the optional
	// translation from a router's returned key to an actual node name or
	// END. Absent entries mean the router returns node names directly.
	condPathMap map[string]map[string]string
	entry       string
	finish      map[string]bool
	multiEdge   bool
}

// NewStateGraph creates a builder over a state schema: one channel
// Definition per field the graph's nodes read and write. Only fields in
// schema become channels: a node that returns a key absent from schema
// fails at run time with an undeclared-channel write error.
func NewStateGraph(schema map[string]channel.Definition) *StateGraph {
	s := make(map[string]channel.Definition, len(schema))
	for k, v := range schema {
		s[k] = v
	}
	return &StateGraph{
		schema:      s,
		nodes:       make(map[string]NodeFunc),
		staticEdges: make(map[string][]string),
		condEdges:   make(map[string]ConditionalRouter),
		condPathMap: make(map[string]map[string]string),
		finish:      make(map[string]bool),
	}
}

// AllowMultiEdge lifts AddEdge's default single-outgoing-edge restriction,
// letting a node fan out to several static targets in the same step (e.g.
// a "fanout" node feeding independent branch nodes).
func (g *StateGraph) AllowMultiEdge() {
	g.multiEdge = true
}

// AddNode registers a node. Node names must be unique and may not equal
// END.
func (g *StateGraph) AddNode(name string, fn NodeFunc) error {
	if name == "" {
		return &BuildError{Code: CodeInvalidGraph, Message: "node name cannot be empty"}
	}
	if name == END {
		return &BuildError{Code: CodeInvalidGraph, Message: "node name cannot be the END sentinel"}
	}
	if fn == nil {
		return &BuildError{Code: CodeInvalidGraph, Message: "node " + name + ": fn cannot be nil"}
	}
	if _, exists := g.nodes[name]; exists {
		return &BuildError{Code: CodeDuplicateNode, Message: "duplicate node: " + name}
	}
	g.nodes[name] = fn
	return nil
}

// AddEdge adds an unconditional transition from -> to. A second call with
// the same from errors unless AllowMultiEdge was called first, per §6: by
// default a node has exactly one outgoing edge, so fan-out topologies must
// opt in explicitly instead of being created by accident.
func (g *StateGraph) AddEdge(from, to string) error {
	if from == "" || to == "" {
		return &BuildError{Code: CodeInvalidGraph, Message: "edge endpoints cannot be empty"}
	}
	if !g.multiEdge && len(g.staticEdges[from]) > 0 {
		return &BuildError{Code: CodeMultipleEdges, Message: "node " + from + " already has an outgoing edge; call AllowMultiEdge to permit fan-out"}
	}
	g.staticEdges[from] = append(g.staticEdges[from], to)
	return nil
}

// AddConditionalEdges attaches a router to from: the node(s) it names
// (directly, or through pathMap when given) fire next. pathMap, if
// provided, translates each key the router returns into an actual node
// name or END, matching §4.3/§6's addConditionalEdges(src, condition,
// pathMap?); passing more than one pathMap is an error. A node may also
// have static edges; at run time its router alone selects the next nodes,
// while Compile's dead-end and reachability checks still count the static
// edges.
func (g *StateGraph) AddConditionalEdges(from string, router ConditionalRouter, pathMap ...map[string]string) error {
	if from == "" {
		return &BuildError{Code: CodeInvalidGraph, Message: "conditional edge source cannot be empty"}
	}
	if router == nil {
		return &BuildError{Code: CodeInvalidGraph, Message: "conditional edge from " + from + ": router cannot be nil"}
	}
	if _, exists := g.condEdges[from]; exists {
		return &BuildError{Code: CodeInvalidGraph, Message: "node " + from + " already has a conditional router"}
	}
	if len(pathMap) > 1 {
		return &BuildError{Code: CodeInvalidGraph, Message: "conditional edge from " + from + ": at most one pathMap is accepted"}
	}
	g.condEdges[from] = router
	if len(pathMap) == 1 {
		g.condPathMap[from] = pathMap[0]
	}
	return nil
}

// SetEntryPoint names the node that activates when a run starts.
func (g *StateGraph) SetEntryPoint(name string) error {
	if name == "" {
		return &BuildError{Code: CodeInvalidGraph, Message: "entry point cannot be empty"}
	}
	g.entry = name
	return nil
}

// SetFinishPoint marks name as an accepted terminal node: Compile does not
// flag it as a dead end even though it has no outgoing edges. It must
// still be reachable from the entry point.
func (g *StateGraph) SetFinishPoint(name string) error {
	if name == "" {
		return &BuildError{Code: CodeInvalidGraph, Message: "finish point cannot be empty"}
	}
	g.finish[name] = true
	return nil
}
