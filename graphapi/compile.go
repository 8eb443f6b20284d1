package graphapi

import (
	"context"
	"sort"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/checkpoint"
	"github.com/graphkit/pregelgo/pregel"
)

const activatePrefix = "activate:"

func activationChannel(node string) string { return activatePrefix + node }

// Compiled is a StateGraph turned into a runnable PregelLoop. It is safe
// for concurrent Run calls against different thread IDs.
type Compiled struct {
	loop        *pregel.PregelLoop
	schemaKeys  []string
	entry       string
}

// Compile validates the graph and builds its runtime: one pregel.PregelNode
// and one IdempotentLastValue activation channel per graph node, plus the declared
// schema channels. Validation covers: an entry point is set and exists,
// every node named by an edge exists, and every non-finish node has at
// least one possible outgoing edge (static or conditional) so the compiled
// graph cannot silently dead-end mid-run.
func (g *StateGraph) Compile(saver checkpoint.Saver, opts ...pregel.Option) (*Compiled, error) {
	if g.entry == "" {
		return nil, &BuildError{Code: CodeNoEntryPoint, Message: "no entry point set"}
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, &BuildError{Code: CodeNodeNotFound, Message: "entry point " + g.entry + " is not a registered node"}
	}

	for from, targets := range g.staticEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, &BuildError{Code: CodeNodeNotFound, Message: "edge source " + from + " is not a registered node"}
		}
		for _, to := range targets {
			if to == END {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return nil, &BuildError{Code: CodeNodeNotFound, Message: "edge target " + to + " is not a registered node"}
			}
		}
	}
	for from := range g.condEdges {
		if _, ok := g.nodes[from]; !ok {
			return nil, &BuildError{Code: CodeNodeNotFound, Message: "conditional edge source " + from + " is not a registered node"}
		}
	}

	for name := range g.nodes {
		if g.finish[name] {
			continue
		}
		_, hasStatic := g.staticEdges[name]
		_, hasCond := g.condEdges[name]
		if !hasStatic && !hasCond {
			return nil, &BuildError{Code: CodeDeadEnd, Message: "node " + name + " has no outgoing edge and is not a finish point"}
		}
	}

	if err := g.checkReachability(); err != nil {
		return nil, err
	}

	channelDefs := make(map[string]channel.Definition, len(g.schema)+len(g.nodes))
	schemaKeys := make([]string, 0, len(g.schema))
	for name, def := range g.schema {
		channelDefs[name] = def
		schemaKeys = append(schemaKeys, name)
	}
	sort.Strings(schemaKeys)
	for name := range g.nodes {
		// Idempotent, not Ephemeral: a diamond/fan-in topology (A->C, B->C
		// both scheduled in the same step) writes `true` to C's activation
		// channel from two tasks at once. Ephemeral rejects a second write
		// in the same step outright; IdempotentLastValue tolerates any
		// number of equal-valued writes, which is all an activation
		// channel ever carries.
		channelDefs[activationChannel(name)] = channel.NewIdempotentLastValue(activationChannel(name))
	}

	nodes := make(map[string]*pregel.PregelNode, len(g.nodes))
	for name, fn := range g.nodes {
		nodes[name] = g.compileNode(name, fn, schemaKeys)
	}

	loop, err := pregel.NewLoop(nodes, channelDefs, saver, opts...)
	if err != nil {
		return nil, err
	}
	return &Compiled{loop: loop, schemaKeys: schemaKeys, entry: g.entry}, nil
}

// checkReachability walks static and conditional edges from the entry
// point; a node that AddNode registered but that no path from entry can
// ever activate is very likely a builder mistake, so Compile rejects it
// rather than silently compiling a graph with dead code.
func (g *StateGraph) checkReachability() error {
	visited := map[string]bool{g.entry: true}
	queue := []string{g.entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, to := range g.staticEdges[cur] {
			if to == END || visited[to] {
				continue
			}
			visited[to] = true
			queue = append(queue, to)
		}
		if _, ok := g.condEdges[cur]; ok {
			if pathMap, ok := g.condPathMap[cur]; ok {
				// A pathMap statically pins down the router's possible
				// targets, so reachability can be computed precisely.
				for _, to := range pathMap {
					if to == END || visited[to] {
						continue
					}
					visited[to] = true
					queue = append(queue, to)
				}
			} else {
				// No pathMap: the router's possible targets aren't
				// statically known; assume every other node is reachable
				// through it rather than rejecting graphs that route
				// dynamically.
				for name := range g.nodes {
					if !visited[name] {
						visited[name] = true
						queue = append(queue, name)
					}
				}
			}
		}
	}
	for name := range g.nodes {
		if !visited[name] {
			return &BuildError{Code: CodeUnreachable, Message: "node " + name + " is not reachable from the entry point"}
		}
	}
	return nil
}

// compileNode builds the pregel.PregelNode for one graph node: it reads
// every schema channel, runs the user's NodeFunc, merges the returned
// delta into the schema channels, then resolves and activates whichever
// downstream node(s) the static/conditional edges select.
func (g *StateGraph) compileNode(name string, fn NodeFunc, schemaKeys []string) *pregel.PregelNode {
	staticTargets := append([]string(nil), g.staticEdges[name]...)
	router := g.condEdges[name]
	pathMap := g.condPathMap[name]

	writes := append([]string(nil), schemaKeys...)
	for _, to := range staticTargets {
		if to != END {
			writes = append(writes, activationChannel(to))
		}
	}
	if router != nil {
		if pathMap != nil {
			// pathMap pins down the router's exact possible destinations.
			for _, to := range pathMap {
				if to != END {
					writes = append(writes, activationChannel(to))
				}
			}
		} else {
			for other := range g.nodes {
				writes = append(writes, activationChannel(other))
			}
		}
	}

	return &pregel.PregelNode{
		Name:     name,
		Triggers: []string{activationChannel(name)},
		Reads:    pregel.MapOf(schemaKeys...),
		Writes:   writes,
		Compute: func(ctx context.Context, input any) (map[string]any, error) {
			state, _ := input.(map[string]any)
			if state == nil {
				state = map[string]any{}
			}
			delta, err := fn(ctx, state)
			if err != nil {
				return nil, err
			}

			out := make(map[string]any, len(delta)+1)
			merged := make(map[string]any, len(state)+len(delta))
			for k, v := range state {
				merged[k] = v
			}
			for k, v := range delta {
				out[k] = v
				merged[k] = v
			}

			var targets []string
			if router != nil {
				rc, _ := pregel.RunConfigFromContext(ctx)
				keys, err := router(merged, rc)
				if err != nil {
					return nil, err
				}
				targets = make([]string, 0, len(keys))
				for _, key := range keys {
					if key == END || key == "" {
						continue
					}
					to := key
					if pathMap != nil {
						mapped, ok := pathMap[key]
						if !ok {
							return nil, &BuildError{Code: CodeInvalidRoute, Message: "node " + name + ": router returned " + key + ", which is not a key in its pathMap"}
						}
						to = mapped
					}
					if to != END {
						targets = append(targets, to)
					}
				}
			} else {
				targets = staticTargets
			}
			for _, t := range targets {
				if t == END || t == "" {
					continue
				}
				out[activationChannel(t)] = true
			}
			return out, nil
		},
	}
}

// Run starts or resumes a thread: a non-empty initial is merged onto the
// schema channels and activates the entry node, whether or not the thread
// already has a checkpoint. With an empty initial on a thread that has a
// checkpoint, the run resumes where it left off.
func (c *Compiled) Run(ctx context.Context, initial map[string]any, rc pregel.RunConfig) (map[string]any, error) {
	input := make(map[string]any, len(initial)+1)
	for k, v := range initial {
		input[k] = v
	}
	if len(initial) > 0 {
		input[activationChannel(c.entry)] = true
	}
	out, err := c.loop.Run(ctx, input, rc)
	return stripActivationChannels(out), err
}

// GetState returns a thread's current schema field values.
func (c *Compiled) GetState(ctx context.Context, rc pregel.RunConfig) (map[string]any, error) {
	out, err := c.loop.GetState(ctx, rc)
	return stripActivationChannels(out), err
}

// GetStateHistory returns a thread's checkpoint history, newest first.
func (c *Compiled) GetStateHistory(ctx context.Context, rc pregel.RunConfig, opts checkpoint.ListOptions) ([]checkpoint.Tuple, error) {
	return c.loop.GetStateHistory(ctx, rc, opts)
}

// UpdateState applies an out-of-band edit to a thread's schema fields
// without running any node, e.g. a human editing state at an interrupt.
func (c *Compiled) UpdateState(ctx context.Context, rc pregel.RunConfig, values map[string]any) (checkpoint.Config, error) {
	return c.loop.UpdateState(ctx, rc, values)
}

func stripActivationChannels(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if len(k) >= len(activatePrefix) && k[:len(activatePrefix)] == activatePrefix {
			continue
		}
		out[k] = v
	}
	return out
}
