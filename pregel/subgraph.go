package pregel

import "context"

type subgraphGuardKey struct{}

// withSubgraphGuard attaches a counter a task's computation can use to
// detect invoking more than one nested compiled graph — doing so would
// make checkpoint namespacing ambiguous, since a task owns at most one
// child checkpoint_ns.
func withSubgraphGuard(ctx context.Context) context.Context {
	return context.WithValue(ctx, subgraphGuardKey{}, new(int))
}

// withRunConfig attaches the active RunConfig so a subgraph node's
// Compute can derive its child RunConfig (same thread, nested namespace).
func withRunConfig(ctx context.Context, rc RunConfig) context.Context {
	return context.WithValue(ctx, runConfigKey{}, rc)
}

// AsSubgraphNode adapts a compiled child PregelLoop into a node of the
// parent graph. The child run shares the parent's
// thread id but nests its checkpoint namespace under name, so its history
// is addressable independently via RunConfig.CheckpointNS. The returned
// node has no Triggers, so prepareNextTasks never schedules it until its
// Triggers field is set.
func AsSubgraphNode(name string, child *PregelLoop, reads ChannelSpec, writes []string, toChildInput func(any) map[string]any, fromChildOutput func(map[string]any) map[string]any) *PregelNode {
	return &PregelNode{
		Name:   name,
		Reads:  reads,
		Writes: writes,
		Compute: func(ctx context.Context, input any) (map[string]any, error) {
			if counter, ok := ctx.Value(subgraphGuardKey{}).(*int); ok {
				*counter++
				if *counter > 1 {
					return nil, ErrMultipleSubgraphs(name)
				}
			}

			parentRC, _ := ctx.Value(runConfigKey{}).(RunConfig)
			childRC := RunConfig{
				ThreadID:     parentRC.ThreadID,
				CheckpointNS: joinNamespace(parentRC.CheckpointNS, name),
			}

			childInput := toChildInput(input)
			out, err := child.Run(ctx, childInput, childRC)
			if err != nil {
				return nil, err
			}
			return fromChildOutput(out), nil
		},
	}
}

type runConfigKey struct{}

// RunConfigFromContext returns the RunConfig active for the task currently
// executing, so a node's own logic (e.g. a graphapi conditional router) can
// read the addressing/config that scheduled it. ok is false outside a
// running task's context.
func RunConfigFromContext(ctx context.Context) (RunConfig, bool) {
	rc, ok := ctx.Value(runConfigKey{}).(RunConfig)
	return rc, ok
}

func joinNamespace(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + ":" + child
}
