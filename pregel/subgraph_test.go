package pregel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/checkpoint"
)

func childLoop(t *testing.T) *PregelLoop {
	t.Helper()
	node := &PregelNode{
		Name: "double", Triggers: []string{"in"}, Reads: Single("in"), Writes: []string{"out"},
		Compute: func(_ context.Context, input any) (map[string]any, error) {
			return map[string]any{"out": input.(int) * 2}, nil
		},
	}
	defs := map[string]channel.Definition{
		"in":  channel.NewLastValue("in"),
		"out": channel.NewLastValue("out"),
	}
	loop, err := NewLoop(map[string]*PregelNode{"double": node}, defs, checkpoint.NewMemorySaver())
	require.NoError(t, err)
	return loop
}

func TestAsSubgraphNodeRunsChild(t *testing.T) {
	child := childLoop(t)
	node := AsSubgraphNode("child", child, Single("x"), []string{"y"},
		func(in any) map[string]any { return map[string]any{"in": in} },
		func(out map[string]any) map[string]any { return map[string]any{"y": out["out"]} },
	)

	ctx := withRunConfig(withSubgraphGuard(context.Background()), RunConfig{ThreadID: "parent-thread"})
	out, err := node.Compute(ctx, 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out["y"])
}

func TestAsSubgraphNodeRejectsSecondInvocationInSameTask(t *testing.T) {
	child := childLoop(t)
	node := AsSubgraphNode("child", child, Single("x"), []string{"y"},
		func(in any) map[string]any { return map[string]any{"in": in} },
		func(out map[string]any) map[string]any { return map[string]any{"y": out["out"]} },
	)

	ctx := withRunConfig(withSubgraphGuard(context.Background()), RunConfig{ThreadID: "parent-thread"})
	_, err := node.Compute(ctx, 1)
	require.NoError(t, err)

	_, err = node.Compute(ctx, 2)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeMultipleSubgraphs, perr.Code)
}

func TestJoinNamespace(t *testing.T) {
	assert.Equal(t, "child", joinNamespace("", "child"))
	assert.Equal(t, "parent:child", joinNamespace("parent", "child"))
}
