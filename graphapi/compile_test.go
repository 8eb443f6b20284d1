package graphapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/checkpoint"
	"github.com/graphkit/pregelgo/pregel"
)

func schemaWithCounter() map[string]channel.Definition {
	return map[string]channel.Definition{
		"counter": channel.NewLastValue("counter"),
		"path":    channel.NewLastValue("path"),
	}
}

func TestCompileRejectsMissingEntryPoint(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", noopNode))
	_, err := g.Compile(checkpoint.NewMemorySaver())
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeNoEntryPoint, berr.Code)
}

func TestCompileRejectsUnknownEdgeTarget(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", noopNode))
	require.NoError(t, g.AddEdge("a", "missing"))
	require.NoError(t, g.SetEntryPoint("a"))
	_, err := g.Compile(checkpoint.NewMemorySaver())
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeNodeNotFound, berr.Code)
}

func TestCompileRejectsDeadEndNode(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", noopNode))
	require.NoError(t, g.SetEntryPoint("a"))
	_, err := g.Compile(checkpoint.NewMemorySaver())
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeDeadEnd, berr.Code)
}

func TestCompileAcceptsFinishPointWithNoOutgoingEdge(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", noopNode))
	require.NoError(t, g.SetEntryPoint("a"))
	require.NoError(t, g.SetFinishPoint("a"))
	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)
	assert.NotNil(t, compiled)
}

func TestCompileRejectsUnreachableNode(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", noopNode))
	require.NoError(t, g.AddNode("orphan", noopNode))
	require.NoError(t, g.SetEntryPoint("a"))
	require.NoError(t, g.SetFinishPoint("a"))
	require.NoError(t, g.SetFinishPoint("orphan"))
	_, err := g.Compile(checkpoint.NewMemorySaver())
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeUnreachable, berr.Code)
}

func incrementNode(_ context.Context, state map[string]any) (map[string]any, error) {
	n, _ := state["counter"].(int)
	return map[string]any{"counter": n + 1}, nil
}

func TestCompiledRunLinearChain(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", incrementNode))
	require.NoError(t, g.AddNode("b", incrementNode))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.SetEntryPoint("a"))
	require.NoError(t, g.SetFinishPoint("b"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), map[string]any{"counter": 0}, pregel.RunConfig{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 2, out["counter"])
	assert.NotContains(t, out, "activate:a")
	assert.NotContains(t, out, "activate:b")
}

func TestCompiledRunConditionalRouting(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("start", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"path": "left"}, nil
	}))
	require.NoError(t, g.AddNode("left", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"counter": 1}, nil
	}))
	require.NoError(t, g.AddNode("right", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"counter": 99}, nil
	}))
	require.NoError(t, g.AddConditionalEdges("start", func(state map[string]any, _ pregel.RunConfig) ([]string, error) {
		if state["path"] == "left" {
			return []string{"left"}, nil
		}
		return []string{"right"}, nil
	}))
	require.NoError(t, g.SetEntryPoint("start"))
	require.NoError(t, g.SetFinishPoint("left"))
	require.NoError(t, g.SetFinishPoint("right"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), map[string]any{"path": "left"}, pregel.RunConfig{ThreadID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, 1, out["counter"])
}

func TestCompiledRunConditionalRoutingWithPathMap(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("start", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"path": "left"}, nil
	}))
	require.NoError(t, g.AddNode("left", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"counter": 1}, nil
	}))
	require.NoError(t, g.AddNode("right", func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return map[string]any{"counter": 99}, nil
	}))

	var gotThreadID string
	require.NoError(t, g.AddConditionalEdges("start", func(state map[string]any, rc pregel.RunConfig) ([]string, error) {
		gotThreadID = rc.ThreadID
		if state["path"] == "left" {
			return []string{"go_left"}, nil
		}
		return []string{"go_right"}, nil
	}, map[string]string{"go_left": "left", "go_right": "right"}))
	require.NoError(t, g.SetEntryPoint("start"))
	require.NoError(t, g.SetFinishPoint("left"))
	require.NoError(t, g.SetFinishPoint("right"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	out, err := compiled.Run(context.Background(), map[string]any{"path": "left"}, pregel.RunConfig{ThreadID: "t2b"})
	require.NoError(t, err)
	assert.Equal(t, 1, out["counter"])
	assert.Equal(t, "t2b", gotThreadID)
}

func TestCompiledRunConditionalRoutingRejectsUnmappedKey(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("start", noopNode))
	require.NoError(t, g.AddNode("left", noopNode))
	require.NoError(t, g.AddConditionalEdges("start", func(map[string]any, pregel.RunConfig) ([]string, error) {
		return []string{"nowhere"}, nil
	}, map[string]string{"go_left": "left"}))
	require.NoError(t, g.SetEntryPoint("start"))
	require.NoError(t, g.SetFinishPoint("left"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), map[string]any{"path": "left"}, pregel.RunConfig{ThreadID: "t2c"})
	require.Error(t, err)
	var berr *BuildError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, CodeInvalidRoute, berr.Code)
}

func TestCompiledGetStateAndHistory(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", incrementNode))
	require.NoError(t, g.SetEntryPoint("a"))
	require.NoError(t, g.SetFinishPoint("a"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), map[string]any{"counter": 5}, pregel.RunConfig{ThreadID: "t3"})
	require.NoError(t, err)

	state, err := compiled.GetState(context.Background(), pregel.RunConfig{ThreadID: "t3"})
	require.NoError(t, err)
	assert.Equal(t, 6, state["counter"])
	assert.NotContains(t, state, "activate:a")

	history, err := compiled.GetStateHistory(context.Background(), pregel.RunConfig{ThreadID: "t3"}, checkpoint.ListOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestCompiledUpdateState(t *testing.T) {
	g := NewStateGraph(schemaWithCounter())
	require.NoError(t, g.AddNode("a", incrementNode))
	require.NoError(t, g.SetEntryPoint("a"))
	require.NoError(t, g.SetFinishPoint("a"))

	compiled, err := g.Compile(checkpoint.NewMemorySaver())
	require.NoError(t, err)

	_, err = compiled.Run(context.Background(), map[string]any{"counter": 0}, pregel.RunConfig{ThreadID: "t4"})
	require.NoError(t, err)

	_, err = compiled.UpdateState(context.Background(), pregel.RunConfig{ThreadID: "t4"}, map[string]any{"counter": 100})
	require.NoError(t, err)

	state, err := compiled.GetState(context.Background(), pregel.RunConfig{ThreadID: "t4"})
	require.NoError(t, err)
	assert.Equal(t, 100, state["counter"])
}
