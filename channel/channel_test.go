package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastValueRejectsConcurrentWrites(t *testing.T) {
	c := NewLastValue("x").New()
	_, err := c.Get()
	assert.ErrorIs(t, err, ErrEmptyChannel)

	changed, err := c.Update([]any{1, 2})
	require.Error(t, err)
	var iu *InvalidUpdateError
	require.ErrorAs(t, err, &iu)
	assert.Equal(t, "x", iu.Channel)
	assert.False(t, changed)
}

func TestLastValueRoundTrip(t *testing.T) {
	c := NewLastValue("x").New()
	changed, err := c.Update([]any{42})
	require.NoError(t, err)
	assert.True(t, changed)

	snap, ok := c.Checkpoint()
	require.True(t, ok)

	fresh := fromCheckpoint(NewLastValue("x").New(), snap)
	got, err := fresh.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestIdempotentLastValueToleratesEqualWrites(t *testing.T) {
	c := NewIdempotentLastValue("x").New()
	_, err := c.Update([]any{"a", "a"})
	require.NoError(t, err)

	_, err = c.Update([]any{"a", "b"})
	assert.Error(t, err)
}

func TestTopicAccumulatesAcrossSteps(t *testing.T) {
	c := NewTopic("log").New()
	_, _ = c.Update([]any{"a"})
	_, _ = c.Update([]any{"b", "c"})
	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestTopicResetEachStep(t *testing.T) {
	c := NewTopic("scratch", WithResetEachStep()).New()
	_, _ = c.Update([]any{"a"})
	_, _ = c.Update([]any{"b"})
	got, _ := c.Get()
	assert.Equal(t, []any{"b"}, got)
}

func TestTopicDedup(t *testing.T) {
	c := NewTopic("dedup", WithDedup()).New()
	_, _ = c.Update([]any{"a", "a", "b"})
	got, _ := c.Get()
	assert.Equal(t, []any{"a", "b"}, got)
}

func TestBinaryOperatorAggregate(t *testing.T) {
	sum := NewBinaryOperatorAggregate("sum", func(acc, next any) any {
		return acc.(int) + next.(int)
	}, func() any { return 0 }).New()

	got, err := sum.Get()
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, _ = sum.Update([]any{1, 2, 3})
	got, _ = sum.Get()
	assert.Equal(t, 6, got)

	_, _ = sum.Update([]any{4})
	got, _ = sum.Get()
	assert.Equal(t, 10, got)
}

func TestEphemeralVisibleOneStep(t *testing.T) {
	c := NewEphemeral("out").New()
	_, err := c.Update([]any{"v1"})
	require.NoError(t, err)

	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	consumed := c.Consume()
	assert.True(t, consumed)

	_, err = c.Get()
	assert.ErrorIs(t, err, ErrEmptyChannel)
}

func TestEphemeralRejectsMultipleWrites(t *testing.T) {
	c := NewEphemeral("out").New()
	_, err := c.Update([]any{"v1", "v2"})
	assert.Error(t, err)
}

func TestNamedBarrierReadyOnlyWhenComplete(t *testing.T) {
	c := NewNamedBarrier("join", []string{"a", "b"}).New()
	_, err := c.Get()
	assert.ErrorIs(t, err, ErrEmptyChannel)

	_, err = c.Update([]any{NamedWrite{Name: "a", Value: 1}})
	require.NoError(t, err)
	_, err = c.Get()
	assert.ErrorIs(t, err, ErrEmptyChannel)

	_, err = c.Update([]any{NamedWrite{Name: "b", Value: 2}})
	require.NoError(t, err)
	got, err := c.Get()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got)
}

func TestNamedBarrierRejectsUnknownContributor(t *testing.T) {
	c := NewNamedBarrier("join", []string{"a"}).New()
	_, err := c.Update([]any{NamedWrite{Name: "z", Value: 1}})
	assert.Error(t, err)
}

func TestHydrateRestoresSnapshot(t *testing.T) {
	defs := map[string]Definition{
		"x": NewLastValue("x"),
		"y": NewTopic("y"),
	}
	snapshot := map[string]any{"x": 7}
	channels := Hydrate(defs, snapshot)

	got, err := channels["x"].Get()
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = channels["y"].Get()
	assert.ErrorIs(t, err, ErrEmptyChannel)
}

func TestCheckpointAllOmitsUnwritten(t *testing.T) {
	channels := map[string]Channel{
		"x": NewLastValue("x").New(),
		"y": NewLastValue("y").New(),
	}
	_, _ = channels["x"].Update([]any{1})
	snap := CheckpointAll(channels)
	assert.Equal(t, map[string]any{"x": 1}, snap)
}
