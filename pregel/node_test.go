package pregel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleListMapConstructors(t *testing.T) {
	s := Single("x")
	assert.Equal(t, ReadSingle, s.Shape)
	assert.Equal(t, []string{"x"}, s.Channels)

	l := ListOf("x", "y")
	assert.Equal(t, ReadList, l.Shape)
	assert.Equal(t, []string{"x", "y"}, l.Channels)

	m := MapOf("x", "y", "z")
	assert.Equal(t, ReadMap, m.Shape)
	assert.Equal(t, []string{"x", "y", "z"}, m.Channels)
}

func TestWritesChannel(t *testing.T) {
	n := &PregelNode{
		Name:   "n1",
		Writes: []string{"a", "b"},
		Compute: func(_ context.Context, _ any) (map[string]any, error) {
			return nil, nil
		},
	}
	assert.True(t, n.writesChannel("a"))
	assert.True(t, n.writesChannel("b"))
	assert.False(t, n.writesChannel("c"))
}
