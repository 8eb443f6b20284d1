package pregel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTaskIDDeterministic(t *testing.T) {
	a := computeTaskID(3, "node-a", []string{"x", "y"})
	b := computeTaskID(3, "node-a", []string{"y", "x"})
	assert.Equal(t, a, b, "trigger order must not affect the task id")
}

func TestComputeTaskIDVariesByStep(t *testing.T) {
	a := computeTaskID(1, "node-a", []string{"x"})
	b := computeTaskID(2, "node-a", []string{"x"})
	assert.NotEqual(t, a, b)
}

func TestComputeTaskIDVariesByNode(t *testing.T) {
	a := computeTaskID(1, "node-a", []string{"x"})
	b := computeTaskID(1, "node-b", []string{"x"})
	assert.NotEqual(t, a, b)
}
