package pregel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkit/pregelgo/emit"
)

func TestDefaultLoopConfig(t *testing.T) {
	cfg := defaultLoopConfig()
	assert.Equal(t, 30*time.Second, cfg.defaultNodeTimeout)
	assert.Equal(t, 10*time.Minute, cfg.runWallClockBudget)
	assert.Equal(t, 25, cfg.defaultRecursion)
	assert.NotNil(t, cfg.emitter)
}

func TestOptionsApply(t *testing.T) {
	cfg := defaultLoopConfig()
	buffered := emit.NewBufferedEmitter(0)

	opts := []Option{
		WithEmitter(buffered),
		WithDefaultNodeTimeout(time.Second),
		WithRunWallClockBudget(time.Minute),
		WithDefaultRecursionLimit(5),
	}
	for _, opt := range opts {
		require.NoError(t, opt(cfg))
	}

	assert.Same(t, buffered, cfg.emitter)
	assert.Equal(t, time.Second, cfg.defaultNodeTimeout)
	assert.Equal(t, time.Minute, cfg.runWallClockBudget)
	assert.Equal(t, 5, cfg.defaultRecursion)
}

func TestRunConfigInterruptLookups(t *testing.T) {
	rc := RunConfig{InterruptBefore: []string{"a"}, InterruptAfter: []string{"b"}}
	assert.True(t, rc.interruptsBefore("a"))
	assert.False(t, rc.interruptsBefore("b"))
	assert.True(t, rc.interruptsAfter("b"))
	assert.False(t, rc.interruptsAfter("a"))
}

func TestContainsString(t *testing.T) {
	assert.True(t, containsString([]string{"a", "b"}, "b"))
	assert.False(t, containsString([]string{"a", "b"}, "c"))
	assert.False(t, containsString(nil, "c"))
}
