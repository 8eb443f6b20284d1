package pregel

import (
	"time"

	"github.com/graphkit/pregelgo/emit"
)

// Option configures a PregelLoop at construction time.
type Option func(*loopConfig) error

type loopConfig struct {
	emitter             emit.Emitter
	metrics             *Metrics
	defaultNodeTimeout  time.Duration
	runWallClockBudget  time.Duration
	defaultRecursion    int
}

func defaultLoopConfig() *loopConfig {
	return &loopConfig{
		emitter:            emit.NewNullEmitter(),
		defaultNodeTimeout: 30 * time.Second,
		runWallClockBudget: 10 * time.Minute,
		defaultRecursion:   25,
	}
}

// WithEmitter attaches an observability sink. Default is a no-op emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(c *loopConfig) error {
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches a Prometheus metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *loopConfig) error {
		c.metrics = m
		return nil
	}
}

// WithDefaultNodeTimeout sets the per-task timeout used for nodes without
// their own NodePolicy.Timeout. Default is 30s.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(c *loopConfig) error {
		c.defaultNodeTimeout = d
		return nil
	}
}

// WithRunWallClockBudget bounds the total wall-clock time a single Run may
// take, independent of the recursion limit. Default is 10 minutes; 0
// disables the budget.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(c *loopConfig) error {
		c.runWallClockBudget = d
		return nil
	}
}

// WithDefaultRecursionLimit sets the recursion limit used by a RunConfig
// that does not set its own. Default is 25.
func WithDefaultRecursionLimit(n int) Option {
	return func(c *loopConfig) error {
		c.defaultRecursion = n
		return nil
	}
}

// RunConfig addresses and bounds a single Run call.
type RunConfig struct {
	ThreadID     string
	CheckpointNS string
	CheckpointID string

	// RecursionLimit bounds the number of supersteps; 0 means "use the
	// loop's default recursion limit".
	RecursionLimit int

	StreamModes []emit.Mode

	// InterruptBefore/InterruptAfter name nodes the loop should pause
	// before scheduling, or after completing, respectively.
	InterruptBefore []string
	InterruptAfter  []string

	// OutputKeys restricts GetState's returned channel set; nil returns
	// every channel.
	OutputKeys []string
}

func (c RunConfig) interruptsBefore(node string) bool {
	return containsString(c.InterruptBefore, node)
}

func (c RunConfig) interruptsAfter(node string) bool {
	return containsString(c.InterruptAfter, node)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
