package channel

// Topic accumulates writes into an ordered sequence across steps. With
// ResetEachStep set it behaves like an accumulator-reset channel: each
// step's Update replaces the sequence with just that step's writes
// (matching the spec's "Accumulator... optionally resets each step").
// With Dedup set, a write equal to the last-appended value is dropped.
type Topic struct {
	name          string
	resetEachStep bool
	dedup         bool
	values        []any
}

type TopicOption func(*Topic)

func WithResetEachStep() TopicOption { return func(t *Topic) { t.resetEachStep = true } }
func WithDedup() TopicOption         { return func(t *Topic) { t.dedup = true } }

func NewTopic(name string, opts ...TopicOption) Definition {
	return DefinitionFunc(func() Channel {
		t := &Topic{name: name}
		for _, opt := range opts {
			opt(t)
		}
		return t
	})
}

func (c *Topic) Update(writes []any) (bool, error) {
	if c.resetEachStep {
		c.values = nil
	}
	if len(writes) == 0 {
		return c.resetEachStep && len(c.values) == 0, nil
	}
	for _, w := range writes {
		if c.dedup && len(c.values) > 0 && c.values[len(c.values)-1] == w {
			continue
		}
		c.values = append(c.values, w)
	}
	return true, nil
}

func (c *Topic) Get() (any, error) {
	if c.values == nil {
		return nil, ErrEmptyChannel
	}
	return append([]any(nil), c.values...), nil
}

func (c *Topic) Checkpoint() (any, bool) {
	if c.values == nil {
		return nil, false
	}
	return append([]any(nil), c.values...), true
}

// Consume resets the channel when it is configured to reset each step.
// Non-resetting topics retain history across steps, so Consume is a no-op.
func (c *Topic) Consume() bool {
	if c.resetEachStep {
		c.values = nil
		return true
	}
	return false
}

func (c *Topic) hydrate(raw any) Channel {
	values, _ := raw.([]any)
	return &Topic{name: c.name, resetEachStep: c.resetEachStep, dedup: c.dedup, values: values}
}
