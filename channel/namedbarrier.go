package channel

// NamedWrite is the payload a NamedBarrier channel expects: a write
// tagged with the name of the contributor that produced it.
type NamedWrite struct {
	Name  string
	Value any
}

// NamedBarrier becomes "ready" only once a fixed set of named writes has
// all arrived, at least once, across however many steps it takes. Reading
// it before it is ready returns ErrEmptyChannel. Useful for synthetic
// fan-in join points compiled from multiple conditional-edge branches that
// must all settle before a downstream node fires.
type NamedBarrier struct {
	name     string
	required map[string]struct{}
	received map[string]any
}

func NewNamedBarrier(name string, required []string) Definition {
	return DefinitionFunc(func() Channel {
		req := make(map[string]struct{}, len(required))
		for _, r := range required {
			req[r] = struct{}{}
		}
		return &NamedBarrier{name: name, required: req, received: make(map[string]any)}
	})
}

func (c *NamedBarrier) Update(writes []any) (bool, error) {
	changed := false
	for _, w := range writes {
		nw, ok := w.(NamedWrite)
		if !ok {
			return false, &InvalidUpdateError{Channel: c.name, Reason: "write is not a NamedWrite"}
		}
		if _, wanted := c.required[nw.Name]; !wanted {
			return false, &InvalidUpdateError{Channel: c.name, Reason: "unexpected contributor: " + nw.Name}
		}
		c.received[nw.Name] = nw.Value
		changed = true
	}
	return changed, nil
}

func (c *NamedBarrier) ready() bool {
	return len(c.received) >= len(c.required)
}

func (c *NamedBarrier) Get() (any, error) {
	if !c.ready() {
		return nil, ErrEmptyChannel
	}
	out := make(map[string]any, len(c.received))
	for k, v := range c.received {
		out[k] = v
	}
	return out, nil
}

func (c *NamedBarrier) Checkpoint() (any, bool) {
	if len(c.received) == 0 {
		return nil, false
	}
	out := make(map[string]any, len(c.received))
	for k, v := range c.received {
		out[k] = v
	}
	return out, true
}

func (c *NamedBarrier) Consume() bool { return false }

func (c *NamedBarrier) hydrate(raw any) Channel {
	received := make(map[string]any)
	if m, ok := raw.(map[string]any); ok {
		received = m
	}
	return &NamedBarrier{name: c.name, required: c.required, received: received}
}
