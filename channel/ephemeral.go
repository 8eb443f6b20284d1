package channel

// Ephemeral holds a value produced in step N that is observable only in
// step N+1, then resets. It accepts at most one write per step.
type Ephemeral struct {
	name  string
	value any
	set   bool
}

func NewEphemeral(name string) Definition {
	return DefinitionFunc(func() Channel { return &Ephemeral{name: name} })
}

func (c *Ephemeral) Update(writes []any) (bool, error) {
	if len(writes) == 0 {
		return false, nil
	}
	if len(writes) > 1 {
		return false, &InvalidUpdateError{Channel: c.name, Reason: "ephemeral channel received more than one write in a single step"}
	}
	c.value = writes[0]
	c.set = true
	return true, nil
}

func (c *Ephemeral) Get() (any, error) {
	if !c.set {
		return nil, ErrEmptyChannel
	}
	return c.value, nil
}

func (c *Ephemeral) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

// Consume resets the channel so the value is visible for exactly one step
// after it was written, per the spec's Ephemeral semantics.
func (c *Ephemeral) Consume() bool {
	if !c.set {
		return false
	}
	c.value = nil
	c.set = false
	return true
}

func (c *Ephemeral) hydrate(raw any) Channel {
	return &Ephemeral{name: c.name, value: raw, set: true}
}
