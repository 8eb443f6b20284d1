package channel

// LastValue accepts at most one write per step. Receiving more than one
// write in the same step is an InvalidUpdateError unless the channel is
// marked idempotent, in which case repeated writes of an equal value are
// tolerated (the common case: two triggers of the same upstream value
// racing into one step).
type LastValue struct {
	name       string
	idempotent bool
	value      any
	set        bool
}

// NewLastValue returns a Definition for a LastValue channel called name.
func NewLastValue(name string) Definition {
	return DefinitionFunc(func() Channel { return &LastValue{name: name} })
}

// NewIdempotentLastValue is like NewLastValue but tolerates duplicate
// writes of an equal value within one step instead of erroring.
func NewIdempotentLastValue(name string) Definition {
	return DefinitionFunc(func() Channel { return &LastValue{name: name, idempotent: true} })
}

func (c *LastValue) Update(writes []any) (bool, error) {
	if len(writes) == 0 {
		return false, nil
	}
	if len(writes) > 1 {
		if !c.idempotent || !allEqual(writes) {
			return false, &InvalidUpdateError{
				Channel: c.name,
				Reason:  "received more than one write in a single step",
			}
		}
	}
	c.value = writes[len(writes)-1]
	c.set = true
	return true, nil
}

func (c *LastValue) Get() (any, error) {
	if !c.set {
		return nil, ErrEmptyChannel
	}
	return c.value, nil
}

func (c *LastValue) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

func (c *LastValue) Consume() bool { return false }

func (c *LastValue) hydrate(raw any) Channel {
	return &LastValue{name: c.name, idempotent: c.idempotent, value: raw, set: true}
}

func allEqual(writes []any) bool {
	first := writes[0]
	for _, w := range writes[1:] {
		if w != first {
			return false
		}
	}
	return true
}
