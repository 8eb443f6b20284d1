package channel

// BinaryOperatorAggregate folds each step's writes, plus the channel's
// current value, through a user-supplied associative combiner. A fresh
// channel starts at Default before any write arrives.
type BinaryOperatorAggregate struct {
	name    string
	combine func(acc, next any) any
	deflt   func() any
	value   any
	set     bool
}

// NewBinaryOperatorAggregate builds a Definition. combine must be
// associative; deflt supplies the identity element a never-written channel
// reads back as (may be nil if the channel should start empty instead).
func NewBinaryOperatorAggregate(name string, combine func(acc, next any) any, deflt func() any) Definition {
	return DefinitionFunc(func() Channel {
		return &BinaryOperatorAggregate{name: name, combine: combine, deflt: deflt}
	})
}

func (c *BinaryOperatorAggregate) Update(writes []any) (bool, error) {
	if len(writes) == 0 {
		return false, nil
	}
	acc := c.value
	if !c.set {
		if c.deflt != nil {
			acc = c.deflt()
		}
	}
	for _, w := range writes {
		acc = c.combine(acc, w)
	}
	c.value = acc
	c.set = true
	return true, nil
}

func (c *BinaryOperatorAggregate) Get() (any, error) {
	if !c.set {
		if c.deflt != nil {
			return c.deflt(), nil
		}
		return nil, ErrEmptyChannel
	}
	return c.value, nil
}

func (c *BinaryOperatorAggregate) Checkpoint() (any, bool) {
	if !c.set {
		return nil, false
	}
	return c.value, true
}

func (c *BinaryOperatorAggregate) Consume() bool { return false }

func (c *BinaryOperatorAggregate) hydrate(raw any) Channel {
	return &BinaryOperatorAggregate{name: c.name, combine: c.combine, deflt: c.deflt, value: raw, set: true}
}
