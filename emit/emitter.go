package emit

import "context"

// Emitter receives Events produced by a run's stream multiplexer.
//
// Implementations must not block the loop for long: the loop emits
// synchronously between supersteps, so a slow Emitter slows every run
// sharing it. Buffer internally (see BufferedEmitter) if downstream
// delivery is slow.
type Emitter interface {
	// Emit sends a single event. Must not panic.
	Emit(event Event)

	// EmitBatch sends several events as one logical unit, preserving
	// order. Returns an error only for catastrophic, non-per-event
	// failures (e.g. a closed sink).
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until all previously accepted events have been
	// delivered to the backend, or ctx is done.
	Flush(ctx context.Context) error
}

// Multi fans events out to several emitters in order, stopping fan-out for
// a given emitter if it errors but continuing with the rest.
type Multi struct {
	Emitters []Emitter
}

func NewMulti(emitters ...Emitter) *Multi {
	return &Multi{Emitters: emitters}
}

func (m *Multi) Emit(event Event) {
	for _, e := range m.Emitters {
		e.Emit(event)
	}
}

func (m *Multi) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range m.Emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Multi) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m.Emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
