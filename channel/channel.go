// Package channel implements the named reducer cells the Pregel loop reads
// from and writes to each superstep: LastValue, Topic/Accumulator,
// BinaryOperatorAggregate, Ephemeral, and NamedBarrier.
//
// A Channel's value is immutable for the duration of a step; writes
// produced in step N become visible only in step N+1. The interface is
// intentionally untyped (values are `any`) so a single flat registry keyed
// by channel name can hold every variant without type erasure games at the
// registry boundary — callers that need type safety wrap Get/Update results
// with their own assertions, the same way the graph compiler's read views
// do (see pregel.ChannelSpec).
package channel

import "errors"

// ErrEmptyChannel is returned by Get when the channel has never been
// written. Most reads tolerate it and fall back to a zero/default value.
var ErrEmptyChannel = errors.New("channel: empty channel")

// InvalidUpdateError is returned by Update when a variant's constraints are
// violated, e.g. a LastValue channel receiving more than one write in a
// step. It names the offending channel so the loop can surface a precise
// diagnostic.
type InvalidUpdateError struct {
	Channel string
	Reason  string
}

func (e *InvalidUpdateError) Error() string {
	return "channel " + e.Channel + ": invalid update: " + e.Reason
}

// Channel is the reducer cell contract every variant implements.
//
// Implementations are not safe for concurrent use; the Pregel loop owns
// each channel exclusively and serializes all access between supersteps.
type Channel interface {
	// Update folds one step's batch of writes into the channel. It
	// returns whether the observable value changed, so the caller knows
	// whether to bump the channel's version.
	Update(writes []any) (changed bool, err error)

	// Get returns the current value, or ErrEmptyChannel if never written.
	Get() (any, error)

	// Checkpoint returns a serializable snapshot of the channel's value,
	// and false if the channel has never been written (ok==false means
	// "not initialized", matching the spec's Option<S>).
	Checkpoint() (snapshot any, ok bool)

	// Consume is called after a node reads the channel's current value.
	// Ephemeral variants reset here; other variants are no-ops. Returns
	// whether the value was consumed/invalidated.
	Consume() bool
}

// Definition constructs fresh, empty channel instances of one variant. The
// compiled graph keeps one Definition per channel name so a run can build
// the channel map lazily and re-hydrate it from a checkpoint.
type Definition interface {
	New() Channel
}

// DefinitionFunc adapts a plain function to Definition.
type DefinitionFunc func() Channel

func (f DefinitionFunc) New() Channel { return f() }

// Hydrate builds a fresh channel map from definitions, restoring any
// values present in a checkpoint's snapshot. Channels absent from the
// snapshot start empty.
func Hydrate(defs map[string]Definition, snapshot map[string]any) map[string]Channel {
	channels := make(map[string]Channel, len(defs))
	for name, def := range defs {
		c := def.New()
		if raw, ok := snapshot[name]; ok {
			c = fromCheckpoint(c, raw)
		}
		channels[name] = c
	}
	return channels
}

// fromCheckpoint restores a freshly constructed channel from a raw
// snapshot value previously produced by Checkpoint. Every variant in this
// package implements an unexported hydrate method reached via this type
// switch, keeping the public Channel interface free of a FromCheckpoint
// method that would otherwise need to return `any` (no covariant return
// types in Go).
func fromCheckpoint(c Channel, raw any) Channel {
	type hydratable interface {
		hydrate(raw any) Channel
	}
	if h, ok := c.(hydratable); ok {
		return h.hydrate(raw)
	}
	return c
}

// CheckpointAll snapshots every channel, omitting channels that were never
// written (Checkpoint returns ok=false).
func CheckpointAll(channels map[string]Channel) map[string]any {
	out := make(map[string]any, len(channels))
	for name, c := range channels {
		if snap, ok := c.Checkpoint(); ok {
			out[name] = snap
		}
	}
	return out
}
