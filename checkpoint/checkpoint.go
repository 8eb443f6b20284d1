// Package checkpoint implements the checkpoint model (§3) and the pluggable
// saver contract (§4.2) the Pregel loop uses for durability, resumability,
// and human-in-the-loop interrupts. It ships exactly one saver
// implementation, an in-memory MemorySaver — concrete durable backends
// (SQLite, Postgres, ...) are external collaborators outside this core,
// per spec.md §1/§6.
package checkpoint

import "time"

// Version is a monotonically non-decreasing, totally-ordered token
// identifying a channel's state. The in-memory saver formats versions as
// zero-padded decimal strings so plain string comparison preserves numeric
// order, matching real saver backends that use lexicographic string
// versions (e.g. "00000000000000000000000000000005.1234").
type Version string

// Checkpoint is an immutable snapshot of channel state at a step boundary.
type Checkpoint struct {
	// ID is a time-sortable identifier (UUIDv7 from the default saver) so
	// newest-first ordering equals lexicographic descending order.
	ID string
	TS time.Time

	ChannelValues   map[string]any
	ChannelVersions map[string]Version

	// VersionsSeen is the per-node record of the newest trigger versions
	// that node has already observed, keyed by node name then channel
	// name. The reserved node name "__interrupt__" marks channels
	// observed at an interrupt point (§3).
	VersionsSeen map[string]map[string]Version

	// PendingSends is copied by Clone and stored by savers as given. No
	// code in this module populates or consumes it.
	PendingSends []any
}

// InterruptNode is the reserved versions-seen key for interrupt markers.
const InterruptNode = "__interrupt__"

// Clone returns a deep-enough copy: the Checkpoint is never mutated after
// being handed to a saver, but the loop mutates a working copy each step,
// so every map gets its own backing storage.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	out.ChannelValues = cloneAnyMap(c.ChannelValues)
	out.ChannelVersions = make(map[string]Version, len(c.ChannelVersions))
	for k, v := range c.ChannelVersions {
		out.ChannelVersions[k] = v
	}
	out.VersionsSeen = make(map[string]map[string]Version, len(c.VersionsSeen))
	for node, seen := range c.VersionsSeen {
		inner := make(map[string]Version, len(seen))
		for ch, v := range seen {
			inner[ch] = v
		}
		out.VersionsSeen[node] = inner
	}
	out.PendingSends = append([]any(nil), c.PendingSends...)
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Empty returns the synthesized starting checkpoint for a thread with no
// prior history: step -1, nothing written yet (§4.6 Initialization).
func Empty(id string, ts time.Time) Checkpoint {
	return Checkpoint{
		ID:              id,
		TS:              ts,
		ChannelValues:   map[string]any{},
		ChannelVersions: map[string]Version{},
		VersionsSeen:    map[string]map[string]Version{},
	}
}

// PendingWrite is a (task, channel, value) tuple persisted before a new
// checkpoint commits, so a resumed run can re-attach a task's output
// instead of recomputing it.
type PendingWrite struct {
	TaskID  string
	Channel string
	Value   any
	// Idx disambiguates multiple writes from the same task within one
	// attempt, across all channels; together with the task id it forms the
	// idempotency key.
	Idx int
}

// Metadata describes why a checkpoint was created.
type Metadata struct {
	// Source is "input", "loop", or "update".
	Source string
	Step   int
	// Writes holds per-node output updates keyed by node name.
	Writes map[string]map[string]any
	// Parents maps checkpoint namespace to parent checkpoint id.
	//
	// PregelLoop fills only Source and Step; Writes and Parents are nil on
	// every checkpoint it commits.
	Parents map[string]string
}
