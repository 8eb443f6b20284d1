// Package emit provides the stream multiplexer's event sink for the Pregel
// loop: a pluggable Emitter receives Events tagged by mode, namespace, and
// superstep so callers can watch a run without coupling the loop to any one
// transport.
package emit

// Mode selects which class of stream events a consumer wants to see.
type Mode string

const (
	// ModeValues carries the post-step channel snapshot restricted to the
	// compiled graph's configured output keys.
	ModeValues Mode = "values"

	// ModeUpdates carries a single task's {node -> writes} diff, emitted
	// immediately after that task completes.
	ModeUpdates Mode = "updates"

	// ModeDebug carries structured task/checkpoint lifecycle events.
	ModeDebug Mode = "debug"

	// ModeMessages carries token-level chunks surfaced by a side-channel
	// callback hook (language-model subcalls); the core never produces
	// these itself, it only relays them from a node-scoped writer.
	ModeMessages Mode = "messages"

	// ModeCustom carries arbitrary values written by node-scoped writer
	// closures via a run-scoped custom channel.
	ModeCustom Mode = "custom"
)

// DebugKind discriminates the sub-shape of a ModeDebug event.
type DebugKind string

const (
	DebugTaskCreate       DebugKind = "task_create"
	DebugTaskResult       DebugKind = "task_result"
	DebugCheckpointCommit DebugKind = "checkpoint"
)

// Event is a single observability event emitted during a run.
//
// Namespace is the subgraph path prefix ("" at the top level, "node" for a
// subgraph run by node "node", "node:child" one level further down) per
// §4.7's subgraph-prefixing rule.
type Event struct {
	Mode      Mode
	ThreadID  string
	Namespace string
	Step      int
	NodeID    string
	TaskID    string
	DebugKind DebugKind
	Payload   any
	Meta      map[string]any
}
