package checkpoint

import "context"

// Config addresses a single thread's checkpoint stream. CheckpointNS
// namespaces subgraph checkpoints under their parent node's path ("" at
// the top level, "node" for a subgraph run by node "node", "node:child"
// one level further down, per §4.7/§9). CheckpointID,
// when set, pins GetTuple/List to one specific checkpoint instead of the
// latest.
type Config struct {
	ThreadID     string
	CheckpointNS string
	CheckpointID string
}

// Tuple bundles a checkpoint with the metadata and parent linkage needed to
// reconstruct a run, plus any writes durably logged after it but not yet
// folded into a later checkpoint (§4.2 "getTuple... along with any
// pending writes").
type Tuple struct {
	Config        Config
	Checkpoint    Checkpoint
	Metadata      Metadata
	ParentConfig  *Config
	PendingWrites []PendingWrite
}

// ListOptions filters and bounds Saver.List.
type ListOptions struct {
	// Before, if set, returns only checkpoints strictly older than this ID.
	Before string
	Limit  int
	// Filter restricts results to checkpoints whose Metadata matches every
	// key/value pair given (e.g. {"source": "input"}). Keys are "source",
	// "step", "writes" and "parents"; any other key matches nothing.
	Filter map[string]any
}

// Saver is the pluggable checkpoint backend contract (§4.2). A conforming
// saver need not be transactional across Put/PutWrites calls, but must
// make both calls durable before returning: the loop never retries a
// commit it cannot prove landed.
type Saver interface {
	// GetTuple returns the checkpoint named by config.CheckpointID, or the
	// latest checkpoint for config.ThreadID/CheckpointNS if CheckpointID is
	// empty. Returns (nil, nil) if no checkpoint exists yet.
	GetTuple(ctx context.Context, config Config) (*Tuple, error)

	// List returns checkpoints for a thread newest-first, most recent
	// first, bounded and filtered by opts.
	List(ctx context.Context, config Config, opts ListOptions) ([]Tuple, error)

	// Put persists a new checkpoint as the latest for config.ThreadID/
	// CheckpointNS and returns the Config a caller should use to address
	// it (CheckpointID filled in).
	Put(ctx context.Context, config Config, cp Checkpoint, metadata Metadata, newVersions map[string]Version) (Config, error)

	// PutWrites durably appends pending writes produced by taskID against
	// the checkpoint named by config. Idempotent on
	// (thread, ns, checkpoint id, task id, write idx): replaying the same
	// writes for an already-recorded task/idx is a no-op.
	PutWrites(ctx context.Context, config Config, writes []PendingWrite, taskID string) error

	// GetNextVersion returns a version strictly greater than current
	// (the zero Version when a channel has never been written) for the
	// named channel. Implementations may ignore channel and use a single
	// thread-wide monotonic counter; it is accepted as a parameter so
	// per-channel version schemes remain possible.
	GetNextVersion(current Version, channel string) Version
}
