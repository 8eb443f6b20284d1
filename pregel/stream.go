package pregel

import (
	"github.com/graphkit/pregelgo/channel"
	"github.com/graphkit/pregelgo/emit"
)

// emitStepEvents publishes the step-level events for each stream mode the
// caller asked for, after a superstep's writes have been applied and
// checkpointed: one values snapshot, one checkpoint debug event, and one
// event per matching messages/custom write. Namespace
// prefixing for subgraphs is applied by the caller (see subgraph.go):
// emitStepEvents itself only knows about the top-level run.
func (l *PregelLoop) emitStepEvents(rc RunConfig, namespace string, step int, channels map[string]channel.Channel, writes []Write) {
	if l.cfg.emitter == nil {
		return
	}
	for _, mode := range rc.StreamModes {
		switch mode {
		case emit.ModeValues:
			l.cfg.emitter.Emit(emit.Event{
				Mode: emit.ModeValues, ThreadID: rc.ThreadID, Namespace: namespace,
				Step: step, Payload: channel.CheckpointAll(channels),
			})

		case emit.ModeUpdates:
			// Emitted per-task at task completion (see runTasks), not here:
			// a superstep's writes don't carry the node name needed to key
			// updates correctly, and batching them here would emit once per
			// step instead of once per completed task.

		case emit.ModeDebug:
			l.cfg.emitter.Emit(emit.Event{
				Mode: emit.ModeDebug, ThreadID: rc.ThreadID, Namespace: namespace,
				Step: step, DebugKind: emit.DebugCheckpointCommit,
			})

		case emit.ModeMessages, emit.ModeCustom:
			// Populated by node-authored writes to well-known channels
			// ("messages", "__custom__"); the loop has no opinion on their
			// payload shape beyond passing it through.
			for _, w := range writes {
				if (mode == emit.ModeMessages && w.Channel == "messages") ||
					(mode == emit.ModeCustom && w.Channel == "__custom__") {
					l.cfg.emitter.Emit(emit.Event{
						Mode: mode, ThreadID: rc.ThreadID, Namespace: namespace,
						Step: step, TaskID: w.TaskID, Payload: w.Value,
					})
				}
			}
		}
	}
}
