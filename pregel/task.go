package pregel

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Task is one scheduled unit of work within a superstep: a node paired with
// the input it will run against and the trigger channels that woke it.
type Task struct {
	ID       string
	Step     int
	Node     *PregelNode
	Input    any
	Triggers []string
	Attempt  int
}

// Write is a single (channel, value) pair a task produced, attributed back
// to the task that produced it for idempotent checkpoint logging and to the
// node name for per-task stream output.
type Write struct {
	TaskID  string
	Node    string
	Channel string
	Value   any
}

// computeTaskID derives a deterministic task identifier from the step,
// node name, and the sorted set of trigger channels that caused it to run.
// Determinism here is what lets a resumed run re-attach a task's
// previously logged pending writes instead of re-executing it.
func computeTaskID(step int, nodeName string, triggers []string) string {
	sorted := append([]string(nil), triggers...)
	sort.Strings(sorted)

	h := sha256.New()
	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(int64(step)))
	h.Write(stepBytes)
	h.Write([]byte(nodeName))
	for _, t := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}
