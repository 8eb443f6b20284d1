package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events as structured log lines, text or JSONL.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter writes to w (os.Stdout if nil). jsonMode selects JSONL over
// the human-readable text format.
func NewLogEmitter(w io.Writer, jsonMode bool) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{writer: w, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		ThreadID  string         `json:"thread_id"`
		Namespace string         `json:"namespace,omitempty"`
		Step      int            `json:"step"`
		NodeID    string         `json:"node_id,omitempty"`
		TaskID    string         `json:"task_id,omitempty"`
		Mode      Mode           `json:"mode"`
		DebugKind DebugKind      `json:"debug_kind,omitempty"`
		Meta      map[string]any `json:"meta,omitempty"`
	}{
		ThreadID:  event.ThreadID,
		Namespace: event.Namespace,
		Step:      event.Step,
		NodeID:    event.NodeID,
		TaskID:    event.TaskID,
		Mode:      event.Mode,
		DebugKind: event.DebugKind,
		Meta:      event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] thread=%s ns=%s step=%d node=%s",
		event.Mode, event.ThreadID, event.Namespace, event.Step, event.NodeID)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffer. Wrap writer in a bufio.Writer and flush that directly if needed.
func (l *LogEmitter) Flush(context.Context) error { return nil }
