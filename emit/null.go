package emit

import "context"

// NullEmitter discards every event. Useful as a default when a caller does
// not configure an Emitter, so the loop never has to nil-check it.
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (NullEmitter) Emit(Event) {}

func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }

func (NullEmitter) Flush(context.Context) error { return nil }
