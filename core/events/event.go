package events

import "lanebridge/core/types"

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

type typed interface {
	Event() *types.Event
}

// Convert renders an event into its wire form. Events without a dedicated
// rendering carry only their type.
func Convert(e Event) *types.Event {
	if e == nil {
		return nil
	}
	if t, ok := e.(typed); ok {
		if evt := t.Event(); evt != nil {
			return evt
		}
	}
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{}}
}
