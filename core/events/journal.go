package events

import "sync"

// Journal buffers events emitted while a transaction executes so they can be
// dropped together with the state changes of a failed call.
type Journal struct {
	mu      sync.Mutex
	pending []Event
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Emit implements Emitter.
func (j *Journal) Emit(e Event) {
	if e == nil {
		return
	}
	j.mu.Lock()
	j.pending = append(j.pending, e)
	j.mu.Unlock()
}

// Mark returns a position that can later be passed to Truncate.
func (j *Journal) Mark() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Truncate drops every event emitted after mark.
func (j *Journal) Truncate(mark int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if mark < 0 {
		mark = 0
	}
	if mark < len(j.pending) {
		j.pending = j.pending[:mark]
	}
}

// Since returns the events emitted after mark without removing them.
func (j *Journal) Since(mark int) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	if mark >= len(j.pending) {
		return nil
	}
	out := make([]Event, len(j.pending)-mark)
	copy(out, j.pending[mark:])
	return out
}

// Drain returns all buffered events and resets the journal.
func (j *Journal) Drain() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.pending
	j.pending = nil
	return out
}
