// Package finality tracks the best finalized header of the bridged chain as
// reported by the operator. Header verification is out of scope.
package finality

import (
	"errors"
	"fmt"

	"lanebridge/core/events"
	"lanebridge/native/common"
)

var ErrStaleFinality = errors.New("finality: number must not decrease")

var bestKey = []byte("finality/best")

// Checkpoint is a finalized header reference.
type Checkpoint struct {
	Hash   []byte
	Number uint64
}

type trackerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Tracker is the state-backed finality oracle.
type Tracker struct {
	state   trackerState
	emitter events.Emitter
}

func NewTracker() *Tracker {
	return &Tracker{emitter: events.NoopEmitter{}}
}

func (t *Tracker) SetState(state trackerState) { t.state = state }

func (t *Tracker) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

// Best returns the current checkpoint. A zero checkpoint is returned before
// the first note.
func (t *Tracker) Best() (Checkpoint, error) {
	if t.state == nil {
		return Checkpoint{}, fmt.Errorf("finality: state not configured")
	}
	var cp Checkpoint
	if _, err := t.state.KVGet(bestKey, &cp); err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// BestFinalized returns the hash of the best finalized header.
func (t *Tracker) BestFinalized() ([]byte, error) {
	cp, err := t.Best()
	if err != nil {
		return nil, err
	}
	return cp.Hash, nil
}

// NoteFinalized records a new best header.
func (t *Tracker) NoteFinalized(hash []byte, number uint64) error {
	current, err := t.Best()
	if err != nil {
		return err
	}
	if number < current.Number {
		return ErrStaleFinality
	}
	cp := Checkpoint{Hash: append([]byte(nil), hash...), Number: number}
	if err := t.state.KVPut(bestKey, &cp); err != nil {
		return err
	}
	t.emitter.Emit(events.FinalityNoted{Hash: cp.Hash, Number: number})
	return nil
}

// NoteFinalizedCall mirrors relayer-submitted finality. Root only.
type NoteFinalizedCall struct {
	Tracker *Tracker        `json:"-"`
	Hash    common.HexBytes `json:"hash"`
	Number  uint64          `json:"number"`
}

func (NoteFinalizedCall) Module() string { return "finality" }
func (NoteFinalizedCall) Method() string { return "note_finalized" }

func (c NoteFinalizedCall) Execute(ctx *common.CallContext) error {
	if err := common.EnsureRoot(ctx.Origin); err != nil {
		return err
	}
	return c.Tracker.NoteFinalized(c.Hash, c.Number)
}
