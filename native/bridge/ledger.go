package bridge

import (
	"math/big"
	"sort"

	"lanebridge/core/lane"
)

// PendingTransfer is value locked locally while the matching unlock on the
// bridged chain is unconfirmed.
type PendingTransfer struct {
	Owner  [20]byte
	Amount *big.Int
}

// PendingEntry pairs a record with its nonce for listings.
type PendingEntry struct {
	Nonce    uint64
	Transfer PendingTransfer
}

func (e *Engine) pendingIndex(id lane.ID) ([]uint64, error) {
	state, err := e.store()
	if err != nil {
		return nil, err
	}
	var index []uint64
	if _, err := state.KVGet(pendingIndexKey(id), &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (e *Engine) writePendingIndex(id lane.ID, index []uint64) error {
	state, err := e.store()
	if err != nil {
		return err
	}
	if len(index) == 0 {
		return state.KVDelete(pendingIndexKey(id))
	}
	return state.KVPut(pendingIndexKey(id), index)
}

func (e *Engine) getPending(id lane.ID, nonce uint64) (*PendingTransfer, bool, error) {
	state, err := e.store()
	if err != nil {
		return nil, false, err
	}
	record := new(PendingTransfer)
	ok, err := state.KVGet(pendingKey(id, nonce), record)
	if err != nil || !ok {
		return nil, false, err
	}
	if record.Amount == nil {
		record.Amount = big.NewInt(0)
	}
	return record, true, nil
}

func (e *Engine) putPending(id lane.ID, nonce uint64, record PendingTransfer) error {
	state, err := e.store()
	if err != nil {
		return err
	}
	if err := state.KVPut(pendingKey(id, nonce), &record); err != nil {
		return err
	}
	index, err := e.pendingIndex(id)
	if err != nil {
		return err
	}
	pos := sort.Search(len(index), func(i int) bool { return index[i] >= nonce })
	if pos < len(index) && index[pos] == nonce {
		return nil
	}
	index = append(index, 0)
	copy(index[pos+1:], index[pos:])
	index[pos] = nonce
	return e.writePendingIndex(id, index)
}

// takePending removes and returns the record for nonce.
func (e *Engine) takePending(id lane.ID, nonce uint64) (*PendingTransfer, bool, error) {
	record, ok, err := e.getPending(id, nonce)
	if err != nil || !ok {
		return nil, ok, err
	}
	state, err := e.store()
	if err != nil {
		return nil, false, err
	}
	if err := state.KVDelete(pendingKey(id, nonce)); err != nil {
		return nil, false, err
	}
	index, err := e.pendingIndex(id)
	if err != nil {
		return nil, false, err
	}
	pos := sort.Search(len(index), func(i int) bool { return index[i] >= nonce })
	if pos < len(index) && index[pos] == nonce {
		index = append(index[:pos], index[pos+1:]...)
		if err := e.writePendingIndex(id, index); err != nil {
			return nil, false, err
		}
	}
	return record, true, nil
}

// PendingTransfer returns the record stored for nonce on the configured lane.
func (e *Engine) PendingTransfer(nonce uint64) (*PendingTransfer, bool, error) {
	return e.getPending(e.cfg.Lane, nonce)
}

// PendingTransfers lists all records on the configured lane in nonce order.
func (e *Engine) PendingTransfers() ([]PendingEntry, error) {
	index, err := e.pendingIndex(e.cfg.Lane)
	if err != nil {
		return nil, err
	}
	out := make([]PendingEntry, 0, len(index))
	for _, nonce := range index {
		record, ok, err := e.getPending(e.cfg.Lane, nonce)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, PendingEntry{Nonce: nonce, Transfer: *record})
		}
	}
	return out, nil
}

// NonceWindow is the bounded, sorted set of inbound nonces that have been
// issued locally and not yet pruned.
type NonceWindow struct {
	Nonces   []uint64
	Capacity int
}

func (w NonceWindow) Contains(nonce uint64) bool {
	pos := sort.Search(len(w.Nonces), func(i int) bool { return w.Nonces[i] >= nonce })
	return pos < len(w.Nonces) && w.Nonces[pos] == nonce
}

// Insert adds nonce keeping the window sorted. Present nonces are accepted
// as-is.
func (w *NonceWindow) Insert(nonce uint64) error {
	pos := sort.Search(len(w.Nonces), func(i int) bool { return w.Nonces[i] >= nonce })
	if pos < len(w.Nonces) && w.Nonces[pos] == nonce {
		return nil
	}
	if len(w.Nonces) >= w.Capacity {
		return ErrTooManyNonces
	}
	w.Nonces = append(w.Nonces, 0)
	copy(w.Nonces[pos+1:], w.Nonces[pos:])
	w.Nonces[pos] = nonce
	return nil
}

// RetainAbove drops every nonce less than or equal to watermark.
func (w *NonceWindow) RetainAbove(watermark uint64) {
	pos := sort.Search(len(w.Nonces), func(i int) bool { return w.Nonces[i] > watermark })
	w.Nonces = append([]uint64(nil), w.Nonces[pos:]...)
}

func (e *Engine) loadWindow() (NonceWindow, error) {
	state, err := e.store()
	if err != nil {
		return NonceWindow{}, err
	}
	window := NonceWindow{Capacity: e.cfg.MaxReceivedNonces}
	if _, err := state.KVGet(receivedNoncesKey, &window.Nonces); err != nil {
		return NonceWindow{}, err
	}
	return window, nil
}

func (e *Engine) storeWindow(window NonceWindow) error {
	state, err := e.store()
	if err != nil {
		return err
	}
	if len(window.Nonces) == 0 {
		return state.KVDelete(receivedNoncesKey)
	}
	return state.KVPut(receivedNoncesKey, window.Nonces)
}

// ReceivedNonces returns the current window contents.
func (e *Engine) ReceivedNonces() ([]uint64, error) {
	window, err := e.loadWindow()
	if err != nil {
		return nil, err
	}
	return window.Nonces, nil
}

// prune deletes the pending records confirmed by the bridged chain and
// trims the window up to maxLockPrunedNonce.
func (e *Engine) prune(burnPrunedMessages []uint64, maxLockPrunedNonce uint64) error {
	for _, nonce := range burnPrunedMessages {
		if _, _, err := e.takePending(e.cfg.Lane, nonce); err != nil {
			return err
		}
	}
	window, err := e.loadWindow()
	if err != nil {
		return err
	}
	before := len(window.Nonces)
	window.RetainAbove(maxLockPrunedNonce)
	if len(window.Nonces) == before {
		return nil
	}
	return e.storeWindow(window)
}
