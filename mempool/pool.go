// Package mempool buffers submitted transactions until the block producer
// picks them up.
package mempool

import (
	"encoding/hex"
	"errors"
	"sync"

	"lanebridge/core/types"
)

var (
	ErrFull      = errors.New("mempool: full")
	ErrDuplicate = errors.New("mempool: transaction already pending")
)

// Lanes groups transactions into the operator and normal scheduling queues.
type Lanes struct {
	Operator []*types.Transaction
	Normal   []*types.Transaction
}

// Classify separates root transactions submitted by the operator from signed
// ones. Relative order inside each lane is preserved.
func Classify(txs []*types.Transaction) Lanes {
	lanes := Lanes{
		Operator: make([]*types.Transaction, 0, len(txs)),
		Normal:   make([]*types.Transaction, 0, len(txs)),
	}
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		if tx.Root {
			lanes.Operator = append(lanes.Operator, tx)
			continue
		}
		lanes.Normal = append(lanes.Normal, tx)
	}
	return lanes
}

// Schedule picks up to maxTxs transactions. Up to reserved slots go to the
// operator lane first; leftover capacity is filled from whichever lane still
// has transactions. The second result holds everything not picked.
func Schedule(lanes Lanes, maxTxs, reserved int) ([]*types.Transaction, []*types.Transaction) {
	total := len(lanes.Operator) + len(lanes.Normal)
	if total == 0 {
		return nil, nil
	}
	if maxTxs <= 0 || maxTxs > total {
		maxTxs = total
	}
	if reserved > maxTxs {
		reserved = maxTxs
	}

	opTake := min(reserved, len(lanes.Operator))
	normalTake := min(maxTxs-opTake, len(lanes.Normal))
	if remaining := maxTxs - opTake - normalTake; remaining > 0 {
		opTake += min(remaining, len(lanes.Operator)-opTake)
	}

	picked := make([]*types.Transaction, 0, opTake+normalTake)
	picked = append(picked, lanes.Operator[:opTake]...)
	picked = append(picked, lanes.Normal[:normalTake]...)

	rest := make([]*types.Transaction, 0, total-len(picked))
	rest = append(rest, lanes.Operator[opTake:]...)
	rest = append(rest, lanes.Normal[normalTake:]...)
	return picked, rest
}

// Pool is a bounded, deduplicating transaction buffer.
type Pool struct {
	mu       sync.Mutex
	limit    int
	reserved int
	txs      []*types.Transaction
	seen     map[string]struct{}
}

// New returns a pool holding at most limit transactions. reserved is the
// number of block slots kept for operator transactions.
func New(limit, reserved int) *Pool {
	return &Pool{limit: limit, reserved: reserved, seen: make(map[string]struct{})}
}

func txKey(tx *types.Transaction) (string, error) {
	hash, err := tx.Hash()
	if err != nil {
		return "", err
	}
	if tx.Root {
		return "root:" + hex.EncodeToString(hash), nil
	}
	return hex.EncodeToString(hash), nil
}

// Add queues tx.
func (p *Pool) Add(tx *types.Transaction) error {
	key, err := txKey(tx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.seen[key]; dup {
		return ErrDuplicate
	}
	if p.limit > 0 && len(p.txs) >= p.limit {
		return ErrFull
	}
	p.txs = append(p.txs, tx)
	p.seen[key] = struct{}{}
	return nil
}

// Requeue returns transactions taken for a block that was not produced. They
// go back ahead of everything queued since, in their original order, and
// are not subject to the pool limit.
func (p *Pool) Requeue(txs []*types.Transaction) {
	if len(txs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	restored := make([]*types.Transaction, 0, len(txs)+len(p.txs))
	for _, tx := range txs {
		key, err := txKey(tx)
		if err != nil {
			continue
		}
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		restored = append(restored, tx)
	}
	p.txs = append(restored, p.txs...)
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Take removes and returns the next block's worth of transactions.
func (p *Pool) Take(maxTxs int) []*types.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	picked, rest := Schedule(Classify(p.txs), maxTxs, p.reserved)
	p.txs = rest
	for _, tx := range picked {
		if key, err := txKey(tx); err == nil {
			delete(p.seen, key)
		}
	}
	return picked
}
