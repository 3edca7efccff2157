package mempool

import (
	"errors"
	"testing"

	"lanebridge/core/types"
)

func tx(nonce uint64, root bool) *types.Transaction {
	return &types.Transaction{ChainID: 1, Nonce: nonce, Module: "bank", Method: "transfer", Root: root}
}

func TestScheduleReservesOperatorSlots(t *testing.T) {
	lanes := Classify([]*types.Transaction{
		tx(1, false), tx(2, false), tx(3, true), tx(4, false), tx(5, true), tx(6, true),
	})
	if len(lanes.Operator) != 3 || len(lanes.Normal) != 3 {
		t.Fatalf("unexpected lanes: %d operator, %d normal", len(lanes.Operator), len(lanes.Normal))
	}
	picked, rest := Schedule(lanes, 4, 2)
	if len(picked) != 4 || len(rest) != 2 {
		t.Fatalf("picked %d rest %d", len(picked), len(rest))
	}
	if !picked[0].Root || !picked[1].Root || picked[2].Root || picked[3].Root {
		t.Fatalf("unexpected ordering: %+v", picked)
	}
	if picked[0].Nonce != 3 || picked[2].Nonce != 1 {
		t.Fatalf("lane order not preserved")
	}
}

func TestScheduleFillsLeftoverCapacity(t *testing.T) {
	lanes := Classify([]*types.Transaction{tx(1, true), tx(2, true), tx(3, true), tx(4, false)})
	picked, rest := Schedule(lanes, 4, 1)
	if len(picked) != 4 || len(rest) != 0 {
		t.Fatalf("picked %d rest %d", len(picked), len(rest))
	}
}

func TestPoolLimitsAndDeduplicates(t *testing.T) {
	pool := New(2, 0)
	if err := pool.Add(tx(1, false)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.Add(tx(1, false)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := pool.Add(tx(1, true)); err != nil {
		t.Fatalf("root copy should be distinct: %v", err)
	}
	if err := pool.Add(tx(2, false)); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if got := pool.Take(1); len(got) != 1 || got[0].Nonce != 1 || got[0].Root {
		t.Fatalf("unexpected take: %+v", got)
	}
	if pool.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", pool.Len())
	}
	if err := pool.Add(tx(1, false)); err != nil {
		t.Fatalf("re-add after take: %v", err)
	}
}

func TestPoolRequeueRestoresOrder(t *testing.T) {
	pool := New(2, 0)
	for _, n := range []uint64{1, 2} {
		if err := pool.Add(tx(n, false)); err != nil {
			t.Fatalf("add %d: %v", n, err)
		}
	}
	taken := pool.Take(2)
	if err := pool.Add(tx(3, false)); err != nil {
		t.Fatalf("add 3: %v", err)
	}
	pool.Requeue(taken)
	if pool.Len() != 3 {
		t.Fatalf("expected 3 pending beyond the limit, got %d", pool.Len())
	}
	if err := pool.Add(tx(1, false)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("requeued transaction not tracked: %v", err)
	}
	pool.Requeue(taken)
	got := pool.Take(3)
	if len(got) != 3 || got[0].Nonce != 1 || got[1].Nonce != 2 || got[2].Nonce != 3 {
		t.Fatalf("unexpected order after requeue: %+v", got)
	}
}
