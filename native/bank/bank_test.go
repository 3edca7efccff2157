package bank

import (
	"errors"
	"math/big"
	"testing"

	"lanebridge/core/events"
	"lanebridge/core/state"
	"lanebridge/storage"
	"lanebridge/storage/trie"
)

func newTestEngine(t *testing.T, ed int64) (*Engine, *events.Journal) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	engine := NewEngine()
	engine.SetState(state.NewManager(tr))
	journal := events.NewJournal()
	engine.SetEmitter(journal)
	engine.SetExistentialDeposit(big.NewInt(ed))
	return engine, journal
}

func balance(t *testing.T, e *Engine, addr [20]byte) int64 {
	t.Helper()
	bal, err := e.FreeBalance(addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func TestDepositCreatingDropsDust(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	alice := [20]byte{1}

	if err := engine.DepositCreating(alice, big.NewInt(4)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := balance(t, engine, alice); got != 0 {
		t.Fatalf("dust deposit should be dropped, got %d", got)
	}
	if err := engine.DepositCreating(alice, big.NewInt(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.DepositCreating(alice, big.NewInt(1)); err != nil {
		t.Fatalf("top up: %v", err)
	}
	if got := balance(t, engine, alice); got != 6 {
		t.Fatalf("expected 6, got %d", got)
	}
	total, err := engine.TotalIssuance()
	if err != nil || total.Int64() != 6 {
		t.Fatalf("unexpected issuance %v %v", total, err)
	}
}

func TestTransferKeepAlive(t *testing.T) {
	engine, journal := newTestEngine(t, 1)
	alice, bob := [20]byte{1}, [20]byte{2}
	if err := engine.DepositCreating(alice, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := engine.Transfer(alice, bob, big.NewInt(10), true); !errors.Is(err, ErrKeepAlive) {
		t.Fatalf("expected ErrKeepAlive, got %v", err)
	}
	if err := engine.Transfer(alice, bob, big.NewInt(11), false); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := engine.Transfer(alice, bob, big.NewInt(9), true); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if balance(t, engine, alice) != 1 || balance(t, engine, bob) != 9 {
		t.Fatalf("unexpected balances %d/%d", balance(t, engine, alice), balance(t, engine, bob))
	}
	evts := journal.Drain()
	if len(evts) != 1 || evts[0].EventType() != events.TypeTransfer {
		t.Fatalf("expected single transfer event, got %v", evts)
	}
}

func TestTransferRejectsDustRecipient(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	alice, bob := [20]byte{1}, [20]byte{2}
	if err := engine.DepositCreating(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Transfer(alice, bob, big.NewInt(3), true); !errors.Is(err, ErrExistentialDeposit) {
		t.Fatalf("expected ErrExistentialDeposit, got %v", err)
	}
}

func TestWithdrawReapsDust(t *testing.T) {
	engine, _ := newTestEngine(t, 5)
	alice := [20]byte{1}
	if err := engine.DepositCreating(alice, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Withdraw(alice, big.NewInt(7)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := balance(t, engine, alice); got != 0 {
		t.Fatalf("expected reaped account, got %d", got)
	}
	total, _ := engine.TotalIssuance()
	if total.Sign() != 0 {
		t.Fatalf("expected zero issuance, got %s", total)
	}
}
