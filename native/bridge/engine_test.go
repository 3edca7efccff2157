package bridge

import (
	"errors"
	"math/big"
	"testing"

	"lanebridge/core/events"
	"lanebridge/core/lane"
	"lanebridge/core/state"
	"lanebridge/native/bank"
	"lanebridge/native/common"
	"lanebridge/native/identity"
	"lanebridge/storage"
	"lanebridge/storage/trie"
)

var (
	testChain   = identity.ChainID{'p', 'd', 'r', 'g'}
	testLane    = lane.ID{0, 0, 0, 0}
	testBacking = []byte{0xbe, 0xef, 0x01}
	alice       = [20]byte{0xa1}
	bob         = [20]byte{0xb0}
)

type fixture struct {
	engine    *Engine
	bank      *bank.Engine
	transport *lane.Transport
	journal   *events.Journal
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	journal := events.NewJournal()

	currency := bank.NewEngine()
	currency.SetState(mgr)
	currency.SetExistentialDeposit(big.NewInt(1))

	transport := lane.NewTransport(1000, 1)
	transport.SetState(mgr)

	encoder, err := NewABIEncoder()
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	engine := NewEngine(Config{
		BridgedChainID:    testChain,
		Lane:              testLane,
		ModuleAccount:     identity.ModuleAccount("bridge/ring"),
		MaxReceivedNonces: capacity,
		RemoteToken:       [20]byte{0x70},
	})
	engine.SetState(mgr)
	engine.SetCurrency(currency)
	engine.SetLane(transport)
	engine.SetEncoder(encoder)
	engine.SetEmitter(journal)

	if err := engine.SetRemoteBackingAccount(common.RootOrigin(), testBacking); err != nil {
		t.Fatalf("set backing: %v", err)
	}
	journal.Drain()
	return &fixture{engine: engine, bank: currency, transport: transport, journal: journal}
}

func backingOrigin() common.Origin {
	return common.SignedOrigin(identity.Derive(testChain, identity.AccountSender(testBacking)))
}

func (f *fixture) fund(t *testing.T, addr [20]byte, amount int64) {
	t.Helper()
	if err := f.bank.DepositCreating(addr, big.NewInt(amount)); err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func (f *fixture) balance(t *testing.T, addr [20]byte) int64 {
	t.Helper()
	bal, err := f.bank.FreeBalance(addr)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (f *fixture) burn(t *testing.T, from [20]byte, value, fee int64) uint64 {
	t.Helper()
	nonce, err := f.engine.BurnAndRemoteUnlock(common.SignedOrigin(from), 1, 100, 50000, big.NewInt(value), big.NewInt(fee), bob)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	return nonce
}

func (f *fixture) receive(t *testing.T, nonce uint64) {
	t.Helper()
	if err := f.transport.NoteReceived(testLane, nonce); err != nil {
		t.Fatalf("note received: %v", err)
	}
}

func TestBurnThenFailureRefunds(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 100)

	nonce := f.burn(t, alice, 10, 1)
	if nonce != 0 {
		t.Fatalf("expected first nonce 0, got %d", nonce)
	}
	if got := f.balance(t, alice); got != 89 {
		t.Fatalf("expected 89 after burn, got %d", got)
	}
	if got := f.balance(t, f.engine.ModuleAccount()); got != 11 {
		t.Fatalf("expected module to hold 11, got %d", got)
	}
	record, ok, err := f.engine.PendingTransfer(0)
	if err != nil || !ok {
		t.Fatalf("expected record at nonce 0: %v", err)
	}
	if record.Owner != alice || record.Amount.Int64() != 10 {
		t.Fatalf("unexpected record %+v", record)
	}

	if err := f.engine.HandleIssuingFailureFromRemote(backingOrigin(), 0, nil, 0); err != nil {
		t.Fatalf("failure refund: %v", err)
	}
	if got := f.balance(t, alice); got != 99 {
		t.Fatalf("expected 99 after refund, got %d", got)
	}
	if _, ok, _ := f.engine.PendingTransfer(0); ok {
		t.Fatalf("record should be removed after refund")
	}
	err = f.engine.HandleIssuingFailureFromRemote(backingOrigin(), 0, nil, 0)
	if !errors.Is(err, ErrFailureInfoNE) {
		t.Fatalf("expected ErrFailureInfoNE, got %v", err)
	}

	var types []string
	for _, evt := range f.journal.Drain() {
		types = append(types, evt.EventType())
	}
	want := []string{
		events.TypeBridgeTokenBurnAndRemoteUnlocked,
		events.TypeBridgeTokenIssuedForFailure,
	}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestBurnPayloadCarriesUnlockCall(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 100)
	nonce := f.burn(t, alice, 10, 1)

	msg, ok, err := f.transport.OutboundMessage(testLane, nonce)
	if err != nil || !ok {
		t.Fatalf("expected outbound message: %v", err)
	}
	payload, err := DecodePayload(msg.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.SpecVersion != 1 || payload.Weight != 100 || payload.GasLimit != 50000 {
		t.Fatalf("unexpected payload header %+v", payload)
	}
	encoder, _ := NewABIEncoder()
	method, err := encoder.abi.MethodById(payload.Call[:4])
	if err != nil {
		t.Fatalf("method lookup: %v", err)
	}
	if method.Name != "unlockFromRemote" {
		t.Fatalf("unexpected method %s", method.Name)
	}
	if msg.Fee.Int64() != 1 {
		t.Fatalf("expected fee 1 on message, got %s", msg.Fee)
	}
}

func TestBurnRequiresStrictlyGreaterBalance(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 11)
	_, err := f.engine.BurnAndRemoteUnlock(common.SignedOrigin(alice), 1, 0, 0, big.NewInt(10), big.NewInt(1), bob)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := f.engine.BurnAndRemoteUnlock(common.RootOrigin(), 1, 0, 0, big.NewInt(1), big.NewInt(0), bob); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin for root, got %v", err)
	}
}

func TestIssuePrunesConfirmedRecords(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 100)
	for i := 0; i < 3; i++ {
		if nonce := f.burn(t, alice, 10, 1); nonce != uint64(i) {
			t.Fatalf("expected nonce %d, got %d", i, nonce)
		}
	}
	if got := f.balance(t, alice); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}

	f.receive(t, 1)
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(5), bob, []uint64{0, 2}, 1); err != nil {
		t.Fatalf("issue: %v", err)
	}
	entries, err := f.engine.PendingTransfers()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Nonce != 1 {
		t.Fatalf("expected only nonce 1 to remain, got %+v", entries)
	}
	window, _ := f.engine.ReceivedNonces()
	if len(window) != 0 {
		t.Fatalf("expected nonce 1 pruned by watermark, got %v", window)
	}
	if got := f.balance(t, bob); got != 5 {
		t.Fatalf("expected recipient 5, got %d", got)
	}

	f.receive(t, 4)
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(5), bob, nil, 1); err != nil {
		t.Fatalf("issue: %v", err)
	}
	window, _ = f.engine.ReceivedNonces()
	if len(window) != 1 || window[0] != 4 {
		t.Fatalf("expected window [4], got %v", window)
	}
}

func TestIssueAuthentication(t *testing.T) {
	f := newFixture(t, 16)
	if err := f.engine.IssueFromRemote(common.SignedOrigin(alice), big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin for stranger, got %v", err)
	}
	if err := f.engine.IssueFromRemote(common.RootOrigin(), big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin for root, got %v", err)
	}
	rootDerived := common.SignedOrigin(identity.Derive(testChain, identity.RootSender()))
	if err := f.engine.IssueFromRemote(rootDerived, big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin for remote root, got %v", err)
	}

	if err := f.engine.SetRemoteBackingAccount(common.RootOrigin(), nil); err != nil {
		t.Fatalf("unset backing: %v", err)
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrBackingAccountNone) {
		t.Fatalf("expected ErrBackingAccountNone, got %v", err)
	}
}

func TestLimiterBoundary(t *testing.T) {
	f := newFixture(t, 16)
	if err := f.engine.SetSecureLimitedPeriod(common.RootOrigin(), 10); err != nil {
		t.Fatalf("set period: %v", err)
	}
	if err := f.engine.SetSecurityLimitationRingAmount(common.RootOrigin(), big.NewInt(100)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(60), bob, nil, 0); err != nil {
		t.Fatalf("issue 60: %v", err)
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(40), bob, nil, 0); err != nil {
		t.Fatalf("issue to cap: %v", err)
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrRingDailyLimited) {
		t.Fatalf("expected ErrRingDailyLimited, got %v", err)
	}
	limit, period, err := f.engine.Limit()
	if err != nil || period != 10 || limit.Used.Int64() != 100 {
		t.Fatalf("unexpected limit %+v period %d err %v", limit, period, err)
	}

	if err := f.engine.OnInitialize(9); err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if limit, _, _ = f.engine.Limit(); limit.Used.Int64() != 100 {
		t.Fatalf("used reset before period boundary")
	}
	if err := f.engine.OnInitialize(20); err != nil {
		t.Fatalf("on initialize: %v", err)
	}
	if limit, _, _ = f.engine.Limit(); limit.Used.Sign() != 0 {
		t.Fatalf("used not reset at period boundary")
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); err != nil {
		t.Fatalf("issue after reset: %v", err)
	}
}

func TestLimiterDisabledWithZeroPeriod(t *testing.T) {
	f := newFixture(t, 16)
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1_000_000), bob, nil, 0); err != nil {
		t.Fatalf("unlimited issue: %v", err)
	}
	limit, _, _ := f.engine.Limit()
	if limit.Used.Sign() != 0 {
		t.Fatalf("used should not grow while disabled, got %s", limit.Used)
	}
}

func TestRefundIgnoresLimiter(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 100)
	f.burn(t, alice, 50, 1)
	if err := f.engine.SetSecureLimitedPeriod(common.RootOrigin(), 10); err != nil {
		t.Fatalf("set period: %v", err)
	}
	if err := f.engine.HandleIssuingFailureFromRemote(backingOrigin(), 0, nil, 0); err != nil {
		t.Fatalf("refund with zero cap: %v", err)
	}
}

func TestReceivedNonceWindowCapacity(t *testing.T) {
	f := newFixture(t, 2)
	if err := f.engine.SetSecureLimitedPeriod(common.RootOrigin(), 100); err != nil {
		t.Fatalf("set period: %v", err)
	}
	if err := f.engine.SetSecurityLimitationRingAmount(common.RootOrigin(), big.NewInt(1000)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	for _, n := range []uint64{1, 2} {
		f.receive(t, n)
		if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); err != nil {
			t.Fatalf("issue %d: %v", n, err)
		}
	}
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); err != nil {
		t.Fatalf("re-inserting a present nonce should succeed: %v", err)
	}
	f.receive(t, 3)
	f.journal.Drain()
	before := f.balance(t, bob)
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); !errors.Is(err, ErrTooManyNonces) {
		t.Fatalf("expected ErrTooManyNonces, got %v", err)
	}
	if got := f.balance(t, bob); got != before {
		t.Fatalf("full window still minted: balance %d, want %d", got, before)
	}
	limit, _, err := f.engine.Limit()
	if err != nil {
		t.Fatalf("limit: %v", err)
	}
	if limit.Used.Int64() != 3 {
		t.Fatalf("full window still charged the limiter: used %s, want 3", limit.Used)
	}
	if evts := f.journal.Drain(); len(evts) != 0 {
		t.Fatalf("full window emitted %d events", len(evts))
	}
}

func TestRemoteUnlockFailureChecks(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 10)
	f.receive(t, 3)
	if err := f.engine.IssueFromRemote(backingOrigin(), big.NewInt(1), bob, nil, 0); err != nil {
		t.Fatalf("issue: %v", err)
	}
	f.receive(t, 5)

	origin := common.SignedOrigin(alice)
	if _, err := f.engine.RemoteUnlockFailure(origin, 1, 0, 0, 3, big.NewInt(1)); !errors.Is(err, ErrMessageAlreadyIssued) {
		t.Fatalf("expected ErrMessageAlreadyIssued, got %v", err)
	}
	if _, err := f.engine.RemoteUnlockFailure(origin, 1, 0, 0, 6, big.NewInt(1)); !errors.Is(err, ErrMessageNotDelivered) {
		t.Fatalf("expected ErrMessageNotDelivered, got %v", err)
	}
	if _, err := f.engine.RemoteUnlockFailure(origin, 1, 0, 0, 4, big.NewInt(10)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	f.journal.Drain()
	before := f.balance(t, alice)
	nonce, err := f.engine.RemoteUnlockFailure(origin, 1, 0, 0, 5, big.NewInt(1))
	if err != nil {
		t.Fatalf("report failure at latest received: %v", err)
	}
	if after := f.balance(t, alice); after != before-1 {
		t.Fatalf("expected fee charged, balance %d -> %d", before, after)
	}
	msg, ok, err := f.transport.OutboundMessage(testLane, nonce)
	if err != nil || !ok {
		t.Fatalf("expected outbound message: %v", err)
	}
	payload, err := DecodePayload(msg.Payload)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	encoder, _ := NewABIEncoder()
	method, err := encoder.abi.MethodById(payload.Call[:4])
	if err != nil || method.Name != "handleUnlockFailureFromRemote" {
		t.Fatalf("unexpected remote method %v %v", method, err)
	}
	evts := f.journal.Drain()
	last := evts[len(evts)-1]
	if last.EventType() != events.TypeBridgeRemoteUnlockForFailure {
		t.Fatalf("unexpected last event %s", last.EventType())
	}
}

func TestRootSettersRequireRoot(t *testing.T) {
	f := newFixture(t, 16)
	signed := common.SignedOrigin(alice)
	if err := f.engine.SetRemoteBackingAccount(signed, []byte{1}); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}
	if err := f.engine.SetSecureLimitedPeriod(signed, 1); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}
	if err := f.engine.SetSecurityLimitationRingAmount(signed, big.NewInt(1)); !errors.Is(err, ErrBadOrigin) {
		t.Fatalf("expected ErrBadOrigin, got %v", err)
	}
	backing, ok, err := f.engine.RemoteBackingAccount()
	if err != nil || !ok || string(backing) != string(testBacking) {
		t.Fatalf("backing account changed: %x %v %v", backing, ok, err)
	}
}

func TestBurnCallRejectsMalformedRecipient(t *testing.T) {
	f := newFixture(t, 16)
	f.fund(t, alice, 100)
	call := BurnAndRemoteUnlockCall{
		Engine:      f.engine,
		SpecVersion: 1,
		Value:       big.NewInt(10),
		Fee:         big.NewInt(1),
		Recipient:   make([]byte, 19),
	}
	ctx := &common.CallContext{Origin: common.SignedOrigin(alice)}
	err := call.Execute(ctx)
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if errors.Is(err, ErrEvmEncodeFailed) {
		t.Fatalf("malformed recipient reported as an encoding failure")
	}
	if got := f.balance(t, alice); got != 100 {
		t.Fatalf("balance changed to %d", got)
	}

	call.Recipient = bob[:]
	if err := call.Execute(ctx); err != nil {
		t.Fatalf("burn with 20 byte recipient: %v", err)
	}
	if got := f.balance(t, alice); got != 89 {
		t.Fatalf("balance = %d, want 89", got)
	}
}
