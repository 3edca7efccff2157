package router

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lanebridge/core/events"
	"lanebridge/core/state"
	"lanebridge/native/bank"
	"lanebridge/native/common"
	"lanebridge/storage"
	"lanebridge/storage/trie"
)

var (
	sibling = Location{Parents: 1, Interior: []Junction{Parachain(2023)}}
	caller  = [20]byte{0xc0}
)

type fixture struct {
	engine  *Engine
	bank    *bank.Engine
	queue   *Queue
	journal *events.Journal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	mgr := state.NewManager(tr)

	currency := bank.NewEngine()
	currency.SetState(mgr)
	currency.SetExistentialDeposit(big.NewInt(1))
	require.NoError(t, currency.DepositCreating(caller, big.NewInt(10_000)))

	queue := NewQueue(0)
	queue.SetState(mgr)

	engine := NewEngine(Config{SelfParachain: 2000, UnitWeightPerSecond: 1_000_000_000})
	engine.SetState(mgr)
	engine.SetCurrency(currency)
	engine.SetWeigher(FixedWeigher{UnitWeightCost: 1_000_000, MaxInstructions: 8})
	engine.SetLocalWeigher(FixedWeigher{UnitWeightCost: 1})
	engine.SetSender(queue)
	journal := events.NewJournal()
	engine.SetEmitter(journal)
	return &fixture{engine: engine, bank: currency, queue: queue, journal: journal}
}

func TestLocationParseRoundTrip(t *testing.T) {
	raw := "1/Parachain:2023/PalletInstance:5/AccountKey20:0x" + "0102030405060708090a0b0c0d0e0f1011121314"
	loc, err := ParseLocation(raw)
	require.NoError(t, err)
	require.Equal(t, uint8(1), loc.Parents)
	require.Len(t, loc.Interior, 3)
	require.Equal(t, raw, loc.String())

	_, err = ParseLocation("x/Parachain:1")
	require.ErrorIs(t, err, ErrInvalidLocation)
	_, err = ParseLocation("0/Teleport:1")
	require.ErrorIs(t, err, ErrInvalidLocation)
	_, err = ParseLocation("0/AccountKey20:0x01")
	require.ErrorIs(t, err, ErrInvalidLocation)
}

func TestReanchor(t *testing.T) {
	universal := []Junction{Parachain(2000)}

	got, err := Reanchor(Here(), sibling, universal)
	require.NoError(t, err)
	require.Equal(t, "1/Parachain:2000", got.String())

	got, err = Reanchor(Here(), Location{Parents: 1}, universal)
	require.NoError(t, err)
	require.Equal(t, "0/Parachain:2000", got.String())

	deep := Location{}
	for i := 0; i < MaxJunctions; i++ {
		deep.Interior = append(deep.Interior, Junction{Kind: JunctionGeneralIndex, ID: uint64(i)})
	}
	_, err = Reanchor(deep, sibling, universal)
	require.ErrorIs(t, err, ErrMultiLocationFull)

	_, err = Reanchor(Location{Parents: 2}, sibling, universal)
	require.ErrorIs(t, err, ErrMultiLocationFull)
}

func TestFixedWeigher(t *testing.T) {
	w := FixedWeigher{UnitWeightCost: 10, MaxInstructions: 3}
	weight, err := w.Weight(Message{{Kind: ClearOrigin}, {Kind: Transact, WeightLimit: 5}})
	require.NoError(t, err)
	require.Equal(t, uint64(25), weight)

	_, err = w.Weight(make(Message, 4))
	require.ErrorIs(t, err, ErrUnweighableMessage)
}

func TestForwardChargesAndQueues(t *testing.T) {
	f := newFixture(t)
	origin := common.SignedOrigin(caller)

	_, err := f.engine.Forward(origin, sibling, Message{{Kind: ClearOrigin}})
	require.ErrorIs(t, err, ErrTargetXcmExecNotConfig)

	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(1_000_000)))
	f.journal.Drain()

	res, err := f.engine.Forward(origin, sibling, Message{{Kind: ClearOrigin}})
	require.NoError(t, err)
	require.Equal(t, uint64(6_000_000), res.Weight)
	require.Equal(t, int64(6000), res.Amount.Int64())
	require.Equal(t, uint64(2), res.LocalWeight)

	bal, err := f.bank.FreeBalance(caller)
	require.NoError(t, err)
	require.Equal(t, int64(4000), bal.Int64())
	sovereign, err := f.bank.FreeBalance(SovereignAccount(sibling))
	require.NoError(t, err)
	require.Equal(t, int64(6000), sovereign.Int64())

	queued, err := f.queue.Messages(sibling)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	msg := queued[0]
	require.Len(t, msg, 6)
	require.Equal(t, WithdrawAsset, msg[0].Kind)
	require.Equal(t, "1/Parachain:2000", msg[0].Assets[0].ID.String())
	require.Equal(t, DescendOrigin, msg[2].Kind)
	require.Equal(t, ClearOrigin, msg[3].Kind)
	require.Equal(t, DepositAsset, msg[5].Kind)

	hash, err := msg.Hash()
	require.NoError(t, err)
	require.Equal(t, res.Hash, hash)

	evts := f.journal.Drain()
	require.Len(t, evts, 1)
	evt := events.Convert(evts[0])
	require.Equal(t, events.TypeRouterForwardTo, evt.Type)
	require.Equal(t, "6000", evt.Attributes["amount"])
	require.Equal(t, "2", evt.Attributes["localWeight"])
}

func TestForwardLocalWeightBound(t *testing.T) {
	f := newFixture(t)
	f.engine.cfg.MaxLocalWeight = 2
	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(1_000_000)))
	origin := common.SignedOrigin(caller)

	f.engine.SetLocalWeigher(FixedWeigher{UnitWeightCost: 1 << 40})
	_, err := f.engine.Forward(origin, sibling, Message{{Kind: ClearOrigin}})
	require.ErrorIs(t, err, ErrFailedPayXcmFee)
	bal, err := f.bank.FreeBalance(caller)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), bal.Int64())
	queued, err := f.queue.Messages(sibling)
	require.NoError(t, err)
	require.Empty(t, queued)

	f.engine.SetLocalWeigher(FixedWeigher{UnitWeightCost: 1})
	res, err := f.engine.Forward(origin, sibling, Message{{Kind: ClearOrigin}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.LocalWeight)
	bal, err = f.bank.FreeBalance(caller)
	require.NoError(t, err)
	require.Equal(t, int64(4000), bal.Int64())
}

func TestForwardFailures(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(1_000_000_000_000)))
	origin := common.SignedOrigin(caller)

	_, err := f.engine.Forward(origin, sibling, Message{{Kind: ClearOrigin}})
	require.ErrorIs(t, err, ErrFailedPayXcmFee)

	_, err = f.engine.Forward(origin, sibling, make(Message, 4))
	require.ErrorIs(t, err, ErrUnweighableMessage)

	_, err = f.engine.Forward(common.RootOrigin(), sibling, nil)
	require.ErrorIs(t, err, common.ErrBadOrigin)
}

type failingSender struct{}

func (failingSender) Send(Location, Message) error { return errors.New("lane closed") }

func TestForwardSendFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(1)))
	f.engine.SetSender(failingSender{})
	_, err := f.engine.Forward(common.SignedOrigin(caller), sibling, nil)
	require.ErrorIs(t, err, ErrXcmSendFailed)
}

func TestSetTargetXcmExecConfig(t *testing.T) {
	f := newFixture(t)
	err := f.engine.SetTargetXcmExecConfig(common.SignedOrigin(caller), sibling, big.NewInt(1))
	require.ErrorIs(t, err, common.ErrBadOrigin)

	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(5)))
	targets, err := f.engine.Targets()
	require.NoError(t, err)
	require.Equal(t, []string{"1/Parachain:2023"}, targets)

	require.NoError(t, f.engine.SetTargetXcmExecConfig(common.RootOrigin(), sibling, big.NewInt(0)))
	_, ok, err := f.engine.TargetRate(sibling)
	require.NoError(t, err)
	require.False(t, ok)
	targets, err = f.engine.Targets()
	require.NoError(t, err)
	require.Empty(t, targets)
}
