// Package runtime wires the native modules over a single state manager and
// applies transactions against them.
package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"go.opentelemetry.io/otel/trace"

	"lanebridge/config"
	"lanebridge/core/events"
	"lanebridge/core/finality"
	"lanebridge/core/genesis"
	"lanebridge/core/lane"
	"lanebridge/core/state"
	"lanebridge/native/bank"
	"lanebridge/native/bridge"
	"lanebridge/native/common"
	"lanebridge/native/identity"
	"lanebridge/native/params"
	"lanebridge/native/remotegov"
	"lanebridge/native/router"
	"lanebridge/native/safeguard"
	"lanebridge/observability"
	lbotel "lanebridge/observability/otel"
	"lanebridge/storage/trie"
)

const routerQueueDepth = 1024

var (
	ErrChainIDMismatch = errors.New("runtime: chain id mismatch")
	ErrNonceMismatch   = errors.New("runtime: nonce mismatch")
	ErrCannotPayFee    = errors.New("runtime: cannot pay transaction fee")
)

// Runtime owns the state manager, the event journal and every native engine.
// It is not safe for concurrent use; the node serialises access.
type Runtime struct {
	chainID      uint64
	bridgedChain identity.ChainID
	laneID       lane.ID
	txFee        *big.Int
	height       uint64

	state   *state.Manager
	journal *events.Journal
	filter  common.CallFilter

	bank      *bank.Engine
	lane      *lane.Transport
	finality  *finality.Tracker
	bridge    *bridge.Engine
	remoteGov *remotegov.Engine
	safeguard *safeguard.Engine
	router    *router.Engine
	queue     *router.Queue
	params    *params.Store

	decoders map[string]decoder
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.ChainMetrics
}

// New builds a runtime over the trie rooted at tr.
func New(cfg *config.Config, tr *trie.Trie, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runtime: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	bridgedChain, err := identity.ParseChainID(cfg.Bridge.BridgedChainID)
	if err != nil {
		return nil, fmt.Errorf("bridge.BridgedChainID: %w", err)
	}
	laneID, err := lane.ParseID(cfg.Bridge.LaneID)
	if err != nil {
		return nil, fmt.Errorf("bridge.LaneID: %w", err)
	}
	remoteToken, err := common.ParseAccount(cfg.Bridge.RemoteToken)
	if err != nil {
		return nil, fmt.Errorf("bridge.RemoteToken: %w", err)
	}
	existential, err := genesis.ParseAmount(cfg.Bank.ExistentialDeposit)
	if err != nil {
		return nil, fmt.Errorf("bank.ExistentialDeposit: %w", err)
	}
	txFee, err := genesis.ParseAmount(cfg.Bank.TxFee)
	if err != nil {
		return nil, fmt.Errorf("bank.TxFee: %w", err)
	}
	rescuers, err := parseAccounts(cfg.Governance.Rescuers)
	if err != nil {
		return nil, fmt.Errorf("governance.Rescuers: %w", err)
	}
	emergency, err := parseAccounts(cfg.Safeguard.EmergencyOrigins)
	if err != nil {
		return nil, fmt.Errorf("safeguard.EmergencyOrigins: %w", err)
	}
	encoder, err := bridge.NewABIEncoder()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		chainID:      cfg.ChainID,
		bridgedChain: bridgedChain,
		laneID:       laneID,
		txFee:        txFee,
		state:        state.NewManager(tr),
		journal:      events.NewJournal(),
		logger:       logger.With("component", "runtime"),
		tracer:       lbotel.Tracer("lanebridge/runtime"),
		metrics:      observability.Chain(),
	}

	rt.params = params.NewStore(rt.state)
	rt.filter = common.PauseFilter{View: rt.params}

	rt.bank = bank.NewEngine()
	rt.bank.SetState(rt.state)
	rt.bank.SetEmitter(rt.journal)
	rt.bank.SetExistentialDeposit(existential)

	rt.lane = lane.NewTransport(cfg.Lane.BaseMessageWeight, cfg.Lane.ByteWeight)
	rt.lane.SetState(rt.state)
	rt.lane.SetEmitter(rt.journal)

	rt.finality = finality.NewTracker()
	rt.finality.SetState(rt.state)
	rt.finality.SetEmitter(rt.journal)

	rt.bridge = bridge.NewEngine(bridge.Config{
		BridgedChainID:    bridgedChain,
		Lane:              laneID,
		ModuleAccount:     identity.ModuleAccount(cfg.Bridge.ModuleID),
		MaxReceivedNonces: cfg.Bridge.MaxReceivedNonces,
		RemoteToken:       remoteToken,
	})
	rt.bridge.SetState(rt.state)
	rt.bridge.SetCurrency(rt.bank)
	rt.bridge.SetLane(rt.lane)
	rt.bridge.SetEncoder(encoder)
	rt.bridge.SetEmitter(rt.journal)

	rt.remoteGov = remotegov.NewEngine(bridgedChain)
	rt.remoteGov.SetDispatcher(rt)
	rt.remoteGov.SetRescuer(remotegov.AccountList(rescuers))
	rt.remoteGov.SetEmitter(rt.journal)

	rt.safeguard = safeguard.NewEngine(cfg.Safeguard.CheckInterval)
	rt.safeguard.SetState(rt.state)
	rt.safeguard.SetOracle(rt.finality)
	rt.safeguard.SetDispatcher(rt)
	rt.safeguard.SetEmergencyOrigin(safeguard.OriginFunc(remotegov.AccountList(emergency)))
	rt.safeguard.SetEmitter(rt.journal)

	rt.queue = router.NewQueue(routerQueueDepth)
	rt.queue.SetState(rt.state)
	rt.router = router.NewEngine(router.Config{
		SelfParachain:       cfg.Router.SelfParachain,
		UnitWeightPerSecond: cfg.Router.UnitWeightPerSecond,
		MaxLocalWeight:      cfg.Router.MaxLocalWeight,
	})
	rt.router.SetState(rt.state)
	rt.router.SetCurrency(rt.bank)
	rt.router.SetWeigher(router.FixedWeigher{
		UnitWeightCost:  cfg.Router.UnitWeightCost,
		MaxInstructions: cfg.Router.MaxInstructions,
	})
	rt.router.SetLocalWeigher(router.FixedWeigher{UnitWeightCost: cfg.Router.UnitWeightCost})
	rt.router.SetSender(rt.queue)
	rt.router.SetEmitter(rt.journal)

	rt.registerCalls()
	return rt, nil
}

func parseAccounts(raw []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		addr, err := common.ParseAccount(entry)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", entry, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

func (rt *Runtime) ChainID() uint64                { return rt.chainID }
func (rt *Runtime) BridgedChain() identity.ChainID { return rt.bridgedChain }
func (rt *Runtime) LaneID() lane.ID                { return rt.laneID }
func (rt *Runtime) Height() uint64                 { return rt.height }
func (rt *Runtime) State() *state.Manager          { return rt.state }
func (rt *Runtime) Journal() *events.Journal       { return rt.journal }
func (rt *Runtime) Bank() *bank.Engine             { return rt.bank }
func (rt *Runtime) Lane() *lane.Transport          { return rt.lane }
func (rt *Runtime) Finality() *finality.Tracker    { return rt.finality }
func (rt *Runtime) Bridge() *bridge.Engine         { return rt.bridge }
func (rt *Runtime) RemoteGov() *remotegov.Engine   { return rt.remoteGov }
func (rt *Runtime) Safeguard() *safeguard.Engine   { return rt.safeguard }
func (rt *Runtime) Router() *router.Engine         { return rt.router }
func (rt *Runtime) RouterQueue() *router.Queue     { return rt.queue }
func (rt *Runtime) Params() *params.Store          { return rt.params }

// Nonce returns the next expected transaction nonce of addr.
func (rt *Runtime) Nonce(addr [20]byte) (uint64, error) {
	account, err := rt.state.GetAccount(addr[:])
	if err != nil {
		return 0, err
	}
	return account.Nonce, nil
}
