package events

import (
	"math/big"

	"lanebridge/core/types"
)

const (
	TypeTransfer          = "bank.transfer"
	TypeLaneMessageSent   = "lane.message_accepted"
	TypeLaneReceived      = "lane.inbound_received"
	TypeFinalityNoted     = "finality.finalized"
	TypeInboundDispatched = "lane.inbound_dispatched"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTransfer,
		Attributes: map[string]string{
			"from":   formatAccount(e.From),
			"to":     formatAccount(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// LaneMessageSent is emitted by the outbound lane when a payload is queued.
type LaneMessageSent struct {
	Lane   [4]byte
	Nonce  uint64
	Weight uint64
}

func (LaneMessageSent) EventType() string { return TypeLaneMessageSent }

func (e LaneMessageSent) Event() *types.Event {
	return &types.Event{
		Type: TypeLaneMessageSent,
		Attributes: map[string]string{
			"lane":   formatHex(e.Lane[:]),
			"nonce":  formatUint(e.Nonce),
			"weight": formatUint(e.Weight),
		},
	}
}

type LaneReceived struct {
	Lane  [4]byte
	Nonce uint64
}

func (LaneReceived) EventType() string { return TypeLaneReceived }

func (e LaneReceived) Event() *types.Event {
	return &types.Event{
		Type: TypeLaneReceived,
		Attributes: map[string]string{
			"lane":  formatHex(e.Lane[:]),
			"nonce": formatUint(e.Nonce),
		},
	}
}

type FinalityNoted struct {
	Hash   []byte
	Number uint64
}

func (FinalityNoted) EventType() string { return TypeFinalityNoted }

func (e FinalityNoted) Event() *types.Event {
	return &types.Event{
		Type: TypeFinalityNoted,
		Attributes: map[string]string{
			"hash":   formatHex(e.Hash),
			"number": formatUint(e.Number),
		},
	}
}

// InboundDispatched reports the outcome of a call carried by a delivered
// inbound message. Origin is the derived local account.
type InboundDispatched struct {
	Lane   [4]byte
	Nonce  uint64
	Origin [20]byte
	Module string
	Method string
	Error  string
}

func (InboundDispatched) EventType() string { return TypeInboundDispatched }

func (e InboundDispatched) Event() *types.Event {
	return &types.Event{
		Type: TypeInboundDispatched,
		Attributes: map[string]string{
			"lane":   formatHex(e.Lane[:]),
			"nonce":  formatUint(e.Nonce),
			"origin": formatAccount(e.Origin),
			"module": e.Module,
			"method": e.Method,
			"result": formatResult(e.Error),
		},
	}
}
