package events

import (
	"math/big"

	"lanebridge/core/types"
)

const (
	TypeRouterForwardTo                  = "router.forward_to"
	TypeRouterTargetXcmExecConfigUpdated = "router.target_xcm_exec_config_updated"
)

// RouterForwardTo is emitted after a message has been wrapped, paid for and
// handed to the outbound queue.
type RouterForwardTo struct {
	Origin      [20]byte
	Target      string
	MessageHash []byte
	Weight      uint64
	LocalWeight uint64
	Amount      *big.Int
}

func (RouterForwardTo) EventType() string { return TypeRouterForwardTo }

func (e RouterForwardTo) Event() *types.Event {
	return &types.Event{
		Type: TypeRouterForwardTo,
		Attributes: map[string]string{
			"origin":      formatAccount(e.Origin),
			"target":      e.Target,
			"messageHash": formatHex(e.MessageHash),
			"weight":      formatUint(e.Weight),
			"localWeight": formatUint(e.LocalWeight),
			"amount":      formatAmount(e.Amount),
		},
	}
}

type RouterTargetXcmExecConfigUpdated struct {
	Target string
	Rate   *big.Int
}

func (RouterTargetXcmExecConfigUpdated) EventType() string {
	return TypeRouterTargetXcmExecConfigUpdated
}

func (e RouterTargetXcmExecConfigUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeRouterTargetXcmExecConfigUpdated,
		Attributes: map[string]string{
			"target": e.Target,
			"rate":   formatAmount(e.Rate),
		},
	}
}
