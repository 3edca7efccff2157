package runtime

import (
	"errors"
	"fmt"

	"lanebridge/core/events"
	"lanebridge/core/lane"
	"lanebridge/native/common"
	"lanebridge/native/identity"
)

var ErrUnexpectedNonce = errors.New("runtime: inbound nonce out of order")

// SenderParam names the remote origin of an inbound message.
type SenderParam struct {
	Root    bool            `json:"root,omitempty"`
	Account common.HexBytes `json:"account,omitempty"`
}

func (s SenderParam) sender() identity.Sender {
	if s.Root {
		return identity.RootSender()
	}
	return identity.AccountSender(s.Account)
}

type deliverParams struct {
	Lane   string      `json:"lane"`
	Nonce  uint64      `json:"nonce"`
	Sender SenderParam `json:"sender"`
	Call   *WireCall   `json:"call"`
}

// DeliverCall hands an inbound lane message to the runtime. The carried call
// runs under the local account derived from the remote sender. Root only; it
// stands in for the relayer on devnets.
type DeliverCall struct {
	runtime *Runtime
	Lane    string
	Nonce   uint64
	Sender  SenderParam
	Inner   common.Call
}

func (DeliverCall) Module() string { return "lane" }
func (DeliverCall) Method() string { return "deliver" }

func (c DeliverCall) Execute(ctx *common.CallContext) error {
	if err := common.EnsureRoot(ctx.Origin); err != nil {
		return err
	}
	if c.Inner == nil {
		return fmt.Errorf("%w: call required", ErrInvalidParams)
	}
	id, err := lane.ParseID(c.Lane)
	if err != nil {
		return err
	}
	return c.runtime.deliver(id, c.Nonce, c.Sender.sender(), c.Inner)
}

func (rt *Runtime) deliver(id lane.ID, nonce uint64, sender identity.Sender, call common.Call) error {
	latest, err := rt.lane.InboundLatestReceivedNonce(id)
	if err != nil {
		return err
	}
	if nonce != latest+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedNonce, nonce, latest+1)
	}
	if err := rt.lane.NoteReceived(id, nonce); err != nil {
		return err
	}
	origin := identity.Derive(rt.bridgedChain, sender)
	result := rt.dispatch(common.SignedOrigin(origin), call, false)
	evt := events.InboundDispatched{
		Lane:   id,
		Nonce:  nonce,
		Origin: origin,
		Module: call.Module(),
		Method: call.Method(),
	}
	if result != nil {
		evt.Error = result.Error()
		rt.logger.Warn("inbound dispatch failed",
			"lane", id.String(),
			"nonce", nonce,
			"module", call.Module(),
			"method", call.Method(),
			"error", result)
	}
	rt.journal.Emit(evt)
	return nil
}
