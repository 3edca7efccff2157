// Package remotegov executes calls on behalf of the bridged chain's root and
// offers a local rescue path that bypasses call filters.
package remotegov

import (
	"errors"
	"fmt"

	"lanebridge/core/events"
	"lanebridge/native/common"
	"lanebridge/native/identity"
)

var (
	ErrRequireSourceRoot = errors.New("remotegov: caller is not the bridged chain's root")
	ErrRequireRescuer    = errors.New("remotegov: caller is not a rescuer")
	ErrNilCall           = errors.New("remotegov: call required")
)

// RescuerFunc reports whether origin may use the rescue path.
type RescuerFunc func(origin common.Origin) bool

// AccountList builds a RescuerFunc accepting signed origins from accounts.
func AccountList(accounts [][20]byte) RescuerFunc {
	allowed := make(map[[20]byte]struct{}, len(accounts))
	for _, acc := range accounts {
		allowed[acc] = struct{}{}
	}
	return func(origin common.Origin) bool {
		if origin.Kind != common.OriginSigned {
			return false
		}
		_, ok := allowed[origin.Signer]
		return ok
	}
}

type Engine struct {
	bridgedChain identity.ChainID
	dispatcher   common.Dispatcher
	rescuer      RescuerFunc
	emitter      events.Emitter
}

func NewEngine(bridgedChain identity.ChainID) *Engine {
	return &Engine{
		bridgedChain: bridgedChain,
		rescuer:      func(common.Origin) bool { return false },
		emitter:      events.NoopEmitter{},
	}
}

func (e *Engine) SetDispatcher(d common.Dispatcher) { e.dispatcher = d }

func (e *Engine) SetRescuer(fn RescuerFunc) {
	if fn == nil {
		fn = func(common.Origin) bool { return false }
	}
	e.rescuer = fn
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SourceRoot returns the local account standing for the bridged chain's
// root.
func (e *Engine) SourceRoot() [20]byte {
	return identity.Derive(e.bridgedChain, identity.RootSender())
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (e *Engine) ready(call common.Call) error {
	if e.dispatcher == nil {
		return fmt.Errorf("remotegov: dispatcher not configured")
	}
	if call == nil {
		return ErrNilCall
	}
	return nil
}

// AcceptRemoteCall dispatches call as root when it was sent by the bridged
// chain's root. The call filter applies. The inner result is reported in the
// event rather than failing the outer call.
func (e *Engine) AcceptRemoteCall(origin common.Origin, call common.Call) error {
	if err := e.ready(call); err != nil {
		return err
	}
	caller, err := common.EnsureSigned(origin)
	if err != nil || caller != e.SourceRoot() {
		return ErrRequireSourceRoot
	}
	result := e.dispatcher.DispatchPrivileged(call, false)
	e.emitter.Emit(events.RemoteCallDispatched{
		Module: call.Module(),
		Method: call.Method(),
		Error:  errorText(result),
	})
	return nil
}

// RescueCall dispatches call as root for a configured rescuer, bypassing the
// call filter.
func (e *Engine) RescueCall(origin common.Origin, call common.Call) error {
	if err := e.ready(call); err != nil {
		return err
	}
	if !e.rescuer(origin) {
		return ErrRequireRescuer
	}
	result := e.dispatcher.DispatchPrivileged(call, true)
	e.emitter.Emit(events.RescueCallDispatched{
		Rescuer: origin.Signer,
		Module:  call.Module(),
		Method:  call.Method(),
		Error:   errorText(result),
	})
	return nil
}
