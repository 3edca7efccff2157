// Package safeguard watches the bridged chain's finality. When the best
// finalized header stops advancing between checks the chain enters an
// emergency in which a configured origin may dispatch root calls.
package safeguard

import (
	"bytes"
	"errors"
	"fmt"

	"lanebridge/core/events"
	"lanebridge/native/common"
)

var (
	// ErrBadOrigin is returned when the caller may not use the emergency path.
	ErrBadOrigin = common.ErrBadOrigin

	ErrEmergencyOnly = errors.New("safeguard: only available during an emergency")
	ErrNilCall       = errors.New("safeguard: call required")
)

var statusKey = []byte("safeguard/status")

// FinalityOracle reports the best finalized header of the bridged chain.
type FinalityOracle interface {
	BestFinalized() ([]byte, error)
}

// OriginFunc reports whether origin may use the emergency path.
type OriginFunc func(origin common.Origin) bool

// Status is the persisted monitor state.
type Status struct {
	Emergency  bool
	Observed   bool
	Checkpoint []byte
	CheckedAt  uint64
}

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type Engine struct {
	checkInterval uint64
	state         engineState
	oracle        FinalityOracle
	dispatcher    common.Dispatcher
	allowed       OriginFunc
	emitter       events.Emitter
}

func NewEngine(checkInterval uint64) *Engine {
	if checkInterval == 0 {
		checkInterval = 1
	}
	return &Engine{
		checkInterval: checkInterval,
		allowed:       func(common.Origin) bool { return false },
		emitter:       events.NoopEmitter{},
	}
}

func (e *Engine) SetState(state engineState)        { e.state = state }
func (e *Engine) SetOracle(oracle FinalityOracle)   { e.oracle = oracle }
func (e *Engine) SetDispatcher(d common.Dispatcher) { e.dispatcher = d }
func (e *Engine) CheckInterval() uint64             { return e.checkInterval }

func (e *Engine) SetEmergencyOrigin(fn OriginFunc) {
	if fn == nil {
		fn = func(common.Origin) bool { return false }
	}
	e.allowed = fn
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Status returns the monitor state.
func (e *Engine) Status() (Status, error) {
	if e.state == nil {
		return Status{}, fmt.Errorf("safeguard: state not configured")
	}
	var status Status
	if _, err := e.state.KVGet(statusKey, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

func (e *Engine) putStatus(status Status) error {
	return e.state.KVPut(statusKey, &status)
}

// OnInitialize runs the liveness check every CheckInterval blocks, and on
// every block while in an emergency.
func (e *Engine) OnInitialize(height uint64) error {
	status, err := e.Status()
	if err != nil {
		return err
	}
	if !status.Emergency && height%e.checkInterval != 0 {
		return nil
	}
	if e.oracle == nil {
		return fmt.Errorf("safeguard: finality oracle not configured")
	}
	best, err := e.oracle.BestFinalized()
	if err != nil {
		return err
	}
	advanced := !status.Observed || !bytes.Equal(best, status.Checkpoint)

	switch {
	case status.Emergency && advanced:
		status.Emergency = false
		e.emitter.Emit(events.SafeguardRecovery{Height: height, Checkpoint: best})
	case status.Emergency:
		return nil
	case !advanced:
		status.Emergency = true
		status.CheckedAt = height
		e.emitter.Emit(events.SafeguardEmergency{Height: height, Checkpoint: best})
		return e.putStatus(status)
	}
	status.Observed = true
	status.Checkpoint = append([]byte(nil), best...)
	status.CheckedAt = height
	return e.putStatus(status)
}

// EmergencySafeguard dispatches call as root, bypassing filters, while the
// chain is in an emergency. The call is fee exempt.
func (e *Engine) EmergencySafeguard(origin common.Origin, call common.Call) error {
	if call == nil {
		return ErrNilCall
	}
	if e.dispatcher == nil {
		return fmt.Errorf("safeguard: dispatcher not configured")
	}
	status, err := e.Status()
	if err != nil {
		return err
	}
	if !status.Emergency {
		return ErrEmergencyOnly
	}
	if !e.allowed(origin) {
		return ErrBadOrigin
	}
	result := e.dispatcher.DispatchPrivileged(call, true)
	evt := events.SafeguardDispatched{
		Caller: origin.Signer,
		Module: call.Module(),
		Method: call.Method(),
	}
	if result != nil {
		evt.Error = result.Error()
	}
	e.emitter.Emit(evt)
	return nil
}
