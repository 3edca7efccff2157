package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"lanebridge/core/finality"
	"lanebridge/core/lane"
	"lanebridge/native/bank"
	"lanebridge/native/bridge"
	"lanebridge/native/common"
	"lanebridge/native/params"
	"lanebridge/native/remotegov"
	"lanebridge/native/router"
	"lanebridge/native/safeguard"
)

// maxCallDepth bounds wrapper nesting such as a rescue call carrying a
// remote call carrying a bridge call.
const maxCallDepth = 4

var (
	ErrUnknownCall   = errors.New("runtime: unknown call")
	ErrInvalidParams = errors.New("runtime: invalid call params")
	ErrCallTooDeep   = errors.New("runtime: call nesting too deep")
)

// WireCall is the JSON form of a call nested inside a wrapper call.
type WireCall struct {
	Module string          `json:"module"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type wrapperParams struct {
	Call *WireCall `json:"call"`
}

type decoder func(params json.RawMessage, depth int) (common.Call, error)

func callKey(module, method string) string { return module + "." + method }

func decodeParams[T common.Call](raw json.RawMessage, call T) (common.Call, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&call); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}
	return call, nil
}

func (rt *Runtime) register(module, method string, fn decoder) {
	rt.decoders[callKey(module, method)] = fn
}

func (rt *Runtime) registerCalls() {
	rt.decoders = make(map[string]decoder)

	simple := func(module, method string, build func(json.RawMessage) (common.Call, error)) {
		rt.register(module, method, func(raw json.RawMessage, _ int) (common.Call, error) {
			return build(raw)
		})
	}

	simple("bank", "transfer", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bank.TransferCall{Engine: rt.bank})
	})
	simple("params", "set_pauses", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, params.SetPausesCall{Store: rt.params})
	})
	simple("lane", "note_received", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, lane.NoteReceivedCall{Transport: rt.lane})
	})
	simple("finality", "note_finalized", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, finality.NoteFinalizedCall{Tracker: rt.finality})
	})

	simple("bridge", "issue_from_remote", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.IssueFromRemoteCall{Engine: rt.bridge})
	})
	simple("bridge", "burn_and_remote_unlock", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.BurnAndRemoteUnlockCall{Engine: rt.bridge})
	})
	simple("bridge", "handle_issuing_failure_from_remote", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.HandleIssuingFailureFromRemoteCall{Engine: rt.bridge})
	})
	simple("bridge", "remote_unlock_failure", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.RemoteUnlockFailureCall{Engine: rt.bridge})
	})
	simple("bridge", "set_remote_backing_account", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.SetRemoteBackingAccountCall{Engine: rt.bridge})
	})
	simple("bridge", "set_secure_limited_period", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.SetSecureLimitedPeriodCall{Engine: rt.bridge})
	})
	simple("bridge", "set_security_limitation_ring_amount", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, bridge.SetSecurityLimitationRingAmountCall{Engine: rt.bridge})
	})

	simple("router", "forward", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, router.ForwardCall{Engine: rt.router})
	})
	simple("router", "set_target_xcm_exec_config", func(raw json.RawMessage) (common.Call, error) {
		return decodeParams(raw, router.SetTargetXcmExecConfigCall{Engine: rt.router})
	})

	rt.register("remotegov", "accept_remote_call", func(raw json.RawMessage, depth int) (common.Call, error) {
		inner, err := rt.decodeInner(raw, depth)
		if err != nil {
			return nil, err
		}
		return remotegov.AcceptRemoteCallCall{Engine: rt.remoteGov, Inner: inner}, nil
	})
	rt.register("remotegov", "rescue_call", func(raw json.RawMessage, depth int) (common.Call, error) {
		inner, err := rt.decodeInner(raw, depth)
		if err != nil {
			return nil, err
		}
		return remotegov.RescueCallCall{Engine: rt.remoteGov, Inner: inner}, nil
	})
	rt.register("safeguard", "emergency_safeguard", func(raw json.RawMessage, depth int) (common.Call, error) {
		inner, err := rt.decodeInner(raw, depth)
		if err != nil {
			return nil, err
		}
		return safeguard.EmergencySafeguardCall{Engine: rt.safeguard, Inner: inner}, nil
	})
	rt.register("lane", "deliver", func(raw json.RawMessage, depth int) (common.Call, error) {
		var wire deliverParams
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		if wire.Call == nil {
			return nil, fmt.Errorf("%w: call required", ErrInvalidParams)
		}
		inner, err := rt.decode(wire.Call.Module, wire.Call.Method, wire.Call.Params, depth+1)
		if err != nil {
			return nil, err
		}
		return DeliverCall{runtime: rt, Lane: wire.Lane, Nonce: wire.Nonce, Sender: wire.Sender, Inner: inner}, nil
	})
}

func (rt *Runtime) decodeInner(raw json.RawMessage, depth int) (common.Call, error) {
	var wire wrapperParams
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if wire.Call == nil {
		return nil, fmt.Errorf("%w: call required", ErrInvalidParams)
	}
	return rt.decode(wire.Call.Module, wire.Call.Method, wire.Call.Params, depth+1)
}

func (rt *Runtime) decode(module, method string, params json.RawMessage, depth int) (common.Call, error) {
	if depth > maxCallDepth {
		return nil, ErrCallTooDeep
	}
	fn, ok := rt.decoders[callKey(module, method)]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownCall, module, method)
	}
	return fn(params, depth)
}

// DecodeCall builds a call from its wire form. Wrapper calls carry their
// inner call as {"call": {"module", "method", "params"}}.
func (rt *Runtime) DecodeCall(module, method string, params json.RawMessage) (common.Call, error) {
	return rt.decode(module, method, params, 0)
}

// Calls lists every registered module.method pair.
func (rt *Runtime) Calls() []string {
	out := make([]string, 0, len(rt.decoders))
	for key := range rt.decoders {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
