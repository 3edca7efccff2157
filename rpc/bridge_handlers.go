package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lanebridge/core"
	"lanebridge/core/runtime"
	"lanebridge/core/types"
	"lanebridge/crypto"
	"lanebridge/indexer"
	"lanebridge/mempool"
	"lanebridge/native/bridge"
	"lanebridge/native/common"
	"lanebridge/native/identity"
	"lanebridge/observability"
	"lanebridge/observability/logging"
)

func invalidParams(message string, err error) *RPCError {
	rpcErr := &RPCError{Code: codeInvalidParams, Message: message}
	if err != nil {
		rpcErr.Data = err.Error()
	}
	return rpcErr
}

func serverError(message string, err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: message, Data: err.Error()}
}

func decodeParam(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return invalidParams("exactly one parameter required", nil)
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return invalidParams("invalid parameter", err)
	}
	return nil
}

func submitError(err error) *RPCError {
	switch {
	case errors.Is(err, mempool.ErrDuplicate):
		return &RPCError{Code: codeDuplicateTx, Message: "transaction has already been submitted"}
	case errors.Is(err, mempool.ErrFull):
		return &RPCError{Code: codeMempoolFull, Message: "mempool full"}
	case errors.Is(err, runtime.ErrUnknownCall):
		return &RPCError{Code: codeInvalidParams, Message: "unknown call", Data: err.Error()}
	default:
		return invalidParams("transaction rejected", err)
	}
}

func (s *Server) handleSendTransaction(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var tx types.Transaction
	if rpcErr := decodeParam(params, &tx); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := s.node.SubmitTransaction(&tx)
	if err != nil {
		return nil, submitError(err)
	}
	return SubmitResult{Hash: hexBytes(hash)}, nil
}

func (s *Server) handleSendRootCall(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	subject, authErr := s.auth.authorize(r)
	if authErr != nil {
		observability.RPC().RecordThrottle("unauthorized")
		s.logger.Warn("root call rejected",
			"reason", authErr.Message,
			logging.MaskField("authorization", r.Header.Get("Authorization")),
			"request_id", requestIDFrom(r.Context()))
		return nil, authErr
	}
	var call runtime.WireCall
	if rpcErr := decodeParam(params, &call); rpcErr != nil {
		return nil, rpcErr
	}
	if strings.TrimSpace(call.Module) == "" || strings.TrimSpace(call.Method) == "" {
		return nil, invalidParams("module and method required", nil)
	}
	hash, err := s.node.SubmitRootTransaction(call.Module, call.Method, call.Params)
	if err != nil {
		return nil, submitError(err)
	}
	s.logger.Info("root call queued",
		"module", call.Module,
		"method", call.Method,
		"subject", subject,
		"request_id", requestIDFrom(r.Context()))
	return SubmitResult{Hash: hexBytes(hash)}, nil
}

func (s *Server) handleGetBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := common.ParseAccount(raw)
	if err != nil {
		return nil, invalidParams("invalid account", err)
	}
	result := BalanceResult{Address: crypto.AccountAddress(addr).String(), Account: hexBytes(addr[:])}
	err = s.node.View(func(rt *runtime.Runtime) error {
		balance, err := rt.Bank().FreeBalance(addr)
		if err != nil {
			return err
		}
		nonce, err := rt.Nonce(addr)
		if err != nil {
			return err
		}
		result.Balance = decimal(balance)
		result.Nonce = nonce
		return nil
	})
	if err != nil {
		return nil, serverError("failed to load account", err)
	}
	return result, nil
}

type deriveParams struct {
	Chain   string `json:"chain"`
	Root    bool   `json:"root"`
	Account string `json:"account"`
}

func (s *Server) handleDeriveAccount(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var p deriveParams
	if rpcErr := decodeParam(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	var chain identity.ChainID
	if strings.TrimSpace(p.Chain) == "" {
		_ = s.node.View(func(rt *runtime.Runtime) error {
			chain = rt.BridgedChain()
			return nil
		})
	} else {
		parsed, err := identity.ParseChainID(p.Chain)
		if err != nil {
			return nil, invalidParams("invalid chain", err)
		}
		chain = parsed
	}
	sender := identity.RootSender()
	if !p.Root {
		account, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(p.Account), "0x"))
		if err != nil || len(account) == 0 {
			return nil, invalidParams("account must be non-empty hex", err)
		}
		sender = identity.AccountSender(account)
	}
	derived := identity.Derive(chain, sender)
	return DerivedAccountResult{
		Chain:   chain.String(),
		Account: hexBytes(derived[:]),
		Address: crypto.AccountAddress(derived).String(),
	}, nil
}

func (s *Server) handleGetPendingTransfer(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var nonce uint64
	if rpcErr := decodeParam(params, &nonce); rpcErr != nil {
		return nil, rpcErr
	}
	var (
		record *bridge.PendingTransfer
		found  bool
	)
	err := s.node.View(func(rt *runtime.Runtime) error {
		var err error
		record, found, err = rt.Bridge().PendingTransfer(nonce)
		return err
	})
	if err != nil {
		return nil, serverError("failed to load transfer", err)
	}
	if !found {
		return nil, &RPCError{Code: codeNotFound, Message: "no pending transfer", Data: nonce}
	}
	return PendingTransferResult{Nonce: nonce, Owner: hexBytes(record.Owner[:]), Amount: decimal(record.Amount)}, nil
}

func (s *Server) handleListPendingTransfers(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	var entries []bridge.PendingEntry
	err := s.node.View(func(rt *runtime.Runtime) error {
		var err error
		entries, err = rt.Bridge().PendingTransfers()
		return err
	})
	if err != nil {
		return nil, serverError("failed to list transfers", err)
	}
	out := make([]PendingTransferResult, 0, len(entries))
	for _, entry := range entries {
		out = append(out, PendingTransferResult{
			Nonce:  entry.Nonce,
			Owner:  hexBytes(entry.Transfer.Owner[:]),
			Amount: decimal(entry.Transfer.Amount),
		})
	}
	return out, nil
}

func (s *Server) handleGetReceivedNonces(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	var nonces []uint64
	err := s.node.View(func(rt *runtime.Runtime) error {
		var err error
		nonces, err = rt.Bridge().ReceivedNonces()
		return err
	})
	if err != nil {
		return nil, serverError("failed to load nonces", err)
	}
	if nonces == nil {
		nonces = []uint64{}
	}
	return nonces, nil
}

func (s *Server) handleGetLimit(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	var result LimitResult
	err := s.node.View(func(rt *runtime.Runtime) error {
		limit, period, err := rt.Bridge().Limit()
		if err != nil {
			return err
		}
		result = LimitResult{Used: decimal(limit.Used), Cap: decimal(limit.Cap), Period: period}
		return nil
	})
	if err != nil {
		return nil, serverError("failed to load limit", err)
	}
	return result, nil
}

func (s *Server) handleGetSafeguardStatus(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	var result SafeguardResult
	err := s.node.View(func(rt *runtime.Runtime) error {
		status, err := rt.Safeguard().Status()
		if err != nil {
			return err
		}
		result = SafeguardResult{
			Emergency:     status.Emergency,
			CheckedAt:     status.CheckedAt,
			CheckInterval: rt.Safeguard().CheckInterval(),
		}
		if status.Observed {
			result.Checkpoint = hexBytes(status.Checkpoint)
		}
		return nil
	})
	if err != nil {
		return nil, serverError("failed to load safeguard", err)
	}
	return result, nil
}

func (s *Server) handleGetOutboundMessage(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var nonce uint64
	if rpcErr := decodeParam(params, &nonce); rpcErr != nil {
		return nil, rpcErr
	}
	var (
		result OutboundMessageResult
		found  bool
	)
	err := s.node.View(func(rt *runtime.Runtime) error {
		msg, ok, err := rt.Lane().OutboundMessage(rt.LaneID(), nonce)
		if err != nil || !ok {
			return err
		}
		found = true
		result = OutboundMessageResult{
			Lane:    rt.LaneID().String(),
			Nonce:   nonce,
			Sender:  hexBytes(msg.Sender[:]),
			Payload: hexBytes(msg.Payload),
			Fee:     decimal(msg.Fee),
			Weight:  msg.Weight,
		}
		if payload, err := bridge.DecodePayload(msg.Payload); err == nil {
			result.SpecVersion = payload.SpecVersion
			result.GasLimit = payload.GasLimit
			result.Call = hexBytes(payload.Call)
		}
		return nil
	})
	if err != nil {
		return nil, serverError("failed to load message", err)
	}
	if !found {
		return nil, &RPCError{Code: codeNotFound, Message: "no outbound message", Data: nonce}
	}
	return result, nil
}

type eventsParams struct {
	Type       string `json:"type"`
	FromHeight uint64 `json:"fromHeight"`
	ToHeight   uint64 `json:"toHeight"`
	Limit      int    `json:"limit"`
}

func (s *Server) handleGetEvents(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeUnavailable, Message: "event index disabled"}
	}
	var p eventsParams
	if len(params) > 0 {
		if rpcErr := decodeParam(params, &p); rpcErr != nil {
			return nil, rpcErr
		}
	}
	evts, err := s.events.Events(r.Context(), indexer.Filter{
		Type:       p.Type,
		FromHeight: p.FromHeight,
		ToHeight:   p.ToHeight,
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, serverError("failed to query events", err)
	}
	return evts, nil
}

func (s *Server) handleGetBlockHeight(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	head := s.node.Head()
	return BlockHeightResult{
		Height:    head.Height,
		StateRoot: hexBytes(head.StateRoot),
		Pending:   s.node.PendingCount(),
	}, nil
}

func (s *Server) handleGetReceipt(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, invalidParams("invalid hash", err)
	}
	receipt, err := s.node.Receipt(hash)
	if errors.Is(err, core.ErrReceiptNotFound) {
		return nil, &RPCError{Code: codeNotFound, Message: "receipt not found", Data: raw}
	}
	if err != nil {
		return nil, serverError("failed to load receipt", err)
	}
	return receipt, nil
}
