package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeNotFound       = -32004
	codeDuplicateTx    = -32010
	codeMempoolFull    = -32011
	codeRateLimited    = -32020
	codeUnavailable    = -32030
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

// SubmitResult acknowledges a queued transaction.
type SubmitResult struct {
	Hash string `json:"hash"`
}

// BalanceResult reports an account's free balance and next nonce.
type BalanceResult struct {
	Address string `json:"address"`
	Account string `json:"account"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// DerivedAccountResult is the local account standing for a remote sender.
type DerivedAccountResult struct {
	Chain   string `json:"chain"`
	Account string `json:"account"`
	Address string `json:"address"`
}

// PendingTransferResult is one locked value awaiting remote confirmation.
type PendingTransferResult struct {
	Nonce  uint64 `json:"nonce"`
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

// LimitResult describes the issuance limiter.
type LimitResult struct {
	Used   string `json:"used"`
	Cap    string `json:"cap"`
	Period uint64 `json:"period"`
}

// SafeguardResult describes the finality monitor.
type SafeguardResult struct {
	Emergency     bool   `json:"emergency"`
	Checkpoint    string `json:"checkpoint,omitempty"`
	CheckedAt     uint64 `json:"checkedAt"`
	CheckInterval uint64 `json:"checkInterval"`
}

// OutboundMessageResult is a queued lane payload.
type OutboundMessageResult struct {
	Lane        string `json:"lane"`
	Nonce       uint64 `json:"nonce"`
	Sender      string `json:"sender"`
	Payload     string `json:"payload"`
	Fee         string `json:"fee"`
	Weight      uint64 `json:"weight"`
	SpecVersion uint32 `json:"specVersion,omitempty"`
	GasLimit    uint64 `json:"gasLimit,omitempty"`
	Call        string `json:"call,omitempty"`
}

// BlockHeightResult reports the current head.
type BlockHeightResult struct {
	Height    uint64 `json:"height"`
	StateRoot string `json:"stateRoot"`
	Pending   int    `json:"pending"`
}

func hexBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
