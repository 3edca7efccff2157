package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"lanebridge/config"
	"lanebridge/core"
	"lanebridge/core/types"
	"lanebridge/crypto"
	"lanebridge/indexer"
	"lanebridge/native/identity"
	"lanebridge/observability/logging"
	"lanebridge/storage"
)

const testSecret = "test-operator-secret"

type testEnv struct {
	t      *testing.T
	node   *core.Node
	server *Server
	key    *crypto.PrivateKey
	nonce  uint64
}

func hexAccount(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func newTestEnv(t *testing.T, events EventQuery, rpcCfg Config) *testEnv {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	genesisPath := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(genesisPath, []byte(fmt.Sprintf(`
balances:
  - account: %q
    amount: "100"
bridge:
  remoteBackingAccount: "0x1111111111111111111111111111111111111111"
finality:
  hash: "0x01"
  number: 1
`, hexAccount(key.Address().Array()))), 0o600))

	cfg := config.Default()
	cfg.GenesisFile = genesisPath
	cfg.Bank.TxFee = "0"
	var opts []core.Option
	if sink, ok := events.(core.EventSink); ok {
		opts = append(opts, core.WithEventSink(sink))
	}
	node, err := core.NewNode(cfg, storage.NewMemDB(), nil, opts...)
	require.NoError(t, err)
	if rpcCfg.JWTSecret == "" {
		rpcCfg.JWTSecret = testSecret
		rpcCfg.JWTIssuer = "lanebridge-operator"
	}
	return &testEnv{t: t, node: node, server: NewServer(node, events, rpcCfg, nil), key: key}
}

func (e *testEnv) call(method string, header http.Header, params ...interface{}) (int, RPCResponse) {
	e.t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(e.t, err)
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	require.NoError(e.t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var resp RPCResponse
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func (e *testEnv) result(resp RPCResponse, out interface{}) {
	e.t.Helper()
	require.Nil(e.t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(e.t, err)
	require.NoError(e.t, json.Unmarshal(raw, out))
}

func (e *testEnv) signed(module, method string, params interface{}) *types.Transaction {
	e.t.Helper()
	encoded, err := json.Marshal(params)
	require.NoError(e.t, err)
	tx := &types.Transaction{ChainID: e.node.ChainID(), Nonce: e.nonce, Module: module, Method: method, Params: encoded}
	require.NoError(e.t, tx.Sign(e.key.PrivateKey))
	e.nonce++
	return tx
}

func (e *testEnv) produce() {
	e.t.Helper()
	_, err := e.node.ProduceBlock(context.Background())
	require.NoError(e.t, err)
}

func operatorToken(t *testing.T, secret, issuer string, expiry time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": issuer,
		"sub": "ops",
		"exp": time.Now().Add(expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func TestSendTransactionAndQueries(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	user := env.key.Address().Array()

	tx := env.signed("bridge", "burn_and_remote_unlock", map[string]interface{}{
		"specVersion": 1,
		"weight":      1000,
		"gasLimit":    21000,
		"value":       10,
		"fee":         1,
		"recipient":   "0x2222222222222222222222222222222222222222",
	})
	code, resp := env.call("bridge_sendTransaction", nil, tx)
	require.Equal(t, http.StatusOK, code)
	var submitted SubmitResult
	env.result(resp, &submitted)

	code, resp = env.call("bridge_sendTransaction", nil, tx)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, codeDuplicateTx, resp.Error.Code)

	env.produce()

	_, resp = env.call("bridge_getReceipt", nil, submitted.Hash)
	var receipt types.Receipt
	env.result(resp, &receipt)
	require.True(t, receipt.Success, receipt.Error)

	_, resp = env.call("bridge_getBalance", nil, hexAccount(user))
	var balance BalanceResult
	env.result(resp, &balance)
	require.Equal(t, "89", balance.Balance)
	require.Equal(t, uint64(1), balance.Nonce)

	_, resp = env.call("bridge_getPendingTransfer", nil, 0)
	var pending PendingTransferResult
	env.result(resp, &pending)
	require.Equal(t, "10", pending.Amount)
	require.Equal(t, hexAccount(user), pending.Owner)

	_, resp = env.call("bridge_listPendingTransfers", nil)
	var list []PendingTransferResult
	env.result(resp, &list)
	require.Len(t, list, 1)

	_, resp = env.call("bridge_getOutboundMessage", nil, 0)
	var outbound OutboundMessageResult
	env.result(resp, &outbound)
	require.Equal(t, uint32(1), outbound.SpecVersion)
	require.Equal(t, uint64(21000), outbound.GasLimit)
	require.Equal(t, "1", outbound.Fee)

	code, resp = env.call("bridge_getOutboundMessage", nil, 7)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, codeNotFound, resp.Error.Code)

	_, resp = env.call("bridge_getBlockHeight", nil)
	var height BlockHeightResult
	env.result(resp, &height)
	require.Equal(t, uint64(1), height.Height)

	_, resp = env.call("bridge_getReceivedNonces", nil)
	var nonces []uint64
	env.result(resp, &nonces)
	require.Empty(t, nonces)

	_, resp = env.call("bridge_getSafeguardStatus", nil)
	var status SafeguardResult
	env.result(resp, &status)
	require.False(t, status.Emergency)
	require.Equal(t, uint64(10), status.CheckInterval)
}

func TestSendRootCallRequiresOperatorToken(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	call := map[string]interface{}{
		"module": "bridge",
		"method": "set_secure_limited_period",
		"params": map[string]interface{}{"period": 50},
	}

	code, resp := env.call("bridge_sendRootCall", nil, call)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	forged := operatorToken(t, "other-secret", "lanebridge-operator", time.Minute)
	code, _ = env.call("bridge_sendRootCall", bearer(forged), call)
	require.Equal(t, http.StatusUnauthorized, code)

	wrongIssuer := operatorToken(t, testSecret, "someone-else", time.Minute)
	code, _ = env.call("bridge_sendRootCall", bearer(wrongIssuer), call)
	require.Equal(t, http.StatusUnauthorized, code)

	expired := operatorToken(t, testSecret, "lanebridge-operator", -time.Hour)
	code, _ = env.call("bridge_sendRootCall", bearer(expired), call)
	require.Equal(t, http.StatusUnauthorized, code)

	valid := operatorToken(t, testSecret, "lanebridge-operator", time.Minute)
	code, resp = env.call("bridge_sendRootCall", bearer(valid), call)
	require.Equal(t, http.StatusOK, code, resp.Error)

	env.produce()
	_, resp = env.call("bridge_getLimit", nil)
	var limit LimitResult
	env.result(resp, &limit)
	require.Equal(t, uint64(50), limit.Period)
	require.Equal(t, "0", limit.Used)

	code, resp = env.call("bridge_sendRootCall", bearer(valid), map[string]interface{}{"module": "nope", "method": "x"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestDeriveAccountMatchesIdentity(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	chain, err := identity.ParseChainID("pdrg")
	require.NoError(t, err)

	_, resp := env.call("bridge_deriveAccount", nil, map[string]interface{}{"root": true})
	var root DerivedAccountResult
	env.result(resp, &root)
	want := identity.Derive(chain, identity.RootSender())
	require.Equal(t, hexAccount(want), root.Account)
	require.Equal(t, "pdrg", root.Chain)

	_, resp = env.call("bridge_deriveAccount", nil, map[string]interface{}{"chain": "pang", "account": "0xabcd"})
	var account DerivedAccountResult
	env.result(resp, &account)
	other, err := identity.ParseChainID("pang")
	require.NoError(t, err)
	require.Equal(t, hexAccount(identity.Derive(other, identity.AccountSender([]byte{0xab, 0xcd}))), account.Account)

	code, _ := env.call("bridge_deriveAccount", nil, map[string]interface{}{"chain": "toolong"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestRequestValidationAndRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, Config{RateLimitPerSec: 0.001, RateLimitBurst: 1})

	code, resp := env.call("bridge_unknown", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	code, _ = env.call("bridge_getBlockHeight", nil)
	require.Equal(t, http.StatusOK, code)
	code, resp = env.call("bridge_getBlockHeight", nil)
	require.Equal(t, http.StatusTooManyRequests, code)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestGetEventsFromIndex(t *testing.T) {
	disabled := newTestEnv(t, nil, Config{})
	code, resp := disabled.call("bridge_getEvents", nil)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, codeUnavailable, resp.Error.Code)

	store, err := indexer.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	env := newTestEnv(t, store, Config{})

	tx := env.signed("bank", "transfer", map[string]interface{}{"to": "0x3333333333333333333333333333333333333333", "amount": 5})
	_, resp = env.call("bridge_sendTransaction", nil, tx)
	require.Nil(t, resp.Error)
	env.produce()

	_, resp = env.call("bridge_getEvents", nil, map[string]interface{}{"type": "bank.transfer"})
	var evts []indexer.IndexedEvent
	env.result(resp, &evts)
	require.Len(t, evts, 1)
	require.Equal(t, uint64(1), evts[0].Height)
	require.Equal(t, "5", evts[0].Event.Attributes["amount"])
}

func TestBlocksWebsocketStreamsUpdates(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	srv := httptest.NewServer(env.server.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/blocks", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = env.node.ProduceBlock(context.Background())
			}
		}
	}()
	_, data, err := conn.Read(ctx)
	close(stop)
	require.NoError(t, err)

	var update core.BlockUpdate
	require.NoError(t, json.Unmarshal(data, &update))
	require.NotNil(t, update.Header)
	require.Greater(t, update.Header.Height, uint64(0))
}

func TestRejectedRootCallLogsMaskedCredentials(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	var buf bytes.Buffer
	env.server.logger = slog.New(logging.NewHandler(&buf, slog.LevelInfo))

	forged := operatorToken(t, "other-secret", "lanebridge-operator", time.Minute)
	code, _ := env.call("bridge_sendRootCall", bearer(forged), map[string]interface{}{
		"module": "bridge",
		"method": "set_secure_limited_period",
		"params": map[string]interface{}{"period": 5},
	})
	require.Equal(t, http.StatusUnauthorized, code)

	out := buf.String()
	require.Contains(t, out, "root call rejected")
	require.Contains(t, out, logging.RedactedValue)
	require.NotContains(t, out, forged)
}

func TestServeListenerCapsConnections(t *testing.T) {
	env := newTestEnv(t, nil, Config{MaxConnections: 1})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ServeListener(ctx, ln) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	url := "http://" + ln.Addr().String() + "/healthz"
	client := &http.Client{Timeout: 200 * time.Millisecond, Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	held, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = held.Write([]byte("GET /healthz HTTP/1.1\r\nHost: x\r\n"))
	require.NoError(t, err)

	_, err = client.Get(url)
	require.Error(t, err)

	require.NoError(t, held.Close())
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
}
