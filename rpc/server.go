// Package rpc serves the node's JSON-RPC surface.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"lanebridge/core"
	"lanebridge/indexer"
	"lanebridge/observability"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// EventQuery serves bridge_getEvents.
type EventQuery interface {
	Events(ctx context.Context, filter indexer.Filter) ([]indexer.IndexedEvent, error)
}

// Config tunes the server.
type Config struct {
	JWTSecret       string
	JWTIssuer       string
	RateLimitPerSec float64
	RateLimitBurst  int
	ReadTimeout     time.Duration
	// MaxConnections caps concurrently accepted connections. Zero means no cap.
	MaxConnections int
	ServeMetrics   bool
}

type handlerFunc func(r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

type Server struct {
	node     *core.Node
	events   EventQuery
	auth     *rootAuthenticator
	limiter  *sourceLimiter
	logger   *slog.Logger
	cfg      Config
	handlers map[string]handlerFunc
}

// NewServer builds a server over node. events may be nil when the index is
// disabled.
func NewServer(node *core.Node, events EventQuery, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		events:  events,
		auth:    newRootAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newSourceLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		logger:  logger,
		cfg:     cfg,
	}
	s.handlers = map[string]handlerFunc{
		"bridge_sendTransaction":      s.handleSendTransaction,
		"bridge_sendRootCall":         s.handleSendRootCall,
		"bridge_getBalance":           s.handleGetBalance,
		"bridge_deriveAccount":        s.handleDeriveAccount,
		"bridge_getPendingTransfer":   s.handleGetPendingTransfer,
		"bridge_listPendingTransfers": s.handleListPendingTransfers,
		"bridge_getReceivedNonces":    s.handleGetReceivedNonces,
		"bridge_getLimit":             s.handleGetLimit,
		"bridge_getSafeguardStatus":   s.handleGetSafeguardStatus,
		"bridge_getOutboundMessage":   s.handleGetOutboundMessage,
		"bridge_getEvents":            s.handleGetEvents,
		"bridge_getBlockHeight":       s.handleGetBlockHeight,
		"bridge_getReceipt":           s.handleGetReceipt,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Post("/", s.handle)
	r.Get("/ws/blocks", s.handleBlocksWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return otelhttp.NewHandler(r, "lanebridge.rpc")
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. ln is closed on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("json-rpc listening", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)
		errCh <- srv.Serve(ln)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func statusFor(code int) int {
	switch code {
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeNotFound:
		return http.StatusNotFound
	case codeDuplicateTx:
		return http.StatusConflict
	case codeRateLimited:
		return http.StatusTooManyRequests
	case codeMempoolFull, codeUnavailable:
		return http.StatusServiceUnavailable
	case codeServerError:
		return http.StatusInternalServerError
	case codeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	method := "unknown"
	status := http.StatusOK
	defer func() {
		observability.RPC().Observe(method, status, time.Since(start))
	}()

	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	w.Header().Set("Content-Type", "application/json")

	fail := func(id interface{}, rpcErr *RPCError) {
		status = statusFor(rpcErr.Code)
		writeError(w, status, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status = http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		fail(nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		fail(nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		fail(req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	handler, ok := s.handlers[req.Method]
	if !ok {
		fail(req.ID, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: req.Method})
		return
	}
	method = req.Method

	if source := clientSource(r); !s.limiter.allow(source) {
		observability.RPC().RecordThrottle("source")
		fail(req.ID, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded", Data: source})
		return
	}

	result, rpcErr := handler(r, req.Params)
	if rpcErr != nil {
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc handler failed",
				"method", req.Method,
				"request_id", requestIDFrom(r.Context()),
				"error", rpcErr.Data)
		}
		fail(req.ID, rpcErr)
		return
	}
	writeResult(w, req.ID, result)
}
