package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"lanebridge/core"
	"lanebridge/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 32
)

func (s *Server) handleBlocksWS(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientSource(r)) {
		observability.RPC().RecordThrottle("source")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamBlocks(ctx, conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamBlocks(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.node.Subscribe(wsBuffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeBlockUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeBlockUpdate(ctx context.Context, conn *websocket.Conn, update core.BlockUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
