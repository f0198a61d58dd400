package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
)

// QuotaStream: fan-out hub for the live quota WebSocket.
//
// Connected clients receive a status snapshot on connect, another every
// broadcast tick, and every threshold alert the moment it fires. A slow
// client whose send buffer fills is dropped rather than allowed to stall
// the hub.
type QuotaStream struct {
	governor *quota.Governor
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

type streamEnvelope struct {
	Type string `json:"type"` // "status" or "alert"
	Data any    `json:"data"`
}

// NewQuotaStream: creates the hub and subscribes it to governor alerts.
func NewQuotaStream(governor *quota.Governor, logger *slog.Logger) *QuotaStream {
	s := &QuotaStream{
		governor: governor,
		logger:   logger,
		clients:  make(map[*streamClient]struct{}),
	}
	governor.AddAlertListener(s.broadcastAlert)
	return s
}

// Run: broadcasts periodic status snapshots until the context ends.
func (s *QuotaStream) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.WebSocketConfig.BroadcastEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			if s.clientCount() == 0 {
				continue
			}
			status, err := s.governor.Status(ctx)
			if err != nil {
				s.logger.Warn("Quota stream: status unavailable", slog.Any("error", err))
				continue
			}
			s.broadcast(streamEnvelope{Type: "status", Data: status})
		}
	}
}

// HandleWS: upgrades one request and serves it until the peer goes away.
func (s *QuotaStream) HandleWS(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, constants.WebSocketConfig.SendBufferSize),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	// Initial snapshot so the UI renders without waiting for a tick.
	if status, err := s.governor.Status(c.Request.Context()); err == nil {
		if payload, err := json.Marshal(streamEnvelope{Type: "status", Data: status}); err == nil {
			select {
			case client.send <- payload:
			default:
			}
		}
	}

	go client.writePump()
	client.readPump(s)
}

func (s *QuotaStream) broadcastAlert(alert domain.Alert) {
	s.broadcast(streamEnvelope{Type: "alert", Data: alert})
}

func (s *QuotaStream) broadcast(envelope streamEnvelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error("Quota stream: marshal failed", slog.Any("error", err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- payload:
		default:
			// Buffer full: the client is too slow, cut it loose.
			go s.drop(client)
		}
	}
}

func (s *QuotaStream) drop(client *streamClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
}

func (s *QuotaStream) closeAll() {
	s.mu.Lock()
	for client := range s.clients {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
}

func (s *QuotaStream) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// readPump: consumes (and discards) inbound frames so pongs and close frames
// are processed; exits when the peer disconnects.
func (c *streamClient) readPump(s *QuotaStream) {
	defer func() {
		s.drop(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketConfig.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketConfig.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump: flushes queued payloads and keeps the connection alive with
// pings. One writer goroutine per connection; gorilla allows one concurrent
// writer only.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(constants.WebSocketConfig.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketConfig.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketConfig.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
