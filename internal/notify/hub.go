// Package notify pushes notifications to open WebSocket connections.
//
// A Hub owns the connections of this process. When the worker runs in a
// different process than the WebSocket server, RedisRelay carries
// notifications between them.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/tripplanner/internal/domain"
)

// ErrGone is returned when the target connection is not registered here.
var ErrGone = errors.New("connection gone")

// ErrBackpressure is returned when a connection's send buffer is full.
var ErrBackpressure = errors.New("connection send buffer full")

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 16 << 20
)

// Notifier delivers one notification to one connection.
type Notifier interface {
	Notify(ctx context.Context, connectionID string, n domain.Notification) error
}

// Client is one registered connection.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// ID returns the connection identifier assigned at Attach.
func (c *Client) ID() string { return c.id }

// Hub is the registry of live connections keyed by connection id.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*Client
	logger  *slog.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

// Attach registers conn under a fresh connection id and starts its write pump.
func (h *Hub) Attach(conn *websocket.Conn) *Client {
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	go h.writePump(c)
	h.logger.Debug("websocket attached", "connection_id", c.id)
	return c
}

// Detach unregisters c and stops its write pump. Safe to call twice.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("websocket detached", "connection_id", c.id)
}

// Len reports the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Notify encodes n and queues it on the connection's send buffer.
func (h *Hub) Notify(ctx context.Context, connectionID string, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify.Hub.Notify: %w", err)
	}
	return h.Deliver(ctx, connectionID, payload)
}

// Deliver queues an already encoded notification. It never blocks.
func (h *Hub) Deliver(_ context.Context, connectionID string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return fmt.Errorf("notify.Hub.Deliver %s: %w", connectionID, ErrGone)
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("notify.Hub.Deliver %s: %w", connectionID, ErrBackpressure)
	}
}

// ReadLoop reads text frames from c and passes each to handle until the
// connection closes or ctx ends. It detaches c before returning; the write
// pump then sends a close frame and closes the connection.
func (h *Hub) ReadLoop(ctx context.Context, c *Client, handle func(ctx context.Context, frame []byte)) {
	defer h.Detach(c)

	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "connection_id", c.id, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		handle(ctx, frame)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Warn("websocket write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ Notifier = (*Hub)(nil)
