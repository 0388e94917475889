package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pkordes/tripplanner/internal/domain"
)

// Acknowledgements and failures sent on the WebSocket before the worker
// takes over.
const (
	MessageRequestReceived      = "Request received. The AI is starting to build your plan."
	MessageModificationReceived = "Modification request received. The AI is starting to modify your plan."
	MessageInvalidFrame         = "The request format is invalid."
	MessageEnqueueFailed        = "The server failed while handling the request."
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocket handles GET /ws. The connection gets an id, is told it with a
// "connected" notification, and then every inbound text frame is enqueued as
// one plan request. The handler returns when the connection closes.
func (s *Server) WebSocket(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil || s.conns == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "Asynchronous planning is not enabled."})
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := s.conns.Attach(conn)
	s.logger.Info("websocket connected", "connection_id", c.ID())
	s.send(r.Context(), c.ID(), domain.Notification{Action: domain.ActionConnected, ConnectionID: c.ID()})

	s.conns.ReadLoop(r.Context(), c, func(ctx context.Context, frame []byte) {
		_ = s.Enqueue(ctx, c.ID(), frame)
	})
	s.logger.Info("websocket disconnected", "connection_id", c.ID())
}

// inboundFrame is the routing part of a client frame. The whole frame is the
// request payload.
type inboundFrame struct {
	Action string `json:"action"`
}

// Enqueue validates one client frame, writes it to the queue and
// acknowledges it. Every failure is also reported to the connection.
func (s *Server) Enqueue(ctx context.Context, connectionID string, frame []byte) error {
	log := s.logger.With("connection_id", connectionID)

	kind, err := frameKind(frame)
	if err != nil {
		log.Warn("websocket frame rejected", "error", err)
		s.send(ctx, connectionID, domain.ErrorNotification(MessageInvalidFrame, err))
		return err
	}

	msg := domain.QueueMessage{
		ConnectionID: connectionID,
		RequestData:  json.RawMessage(bytes.TrimSpace(frame)),
		Kind:         kind,
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		log.Error("enqueue failed", "error", err)
		s.send(ctx, connectionID, domain.ErrorNotification(MessageEnqueueFailed, err))
		return fmt.Errorf("handler.Server.Enqueue: %w", err)
	}
	log.Info("plan request enqueued", "kind", kind, "bytes", len(frame))

	ack := domain.Notification{Action: domain.ActionRequestReceived, Message: MessageRequestReceived}
	if kind == domain.KindModify {
		ack = domain.Notification{Action: domain.ActionModificationRequestReceived, Message: MessageModificationReceived}
	}
	s.send(ctx, connectionID, ack)
	return nil
}

// frameKind rejects frames that are not a JSON object or carry nothing but
// the routing action, and returns the queue kind of the rest.
func frameKind(frame []byte) (string, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty request body", domain.ErrValidation)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", fmt.Errorf("%w: request body is not a JSON object: %v", domain.ErrValidation, err)
	}
	var head inboundFrame
	_ = json.Unmarshal(trimmed, &head)
	delete(fields, "action")
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty request body", domain.ErrValidation)
	}
	if plans, ok := fields["plans"]; ok && !bytes.Equal(bytes.TrimSpace(plans), []byte("null")) {
		return domain.KindModify, nil
	}
	switch head.Action {
	case "modify", "requestPlanModification":
		return domain.KindModify, nil
	}
	return domain.KindCreate, nil
}

func (s *Server) send(ctx context.Context, connectionID string, n domain.Notification) {
	if err := s.conns.Notify(ctx, connectionID, n); err != nil {
		s.logger.Warn("notification not delivered", "connection_id", connectionID, "action", n.Action, "error", err)
	}
}
