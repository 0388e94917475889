// Package handler implements the HTTP surface of the travel planner: the
// synchronous plan endpoint, the read surface over stored plans, and the
// WebSocket endpoint that enqueues plan requests for the worker.
// All handlers are methods on Server and share its dependencies.
package handler

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/notify"
	"github.com/pkordes/tripplanner/internal/queue"
	"github.com/pkordes/tripplanner/internal/service"
)

// PlanServicer defines the plan operations the handlers depend on.
// Defined here, in the consumer package, so tests can inject a mock.
type PlanServicer interface {
	Generate(ctx context.Context, req domain.TravelRequest, progress func(string)) (service.Outcome, error)
	Get(ctx context.Context, token, planID string) (domain.TravelPlan, error)
	List(ctx context.Context, token string, p domain.PaginationParams) ([]domain.TravelPlan, int64, error)
	Delete(ctx context.Context, token, planID string) error
}

// Connections is the live WebSocket registry. *notify.Hub satisfies it.
type Connections interface {
	notify.Notifier
	Attach(conn *websocket.Conn) *notify.Client
	ReadLoop(ctx context.Context, c *notify.Client, handle func(ctx context.Context, frame []byte))
}

// Server holds the dependencies shared by every handler.
type Server struct {
	plans  PlanServicer
	queue  queue.Publisher
	conns  Connections
	logger *slog.Logger
}

// NewServer constructs the Server. queue and conns may be nil when the
// process serves only the synchronous surface; /ws then answers 503.
func NewServer(plans PlanServicer, q queue.Publisher, conns Connections, logger *slog.Logger) *Server {
	return &Server{plans: plans, queue: q, conns: conns, logger: logger}
}

var _ Connections = (*notify.Hub)(nil)
