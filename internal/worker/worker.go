// Package worker consumes queued plan requests and reports progress and the
// final result to the requesting connection.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pkordes/tripplanner/internal/domain"
	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/notify"
	"github.com/pkordes/tripplanner/internal/queue"
	"github.com/pkordes/tripplanner/internal/service"
)

// Status messages sent before the pipeline starts.
const (
	StatusCreateReceived = "Travel plan request received. Starting to process it..."
	StatusModifyReceived = "Modification request received. Starting AI processing..."
)

// Terminal failure messages.
const (
	MessageCreateFailed = "The server failed while creating the travel plan."
	MessageModifyFailed = "The server failed while modifying the travel plan."
)

// Generator is the pipeline the worker drives.
type Generator interface {
	Generate(ctx context.Context, req domain.TravelRequest, progress func(string)) (service.Outcome, error)
}

// Worker turns queue messages into pipeline runs.
type Worker struct {
	plans    Generator
	notifier notify.Notifier
	metrics  *metrics.Pipeline
	logger   *slog.Logger
}

// New constructs a Worker. m may be nil.
func New(plans Generator, notifier notify.Notifier, m *metrics.Pipeline, logger *slog.Logger) *Worker {
	return &Worker{plans: plans, notifier: notifier, metrics: m, logger: logger}
}

// HandleBatch processes batch in order. A failing message never stops the
// ones after it.
func (w *Worker) HandleBatch(ctx context.Context, batch []queue.Delivery) {
	for _, d := range batch {
		w.handle(ctx, d)
	}
}

func (w *Worker) handle(ctx context.Context, d queue.Delivery) {
	var msg domain.QueueMessage
	if err := json.Unmarshal(d.Data(), &msg); err != nil || msg.ConnectionID == "" {
		// Nobody to tell. Let the stream's delivery limit dispose of it.
		w.logger.Error("queue message undecodable", "error", err, "bytes", len(d.Data()))
		w.metrics.ObserveMessage(metrics.OutcomeInvalid)
		if err := d.Nak(); err != nil {
			w.logger.Warn("queue nak failed", "error", err)
		}
		return
	}

	outcome := w.Process(ctx, msg)
	w.metrics.ObserveMessage(outcome)

	// Failed plans are acked too; the client already has its error notification.
	if err := d.Ack(); err != nil {
		w.logger.Warn("queue ack failed", "connection_id", msg.ConnectionID, "error", err)
	}
}

// Process runs one message through the pipeline and sends one terminal
// notification. It returns the metrics outcome.
func (w *Worker) Process(ctx context.Context, msg domain.QueueMessage) string {
	log := w.logger.With("connection_id", msg.ConnectionID)

	req, err := domain.ParseTravelRequest(msg.RequestData)
	modify := msg.Kind == domain.KindModify || (err == nil && req.IsModification())

	received, failed := StatusCreateReceived, MessageCreateFailed
	if modify {
		received, failed = StatusModifyReceived, MessageModifyFailed
	}
	w.send(ctx, msg.ConnectionID, domain.StatusUpdate(received))

	if err != nil {
		w.send(ctx, msg.ConnectionID, domain.ErrorNotification(failed, err))
		return metrics.OutcomeInvalid
	}
	if modify && !req.IsModification() {
		err := fmt.Errorf("%w: modification request without plans", domain.ErrValidation)
		w.send(ctx, msg.ConnectionID, domain.ErrorNotification(failed, err))
		return metrics.OutcomeInvalid
	}

	out, err := w.plans.Generate(ctx, req, func(status string) {
		w.send(ctx, msg.ConnectionID, domain.StatusUpdate(status))
	})
	if err != nil {
		log.Error("queued plan failed", "error", err)
		w.send(ctx, msg.ConnectionID, domain.ErrorNotification(failed, err))
		if errors.Is(err, domain.ErrValidation) {
			return metrics.OutcomeInvalid
		}
		return metrics.OutcomeError
	}

	w.send(ctx, msg.ConnectionID, Terminal(out))
	if out.Warning != "" {
		return metrics.OutcomeWarning
	}
	return metrics.OutcomeOK
}

// Terminal builds the success notification for out.
func Terminal(out service.Outcome) domain.Notification {
	id := out.Plan.PlanID
	if out.Mode == service.ModeModify {
		roundTrip := out.Plan.IsRoundTrip
		return domain.Notification{
			Action:      domain.ActionPlanModified,
			Message:     fmt.Sprintf("The travel plan was modified by AI. (ID: %s)", id),
			PlanID:      id,
			Plan:        out.View,
			IsRoundTrip: &roundTrip,
		}
	}
	return domain.Notification{
		Action:      domain.ActionPlanCreated,
		Message:     fmt.Sprintf("Travel plan created! ID: %s", id),
		PlanID:      id,
		RedirectURL: "/planner/" + id,
		Warning:     out.Warning,
	}
}

// send is best-effort: a gone connection is logged, never retried.
func (w *Worker) send(ctx context.Context, connectionID string, n domain.Notification) {
	if err := w.notifier.Notify(ctx, connectionID, n); err != nil {
		w.logger.Warn("notification not delivered",
			"connection_id", connectionID,
			"action", n.Action,
			"error", err,
		)
	}
}
