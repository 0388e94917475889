// Package queue carries plan requests from the WebSocket enqueue handler to
// the worker over a durable NATS JetStream stream.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/pkordes/tripplanner/internal/domain"
)

// SubjectPrefix roots every subject of the stream.
const SubjectPrefix = "travel.plans"

// Defaults applied by NewJetStream when the Config leaves a field zero.
const (
	DefaultStream    = "TRAVEL_PLANS"
	DefaultDurable   = "plan-worker"
	DefaultAckWait   = 180 * time.Second
	DefaultBatch     = 1
	DefaultFetchWait = 5 * time.Second
	// DefaultFetchBackoff is the pause after a failed fetch.
	DefaultFetchBackoff = time.Second
)

// Publisher writes one unit of work to the queue.
type Publisher interface {
	Publish(ctx context.Context, msg domain.QueueMessage) error
}

// Delivery is one fetched message awaiting acknowledgement.
// jetstream.Msg satisfies it.
type Delivery interface {
	Data() []byte
	Ack() error
	Nak() error
}

// BatchHandler processes one fetched batch. It owns acknowledgement.
type BatchHandler func(ctx context.Context, batch []Delivery)

// Config holds stream and consumer settings.
type Config struct {
	Stream  string
	Durable string
	// AckWait must exceed the completion timeout or long plans are redelivered.
	AckWait    time.Duration
	MaxDeliver int
	Batch        int
	FetchWait    time.Duration
	FetchBackoff time.Duration
}

// JetStream is the durable queue.
type JetStream struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	cfg    Config
	logger *slog.Logger
}

// Subject returns the subject a message of kind is published on.
func Subject(kind string) string {
	if kind == "" {
		kind = domain.KindCreate
	}
	return SubjectPrefix + "." + kind
}

// NewJetStream ensures the stream exists and returns a queue bound to it.
func NewJetStream(ctx context.Context, nc *nats.Conn, cfg Config, logger *slog.Logger) (*JetStream, error) {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Durable == "" {
		cfg.Durable = DefaultDurable
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = DefaultAckWait
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = 3
	}
	cfg = cfg.withFetchDefaults()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("queue.NewJetStream: %w", err)
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{SubjectPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("queue.NewJetStream: stream %s: %w", cfg.Stream, err)
	}
	return &JetStream{js: js, stream: stream, cfg: cfg, logger: logger}, nil
}

func (c Config) withFetchDefaults() Config {
	if c.Batch <= 0 {
		c.Batch = DefaultBatch
	}
	if c.FetchWait <= 0 {
		c.FetchWait = DefaultFetchWait
	}
	if c.FetchBackoff <= 0 {
		c.FetchBackoff = DefaultFetchBackoff
	}
	return c
}

// Publish writes msg with a unique Nats-Msg-Id so a retried publish is
// de-duplicated by the server.
func (q *JetStream) Publish(ctx context.Context, msg domain.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue.JetStream.Publish: %w", err)
	}
	ack, err := q.js.Publish(ctx, Subject(msg.Kind), data, jetstream.WithMsgID(uuid.NewString()))
	if err != nil {
		return fmt.Errorf("queue.JetStream.Publish: %w", err)
	}
	q.logger.Debug("queue message published",
		"connection_id", msg.ConnectionID,
		"kind", msg.Kind,
		"seq", ack.Sequence,
	)
	return nil
}

// Consume fetches batches and hands them to handle until ctx ends.
func (q *JetStream) Consume(ctx context.Context, handle BatchHandler) error {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       q.cfg.Durable,
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait,
		MaxDeliver:    q.cfg.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("queue.JetStream.Consume: consumer: %w", err)
	}
	q.logger.Info("queue consumer started",
		"stream", q.cfg.Stream,
		"durable", q.cfg.Durable,
		"batch", q.cfg.Batch,
	)

	return FetchLoop(ctx, consumer, q.cfg, q.logger, handle)
}

// FetchLoop fetches batches from consumer and hands them to handle until ctx
// ends. A failed fetch is retried after cfg.FetchBackoff.
func FetchLoop(ctx context.Context, consumer jetstream.Consumer, cfg Config, logger *slog.Logger, handle BatchHandler) error {
	cfg = cfg.withFetchDefaults()
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.FetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Debug("queue fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.FetchBackoff):
			}
			continue
		}

		var batch []Delivery
		for m := range msgs.Messages() {
			batch = append(batch, m)
		}
		if err := msgs.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
			logger.Warn("queue fetch error", "error", err)
		}
		if len(batch) > 0 {
			handle(ctx, batch)
		}
	}
}

var _ Publisher = (*JetStream)(nil)
