package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/tripplanner/internal/domain"
)

// RelayChannel is the Redis pub/sub channel notifications travel on.
const RelayChannel = "travel-notifications"

// envelope is the relayed message. The notification stays encoded so
// plan numbers cross the relay untouched.
type envelope struct {
	ConnectionID string          `json:"connectionId"`
	Notification json.RawMessage `json:"notification"`
}

// Deliverer accepts encoded notifications for local connections.
type Deliverer interface {
	Deliver(ctx context.Context, connectionID string, payload []byte) error
}

// RedisRelay publishes notifications to Redis and forwards relayed
// notifications to the local hub.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisRelay creates a relay on RelayChannel.
func NewRedisRelay(rdb *redis.Client, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: RelayChannel, logger: logger}
}

// Notify publishes n for whichever process holds connectionID.
func (r *RedisRelay) Notify(ctx context.Context, connectionID string, n domain.Notification) error {
	inner, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify.RedisRelay.Notify: %w", err)
	}
	data, err := json.Marshal(envelope{ConnectionID: connectionID, Notification: inner})
	if err != nil {
		return fmt.Errorf("notify.RedisRelay.Notify: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("notify.RedisRelay.Notify: publish: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and hands every message to local
// until ctx ends. Connections owned by other processes are skipped quietly.
func (r *RedisRelay) Run(ctx context.Context, local Deliverer) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription confirmation so publishes made after Run
	// returns from setup are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("notify.RedisRelay.Run: subscribe: %w", err)
	}
	r.logger.Info("notification relay listening", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warn("relay payload dropped", "error", err)
				continue
			}
			err := local.Deliver(ctx, env.ConnectionID, env.Notification)
			switch {
			case err == nil:
			case errors.Is(err, ErrGone):
				r.logger.Debug("relay target not local", "connection_id", env.ConnectionID)
			default:
				r.logger.Warn("relay delivery failed", "connection_id", env.ConnectionID, "error", err)
			}
		}
	}
}

var (
	_ Notifier  = (*RedisRelay)(nil)
	_ Deliverer = (*Hub)(nil)
)
