package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pkordes/tripplanner/internal/completion"
	"github.com/pkordes/tripplanner/internal/config"
	"github.com/pkordes/tripplanner/internal/identity"
	"github.com/pkordes/tripplanner/internal/metrics"
	"github.com/pkordes/tripplanner/internal/middleware"
	"github.com/pkordes/tripplanner/internal/queue"
	"github.com/pkordes/tripplanner/internal/repo"
	"github.com/pkordes/tripplanner/internal/service"
)

// ackMargin is added to the completion timeout to get the queue AckWait, so
// a message is never redelivered while its plan is still being built.
const ackMargin = 60 * time.Second

// cleanup runs registered closers in reverse order.
type cleanup []func()

func (c *cleanup) add(f func()) { *c = append(*c, f) }

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newRegistry returns a registry with the process collectors and the
// pipeline metrics registered.
func newRegistry() (*prometheus.Registry, *metrics.Pipeline) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.NewPipeline(reg)
}

// openPlanRepo connects the configured plan store and verifies it is reachable.
func openPlanRepo(ctx context.Context, cfg config.Config, c *cleanup, logger *slog.Logger) (repo.PlanRepo, error) {
	switch cfg.PlanStore {
	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.add(func() { _ = client.Disconnect(context.Background()) })
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		database := client.Database(cfg.MongoDatabase)
		if err := repo.EnsureIndexes(ctx, database); err != nil {
			return nil, err
		}
		logger.Info("plan store connected", "store", cfg.PlanStore, "database", cfg.MongoDatabase)
		return repo.NewMongoPlanRepo(database), nil
	default:
		// New does not open connections; the ping does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		c.add(pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		logger.Info("plan store connected", "store", cfg.PlanStore)
		return repo.NewPlanRepo(pool), nil
	}
}

func newResolver(cfg config.Config, logger *slog.Logger) (identity.Resolver, error) {
	if cfg.AuthMode != config.AuthVerify {
		logger.Warn("identity tokens are not verified", "auth_mode", cfg.AuthMode)
		return identity.NewPermissive(cfg.DevToken, cfg.DevUser, logger), nil
	}
	if cfg.AuthRSAPublicKey != "" {
		return identity.NewVerifyingRSA([]byte(cfg.AuthRSAPublicKey), logger)
	}
	return identity.NewVerifyingHMAC([]byte(cfg.AuthHMACSecret), logger)
}

// newPlanService wires the pipeline: store, completion client and identity.
func newPlanService(ctx context.Context, cfg config.Config, m *metrics.Pipeline, c *cleanup, logger *slog.Logger) (*service.PlanService, error) {
	plans, err := openPlanRepo(ctx, cfg, c, logger)
	if err != nil {
		return nil, err
	}
	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; every plan request will fail")
	}
	llm, err := completion.New(ctx, completion.Config{
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		APIKey:  cfg.GeminiAPIKey,
		Timeout: cfg.CompletionTimeout,
	}, nil, logger)
	if err != nil {
		return nil, err
	}
	return service.NewPlanService(plans, llm, resolver, m, logger), nil
}

// connectQueue connects to NATS and ensures the plan stream.
func connectQueue(ctx context.Context, cfg config.Config, c *cleanup, logger *slog.Logger) (*queue.JetStream, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("tripplanner"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	c.add(func() { _ = nc.Drain() })

	return queue.NewJetStream(ctx, nc, queue.Config{
		Stream:  cfg.QueueStream,
		AckWait: cfg.CompletionTimeout + ackMargin,
	}, logger)
}

// connectRedis returns nil when no REDIS_URL is configured.
func connectRedis(ctx context.Context, cfg config.Config, c *cleanup) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	c.add(func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

// newRateLimiter returns nil when RATE_LIMIT_RPS is 0, which turns limiting off.
func newRateLimiter(cfg config.Config, logger *slog.Logger) *middleware.RateLimiter {
	if cfg.RateLimitRPS == 0 {
		logger.Warn("rate limiting disabled", "reason", "RATE_LIMIT_RPS is 0")
		return nil
	}
	return middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}
