// Package testutil provides shared helpers for integration tests.
// Every helper skips the calling test when its environment variable is not
// set, so unit tests run without Postgres or MongoDB.
//
//	TEST_DATABASE_URL  Postgres DSN for the pgx plan store and migrations
//	TEST_MONGO_URI     MongoDB URI for the Mongo plan store
//	TEST_REDIS_URL     Redis URL for the notification relay
//	TEST_NATS_URL      NATS URL (JetStream enabled) for the work queue
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewPool opens a *pgxpool.Pool against TEST_DATABASE_URL and closes it when
// the test finishes.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := requireEnv(t, "TEST_DATABASE_URL")

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("testutil.NewPool: open pool: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("testutil.NewPool: ping: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

// NewSQLDB opens a *sql.DB against TEST_DATABASE_URL through the pgx stdlib
// driver. goose needs database/sql rather than a pool.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenSQLDB(requireEnv(t, "TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// OpenSQLDB opens and pings a *sql.DB for dsn. Callers close it.
func OpenSQLDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// MustOpenSQLDB is OpenSQLDB that panics on error, for TestMain functions
// where no *testing.T is available.
func MustOpenSQLDB(dsn string) *sql.DB {
	db, err := OpenSQLDB(dsn)
	if err != nil {
		panic("testutil.MustOpenSQLDB: " + err.Error())
	}
	return db
}

// NewMongoDatabase connects to TEST_MONGO_URI and returns a database with a
// unique name that is dropped when the test finishes.
func NewMongoDatabase(t *testing.T) *mongo.Database {
	t.Helper()

	uri := requireEnv(t, "TEST_MONGO_URI")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("testutil.NewMongoDatabase: connect: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		t.Fatalf("testutil.NewMongoDatabase: ping: %v", err)
	}

	database := client.Database(fmt.Sprintf("tripplanner_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = database.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return database
}

// NewRedis connects to TEST_REDIS_URL and closes the client when the test
// finishes.
func NewRedis(t *testing.T) *redis.Client {
	t.Helper()

	opts, err := redis.ParseURL(requireEnv(t, "TEST_REDIS_URL"))
	if err != nil {
		t.Fatalf("testutil.NewRedis: parse url: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		t.Fatalf("testutil.NewRedis: ping: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// NewNATS connects to TEST_NATS_URL and drains the connection when the test
// finishes.
func NewNATS(t *testing.T) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(requireEnv(t, "TEST_NATS_URL"))
	if err != nil {
		t.Fatalf("testutil.NewNATS: connect: %v", err)
	}
	t.Cleanup(func() { _ = nc.Drain() })
	return nc
}

// requireEnv returns the named variable, skipping the test when it is unset.
func requireEnv(t *testing.T, name string) string {
	t.Helper()
	v := os.Getenv(name)
	if v == "" {
		t.Skipf("%s not set; skipping integration test", name)
	}
	return v
}
