package testutil_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/migrations"
	"github.com/pkordes/tripplanner/testutil"
)

// Runs against TEST_DATABASE_URL; skipped without it.
func TestMigrations_UpAndDown(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err)

	// The repo tests may have migrated the shared database already.
	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err)

	applied, err := provider.Up(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	assert.True(t, relationExists(t, db, "travel_plans"))
	assert.True(t, relationExists(t, db, "travel_plans_user_created_idx"))
	assert.Equal(t, "jsonb", columnType(t, db, "travel_plans", "plan_data"))
	assert.Equal(t, "boolean", columnType(t, db, "travel_plans", "is_round_trip"))

	_, err = provider.DownTo(ctx, 0)
	require.NoError(t, err)
	assert.False(t, relationExists(t, db, "travel_plans"))
}

// A plan is keyed by owner and id, so the same id under two users is two rows.
func TestMigrations_PlanKeyIsPerUser(t *testing.T) {
	db := testutil.NewSQLDB(t)
	ctx := context.Background()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err)
	_, err = provider.Up(ctx)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO travel_plans (user_id, plan_id) VALUES ($1, $2)`
	_, err = tx.ExecContext(ctx, insert, "a@example.com", "plan-1")
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, insert, "b@example.com", "plan-1")
	require.NoError(t, err)

	var data string
	require.NoError(t, tx.QueryRowContext(ctx,
		`SELECT plan_data::text FROM travel_plans WHERE user_id = $1`, "a@example.com").Scan(&data))
	assert.Equal(t, "{}", data)

	_, err = tx.ExecContext(ctx, insert, "a@example.com", "plan-1")
	assert.Error(t, err, "duplicate key")
}

// ---- helpers ---------------------------------------------------------------

func relationExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var ok bool
	err := db.QueryRowContext(context.Background(),
		`SELECT to_regclass('public.' || $1) IS NOT NULL`, name).Scan(&ok)
	require.NoError(t, err)
	return ok
}

func columnType(t *testing.T, db *sql.DB, table, column string) string {
	t.Helper()
	var typ string
	err := db.QueryRowContext(context.Background(), `
		SELECT data_type FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2`,
		table, column).Scan(&typ)
	require.NoError(t, err)
	return typ
}
