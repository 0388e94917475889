// Package repo contains the plan store. PlanRepo is the interface the service
// layer depends on; there is a Postgres implementation (the default) and a
// MongoDB one. No business logic lives here, only queries and type mapping.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pkordes/tripplanner/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PlanRepo defines the persistence operations for travel plans.
// Plans are keyed by (user id, plan id).
type PlanRepo interface {
	// Put upserts plan. A second Put with the same key replaces every stored
	// field; created_at survives, updated_at moves. The stored record is
	// returned with both timestamps populated.
	Put(ctx context.Context, plan domain.TravelPlan) (domain.TravelPlan, error)

	// Get retrieves one plan. Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, userID, planID string) (domain.TravelPlan, error)

	// ListByUser returns one page of the user's plans, newest first, plus the
	// total number of plans the user has.
	ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.TravelPlan, int64, error)

	// Delete removes a plan. Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, userID, planID string) error
}

// pgPlanRepo is the Postgres implementation of PlanRepo.
// plan_data is JSONB, whose numbers are stored as exact numerics.
type pgPlanRepo struct {
	db db
}

// NewPlanRepo constructs a PlanRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPlanRepo(db db) PlanRepo {
	return &pgPlanRepo{db: db}
}

const planColumns = `user_id, plan_id, plan_data, flight_info, accmo_info, is_round_trip, created_at, updated_at`

// Put inserts or replaces a plan row.
func (r *pgPlanRepo) Put(ctx context.Context, plan domain.TravelPlan) (domain.TravelPlan, error) {
	const q = `
		INSERT INTO travel_plans (user_id, plan_id, plan_data, flight_info, accmo_info, is_round_trip)
		VALUES (@user_id, @plan_id, @plan_data, @flight_info, @accmo_info, @is_round_trip)
		ON CONFLICT (user_id, plan_id) DO UPDATE
		SET plan_data     = EXCLUDED.plan_data,
		    flight_info   = EXCLUDED.flight_info,
		    accmo_info    = EXCLUDED.accmo_info,
		    is_round_trip = EXCLUDED.is_round_trip,
		    updated_at    = now()
		RETURNING ` + planColumns

	args := pgx.NamedArgs{
		"user_id":       plan.UserID,
		"plan_id":       plan.PlanID,
		"plan_data":     planData(plan),
		"flight_info":   nullableText(plan.FlightInfo),
		"accmo_info":    nullableText(plan.LodgingInfo),
		"is_round_trip": plan.IsRoundTrip,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanPlan(row)
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.PlanRepo.Put: %w", persistence(err))
	}
	return result, nil
}

// Get retrieves a plan by its key.
func (r *pgPlanRepo) Get(ctx context.Context, userID, planID string) (domain.TravelPlan, error) {
	const q = `
		SELECT ` + planColumns + `
		FROM travel_plans
		WHERE user_id = @user_id AND plan_id = @plan_id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"user_id": userID, "plan_id": planID})
	result, err := scanPlan(row)
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.PlanRepo.Get: %w", persistence(err))
	}
	return result, nil
}

// ListByUser returns a page of the user's plans, most recent first.
func (r *pgPlanRepo) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.TravelPlan, int64, error) {
	const countQ = `SELECT count(*) FROM travel_plans WHERE user_id = @user_id`

	var total int64
	if err := r.db.QueryRow(ctx, countQ, pgx.NamedArgs{"user_id": userID}).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PlanRepo.ListByUser: count: %w", persistence(err))
	}

	const q = `
		SELECT ` + planColumns + `
		FROM travel_plans
		WHERE user_id = @user_id
		ORDER BY created_at DESC, plan_id DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"user_id": userID,
		"limit":   p.Limit,
		"offset":  p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PlanRepo.ListByUser: %w", persistence(err))
	}
	defer rows.Close()

	plans := []domain.TravelPlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.PlanRepo.ListByUser: scan: %w", persistence(err))
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.PlanRepo.ListByUser: rows: %w", persistence(err))
	}
	return plans, total, nil
}

// Delete removes a plan by its key.
func (r *pgPlanRepo) Delete(ctx context.Context, userID, planID string) error {
	const q = `DELETE FROM travel_plans WHERE user_id = @user_id AND plan_id = @plan_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"user_id": userID, "plan_id": planID})
	if err != nil {
		return fmt.Errorf("repo.PlanRepo.Delete: %w", persistence(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PlanRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPlan maps one row into a domain.TravelPlan, decoding plan_data back
// into days.
func scanPlan(s scanner) (domain.TravelPlan, error) {
	var (
		userID, planID        string
		data                  []byte
		flightInfo, accmoInfo *string
		isRoundTrip           bool
		createdAt, updatedAt  time.Time
	)
	err := s.Scan(&userID, &planID, &data, &flightInfo, &accmoInfo, &isRoundTrip, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TravelPlan{}, domain.ErrNotFound
		}
		return domain.TravelPlan{}, err
	}
	plan := hydrate(data)
	plan.UserID = userID
	plan.PlanID = planID
	plan.IsRoundTrip = isRoundTrip
	plan.CreatedAt = createdAt
	plan.UpdatedAt = updatedAt
	if flightInfo != nil {
		plan.FlightInfo = []byte(*flightInfo)
	}
	if accmoInfo != nil {
		plan.LodgingInfo = []byte(*accmoInfo)
	}
	return plan, nil
}

// hydrate rebuilds days from a stored plan document. A document that is not
// a plan (an unparsed model response) leaves the days empty; Data still
// carries it.
func hydrate(data []byte) domain.TravelPlan {
	plan, err := domain.DecodePlan(data)
	if err != nil {
		plan = domain.TravelPlan{}
	}
	plan.Data = append([]byte(nil), data...)
	return plan
}

// planData is the document written to plan_data.
func planData(plan domain.TravelPlan) []byte {
	if len(bytes.TrimSpace(plan.Data)) == 0 {
		return []byte("{}")
	}
	return plan.Data
}

func nullableText(raw []byte) *string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

// persistence tags err as a store failure unless it is a not-found.
func persistence(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
