package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pkordes/tripplanner/internal/domain"
)

// PlansCollection is the Mongo collection name, matching the Postgres table.
const PlansCollection = "travel_plans"

// planDocument is the stored shape. plan_data holds Decimal128 numbers.
type planDocument struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	PlanID      string    `bson:"plan_id"`
	PlanData    any       `bson:"plan_data"`
	FlightInfo  string    `bson:"flight_info,omitempty"`
	AccmoInfo   string    `bson:"accmo_info,omitempty"`
	IsRoundTrip bool      `bson:"is_round_trip"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// mongoPlanRepo is the MongoDB implementation of PlanRepo.
type mongoPlanRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoPlanRepo constructs a PlanRepo backed by the travel_plans
// collection of database.
func NewMongoPlanRepo(database *mongo.Database) PlanRepo {
	return &mongoPlanRepo{coll: database.Collection(PlansCollection), now: time.Now}
}

// EnsureIndexes creates the (user_id, created_at) index used by ListByUser.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(PlansCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("repo.EnsureIndexes: %w", persistence(err))
	}
	return nil
}

func documentID(userID, planID string) string {
	return userID + "#" + planID
}

// Put replaces the whole document, keeping created_at from any earlier write.
func (r *mongoPlanRepo) Put(ctx context.Context, plan domain.TravelPlan) (domain.TravelPlan, error) {
	data, err := ToDecimalDocument(planData(plan))
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Put: %w", persistence(err))
	}

	id := documentID(plan.UserID, plan.PlanID)
	now := r.now().UTC().Truncate(time.Millisecond)
	created := now

	var existing struct {
		CreatedAt time.Time `bson:"created_at"`
	}
	err = r.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"created_at": 1})).Decode(&existing)
	switch {
	case err == nil:
		created = existing.CreatedAt
	case errors.Is(err, mongo.ErrNoDocuments):
	default:
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Put: lookup: %w", persistence(err))
	}

	doc := planDocument{
		ID:          id,
		UserID:      plan.UserID,
		PlanID:      plan.PlanID,
		PlanData:    data,
		FlightInfo:  string(plan.FlightInfo),
		AccmoInfo:   string(plan.LodgingInfo),
		IsRoundTrip: plan.IsRoundTrip,
		CreatedAt:   created,
		UpdatedAt:   now,
	}
	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Put: %w", persistence(err))
	}

	stored, err := fromDocument(doc)
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Put: %w", persistence(err))
	}
	return stored, nil
}

// Get retrieves a plan by its key.
func (r *mongoPlanRepo) Get(ctx context.Context, userID, planID string) (domain.TravelPlan, error) {
	var doc planDocument
	err := r.coll.FindOne(ctx, bson.M{"_id": documentID(userID, planID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Get: %w", persistence(err))
	}
	plan, err := fromDocument(doc)
	if err != nil {
		return domain.TravelPlan{}, fmt.Errorf("repo.MongoPlanRepo.Get: %w", persistence(err))
	}
	return plan, nil
}

// ListByUser returns a page of the user's plans, most recent first.
func (r *mongoPlanRepo) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.TravelPlan, int64, error) {
	filter := bson.M{"user_id": userID}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.MongoPlanRepo.ListByUser: count: %w", persistence(err))
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "plan_id", Value: -1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.MongoPlanRepo.ListByUser: %w", persistence(err))
	}
	defer cur.Close(ctx)

	plans := []domain.TravelPlan{}
	for cur.Next(ctx) {
		var doc planDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("repo.MongoPlanRepo.ListByUser: decode: %w", persistence(err))
		}
		plan, err := fromDocument(doc)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.MongoPlanRepo.ListByUser: %w", persistence(err))
		}
		plans = append(plans, plan)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.MongoPlanRepo.ListByUser: cursor: %w", persistence(err))
	}
	return plans, total, nil
}

// Delete removes a plan by its key.
func (r *mongoPlanRepo) Delete(ctx context.Context, userID, planID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": documentID(userID, planID)})
	if err != nil {
		return fmt.Errorf("repo.MongoPlanRepo.Delete: %w", persistence(err))
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("repo.MongoPlanRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func fromDocument(doc planDocument) (domain.TravelPlan, error) {
	data, err := FromDecimalDocument(doc.PlanData)
	if err != nil {
		return domain.TravelPlan{}, err
	}
	plan := hydrate(data)
	plan.UserID = doc.UserID
	plan.PlanID = doc.PlanID
	plan.IsRoundTrip = doc.IsRoundTrip
	plan.CreatedAt = doc.CreatedAt
	plan.UpdatedAt = doc.UpdatedAt
	if doc.FlightInfo != "" {
		plan.FlightInfo = []byte(doc.FlightInfo)
	}
	if doc.AccmoInfo != "" {
		plan.LodgingInfo = []byte(doc.AccmoInfo)
	}
	return plan, nil
}
