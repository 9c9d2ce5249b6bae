package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/htverse/apiserver/internal/db"
	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

type criterionDocument struct {
	Criterion string  `bson:"criterion"`
	Weightage float64 `bson:"weightage"`
}

type hackathonDocument struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	Title                string               `bson:"title"`
	Description          string               `bson:"description"`
	StartDate            time.Time            `bson:"startDate"`
	EndDate              time.Time            `bson:"endDate"`
	RegistrationDeadline time.Time            `bson:"registrationDeadline"`
	MaxTeamSize          int                  `bson:"maxTeamSize"`
	PrizePool            float64              `bson:"prizePool"`
	Categories           []string             `bson:"categories"`
	Organizer            primitive.ObjectID   `bson:"organizer"`
	Participants         []primitive.ObjectID `bson:"participants"`
	MaxParticipants      int                  `bson:"maxParticipants"`
	IsActive             bool                 `bson:"isActive"`
	BannerImage          string               `bson:"bannerImage"`
	Rules                []string             `bson:"rules"`
	JudgesCriteria       []criterionDocument  `bson:"judgesCriteria"`
	Status               string               `bson:"status"`
	CreatedAt            time.Time            `bson:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt"`
}

func (d hackathonDocument) toHackathon() types.Hackathon {
	h := types.Hackathon{
		ID:                   d.ID.Hex(),
		Title:                d.Title,
		Description:          d.Description,
		StartDate:            d.StartDate,
		EndDate:              d.EndDate,
		RegistrationDeadline: d.RegistrationDeadline,
		MaxTeamSize:          d.MaxTeamSize,
		PrizePool:            d.PrizePool,
		Categories:           make([]types.Category, 0, len(d.Categories)),
		Organizer:            d.Organizer.Hex(),
		Participants:         make([]string, 0, len(d.Participants)),
		MaxParticipants:      d.MaxParticipants,
		IsActive:             d.IsActive,
		BannerImage:          d.BannerImage,
		Rules:                append([]string{}, d.Rules...),
		JudgesCriteria:       make([]types.JudgingCriterion, 0, len(d.JudgesCriteria)),
		Status:               types.Status(d.Status),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	for _, c := range d.Categories {
		h.Categories = append(h.Categories, types.Category(c))
	}
	for _, p := range d.Participants {
		h.Participants = append(h.Participants, p.Hex())
	}
	for _, c := range d.JudgesCriteria {
		h.JudgesCriteria = append(h.JudgesCriteria, types.JudgingCriterion{Criterion: c.Criterion, Weightage: c.Weightage})
	}
	return h
}

// editableFields are the fields an update may $set. Banner and status have
// their own writers.
func editableFields(h types.Hackathon) bson.M {
	categories := make([]string, 0, len(h.Categories))
	for _, c := range h.Categories {
		categories = append(categories, string(c))
	}
	criteria := make([]criterionDocument, 0, len(h.JudgesCriteria))
	for _, c := range h.JudgesCriteria {
		criteria = append(criteria, criterionDocument{Criterion: c.Criterion, Weightage: c.Weightage})
	}
	rules := h.Rules
	if rules == nil {
		rules = []string{}
	}
	return bson.M{
		"title":                h.Title,
		"description":          h.Description,
		"startDate":            h.StartDate,
		"endDate":              h.EndDate,
		"registrationDeadline": h.RegistrationDeadline,
		"maxTeamSize":          h.MaxTeamSize,
		"prizePool":            h.PrizePool,
		"categories":           categories,
		"maxParticipants":      h.MaxParticipants,
		"isActive":             h.IsActive,
		"rules":                rules,
		"judgesCriteria":       criteria,
	}
}

var hackathonSorts = map[store.HackathonSort]bson.D{
	store.SortNewest:   {{Key: "createdAt", Value: -1}},
	store.SortOldest:   {{Key: "createdAt", Value: 1}},
	store.SortPrize:    {{Key: "prizePool", Value: -1}},
	store.SortDeadline: {{Key: "registrationDeadline", Value: 1}},
}

// HackathonRepository handles persistence for hackathons in a single
// document per hackathon; participants are an embedded array.
type HackathonRepository struct {
	coll *mongo.Collection
}

func NewHackathonRepository(database *mongo.Database) *HackathonRepository {
	return &HackathonRepository{coll: database.Collection(db.HackathonsCollection)}
}

func hackathonFilter(q store.HackathonQuery) bson.M {
	filter := bson.M{}
	if q.Category != nil {
		filter["categories"] = bson.M{"$in": bson.A{string(*q.Category)}}
	}
	if q.Status != nil {
		filter["status"] = string(*q.Status)
	}
	if q.IsActive != nil {
		filter["isActive"] = *q.IsActive
	}
	return filter
}

func (r *HackathonRepository) List(ctx context.Context, q store.HackathonQuery) ([]types.Hackathon, int, error) {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	sort, ok := hackathonSorts[q.Sort]
	if !ok {
		sort = hackathonSorts[store.SortNewest]
	}

	filter := hackathonFilter(q)
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find hackathons: %w", err)
	}
	var docs []hackathonDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode hackathons: %w", err)
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count hackathons: %w", err)
	}

	hackathons := make([]types.Hackathon, 0, len(docs))
	for _, doc := range docs {
		hackathons = append(hackathons, doc.toHackathon())
	}
	return hackathons, int(total), nil
}

func (r *HackathonRepository) Count(ctx context.Context, q store.HackathonQuery) (int, error) {
	total, err := r.coll.CountDocuments(ctx, hackathonFilter(q))
	if err != nil {
		return 0, fmt.Errorf("count hackathons: %w", err)
	}
	return int(total), nil
}

func (r *HackathonRepository) Get(ctx context.Context, id string) (types.Hackathon, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}
	var doc hackathonDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Hackathon{}, store.ErrNotFound
		}
		return types.Hackathon{}, fmt.Errorf("find hackathon: %w", err)
	}
	return doc.toHackathon(), nil
}

func (r *HackathonRepository) Create(ctx context.Context, h types.Hackathon) (types.Hackathon, error) {
	organizer, err := primitive.ObjectIDFromHex(h.Organizer)
	if err != nil {
		return types.Hackathon{}, fmt.Errorf("invalid organizer id %q: %w", h.Organizer, err)
	}

	now := time.Now().UTC()
	fields := editableFields(h)
	fields["organizer"] = organizer
	fields["participants"] = []primitive.ObjectID{}
	fields["bannerImage"] = h.BannerImage
	fields["status"] = string(h.Status)
	fields["createdAt"] = now
	fields["updatedAt"] = now

	result, err := r.coll.InsertOne(ctx, fields)
	if err != nil {
		return types.Hackathon{}, fmt.Errorf("insert hackathon: %w", err)
	}
	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return types.Hackathon{}, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}

	h.ID = oid.Hex()
	h.Participants = []string{}
	h.CreatedAt = now
	h.UpdatedAt = now
	return h, nil
}

// Update persists every editable field in one conditional findOneAndUpdate.
// The filter only matches while the registered participants fit the new
// maxParticipants and, when a non-cancelled status is written, while the
// stored record is not cancelled. Participants, organizer and banner are
// left untouched.
func (r *HackathonRepository) Update(ctx context.Context, h types.Hackathon, guard store.UpdateGuard) (types.Hackathon, error) {
	oid, err := primitive.ObjectIDFromHex(h.ID)
	if err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}

	filter := bson.M{
		"_id": oid,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$participants", bson.A{}}}},
			h.MaxParticipants,
		}},
	}
	fields := editableFields(h)
	fields["updatedAt"] = time.Now().UTC()
	if guard.SetStatus {
		fields["status"] = string(h.Status)
		if h.Status != types.StatusCancelled {
			filter["status"] = bson.M{"$ne": string(types.StatusCancelled)}
		}
	}
	return r.guardedUpdate(ctx, filter, bson.M{"$set": fields})
}

// SetStatus stores a derived status. Cancelled records are never touched.
func (r *HackathonRepository) SetStatus(ctx context.Context, id string, status types.Status) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	filter := bson.M{"_id": oid, "status": bson.M{"$ne": string(types.StatusCancelled)}}
	if _, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"status": string(status)}}); err != nil {
		return fmt.Errorf("update hackathon status: %w", err)
	}
	return nil
}

func (r *HackathonRepository) SetBanner(ctx context.Context, id, key string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	update := bson.M{"$set": bson.M{"bannerImage": key, "updatedAt": time.Now().UTC()}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("update hackathon banner: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *HackathonRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrNotFound
	}
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete hackathon: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddParticipant pushes guard.UserID in one conditional findOneAndUpdate:
// the filter only matches while the hackathon is active, the deadline has
// not passed, the user is absent and there is free capacity.
func (r *HackathonRepository) AddParticipant(ctx context.Context, id string, guard store.RegisterGuard) (types.Hackathon, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}
	uid, err := primitive.ObjectIDFromHex(guard.UserID)
	if err != nil {
		return types.Hackathon{}, fmt.Errorf("invalid user id %q: %w", guard.UserID, err)
	}

	filter := bson.M{
		"_id":                  oid,
		"isActive":             true,
		"registrationDeadline": bson.M{"$gte": guard.Now},
		"participants":         bson.M{"$ne": uid},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$participants", bson.A{}}}},
			"$maxParticipants",
		}},
	}
	update := bson.M{
		"$push": bson.M{"participants": uid},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// RemoveParticipant pulls guard.UserID while the hackathon has not started.
func (r *HackathonRepository) RemoveParticipant(ctx context.Context, id string, guard store.UnregisterGuard) (types.Hackathon, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Hackathon{}, store.ErrNotFound
	}
	uid, err := primitive.ObjectIDFromHex(guard.UserID)
	if err != nil {
		return types.Hackathon{}, store.ErrConditionFailed
	}

	filter := bson.M{
		"_id":          oid,
		"participants": uid,
		"startDate":    bson.M{"$gt": guard.Now},
	}
	update := bson.M{
		"$pull": bson.M{"participants": uid},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	return r.guardedUpdate(ctx, filter, update)
}

// guardedUpdate reports ErrConditionFailed when the filter matched nothing;
// callers re-read to tell a missing record from a failed precondition.
func (r *HackathonRepository) guardedUpdate(ctx context.Context, filter, update bson.M) (types.Hackathon, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc hackathonDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Hackathon{}, store.ErrConditionFailed
		}
		return types.Hackathon{}, fmt.Errorf("update hackathon: %w", err)
	}
	return doc.toHackathon(), nil
}
