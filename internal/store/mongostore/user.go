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

type userDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	Password       string             `bson:"password"`
	Role           string             `bson:"role"`
	College        string             `bson:"college"`
	Phone          string             `bson:"phone"`
	Skills         []string           `bson:"skills"`
	IsVerified     bool               `bson:"isVerified"`
	ProfilePicture string             `bson:"profilePicture"`
	CreatedAt      time.Time          `bson:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt"`
}

func (d userDocument) toUser() types.User {
	skills := d.Skills
	if skills == nil {
		skills = []string{}
	}
	return types.User{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   d.Password,
		Role:           types.Role(d.Role),
		College:        d.College,
		Phone:          d.Phone,
		Skills:         skills,
		IsVerified:     d.IsVerified,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromUser(u types.User) userDocument {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return userDocument{
		Name:           u.Name,
		Email:          u.Email,
		Password:       u.PasswordHash,
		Role:           string(u.Role),
		College:        u.College,
		Phone:          u.Phone,
		Skills:         skills,
		IsVerified:     u.IsVerified,
		ProfilePicture: u.ProfilePicture,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// UserRepository handles persistence for users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(database *mongo.Database) *UserRepository {
	return &UserRepository{coll: database.Collection(db.UsersCollection)}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, store.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]types.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toUser())
	}
	return users, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find users: %w", err)
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	users := make([]types.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.toUser())
	}
	return users, total, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(total), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Skills == nil {
		user.Skills = []string{}
	}

	result, err := r.coll.InsertOne(ctx, fromUser(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, fmt.Errorf("insert user: %w", err)
	}
	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return types.User{}, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	user.ID = oid.Hex()
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()

	doc := fromUser(user)
	update := bson.M{"$set": bson.M{
		"name":           doc.Name,
		"email":          doc.Email,
		"password":       doc.Password,
		"role":           doc.Role,
		"college":        doc.College,
		"phone":          doc.Phone,
		"skills":         doc.Skills,
		"isVerified":     doc.IsVerified,
		"profilePicture": doc.ProfilePicture,
		"updatedAt":      doc.UpdatedAt,
	}}
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, fmt.Errorf("update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}
