package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/htverse/apiserver/config"
)

// Collection names.
const (
	UsersCollection      = "users"
	HackathonsCollection = "hackathons"
)

// OpenMongo connects to MongoDB and verifies the connection.
func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureMongoIndexes creates the indexes listing queries rely on, plus the
// unique email index.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "categories", Value: 1}}},
		{Keys: bson.D{{Key: "registrationDeadline", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "prizePool", Value: -1}}},
		{Keys: bson.D{{Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "organizer", Value: 1}}},
		{Keys: bson.D{{Key: "participants", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "categories", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := database.Collection(HackathonsCollection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create hackathon indexes: %w", err)
	}
	return nil
}
