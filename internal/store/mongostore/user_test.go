package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/htverse/apiserver/internal/store"
	"github.com/htverse/apiserver/types"
)

const userNS = "test.users"

func TestUserRepository_GetByEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, userNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Asha"},
			{Key: "email", Value: "asha@example.com"},
			{Key: "password", Value: "$2a$12$hash"},
			{Key: "role", Value: "organizer"},
		}))

		user, err := repo.GetByEmail(context.Background(), "asha@example.com")
		require.NoError(t, err)
		assert.Equal(t, id.Hex(), user.ID)
		assert.Equal(t, types.RoleOrganizer, user.Role)
		assert.Equal(t, "$2a$12$hash", user.PasswordHash)
		assert.NotNil(t, user.Skills)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, userNS, mtest.FirstBatch))

		_, err := repo.GetByEmail(context.Background(), "missing@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUserRepository_Create(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserted", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user, err := repo.Create(context.Background(), types.User{Name: "Ravi", Email: "ravi@example.com", Role: types.RoleParticipant})
		require.NoError(t, err)
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, []string{}, user.Skills)
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.Create(context.Background(), types.User{Email: "ravi@example.com"})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})
}

func TestUserRepository_GetByIDs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("skips malformed ids", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}

		users, err := repo.GetByIDs(context.Background(), []string{"bad", ""})
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	mt.Run("returns matches", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		a, b := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, userNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: a}, {Key: "name", Value: "A"}},
			bson.D{{Key: "_id", Value: b}, {Key: "name", Value: "B"}},
		))

		users, err := repo.GetByIDs(context.Background(), []string{a.Hex(), b.Hex()})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "A", users[0].Name)
	})
}

func TestUserRepository_Count(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("counts", func(mt *mtest.T) {
		repo := &UserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, userNS, mtest.FirstBatch, bson.D{{Key: "n", Value: 7}}))

		total, err := repo.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, total)
	})
}
