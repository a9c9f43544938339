package repository

import (
	"context"
	"testing"
	"time"

	"dpchat/backend/internal/models"
	"dpchat/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const transcripts = "transcripts"

func ns(mt *mtest.T) string {
	return mt.DB.Name() + "." + transcripts
}

func TestTranscriptRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("insert returns the object id", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := repo.Insert(ctx, models.Document{"sessionId": "session_1"})
		require.NoError(mt, err)
		_, err = primitive.ObjectIDFromHex(id)
		assert.NoError(mt, err)
	})

	mt.Run("duplicate session maps to ErrDuplicate", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: chatapp.transcripts index: uniq_session_id",
		}))

		_, err := repo.Insert(ctx, models.Document{"sessionId": "session_1"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("find by session", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "contentHash", Value: "abc"},
		}))

		doc, err := repo.FindBySessionID(ctx, "session_1")
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), doc.ID())
		assert.Equal(mt, "abc", doc.String(models.FieldContentSum))
	})

	mt.Run("find by unknown session", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := repo.FindBySessionID(ctx, "session_9")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list decodes documents", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		first := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "sessionId", Value: "session_2"}}
		second := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "sessionId", Value: "session_1"}}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, first, second))

		docs, err := repo.List(ctx, 10, 10)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, "session_2", docs[0].String("sessionId"))
	})

	mt.Run("list of nothing is empty, not nil", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		docs, err := repo.List(ctx, 0, 10)
		require.NoError(mt, err)
		assert.NotNil(mt, docs)
		assert.Empty(mt, docs)
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(25)}}))

		n, err := repo.Count(ctx)
		require.NoError(mt, err)
		assert.Equal(mt, int64(25), n)
	})

	mt.Run("get by id", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		oid := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "sessionId", Value: "session_1"},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(time.Now())},
		}))

		doc, err := repo.GetByID(ctx, oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), doc.ID())
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := repo.GetByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get by malformed id", func(mt *mtest.T) {
		repo := NewMongoTranscriptRepository(config.StaticProvider{DB: mt.DB}, transcripts)

		_, err := repo.GetByID(ctx, "not-an-object-id")
		assert.ErrorIs(mt, err, ErrInvalidID)
	})
}

func TestFeedbackRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("insert", func(mt *mtest.T) {
		repo := NewMongoFeedbackRepository(config.StaticProvider{DB: mt.DB}, "feedback")
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := repo.Insert(ctx, models.Document{"feedbackId": "feedback_1", "rating": 4})
		require.NoError(mt, err)
		assert.NotEmpty(mt, id)
	})

	mt.Run("probe round trip", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}),
		)
		assert.NoError(mt, Probe(ctx, mt.DB))
	})

	mt.Run("probe delete mismatch", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}),
		)
		assert.Error(mt, Probe(ctx, mt.DB))
	})
}
