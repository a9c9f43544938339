package repository

import (
	"context"
	"errors"
	"fmt"

	"dpchat/backend/internal/models"
	"dpchat/backend/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("document already exists")
	ErrInvalidID = errors.New("invalid document id")
)

type TranscriptRepository interface {
	Insert(ctx context.Context, doc models.Document) (string, error)
	FindBySessionID(ctx context.Context, sessionID string) (models.Document, error)
	List(ctx context.Context, skip, limit int64) ([]models.Document, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id string) (models.Document, error)
}

type MongoTranscriptRepository struct {
	db         config.DatabaseProvider
	collection string
}

func NewMongoTranscriptRepository(db config.DatabaseProvider, collection string) *MongoTranscriptRepository {
	return &MongoTranscriptRepository{db: db, collection: collection}
}

func (r *MongoTranscriptRepository) coll(ctx context.Context) (*mongo.Collection, error) {
	db, err := r.db.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(r.collection), nil
}

// EnsureIndexes creates the unique session index that collapses duplicate
// exports of one session, and the createdAt index used by List. The partial
// filter leaves envelopes without a string sessionId unconstrained.
func (r *MongoTranscriptRepository) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(r.collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: models.FieldSessionID, Value: 1}},
			Options: options.Index().
				SetName("uniq_session_id").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: models.FieldSessionID, Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{
			Keys:    bson.D{{Key: models.FieldCreatedAt, Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("create transcript indexes: %w", err)
	}
	return nil
}

func (r *MongoTranscriptRepository) Insert(ctx context.Context, doc models.Document) (string, error) {
	coll, err := r.coll(ctx)
	if err != nil {
		return "", err
	}
	return insert(ctx, coll, doc)
}

// FindBySessionID returns the _id and content hash of the transcript stored for sessionID
func (r *MongoTranscriptRepository) FindBySessionID(ctx context.Context, sessionID string) (models.Document, error) {
	coll, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	opts := options.FindOne().SetProjection(bson.D{
		{Key: models.FieldID, Value: 1},
		{Key: models.FieldContentSum, Value: 1},
	})
	err = coll.FindOne(ctx, bson.D{{Key: models.FieldSessionID, Value: sessionID}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns transcripts newest first
func (r *MongoTranscriptRepository) List(ctx context.Context, skip, limit int64) ([]models.Document, error) {
	coll, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: models.FieldCreatedAt, Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *MongoTranscriptRepository) Count(ctx context.Context) (int64, error) {
	coll, err := r.coll(ctx)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, bson.D{})
}

func (r *MongoTranscriptRepository) GetByID(ctx context.Context, id string) (models.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	coll, err := r.coll(ctx)
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = coll.FindOne(ctx, bson.D{{Key: models.FieldID, Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func insert(ctx context.Context, coll *mongo.Collection, doc models.Document) (string, error) {
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return "", err
	}

	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	default:
		return fmt.Sprint(id), nil
	}
}
