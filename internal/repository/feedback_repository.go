package repository

import (
	"context"
	"fmt"
	"time"

	"dpchat/backend/internal/models"
	"dpchat/backend/pkg/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type FeedbackRepository interface {
	Insert(ctx context.Context, doc models.Document) (string, error)
}

type MongoFeedbackRepository struct {
	db         config.DatabaseProvider
	collection string
}

func NewMongoFeedbackRepository(db config.DatabaseProvider, collection string) *MongoFeedbackRepository {
	return &MongoFeedbackRepository{db: db, collection: collection}
}

func (r *MongoFeedbackRepository) Insert(ctx context.Context, doc models.Document) (string, error) {
	db, err := r.db.Database(ctx)
	if err != nil {
		return "", err
	}
	return insert(ctx, db.Collection(r.collection), doc)
}

// ProbeCollection receives the round-trip document written by Probe
const ProbeCollection = "connection_test"

// Probe checks that the database accepts writes by inserting a document and
// deleting it again
func Probe(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ProbeCollection)

	res, err := coll.InsertOne(ctx, bson.D{
		{Key: "test", Value: true},
		{Key: "timestamp", Value: time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("insert probe document: %w", err)
	}

	del, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: res.InsertedID}})
	if err != nil {
		return fmt.Errorf("delete probe document: %w", err)
	}
	if del.DeletedCount != 1 {
		return fmt.Errorf("delete probe document: removed %d documents", del.DeletedCount)
	}
	return nil
}
