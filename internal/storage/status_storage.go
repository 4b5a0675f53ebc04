// Path: internal/storage/status_storage.go
package storage

import (
	"context"
	"errors"

	"chartwatch/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStatusStorage persists refresh cycle ledger entries so the daemon can
// report its last known cycle outcome across restarts.
type MongoStatusStorage struct {
	collection *mongo.Collection
}

// NewMongoStatusStorage creates a new storage adapter for the refresh ledger.
func NewMongoStatusStorage(db *mongo.Database, collectionName string) *MongoStatusStorage {
	return &MongoStatusStorage{
		collection: db.Collection(collectionName),
	}
}

// PutCycle implements the StatusStorage interface. The same cycle is written
// twice per refresh: once as RUNNING, once with its terminal state.
func (s *MongoStatusStorage) PutCycle(ctx context.Context, cycle domain.RefreshCycle) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": cycle.ID}
	_, err := s.collection.ReplaceOne(ctx, filter, cycle, opts)
	return err
}

// LatestCycle implements the StatusStorage interface.
func (s *MongoStatusStorage) LatestCycle(ctx context.Context) (*domain.RefreshCycle, error) {
	var cycle domain.RefreshCycle
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	err := s.collection.FindOne(ctx, bson.D{}, opts).Decode(&cycle)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Never refreshed
		}
		return nil, err
	}
	return &cycle, nil
}
