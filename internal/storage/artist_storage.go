// Path: internal/storage/artist_storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"chartwatch/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoArtistStorage is the MongoDB implementation of the service's
// ArtistStorage interface, backed by one append-only snapshot collection and
// one latest-state collection.
type MongoArtistStorage struct {
	snapshots *mongo.Collection
	current   *mongo.Collection
}

// NewMongoArtistStorage creates a new storage adapter for artist chart data.
func NewMongoArtistStorage(db *mongo.Database, snapshotCollection, currentCollection string) *MongoArtistStorage {
	return &MongoArtistStorage{
		snapshots: db.Collection(snapshotCollection),
		current:   db.Collection(currentCollection),
	}
}

// EnsureIndexes creates the uniqueness and lookup indexes the adapter relies
// on. Safe to call on every startup.
func (s *MongoArtistStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.current.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "artistName", Value: 1}, {Key: "scope", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "artistName", Value: 1}, {Key: "scope", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

// InsertSnapshots implements the ArtistStorage interface.
func (s *MongoArtistStorage) InsertSnapshots(ctx context.Context, snapshots []domain.ArtistSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	docs := make([]interface{}, len(snapshots))
	for i, snapshot := range snapshots {
		docs[i] = snapshot
	}
	// SetOrdered(false) lets MongoDB process the inserts in parallel.
	_, err := s.snapshots.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// FindPreviousSnapshot implements the ArtistStorage interface.
func (s *MongoArtistStorage) FindPreviousSnapshot(ctx context.Context, key domain.ArtistKey, before time.Time) (*domain.ArtistSnapshot, error) {
	var snapshot domain.ArtistSnapshot
	filter := bson.M{
		"artistName": key.Name,
		"scope":      key.Scope,
		"createdAt":  bson.M{"$lt": before},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	err := s.snapshots.FindOne(ctx, filter, opts).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // No history yet
		}
		return nil, err
	}
	return &snapshot, nil
}

// FindCurrent implements the ArtistStorage interface.
func (s *MongoArtistStorage) FindCurrent(ctx context.Context, key domain.ArtistKey) (*domain.ArtistCurrent, error) {
	var current domain.ArtistCurrent
	filter := bson.M{"artistName": key.Name, "scope": key.Scope}
	err := s.current.FindOne(ctx, filter).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &current, nil
}

// UpsertCurrent implements the ArtistStorage interface.
func (s *MongoArtistStorage) UpsertCurrent(ctx context.Context, current domain.ArtistCurrent) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"artistName": current.ArtistName, "scope": current.Scope}
	_, err := s.current.ReplaceOne(ctx, filter, current, opts)
	return err
}

// ListCurrent implements the ArtistStorage interface.
func (s *MongoArtistStorage) ListCurrent(ctx context.Context, scope domain.Scope, limit int) ([]domain.ArtistCurrent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rank", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.current.Find(ctx, bson.M{"scope": scope}, opts)
	if err != nil {
		return nil, err
	}
	var results []domain.ArtistCurrent
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// AllCurrent implements the ArtistStorage interface.
func (s *MongoArtistStorage) AllCurrent(ctx context.Context, scope domain.Scope) ([]domain.ArtistCurrent, error) {
	cursor, err := s.current.Find(ctx, bson.M{"scope": scope})
	if err != nil {
		return nil, err
	}
	var results []domain.ArtistCurrent
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteCurrent implements the ArtistStorage interface.
func (s *MongoArtistStorage) DeleteCurrent(ctx context.Context, key domain.ArtistKey) error {
	_, err := s.current.DeleteOne(ctx, bson.M{"artistName": key.Name, "scope": key.Scope})
	return err
}

// DeleteSnapshots implements the ArtistStorage interface.
func (s *MongoArtistStorage) DeleteSnapshots(ctx context.Context, key domain.ArtistKey) error {
	_, err := s.snapshots.DeleteMany(ctx, bson.M{"artistName": key.Name, "scope": key.Scope})
	return err
}

// History implements the ArtistStorage interface.
func (s *MongoArtistStorage) History(ctx context.Context, key domain.ArtistKey, since time.Time) ([]domain.ArtistSnapshot, error) {
	filter := bson.M{
		"artistName": key.Name,
		"scope":      key.Scope,
		"createdAt":  bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.snapshots.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var results []domain.ArtistSnapshot
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// LastUpdated implements the ArtistStorage interface.
func (s *MongoArtistStorage) LastUpdated(ctx context.Context) (*time.Time, error) {
	var current domain.ArtistCurrent
	opts := options.FindOne().SetSort(bson.D{{Key: "lastUpdated", Value: -1}})
	err := s.current.FindOne(ctx, bson.D{}, opts).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Nothing refreshed yet
		}
		return nil, err
	}
	return &current.LastUpdated, nil
}
