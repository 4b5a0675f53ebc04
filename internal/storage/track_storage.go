// Path: internal/storage/track_storage.go
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

// MongoTrackStorage is the MongoDB implementation of the service's
// TrackStorage interface. Track identity is (trackName, artistName, scope).
type MongoTrackStorage struct {
	snapshots *mongo.Collection
	current   *mongo.Collection
}

// NewMongoTrackStorage creates a new storage adapter for track chart data.
func NewMongoTrackStorage(db *mongo.Database, snapshotCollection, currentCollection string) *MongoTrackStorage {
	return &MongoTrackStorage{
		snapshots: db.Collection(snapshotCollection),
		current:   db.Collection(currentCollection),
	}
}

// EnsureIndexes creates the uniqueness and lookup indexes. Safe to call on
// every startup.
func (s *MongoTrackStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.current.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "trackName", Value: 1},
			{Key: "artistName", Value: 1},
			{Key: "scope", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "trackName", Value: 1},
			{Key: "artistName", Value: 1},
			{Key: "scope", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	})
	return err
}

func trackFilter(key domain.TrackKey) bson.M {
	return bson.M{
		"trackName":  key.Track,
		"artistName": key.Artist,
		"scope":      key.Scope,
	}
}

// InsertSnapshots implements the TrackStorage interface.
func (s *MongoTrackStorage) InsertSnapshots(ctx context.Context, snapshots []domain.TrackSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	docs := make([]interface{}, len(snapshots))
	for i, snapshot := range snapshots {
		docs[i] = snapshot
	}
	_, err := s.snapshots.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// FindPreviousSnapshot implements the TrackStorage interface.
func (s *MongoTrackStorage) FindPreviousSnapshot(ctx context.Context, key domain.TrackKey, before time.Time) (*domain.TrackSnapshot, error) {
	filter := trackFilter(key)
	filter["createdAt"] = bson.M{"$lt": before}

	var snapshot domain.TrackSnapshot
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

// FindCurrent implements the TrackStorage interface.
func (s *MongoTrackStorage) FindCurrent(ctx context.Context, key domain.TrackKey) (*domain.TrackCurrent, error) {
	var current domain.TrackCurrent
	err := s.current.FindOne(ctx, trackFilter(key)).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &current, nil
}

// UpsertCurrent implements the TrackStorage interface.
func (s *MongoTrackStorage) UpsertCurrent(ctx context.Context, current domain.TrackCurrent) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.current.ReplaceOne(ctx, trackFilter(current.Key()), current, opts)
	return err
}

// ListCurrent implements the TrackStorage interface.
func (s *MongoTrackStorage) ListCurrent(ctx context.Context, scope domain.Scope, limit int) ([]domain.TrackCurrent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rank", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := s.current.Find(ctx, bson.M{"scope": scope}, opts)
	if err != nil {
		return nil, err
	}
	var results []domain.TrackCurrent
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// AllCurrent implements the TrackStorage interface.
func (s *MongoTrackStorage) AllCurrent(ctx context.Context, scope domain.Scope) ([]domain.TrackCurrent, error) {
	cursor, err := s.current.Find(ctx, bson.M{"scope": scope})
	if err != nil {
		return nil, err
	}
	var results []domain.TrackCurrent
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteCurrent implements the TrackStorage interface.
func (s *MongoTrackStorage) DeleteCurrent(ctx context.Context, key domain.TrackKey) error {
	_, err := s.current.DeleteOne(ctx, trackFilter(key))
	return err
}

// DeleteSnapshots implements the TrackStorage interface.
func (s *MongoTrackStorage) DeleteSnapshots(ctx context.Context, key domain.TrackKey) error {
	_, err := s.snapshots.DeleteMany(ctx, trackFilter(key))
	return err
}

// History implements the TrackStorage interface.
func (s *MongoTrackStorage) History(ctx context.Context, key domain.TrackKey, since time.Time) ([]domain.TrackSnapshot, error) {
	filter := trackFilter(key)
	filter["createdAt"] = bson.M{"$gte": since}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.snapshots.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var results []domain.TrackSnapshot
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// LastUpdated implements the TrackStorage interface.
func (s *MongoTrackStorage) LastUpdated(ctx context.Context) (*time.Time, error) {
	var current domain.TrackCurrent
	opts := options.FindOne().SetSort(bson.D{{Key: "lastUpdated", Value: -1}})
	err := s.current.FindOne(ctx, bson.D{}, opts).Decode(&current)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &current.LastUpdated, nil
}
