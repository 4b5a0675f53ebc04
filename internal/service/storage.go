// Path: internal/service/storage.go
package service

import (
	"context"
	"time"

	"chartwatch/internal/domain"
)

// ArtistStorage defines the persistence contract for artist chart data:
// an append-only snapshot history plus a materialized latest-state record
// per (artist, scope).
type ArtistStorage interface {
	// InsertSnapshots appends one observation per artist for a refresh cycle.
	InsertSnapshots(ctx context.Context, snapshots []domain.ArtistSnapshot) error

	// FindPreviousSnapshot returns the most recent snapshot created before
	// the given instant, or nil when the artist has no history yet.
	FindPreviousSnapshot(ctx context.Context, key domain.ArtistKey, before time.Time) (*domain.ArtistSnapshot, error)

	// FindCurrent returns the latest materialized record, or nil if unseen.
	FindCurrent(ctx context.Context, key domain.ArtistKey) (*domain.ArtistCurrent, error)

	// UpsertCurrent inserts or replaces the latest-state record for its key.
	UpsertCurrent(ctx context.Context, current domain.ArtistCurrent) error

	// ListCurrent returns current records for a scope sorted by rank
	// ascending, truncated to limit.
	ListCurrent(ctx context.Context, scope domain.Scope, limit int) ([]domain.ArtistCurrent, error)

	// AllCurrent returns every current record for a scope, for the cleanup pass.
	AllCurrent(ctx context.Context, scope domain.Scope) ([]domain.ArtistCurrent, error)

	// DeleteCurrent removes one latest-state record.
	DeleteCurrent(ctx context.Context, key domain.ArtistKey) error

	// DeleteSnapshots removes the full snapshot history for one identity.
	DeleteSnapshots(ctx context.Context, key domain.ArtistKey) error

	// History returns snapshots since the given instant, ascending by time.
	History(ctx context.Context, key domain.ArtistKey, since time.Time) ([]domain.ArtistSnapshot, error)

	// LastUpdated returns the newest lastUpdated across all scopes, or nil.
	LastUpdated(ctx context.Context) (*time.Time, error)
}

// TrackStorage is the track-side twin of ArtistStorage.
type TrackStorage interface {
	InsertSnapshots(ctx context.Context, snapshots []domain.TrackSnapshot) error
	FindPreviousSnapshot(ctx context.Context, key domain.TrackKey, before time.Time) (*domain.TrackSnapshot, error)
	FindCurrent(ctx context.Context, key domain.TrackKey) (*domain.TrackCurrent, error)
	UpsertCurrent(ctx context.Context, current domain.TrackCurrent) error
	ListCurrent(ctx context.Context, scope domain.Scope, limit int) ([]domain.TrackCurrent, error)
	AllCurrent(ctx context.Context, scope domain.Scope) ([]domain.TrackCurrent, error)
	DeleteCurrent(ctx context.Context, key domain.TrackKey) error
	DeleteSnapshots(ctx context.Context, key domain.TrackKey) error
	History(ctx context.Context, key domain.TrackKey, since time.Time) ([]domain.TrackSnapshot, error)
	LastUpdated(ctx context.Context) (*time.Time, error)
}

// StatusStorage persists the refresh cycle ledger so the last known outcome
// survives daemon restarts.
type StatusStorage interface {
	PutCycle(ctx context.Context, cycle domain.RefreshCycle) error
	LatestCycle(ctx context.Context) (*domain.RefreshCycle, error)
}
