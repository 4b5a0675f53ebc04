// Path: internal/service/service.go
package service

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"chartwatch/internal/config"
	"chartwatch/internal/domain"
	"chartwatch/internal/events"
	"chartwatch/internal/metrics"
	"chartwatch/internal/spotify"

	"github.com/google/uuid"
)

const (
	// Event topics
	EventRefreshStarted   = "refresh:started"
	EventRefreshCompleted = "refresh:completed"
	EventRefreshFailed    = "refresh:failed"
)

// ErrRefreshInFlight is returned when a refresh trigger arrives while a cycle
// is already running. Cycles are never interleaved.
var ErrRefreshInFlight = errors.New("a refresh cycle is already running")

// PageFetcher fetches one chart page's raw markup.
// This allows for mocking in tests.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// MetadataResolver performs best-effort catalog lookups. A nil result means
// no match or a failed call; enrichment is advisory either way.
type MetadataResolver interface {
	ResolveArtist(ctx context.Context, name string) *spotify.ArtistMetadata
	ResolveTrack(ctx context.Context, title, artistName string) *spotify.TrackMetadata
}

// Pacer spaces successive enrichment calls. Injected so tests can disable it
// and deployments can tune it without touching the engine.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Service is the reconciliation engine: it owns the refresh cycle and serves
// the read API on top of the materialized state.
type Service struct {
	cfg      config.RefresherConfig
	charts   []config.ChartConfig
	baseURL  string
	fetcher  PageFetcher
	resolver MetadataResolver
	pacer    Pacer
	artists  ArtistStorage
	tracks   TrackStorage
	status   StatusStorage
	broker   *events.Broker
	metrics  *metrics.Manager

	inFlight atomic.Bool
	stopChan chan struct{} // Used for graceful shutdown
}

// NewService creates the core application service.
func NewService(
	cfg config.RefresherConfig,
	charts []config.ChartConfig,
	baseURL string,
	fetcher PageFetcher,
	resolver MetadataResolver,
	pacer Pacer,
	artists ArtistStorage,
	tracks TrackStorage,
	status StatusStorage,
	broker *events.Broker,
	m *metrics.Manager,
) *Service {
	return &Service{
		cfg:      cfg,
		charts:   charts,
		baseURL:  baseURL,
		fetcher:  fetcher,
		resolver: resolver,
		pacer:    pacer,
		artists:  artists,
		tracks:   tracks,
		status:   status,
		broker:   broker,
		metrics:  m,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic refresh loop. It is a long-running, blocking
// method; the first cycle runs immediately on startup.
func (s *Service) Start(ctx context.Context) error {
	interval := time.Duration(s.cfg.IntervalHours) * time.Hour
	log.Printf("Service starting. Refreshing every %s.", interval)

	s.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runScheduled(ctx)
		case <-s.stopChan:
			log.Println("Refresh loop stopped.")
			return nil
		case <-ctx.Done():
			log.Println("Refresh loop context cancelled.")
			return nil
		}
	}
}

// Stop gracefully shuts down the service's background loop.
func (s *Service) Stop() {
	log.Println("Service stopping...")
	close(s.stopChan)
}

func (s *Service) runScheduled(ctx context.Context) {
	if _, err := s.TriggerRefresh(ctx, true); err != nil {
		if errors.Is(err, ErrRefreshInFlight) {
			log.Println("Scheduled refresh skipped: previous cycle still running.")
			return
		}
		log.Printf("Scheduled refresh failed: %v", err)
	}
}

// TriggerRefresh starts one refresh cycle and returns its id. With wait=false
// the trigger acknowledges immediately and the cycle proceeds independently;
// with wait=true it blocks until the cycle finishes and reports its error.
// A second trigger while a cycle is in flight gets ErrRefreshInFlight.
func (s *Service) TriggerRefresh(ctx context.Context, wait bool) (string, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return "", ErrRefreshInFlight
	}

	cycleID := uuid.NewString()
	if wait {
		defer s.inFlight.Store(false)
		return cycleID, s.runCycle(ctx, cycleID)
	}

	go func() {
		defer s.inFlight.Store(false)
		// Detached from the trigger request: the cycle outlives the response.
		if err := s.runCycle(context.Background(), cycleID); err != nil {
			log.Printf("Background refresh %s failed: %v", cycleID, err)
		}
	}()
	return cycleID, nil
}

// TopArtists returns the materialized artist leaderboard for a scope, rank
// ascending, truncated to limit.
func (s *Service) TopArtists(ctx context.Context, limit int, scope domain.Scope) ([]domain.ArtistCurrent, error) {
	if limit <= 0 {
		limit = s.cfg.ArtistLimit
	}
	return s.artists.ListCurrent(ctx, scope, limit)
}

// TopTracks returns the materialized track leaderboard for a scope.
func (s *Service) TopTracks(ctx context.Context, limit int, scope domain.Scope) ([]domain.TrackCurrent, error) {
	if limit <= 0 {
		limit = s.cfg.TrackLimit
	}
	return s.tracks.ListCurrent(ctx, scope, limit)
}

// ArtistHistory returns snapshots for one artist over a trailing window,
// ascending by time.
func (s *Service) ArtistHistory(ctx context.Context, name string, scope domain.Scope, windowDays int) ([]domain.ArtistHistoryPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	snapshots, err := s.artists.History(ctx, domain.ArtistKey{Name: name, Scope: scope}, since)
	if err != nil {
		return nil, err
	}

	points := make([]domain.ArtistHistoryPoint, len(snapshots))
	for i, snapshot := range snapshots {
		var delta int64
		if snapshot.ListenersDelta != nil {
			delta = *snapshot.ListenersDelta
		}
		points[i] = domain.ArtistHistoryPoint{
			Date:             snapshot.CreatedAt,
			MonthlyListeners: snapshot.MonthlyListeners,
			Rank:             snapshot.Rank,
			ListenersDelta:   delta,
		}
	}
	return points, nil
}

// TrackHistory returns snapshots for one track over a trailing window,
// ascending by time.
func (s *Service) TrackHistory(ctx context.Context, track, artist string, scope domain.Scope, windowDays int) ([]domain.TrackHistoryPoint, error) {
	since := time.Now().UTC().AddDate(0, 0, -windowDays)
	key := domain.TrackKey{Track: track, Artist: artist, Scope: scope}
	snapshots, err := s.tracks.History(ctx, key, since)
	if err != nil {
		return nil, err
	}

	points := make([]domain.TrackHistoryPoint, len(snapshots))
	for i, snapshot := range snapshots {
		points[i] = domain.TrackHistoryPoint{
			Date:         snapshot.CreatedAt,
			DailyStreams: snapshot.DailyStreams,
			TotalStreams: snapshot.TotalStreams,
			Rank:         snapshot.Rank,
		}
	}
	return points, nil
}

// LastRefresh returns the newest lastUpdated across both current-state
// collections, or nil when nothing has been refreshed yet.
func (s *Service) LastRefresh(ctx context.Context) (*time.Time, error) {
	artistTime, err := s.artists.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	trackTime, err := s.tracks.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case artistTime == nil:
		return trackTime, nil
	case trackTime == nil:
		return artistTime, nil
	case trackTime.After(*artistTime):
		return trackTime, nil
	default:
		return artistTime, nil
	}
}

// LatestCycle returns the most recent refresh cycle ledger entry, or nil.
func (s *Service) LatestCycle(ctx context.Context) (*domain.RefreshCycle, error) {
	return s.status.LatestCycle(ctx)
}
