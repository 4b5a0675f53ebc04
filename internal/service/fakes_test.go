// Path: internal/service/fakes_test.go
package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chartwatch/internal/domain"
	"chartwatch/internal/spotify"
)

// In-memory fakes for the storage and remote contracts. They keep the
// reconciliation semantics testable without Mongo or the network.

type fakeArtistStore struct {
	mu        sync.Mutex
	snapshots []domain.ArtistSnapshot
	current   map[domain.ArtistKey]domain.ArtistCurrent
}

func newFakeArtistStore() *fakeArtistStore {
	return &fakeArtistStore{current: make(map[domain.ArtistKey]domain.ArtistCurrent)}
}

func (s *fakeArtistStore) InsertSnapshots(_ context.Context, snapshots []domain.ArtistSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshots...)
	return nil
}

func (s *fakeArtistStore) FindPreviousSnapshot(_ context.Context, key domain.ArtistKey, before time.Time) (*domain.ArtistSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.ArtistSnapshot
	for i := range s.snapshots {
		snap := s.snapshots[i]
		if snap.ArtistName != key.Name || snap.Scope != key.Scope || !snap.CreatedAt.Before(before) {
			continue
		}
		if found == nil || snap.CreatedAt.After(found.CreatedAt) {
			copied := snap
			found = &copied
		}
	}
	return found, nil
}

func (s *fakeArtistStore) FindCurrent(_ context.Context, key domain.ArtistKey) (*domain.ArtistCurrent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.current[key]; ok {
		return &current, nil
	}
	return nil, nil
}

func (s *fakeArtistStore) UpsertCurrent(_ context.Context, current domain.ArtistCurrent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[current.Key()] = current
	return nil
}

func (s *fakeArtistStore) ListCurrent(_ context.Context, scope domain.Scope, limit int) ([]domain.ArtistCurrent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArtistCurrent
	for _, current := range s.current {
		if current.Scope == scope {
			out = append(out, current)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeArtistStore) AllCurrent(_ context.Context, scope domain.Scope) ([]domain.ArtistCurrent, error) {
	return s.ListCurrent(nil, scope, 0)
}

func (s *fakeArtistStore) DeleteCurrent(_ context.Context, key domain.ArtistKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, key)
	return nil
}

func (s *fakeArtistStore) DeleteSnapshots(_ context.Context, key domain.ArtistKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.ArtistName != key.Name || snap.Scope != key.Scope {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept
	return nil
}

func (s *fakeArtistStore) History(_ context.Context, key domain.ArtistKey, since time.Time) ([]domain.ArtistSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArtistSnapshot
	for _, snap := range s.snapshots {
		if snap.ArtistName == key.Name && snap.Scope == key.Scope && !snap.CreatedAt.Before(since) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeArtistStore) LastUpdated(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *time.Time
	for _, current := range s.current {
		t := current.LastUpdated
		if newest == nil || t.After(*newest) {
			newest = &t
		}
	}
	return newest, nil
}

func (s *fakeArtistStore) snapshotCount(key domain.ArtistKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, snap := range s.snapshots {
		if snap.ArtistName == key.Name && snap.Scope == key.Scope {
			count++
		}
	}
	return count
}

type fakeTrackStore struct {
	mu        sync.Mutex
	snapshots []domain.TrackSnapshot
	current   map[domain.TrackKey]domain.TrackCurrent
}

func newFakeTrackStore() *fakeTrackStore {
	return &fakeTrackStore{current: make(map[domain.TrackKey]domain.TrackCurrent)}
}

func (s *fakeTrackStore) InsertSnapshots(_ context.Context, snapshots []domain.TrackSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshots...)
	return nil
}

func (s *fakeTrackStore) FindPreviousSnapshot(_ context.Context, key domain.TrackKey, before time.Time) (*domain.TrackSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *domain.TrackSnapshot
	for i := range s.snapshots {
		snap := s.snapshots[i]
		if snap.TrackName != key.Track || snap.ArtistName != key.Artist || snap.Scope != key.Scope || !snap.CreatedAt.Before(before) {
			continue
		}
		if found == nil || snap.CreatedAt.After(found.CreatedAt) {
			copied := snap
			found = &copied
		}
	}
	return found, nil
}

func (s *fakeTrackStore) FindCurrent(_ context.Context, key domain.TrackKey) (*domain.TrackCurrent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.current[key]; ok {
		return &current, nil
	}
	return nil, nil
}

func (s *fakeTrackStore) UpsertCurrent(_ context.Context, current domain.TrackCurrent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[current.Key()] = current
	return nil
}

func (s *fakeTrackStore) ListCurrent(_ context.Context, scope domain.Scope, limit int) ([]domain.TrackCurrent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrackCurrent
	for _, current := range s.current {
		if current.Scope == scope {
			out = append(out, current)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTrackStore) AllCurrent(_ context.Context, scope domain.Scope) ([]domain.TrackCurrent, error) {
	return s.ListCurrent(nil, scope, 0)
}

func (s *fakeTrackStore) DeleteCurrent(_ context.Context, key domain.TrackKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, key)
	return nil
}

func (s *fakeTrackStore) DeleteSnapshots(_ context.Context, key domain.TrackKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.snapshots[:0]
	for _, snap := range s.snapshots {
		if snap.TrackName != key.Track || snap.ArtistName != key.Artist || snap.Scope != key.Scope {
			kept = append(kept, snap)
		}
	}
	s.snapshots = kept
	return nil
}

func (s *fakeTrackStore) History(_ context.Context, key domain.TrackKey, since time.Time) ([]domain.TrackSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TrackSnapshot
	for _, snap := range s.snapshots {
		if snap.TrackName == key.Track && snap.ArtistName == key.Artist && snap.Scope == key.Scope && !snap.CreatedAt.Before(since) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeTrackStore) LastUpdated(_ context.Context) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *time.Time
	for _, current := range s.current {
		t := current.LastUpdated
		if newest == nil || t.After(*newest) {
			newest = &t
		}
	}
	return newest, nil
}

func (s *fakeTrackStore) snapshotCount(key domain.TrackKey) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, snap := range s.snapshots {
		if snap.TrackName == key.Track && snap.ArtistName == key.Artist && snap.Scope == key.Scope {
			count++
		}
	}
	return count
}

type fakeStatusStore struct {
	mu     sync.Mutex
	cycles map[string]domain.RefreshCycle
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{cycles: make(map[string]domain.RefreshCycle)}
}

func (s *fakeStatusStore) PutCycle(_ context.Context, cycle domain.RefreshCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[cycle.ID] = cycle
	return nil
}

func (s *fakeStatusStore) LatestCycle(_ context.Context) (*domain.RefreshCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.RefreshCycle
	for id := range s.cycles {
		cycle := s.cycles[id]
		if latest == nil || cycle.StartedAt.After(latest.StartedAt) {
			latest = &cycle
		}
	}
	return latest, nil
}

// fakeFetcher serves canned markup per URL. A non-nil gate makes every fetch
// block until the gate closes, for in-flight behavior tests.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]error
	gate  chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string), fail: make(map[string]error)}
}

func (f *fakeFetcher) set(url, markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = markup
}

func (f *fakeFetcher) FetchPage(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	gate := f.gate
	err := f.fail[url]
	page, ok := f.pages[url]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no fixture for %s", url)
	}
	return page, nil
}

// fakeResolver counts lookups per name and resolves everything not in the
// miss set.
type fakeResolver struct {
	mu     sync.Mutex
	misses map[string]bool
	calls  map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{misses: make(map[string]bool), calls: make(map[string]int)}
}

func (r *fakeResolver) ResolveArtist(_ context.Context, name string) *spotify.ArtistMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[name]++
	if r.misses[name] {
		return nil
	}
	return &spotify.ArtistMetadata{
		SpotifyID: "artist-" + slug(name),
		ImageURL:  "http://img/" + slug(name),
		Genres:    []string{"pop"},
		URL:       "http://open/" + slug(name),
	}
}

func (r *fakeResolver) ResolveTrack(_ context.Context, title, artistName string) *spotify.TrackMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[title]++
	if r.misses[title] {
		return nil
	}
	return &spotify.TrackMetadata{
		SpotifyID:  "track-" + slug(title),
		PreviewURL: "http://preview/" + slug(title),
		URL:        "http://open/" + slug(title),
	}
}

func (r *fakeResolver) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

type noopPacer struct{}

func (noopPacer) Wait(context.Context) error { return nil }
