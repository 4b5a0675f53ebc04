// Path: internal/service/detail.go
package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"chartwatch/internal/domain"
	"chartwatch/internal/scrape"
)

// ErrArtistNotFound is returned when a detail lookup names an artist that has
// never appeared on a refreshed chart.
var ErrArtistNotFound = errors.New("artist not found")

// topEntryCount caps the on-demand detail lists.
const topEntryCount = 3

// ArtistDetail returns the materialized record for one artist plus their top
// songs and videos scraped on demand. The requested scope is tried first,
// falling back to the global chart. The scraped lists are best-effort: a
// missing or unparseable detail page degrades to an empty list, never an
// error.
func (s *Service) ArtistDetail(ctx context.Context, name string, scope domain.Scope) (*domain.ArtistDetail, error) {
	current, err := s.artists.FindCurrent(ctx, domain.ArtistKey{Name: name, Scope: scope})
	if err != nil {
		return nil, err
	}
	if current == nil && scope != domain.ScopeGlobal {
		current, err = s.artists.FindCurrent(ctx, domain.ArtistKey{Name: name, Scope: domain.ScopeGlobal})
		if err != nil {
			return nil, err
		}
	}
	if current == nil {
		return nil, ErrArtistNotFound
	}

	detail := &domain.ArtistDetail{
		Artist:    *current,
		TopSongs:  []domain.ArtistTopSong{},
		TopVideos: []domain.ArtistTopVideo{},
	}
	// The songs page is keyed by catalog id, so it needs a prior enrichment hit.
	if current.SpotifyID != "" {
		detail.TopSongs = s.scrapeTopSongs(ctx, current.SpotifyID)
	}
	detail.TopVideos = s.scrapeTopVideos(ctx, current.ArtistName)
	return detail, nil
}

func (s *Service) scrapeTopSongs(ctx context.Context, spotifyID string) []domain.ArtistTopSong {
	url := s.baseURL + "/spotify/artist/" + spotifyID + "_songs.html"
	markup, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		log.Printf("Artist detail: top songs unavailable: %v", err)
		return []domain.ArtistTopSong{}
	}
	songs, err := scrape.ParseTopSongs(markup, topEntryCount)
	if err != nil {
		log.Printf("Artist detail: could not parse top songs: %v", err)
		return []domain.ArtistTopSong{}
	}
	return songs
}

func (s *Service) scrapeTopVideos(ctx context.Context, artistName string) []domain.ArtistTopVideo {
	url := s.baseURL + "/youtube/artist/" + videoSlug(artistName) + ".html"
	markup, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		log.Printf("Artist detail: top videos unavailable: %v", err)
		return []domain.ArtistTopVideo{}
	}
	videos, err := scrape.ParseTopVideos(markup, topEntryCount)
	if err != nil {
		log.Printf("Artist detail: could not parse top videos: %v", err)
		return []domain.ArtistTopVideo{}
	}
	return videos
}

// videoSlug converts an artist name to the video site's page slug, lowercase
// with everything but letters and digits stripped ("The Weeknd" → "theweeknd").
func videoSlug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
