// Path: internal/spotify/resolver.go
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"chartwatch/internal/config"

	"github.com/go-resty/resty/v2"
)

// ArtistMetadata is the enrichment payload for an artist.
type ArtistMetadata struct {
	SpotifyID string
	ImageURL  string
	Genres    []string
	URL       string
}

// TrackMetadata is the enrichment payload for a track.
type TrackMetadata struct {
	SpotifyID  string
	ImageURL   string
	PreviewURL string
	URL        string
}

type searchImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type searchArtist struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Images       []searchImage `json:"images"`
	Genres       []string      `json:"genres"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type searchTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []searchImage `json:"images"`
	} `json:"album"`
	PreviewURL   string `json:"preview_url"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type searchResponse struct {
	Artists *struct {
		Items []searchArtist `json:"items"`
	} `json:"artists"`
	Tracks *struct {
		Items []searchTrack `json:"items"`
	} `json:"tracks"`
}

// Resolver performs best-effort search-and-match lookups against the catalog
// API. Enrichment is advisory: every failure path yields nil, never an error,
// so a flaky remote can never abort a refresh cycle. Callers are expected to
// self-throttle between successive calls.
type Resolver struct {
	client *resty.Client
	tokens *TokenCache
	apiURL string
}

// NewResolver creates a resolver using the given token cache.
func NewResolver(cfg config.SpotifyConfig, tokens *TokenCache) *Resolver {
	return &Resolver{
		client: resty.New().SetTimeout(15 * time.Second),
		tokens: tokens,
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
	}
}

// ResolveArtist looks up enrichment fields for an artist name. An exact
// case-insensitive name match is preferred over the top search result.
func (r *Resolver) ResolveArtist(ctx context.Context, name string) *ArtistMetadata {
	result, ok := r.search(ctx, name, "artist", 5)
	if !ok || result.Artists == nil || len(result.Artists.Items) == 0 {
		return nil
	}

	items := result.Artists.Items
	artist := items[0]
	for _, candidate := range items {
		if strings.EqualFold(candidate.Name, name) {
			artist = candidate
			break
		}
	}

	meta := &ArtistMetadata{
		SpotifyID: artist.ID,
		Genres:    artist.Genres,
		URL:       artist.ExternalURLs.Spotify,
	}
	if len(artist.Images) > 0 {
		meta.ImageURL = artist.Images[0].URL
	}
	return meta
}

// ResolveTrack looks up enrichment fields for a track. The scoped
// title+artist search is tried first; when it returns nothing the lookup
// falls back to a title-only search.
func (r *Resolver) ResolveTrack(ctx context.Context, title, artistName string) *TrackMetadata {
	query := fmt.Sprintf("track:%q artist:%q", title, artistName)
	result, ok := r.search(ctx, query, "track", 5)
	if !ok {
		return nil
	}

	if result.Tracks == nil || len(result.Tracks.Items) == 0 {
		result, ok = r.search(ctx, title, "track", 1)
		if !ok || result.Tracks == nil || len(result.Tracks.Items) == 0 {
			return nil
		}
		return trackMetadata(result.Tracks.Items[0])
	}

	items := result.Tracks.Items
	track := items[0]
	// First candidate with a matching artist wins; results arrive best first.
	for _, candidate := range items {
		matched := false
		for _, a := range candidate.Artists {
			if strings.EqualFold(a.Name, artistName) {
				matched = true
				break
			}
		}
		if matched {
			track = candidate
			break
		}
	}
	return trackMetadata(track)
}

func trackMetadata(track searchTrack) *TrackMetadata {
	meta := &TrackMetadata{
		SpotifyID:  track.ID,
		PreviewURL: track.PreviewURL,
		URL:        track.ExternalURLs.Spotify,
	}
	if len(track.Album.Images) > 0 {
		meta.ImageURL = track.Album.Images[0].URL
	}
	return meta
}

// search runs one catalog query. The bool result distinguishes "remote said
// nothing matched" from "the call itself failed"; both end as nil upstream
// but only failures are logged.
func (r *Resolver) search(ctx context.Context, query, kind string, limit int) (*searchResponse, bool) {
	token, err := r.tokens.Get(ctx)
	if err != nil {
		log.Printf("Enrichment: could not obtain token: %v", err)
		return nil, false
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(map[string]string{
			"q":     query,
			"type":  kind,
			"limit": fmt.Sprintf("%d", limit),
		}).
		Get(r.apiURL + "/search")
	if err != nil {
		log.Printf("Enrichment: search request failed: %v", err)
		return nil, false
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		// Token was revoked or expired early; next cycle fetches a new one.
		r.tokens.Invalidate()
		log.Printf("Enrichment: search unauthorized, invalidated cached token")
		return nil, false
	}
	if resp.IsError() {
		log.Printf("Enrichment: search returned status %d", resp.StatusCode())
		return nil, false
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		log.Printf("Enrichment: failed to decode search response: %v", err)
		return nil, false
	}
	return &result, true
}
