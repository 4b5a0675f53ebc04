// Path: internal/delivery/rest/handlers.go
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"chartwatch/internal/domain"
	"chartwatch/internal/events"
	"chartwatch/internal/service"
)

// statsService defines the interface required by the handlers from the core
// service. This keeps the delivery layer decoupled from the full service
// implementation.
type statsService interface {
	TopArtists(ctx context.Context, limit int, scope domain.Scope) ([]domain.ArtistCurrent, error)
	TopTracks(ctx context.Context, limit int, scope domain.Scope) ([]domain.TrackCurrent, error)
	ArtistHistory(ctx context.Context, name string, scope domain.Scope, windowDays int) ([]domain.ArtistHistoryPoint, error)
	ArtistDetail(ctx context.Context, name string, scope domain.Scope) (*domain.ArtistDetail, error)
	TrackHistory(ctx context.Context, track, artist string, scope domain.Scope, windowDays int) ([]domain.TrackHistoryPoint, error)
	LastRefresh(ctx context.Context) (*time.Time, error)
	LatestCycle(ctx context.Context) (*domain.RefreshCycle, error)
	TriggerRefresh(ctx context.Context, wait bool) (string, error)
}

// Handlers holds dependencies for the stats API handlers.
type Handlers struct {
	service     statsService
	broker      *events.Broker
	adminSecret string
	production  bool
}

// NewHandlers creates a new handler struct.
func NewHandlers(s statsService, broker *events.Broker, adminSecret string, production bool) *Handlers {
	return &Handlers{
		service:     s,
		broker:      broker,
		adminSecret: adminSecret,
		production:  production,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/artists", h.handleTopArtists)
	mux.HandleFunc("/api/artists/history", h.handleArtistHistory)
	mux.HandleFunc("/api/artists/detail", h.handleArtistDetail)
	mux.HandleFunc("/api/tracks", h.handleTopTracks)
	mux.HandleFunc("/api/tracks/history", h.handleTrackHistory)
	mux.HandleFunc("/api/last-updated", h.handleLastUpdated)
	mux.HandleFunc("/api/refresh", h.handleRefresh)
	mux.HandleFunc("/api/refresh/status", h.handleRefreshStatus)
	mux.HandleFunc("/api/refresh/events", h.handleRefreshEvents)
	mux.HandleFunc("/healthz", h.handleHealth)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func queryScope(r *http.Request) domain.Scope {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		return domain.ScopeGlobal
	}
	return domain.Scope(scope)
}

func (h *Handlers) handleTopArtists(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	artists, err := h.service.TopArtists(r.Context(), limit, queryScope(r))
	if err != nil {
		log.Printf("Error fetching artists: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch artists")
		return
	}

	// Alternative ordering for the "biggest movers" view.
	if r.URL.Query().Get("sortBy") == "dailyChange" {
		movers := artists[:0]
		for _, artist := range artists {
			if artist.ListenersDelta != nil {
				movers = append(movers, artist)
			}
		}
		sort.SliceStable(movers, func(i, j int) bool {
			return absInt64(*movers[i].ListenersDelta) > absInt64(*movers[j].ListenersDelta)
		})
		artists = movers
	}

	writeJSON(w, http.StatusOK, map[string]any{"artists": artists})
}

func (h *Handlers) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	tracks, err := h.service.TopTracks(r.Context(), limit, queryScope(r))
	if err != nil {
		log.Printf("Error fetching tracks: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch tracks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (h *Handlers) handleArtistHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	scope := queryScope(r)
	days := queryInt(r, "days", 30)

	history, err := h.service.ArtistHistory(r.Context(), name, scope, days)
	if err != nil {
		log.Printf("Error fetching artist history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch artist history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artistName": name,
		"scope":      scope,
		"history":    history,
		"dataPoints": len(history),
	})
}

func (h *Handlers) handleArtistDetail(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	detail, err := h.service.ArtistDetail(r.Context(), name, queryScope(r))
	if err != nil {
		if errors.Is(err, service.ErrArtistNotFound) {
			writeError(w, http.StatusNotFound, "Artist not found")
			return
		}
		log.Printf("Error fetching artist detail: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch artist detail")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) handleTrackHistory(w http.ResponseWriter, r *http.Request) {
	track := r.URL.Query().Get("track")
	artist := r.URL.Query().Get("artist")
	if track == "" || artist == "" {
		writeError(w, http.StatusBadRequest, "track and artist query parameters are required")
		return
	}
	scope := queryScope(r)
	days := queryInt(r, "days", 30)

	history, err := h.service.TrackHistory(r.Context(), track, artist, scope, days)
	if err != nil {
		log.Printf("Error fetching track history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch track history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trackName":  track,
		"artistName": artist,
		"scope":      scope,
		"history":    history,
		"dataPoints": len(history),
	})
}

func (h *Handlers) handleLastUpdated(w http.ResponseWriter, r *http.Request) {
	lastUpdated, err := h.service.LastRefresh(r.Context())
	if err != nil {
		log.Printf("Error fetching last updated: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch last updated")
		return
	}

	var value *string
	if lastUpdated != nil {
		formatted := lastUpdated.Format(time.RFC3339)
		value = &formatted
	}
	writeJSON(w, http.StatusOK, map[string]any{"lastUpdated": value})
}

// handleRefresh triggers a refresh cycle. In production the shared admin
// secret is required; a local deployment runs unauthenticated, which is a
// documented relaxation rather than a recommendation.
func (h *Handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if h.production {
		if h.adminSecret == "" {
			log.Println("Refresh rejected: admin secret is not configured")
			writeError(w, http.StatusInternalServerError, "Server configuration error: admin secret not configured")
			return
		}
		if presentedSecret(r) != h.adminSecret {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	wait := r.URL.Query().Get("mode") == "sync"
	cycleID, err := h.service.TriggerRefresh(r.Context(), wait)
	if err != nil {
		if errors.Is(err, service.ErrRefreshInFlight) {
			writeError(w, http.StatusConflict, "A refresh cycle is already running")
			return
		}
		// Diagnostic detail stays in the server logs.
		log.Printf("Refresh cycle %s failed: %v", cycleID, err)
		writeError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}

	if wait {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":   "Refresh completed",
			"cycleId":   cycleID,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":   "Refresh started",
		"cycleId":   cycleID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.service.LatestCycle(r.Context())
	if err != nil {
		log.Printf("Error fetching refresh status: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch refresh status")
		return
	}
	if cycle == nil {
		writeJSON(w, http.StatusOK, map[string]any{"cycle": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycle": cycle})
}

// handleRefreshEvents streams refresh lifecycle events as server-sent events.
func (h *Handlers) handleRefreshEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	started := h.broker.Subscribe(service.EventRefreshStarted)
	defer h.broker.Unsubscribe(service.EventRefreshStarted, started)
	completed := h.broker.Subscribe(service.EventRefreshCompleted)
	defer h.broker.Unsubscribe(service.EventRefreshCompleted, completed)
	failed := h.broker.Subscribe(service.EventRefreshFailed)
	defer h.broker.Unsubscribe(service.EventRefreshFailed, failed)

	for {
		var event events.Event
		select {
		case event = <-started:
		case event = <-completed:
		case event = <-failed:
		case <-r.Context().Done():
			return
		}

		payload, err := json.Marshal(event.Data)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, payload)
		flusher.Flush()
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// presentedSecret extracts the shared secret from any of the accepted
// carriers: query parameter, bearer token, or dedicated header.
func presentedSecret(r *http.Request) string {
	if secret := r.URL.Query().Get("secret"); secret != "" {
		return secret
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-Admin-Secret")
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
