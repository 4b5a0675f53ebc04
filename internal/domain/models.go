// Path: internal/domain/models.go
package domain

import "time"

// Scope identifies a chart partition, e.g. "global" or a country code.
type Scope string

const (
	ScopeGlobal Scope = "global"
)

// UnknownArtist is the sentinel used when a combined "Artist - Title" cell
// carries no separator and the artist cannot be determined.
const UnknownArtist = "Unknown"

// ArtistKey is the durable identity of an artist within a scope. Names come
// from the scraped source and may carry case/whitespace variance; the key is
// still name-based because no stable external id exists until enrichment.
type ArtistKey struct {
	Name  string
	Scope Scope
}

// TrackKey is the durable identity of a track within a scope.
type TrackKey struct {
	Track  string
	Artist string
	Scope  Scope
}

// RawArtist is the minimally-validated output of one parsed artist row.
// It is transient: folded into a snapshot and a current-state upsert, then
// discarded.
type RawArtist struct {
	Name             string
	Rank             int
	MonthlyListeners int64
	// ListenersDelta is nil when the source table has no native delta column.
	ListenersDelta *int64
}

// RawTrack is the minimally-validated output of one parsed track row.
type RawTrack struct {
	Track        string
	Artist       string
	Rank         int
	DailyStreams int64
	TotalStreams *int64
}

// ArtistSnapshot is an immutable point-in-time chart observation. One is
// appended per observed artist per refresh cycle and never mutated.
type ArtistSnapshot struct {
	ArtistName       string    `bson:"artistName"`
	Scope            Scope     `bson:"scope"`
	Rank             int       `bson:"rank"`
	MonthlyListeners int64     `bson:"monthlyListeners"`
	ListenersDelta   *int64    `bson:"listenersDelta,omitempty"`
	CreatedAt        time.Time `bson:"createdAt"`
}

// TrackSnapshot is an immutable point-in-time chart observation for a track.
type TrackSnapshot struct {
	TrackName    string    `bson:"trackName"`
	ArtistName   string    `bson:"artistName"`
	Scope        Scope     `bson:"scope"`
	Rank         int       `bson:"rank"`
	DailyStreams int64     `bson:"dailyStreams"`
	TotalStreams *int64    `bson:"totalStreams,omitempty"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// ArtistCurrent is the single latest materialized record per artist per scope.
// Rank and metric fields mutate every cycle; enrichment fields are written at
// most once and then treated as an immutable cache.
type ArtistCurrent struct {
	ArtistName       string `bson:"artistName" json:"name"`
	Scope            Scope  `bson:"scope" json:"scope"`
	Rank             int    `bson:"rank" json:"rank"`
	PreviousRank     *int   `bson:"previousRank,omitempty" json:"previousRank"`
	RankDelta        *int   `bson:"rankDelta,omitempty" json:"rankDelta"`
	MonthlyListeners int64  `bson:"monthlyListeners" json:"monthlyListeners"`
	ListenersDelta   *int64 `bson:"listenersDelta,omitempty" json:"listenersDelta"`

	SpotifyID  string   `bson:"spotifyId,omitempty" json:"artistId,omitempty"`
	ImageURL   string   `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Genres     []string `bson:"genres,omitempty" json:"genres,omitempty"`
	SpotifyURL string   `bson:"spotifyUrl,omitempty" json:"spotifyUrl,omitempty"`

	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

// Key returns the store key for this record.
func (a *ArtistCurrent) Key() ArtistKey {
	return ArtistKey{Name: a.ArtistName, Scope: a.Scope}
}

// TrackCurrent is the single latest materialized record per track per scope.
type TrackCurrent struct {
	TrackName    string `bson:"trackName" json:"name"`
	ArtistName   string `bson:"artistName" json:"mainArtistName"`
	Scope        Scope  `bson:"scope" json:"scope"`
	Rank         int    `bson:"rank" json:"rank"`
	PreviousRank *int   `bson:"previousRank,omitempty" json:"previousRank"`
	RankDelta    *int   `bson:"rankDelta,omitempty" json:"rankDelta"`
	DailyStreams int64  `bson:"dailyStreams" json:"dailyStreams"`
	TotalStreams *int64 `bson:"totalStreams,omitempty" json:"totalStreams"`

	SpotifyID  string `bson:"spotifyId,omitempty" json:"trackId,omitempty"`
	ImageURL   string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	PreviewURL string `bson:"previewUrl,omitempty" json:"previewUrl,omitempty"`
	SpotifyURL string `bson:"spotifyUrl,omitempty" json:"spotifyUrl,omitempty"`

	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

// Key returns the store key for this record.
func (t *TrackCurrent) Key() TrackKey {
	return TrackKey{Track: t.TrackName, Artist: t.ArtistName, Scope: t.Scope}
}

// ArtistTopSong is one row of an artist's all-time top songs page. Stream
// figures keep the source page's native decimal formatting.
type ArtistTopSong struct {
	TrackName    string  `json:"trackName"`
	TotalStreams float64 `json:"totalStreams"`
	DailyStreams float64 `json:"dailyStreams"`
	SpotifyURL   string  `json:"spotifyUrl,omitempty"`
}

// ArtistTopVideo is one row of an artist's top videos page.
type ArtistTopVideo struct {
	VideoTitle     string `json:"videoTitle"`
	TotalViews     int64  `json:"totalViews"`
	YesterdayViews int64  `json:"yesterdayViews"`
	YouTubeURL     string `json:"youtubeUrl,omitempty"`
}

// ArtistDetail combines the materialized artist record with on-demand scraped
// top songs and videos. The lists are best-effort and may be empty.
type ArtistDetail struct {
	Artist    ArtistCurrent    `json:"artist"`
	TopSongs  []ArtistTopSong  `json:"topSongs"`
	TopVideos []ArtistTopVideo `json:"topVideos"`
}

// CycleState represents the lifecycle of one refresh cycle.
type CycleState string

const (
	CycleRunning   CycleState = "RUNNING"
	CycleCompleted CycleState = "COMPLETED"
	// CyclePartial means at least one scope failed but others were refreshed.
	CyclePartial CycleState = "PARTIAL"
	CycleFailed  CycleState = "FAILED"
)

// RefreshCycle is the persisted ledger entry for one refresh invocation.
// It makes the daemon's last known cycle outcome survive restarts.
type RefreshCycle struct {
	ID         string     `bson:"_id" json:"cycleId"`
	State      CycleState `bson:"state" json:"state"`
	StartedAt  time.Time  `bson:"startedAt" json:"startedAt"`
	FinishedAt *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
	// ScopeErrors maps a failed scope/kind pair ("nl/tracks") to its error text.
	ScopeErrors map[string]string `bson:"scopeErrors,omitempty" json:"scopeErrors,omitempty"`
	Scraped     int               `bson:"scraped" json:"scraped"`
	Rejected    int               `bson:"rejected" json:"rejected"`
	Enriched    int               `bson:"enriched" json:"enriched"`
}

// ArtistHistoryPoint is one artist snapshot projected for trend charts.
type ArtistHistoryPoint struct {
	Date             time.Time `json:"date"`
	MonthlyListeners int64     `json:"monthlyListeners"`
	Rank             int       `json:"rank"`
	ListenersDelta   int64     `json:"listenersDelta"`
}

// TrackHistoryPoint is one track snapshot projected for trend charts.
type TrackHistoryPoint struct {
	Date         time.Time `json:"date"`
	DailyStreams int64     `json:"dailyStreams"`
	TotalStreams *int64    `json:"totalStreams"`
	Rank         int       `json:"rank"`
}
