// Path: internal/config/config.go
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Environment string `mapstructure:"environment"`
	Server      ServerConfig
	Database    DatabaseConfig
	Scraper     ScraperConfig
	Refresher   RefresherConfig
	Spotify     SpotifyConfig
	Admin       AdminConfig
	Charts      []ChartConfig
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	URI                      string `mapstructure:"uri"`
	Name                     string `mapstructure:"name"`
	ArtistSnapshotCollection string `mapstructure:"artist_snapshot_collection"`
	TrackSnapshotCollection  string `mapstructure:"track_snapshot_collection"`
	ArtistCurrentCollection  string `mapstructure:"artist_current_collection"`
	TrackCurrentCollection   string `mapstructure:"track_current_collection"`
	StatusCollection         string `mapstructure:"status_collection"`
}

// ScraperConfig holds settings for the chart page scraper.
type ScraperConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	UserAgent         string `mapstructure:"user_agent"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	BurstLimit        int    `mapstructure:"burst_limit"`
}

// RefresherConfig holds settings for the periodic refresh cycle.
type RefresherConfig struct {
	IntervalHours int `mapstructure:"interval_hours"`
	ArtistLimit   int `mapstructure:"artist_limit"`
	TrackLimit    int `mapstructure:"track_limit"`
	// Plausibility floors: rows whose primary metric falls below these are
	// presumed to be parsing artifacts, not real chart data.
	ArtistFloor   int64 `mapstructure:"artist_floor"`
	TrackFloor    int64 `mapstructure:"track_floor"`
	EnrichDelayMS int   `mapstructure:"enrich_delay_ms"`
}

// SpotifyConfig holds credentials and endpoints for metadata enrichment.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenURL     string `mapstructure:"token_url"`
	APIURL       string `mapstructure:"api_url"`
}

// AdminConfig holds the shared secret gating the refresh trigger.
type AdminConfig struct {
	Secret string `mapstructure:"secret"`
}

// ChartConfig describes one chart scope and where its pages live relative to
// the scraper base URL. Scopes without a listeners page derive their artist
// ranking by aggregating the daily track chart.
type ChartConfig struct {
	Scope         string `mapstructure:"scope"`
	ArtistsPath   string `mapstructure:"artists_path"`
	TracksPath    string `mapstructure:"tracks_path"`
	DeriveArtists bool   `mapstructure:"derive_artists"`
}

// Load loads the configuration from file and environment variables.
func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("SERVER.PORT", "8080")
	viper.SetDefault("DATABASE.NAME", "chartwatch")
	viper.SetDefault("DATABASE.ARTIST_SNAPSHOT_COLLECTION", "artist_snapshots")
	viper.SetDefault("DATABASE.TRACK_SNAPSHOT_COLLECTION", "track_snapshots")
	viper.SetDefault("DATABASE.ARTIST_CURRENT_COLLECTION", "artist_current")
	viper.SetDefault("DATABASE.TRACK_CURRENT_COLLECTION", "track_current")
	viper.SetDefault("DATABASE.STATUS_COLLECTION", "_status")
	viper.SetDefault("SCRAPER.BASE_URL", "https://kworb.net")
	viper.SetDefault("SCRAPER.USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	viper.SetDefault("SCRAPER.REQUESTS_PER_SECOND", 1)
	viper.SetDefault("SCRAPER.BURST_LIMIT", 2)
	viper.SetDefault("REFRESHER.INTERVAL_HOURS", 12)
	viper.SetDefault("REFRESHER.ARTIST_LIMIT", 500)
	viper.SetDefault("REFRESHER.TRACK_LIMIT", 100)
	viper.SetDefault("REFRESHER.ARTIST_FLOOR", 1000)
	viper.SetDefault("REFRESHER.TRACK_FLOOR", 100000)
	viper.SetDefault("REFRESHER.ENRICH_DELAY_MS", 100)
	viper.SetDefault("SPOTIFY.TOKEN_URL", "https://accounts.spotify.com/api/token")
	viper.SetDefault("SPOTIFY.API_URL", "https://api.spotify.com/v1")

	// Load from config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err // Only return error if it's not a "file not found" error
		}
	}

	// Load from environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Chart scopes are structured and awkward to default through viper keys;
	// fall back to the known source layout when the config file names none.
	if len(cfg.Charts) == 0 {
		cfg.Charts = []ChartConfig{
			{
				Scope:       "global",
				ArtistsPath: "/spotify/listeners.html",
				TracksPath:  "/spotify/country/global_daily.html",
			},
			{
				Scope:         "nl",
				TracksPath:    "/spotify/country/nl_daily.html",
				DeriveArtists: true,
			},
		}
	}

	return &cfg, nil
}
