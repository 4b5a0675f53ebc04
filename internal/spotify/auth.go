// Path: internal/spotify/auth.go
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chartwatch/internal/config"

	"github.com/go-resty/resty/v2"
)

// expiryMargin is how long before the reported expiry a cached token is
// already considered stale, so a token never dies mid-request.
const expiryMargin = 5 * time.Minute

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// TokenCache obtains and caches a client-credentials bearer token. The cache
// is fetch-and-replace under a lock: overlapping refreshes at worst cost one
// extra token fetch, never a destructive overwrite.
type TokenCache struct {
	client       *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a token cache for the configured credentials.
func NewTokenCache(cfg config.SpotifyConfig) *TokenCache {
	return &TokenCache{
		client:       resty.New().SetTimeout(15 * time.Second),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
	}
}

// Get returns a valid bearer token, refreshing it transparently when the
// cached one is within the expiry margin.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiresAt.Add(-expiryMargin)) {
		return c.token, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", fmt.Errorf("spotify client credentials are not configured")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		Post(c.tokenURL)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = tr.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.token, nil
}

// Invalidate drops the cached token so the next Get fetches a fresh one.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}
