package crm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
)

// expirySafetyMargin is subtracted from the token lifetime so a token is
// never handed out moments before the remote side stops accepting it.
const expirySafetyMargin = 60 * time.Second

// TokenCache holds one Azure AD client-credentials token shared by every
// Dataverse call. Reads are lock-cheap; concurrent refreshes collapse into a
// single token request whose result (or failure) is broadcast to all waiters.
type TokenCache struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string

	httpClient *http.Client

	mu     sync.RWMutex
	token  string
	expiry time.Time

	group singleflight.Group

	// now is swappable for tests
	now func() time.Time
}

// NewTokenCache builds a cache for the configured Azure AD application.
func NewTokenCache(cfg config.Dynamics) *TokenCache {
	return &TokenCache{
		tokenURL:     cfg.TokenURL(),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        cfg.Scope,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

// Token returns a usable access token, refreshing it when the cached one is
// missing or inside the expiry safety margin.
func (c *TokenCache) Token() (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.refresh()
}

// Valid probes token issuance for health checks, swallowing the error.
func (c *TokenCache) Valid() bool {
	_, err := c.Token()
	return err == nil
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiry.Add(-expirySafetyMargin)) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) refresh() (string, error) {
	token, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Another caller may have already refreshed while we queued
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.requestToken()
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// requestToken performs the client-credentials exchange. On failure the
// previous cached value is left untouched.
func (c *TokenCache) requestToken() (string, error) {
	log.Info().Msg("requesting new access token from Azure AD")

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", c.scope)

	resp, err := c.httpClient.Post(c.tokenURL,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Err: fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &AuthError{Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token response carried no access_token")}
	}

	c.mu.Lock()
	c.token = payload.AccessToken
	c.expiry = c.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	c.mu.Unlock()

	log.Info().Int("expires_in", payload.ExpiresIn).Msg("obtained access token")
	return payload.AccessToken, nil
}
