package crm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepnsharma/crm-chat-connector/internal/config"
)

func newTestTokenCache(tokenURL string) *TokenCache {
	cache := NewTokenCache(config.Dynamics{
		TenantID:     "tenant",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scope:        "https://org.crm.dynamics.com/.default",
	})
	cache.tokenURL = tokenURL
	return cache
}

func tokenEndpoint(t *testing.T, calls *int32, token string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "https://org.crm.dynamics.com/.default", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"expires_in":   expiresIn,
		})
	}
}

func TestTokenCache_ReusesTokenInsideLifetime(t *testing.T) {
	var calls int32
	server := httptest.NewServer(tokenEndpoint(t, &calls, "tok-1", 3600))
	defer server.Close()

	cache := newTestTokenCache(server.URL)
	base := time.Now()
	cache.now = func() time.Time { return base }

	token, err := cache.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Well inside the lifetime: the cached token is reused without a request
	cache.now = func() time.Time { return base.Add(3000 * time.Second) }
	token, err = cache.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenCache_RefreshesInsideSafetyMargin(t *testing.T) {
	var calls int32
	server := httptest.NewServer(tokenEndpoint(t, &calls, "tok", 3600))
	defer server.Close()

	cache := newTestTokenCache(server.URL)
	base := time.Now()
	cache.now = func() time.Time { return base }

	_, err := cache.Token()
	require.NoError(t, err)

	// 3600s lifetime minus the 60s margin: at +3550s the token counts as
	// expired and a second request goes out
	cache.now = func() time.Time { return base.Add(3550 * time.Second) }
	_, err = cache.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_ConcurrentCallersShareOneRequest(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "shared-tok",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	cache := newTestTokenCache(server.URL)

	const workers = 16
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = cache.Token()
		}(i)
	}

	// Give every goroutine time to queue on the in-flight request
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared-tok", tokens[i])
	}
}

func TestTokenCache_FailedRefreshKeepsNothingAndReturnsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
	}))
	defer server.Close()

	cache := newTestTokenCache(server.URL)

	_, err := cache.Token()
	require.Error(t, err)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.False(t, cache.Valid())
}

func TestTokenCache_FailedRefreshPreservesExpiredToken(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-old",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	cache := newTestTokenCache(server.URL)
	base := time.Now()
	cache.now = func() time.Time { return base }

	_, err := cache.Token()
	require.NoError(t, err)

	fail.Store(true)
	cache.now = func() time.Time { return base.Add(4000 * time.Second) }

	_, err = cache.Token()
	require.Error(t, err)

	// The stale value stays in place for the next successful refresh cycle
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	assert.Equal(t, "tok-old", cache.token)
}

func TestTokenCache_RejectsEmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"expires_in":3600}`)
	}))
	defer server.Close()

	cache := newTestTokenCache(server.URL)

	_, err := cache.Token()
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
