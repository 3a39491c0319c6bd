package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, exchanges *atomic.Int32, lifetimeSeconds int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.FormValue("grant_type"))
		require.Equal(t, "client-id", r.FormValue("client_id"))
		require.Equal(t, "client-secret", r.FormValue("client_secret"))

		n := exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"Bearer","expires_in":%d}`, n, lifetimeSeconds)
	}))
}

func newManager(serverURL string) *Manager {
	return NewManager("amadeus", "client-id", "client-secret",
		map[string]string{"test": serverURL}, NewMemoryStore())
}

func TestTokenReusedWithinValidity(t *testing.T) {
	var exchanges atomic.Int32
	srv := newTokenServer(t, &exchanges, 1800)
	defer srv.Close()

	m := newManager(srv.URL)

	first, err := m.Token(context.Background(), "test")
	require.NoError(t, err)
	second, err := m.Token(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), exchanges.Load())
}

func TestTokenRefreshedAfterExpiry(t *testing.T) {
	var exchanges atomic.Int32
	srv := newTokenServer(t, &exchanges, 1800)
	defer srv.Close()

	clock := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	m := newManager(srv.URL).WithClock(func() time.Time { return clock })

	first, err := m.Token(context.Background(), "test")
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	second, err := m.Token(context.Background(), "test")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), exchanges.Load())
}

func TestTokenExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newManager(srv.URL)

	_, err := m.Token(context.Background(), "test")
	require.Error(t, err)

	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, "amadeus", exchangeErr.Provider)
}

func TestTokenUnknownEnvironment(t *testing.T) {
	m := newManager("http://unused")

	_, err := m.Token(context.Background(), "staging")
	var exchangeErr *ExchangeError
	require.ErrorAs(t, err, &exchangeErr)
}

func TestTokenUsable(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	live := Token{AccessToken: "abc", ExpiresAt: now.Add(time.Minute)}
	expired := Token{AccessToken: "abc", ExpiresAt: now.Add(-time.Minute)}
	empty := Token{ExpiresAt: now.Add(time.Minute)}

	assert.True(t, live.Usable(now))
	assert.False(t, expired.Usable(now))
	assert.False(t, empty.Usable(now))
}

func TestMemoryStoreReplacesWholesale(t *testing.T) {
	store := NewMemoryStore()

	store.Put(Token{Provider: "amadeus", Environment: "test", AccessToken: "old"})
	store.Put(Token{Provider: "amadeus", Environment: "test", AccessToken: "new"})
	store.Put(Token{Provider: "amadeus", Environment: "production", AccessToken: "prod"})

	got, ok := store.Get("amadeus", "test")
	require.True(t, ok)
	assert.Equal(t, "new", got.AccessToken)

	got, ok = store.Get("amadeus", "production")
	require.True(t, ok)
	assert.Equal(t, "prod", got.AccessToken)

	_, ok = store.Get("seatsaero", "test")
	assert.False(t, ok)
}
