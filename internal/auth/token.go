package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/voyago/flightsearch/internal/retry"
	"github.com/voyago/flightsearch/pkg/logx"
)

// expirySkew is subtracted from the reported lifetime so a token is never
// handed out moments before the provider rejects it.
const expirySkew = 60 * time.Second

// Token is a cached client-credentials access token for one (provider,
// environment) pair. Tokens are replaced wholesale on refresh, never mutated.
type Token struct {
	Provider    string
	Environment string
	AccessToken string
	ExpiresAt   time.Time
}

// Usable reports whether the token can still authenticate a call at now.
func (t Token) Usable(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// TokenStore holds the authoritative token per (provider, environment).
// Implementations must allow non-blocking reads; writes replace wholesale.
type TokenStore interface {
	Get(provider, environment string) (Token, bool)
	Put(token Token)
}

type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]Token)}
}

func storeKey(provider, environment string) string {
	return provider + ":" + environment
}

func (s *MemoryStore) Get(provider, environment string) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[storeKey(provider, environment)]
	return t, ok
}

func (s *MemoryStore) Put(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[storeKey(token.Provider, token.Environment)] = token
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeError marks a failed client-credentials exchange. Callers treat it
// as a provider error; they never proceed with a stale or absent token.
type ExchangeError struct {
	Provider string
	Err      error
}

func (e *ExchangeError) Error() string {
	return e.Provider + " token exchange: " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// Manager caches and refreshes a client-credentials token per environment.
// Concurrent callers during a refresh may each trigger an exchange; the last
// write wins. The exchange is idempotent and cheap next to search latency, so
// the race is tolerated rather than single-flighted.
type Manager struct {
	provider     string
	clientID     string
	clientSecret string
	tokenURLs    map[string]string
	store        TokenStore
	client       *http.Client
	policy       retry.Policy
	now          func() time.Time
}

func NewManager(provider, clientID, clientSecret string, tokenURLs map[string]string, store TokenStore) *Manager {
	return &Manager{
		provider:     provider,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURLs:    tokenURLs,
		store:        store,
		client:       &http.Client{Timeout: 10 * time.Second},
		policy:       retry.DefaultPolicy(),
		now:          time.Now,
	}
}

// WithClock pins the clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// WithHTTPClient swaps the transport, for tests.
func (m *Manager) WithHTTPClient(client *http.Client) *Manager {
	m.client = client
	return m
}

// Token returns a usable access token for the environment, exchanging
// credentials first when the cached one is absent or expired.
func (m *Manager) Token(ctx context.Context, environment string) (string, error) {
	if cached, ok := m.store.Get(m.provider, environment); ok && cached.Usable(m.now()) {
		return cached.AccessToken, nil
	}

	endpoint, ok := m.tokenURLs[environment]
	if !ok {
		return "", &ExchangeError{Provider: m.provider, Err: fmt.Errorf("unknown environment %q", environment)}
	}

	var resp tokenResponse
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		return m.exchange(ctx, endpoint, &resp)
	})
	if err != nil {
		return "", &ExchangeError{Provider: m.provider, Err: err}
	}

	token := Token{
		Provider:    m.provider,
		Environment: environment,
		AccessToken: resp.AccessToken,
		ExpiresAt:   m.now().Add(time.Duration(resp.ExpiresIn)*time.Second - expirySkew),
	}
	m.store.Put(token)

	logx.Debug().
		Str("provider", m.provider).
		Str("environment", environment).
		Time("expires_at", token.ExpiresAt).
		Msg("token refreshed")

	return token.AccessToken, nil
}

func (m *Manager) exchange(ctx context.Context, endpoint string, out *tokenResponse) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("token endpoint returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("token response missing access_token")
	}

	return nil
}
