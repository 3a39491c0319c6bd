package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/flightsearch/internal/airports"
	"github.com/voyago/flightsearch/internal/faillog"
	"github.com/voyago/flightsearch/internal/flexdate"
	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/internal/orchestrator"
)

func newTestHandler(t *testing.T) *SearchHandler {
	t.Helper()

	dir, err := airports.NewDirectory()
	require.NoError(t, err)

	failures, err := faillog.Open(filepath.Join(t.TempDir(), "faillog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { failures.Close() })

	orch := orchestrator.New(nil, flexdate.NewHelper(time.Millisecond),
		airports.NewResolver(dir), dir, orchestrator.DefaultConfig()).
		WithFailureLog(failures)

	return NewSearchHandler(orch, nil, nil, failures, "sweep-secret")
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func TestSearchRequiresConversationID(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Search, http.MethodPost, "/api/v1/search",
		`{"origin":"FRA","destination":"JFK","departure_date":"2027-05-10"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_request", errResp.Error)
	assert.Contains(t, errResp.Message, "conversation_id")
}

func TestSearchValidationBecomes400(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Search, http.MethodPost, "/api/v1/search",
		`{"conversation_id":"conv-1","origin":"FRA","destination":"FRA","departure_date":"2027-05-10"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "validation_error", errResp.Error)
}

func TestSearchReturnsOutcome(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Search, http.MethodPost, "/api/v1/search",
		`{"conversation_id":"conv-1","origin":"FRA","destination":"JFK","departure_date":"2027-05-10"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome models.SearchOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	// No providers are wired, so the exact stage comes back empty and offers
	// the flexible follow-up.
	assert.Equal(t, models.OutcomeOfferFlexible, outcome.Kind)
}

func TestSearchMalformedBody(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.Search, http.MethodPost, "/api/v1/search", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailedSearchesRejectsBadDates(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h.FailedSearches, http.MethodGet, "/api/v1/failed-searches?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailedSearchesListsLoggedEntries(t *testing.T) {
	h := newTestHandler(t)

	// An empty search run logs one zero-result entry carrying the caller's
	// original phrasing.
	doJSON(t, h.Search, http.MethodPost, "/api/v1/search",
		`{"conversation_id":"conv-1","user_id":"user-42","query_text":"cheap flights to new york","origin":"FRA","destination":"JFK","departure_date":"2027-05-10"}`)

	rec := doJSON(t, h.FailedSearches, http.MethodGet, "/api/v1/failed-searches?q=FRA", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []faillog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "no_exact_results", entries[0].ErrorClass)
	assert.Equal(t, "user-42", entries[0].UserID)
	assert.Equal(t, "cheap flights to new york", entries[0].QueryText)

	// Free text also matches the stored query phrasing.
	rec = doJSON(t, h.FailedSearches, http.MethodGet, "/api/v1/failed-searches?q=new+york", "")
	require.Equal(t, http.StatusOK, rec.Code)
	entries = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestSweepRequiresSecret(t *testing.T) {
	h := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/failed-searches/sweep", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.SweepFailedSearches(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/failed-searches/sweep", nil)
	req.Header.Set("X-Sweep-Secret", "sweep-secret")
	rec = httptest.NewRecorder()
	require.NoError(t, h.SweepFailedSearches(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Zero(t, result["deleted"])
}

func TestHealthHandler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, HealthHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
