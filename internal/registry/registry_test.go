package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyago/flightsearch/internal/models"
)

func TestDedupeKeyDeterministic(t *testing.T) {
	req := models.FlightSearchRequest{
		Origin:        "FRA",
		Destination:   "JFK",
		DepartureDate: "2026-10-15",
		CabinClass:    models.CabinBusiness,
		Passengers:    1,
	}

	first := DedupeKey("conv-1", "flight_search", req)
	second := DedupeKey("conv-1", "flight_search", req)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestDedupeKeyDiverges(t *testing.T) {
	base := models.FlightSearchRequest{
		Origin:        "FRA",
		Destination:   "JFK",
		DepartureDate: "2026-10-15",
		CabinClass:    models.CabinBusiness,
		Passengers:    1,
	}
	otherDate := base
	otherDate.DepartureDate = "2026-10-16"

	key := DedupeKey("conv-1", "flight_search", base)

	assert.NotEqual(t, key, DedupeKey("conv-2", "flight_search", base))
	assert.NotEqual(t, key, DedupeKey("conv-1", "flight_search_flexible", base))
	assert.NotEqual(t, key, DedupeKey("conv-1", "flight_search", otherDate))
}

func TestCanTransition(t *testing.T) {
	terminal := []string{StatusSucceeded, StatusFailed, StatusTimeout, StatusCanceled}

	for _, to := range append([]string{StatusRunning}, terminal...) {
		assert.True(t, CanTransition(StatusQueued, to), "queued -> %s", to)
	}
	for _, to := range terminal {
		assert.True(t, CanTransition(StatusRunning, to), "running -> %s", to)
	}

	assert.False(t, CanTransition(StatusRunning, StatusQueued))
	assert.False(t, CanTransition(StatusQueued, StatusQueued))
	for _, from := range terminal {
		for _, to := range append([]string{StatusQueued, StatusRunning}, terminal...) {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransition("bogus", StatusRunning))
	assert.False(t, CanTransition(StatusQueued, "bogus"))
}

func TestRecordFromHashRoundTrip(t *testing.T) {
	raw := map[string]string{
		"id":              "call-1",
		"conversation_id": "conv-1",
		"tool_name":       "flight_search",
		"status":          StatusSucceeded,
		"request":         `{"origin":"FRA"}`,
		"response":        `{"kind":"results"}`,
		"dedupe_key":      "abc",
		"created_at":      "2026-08-31T10:00:00Z",
		"updated_at":      "2026-08-31T10:00:05Z",
	}

	rec := recordFromHash(raw)
	assert.Equal(t, "call-1", rec.ID)
	assert.Equal(t, "conv-1", rec.ConversationID)
	assert.Equal(t, StatusSucceeded, rec.Status)
	assert.Equal(t, `{"kind":"results"}`, rec.Response)
	assert.Equal(t, 5, int(rec.UpdatedAt.Sub(rec.CreatedAt).Seconds()))
}
