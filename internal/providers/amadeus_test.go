package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/flightsearch/internal/auth"
	"github.com/voyago/flightsearch/internal/models"
)

func newTestTokenManager(t *testing.T) (*auth.Manager, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-bearer","token_type":"Bearer","expires_in":1799}`)
	}))
	manager := auth.NewManager("amadeus", "id", "secret",
		map[string]string{"test": srv.URL}, auth.NewMemoryStore())
	return manager, srv.Close
}

func amadeusTestOffer(id, grandTotal, cabin string) amadeusOffer {
	return amadeusOffer{
		ID: id,
		Itineraries: []amadeusItinerary{{
			Duration: "PT8H30M",
			Segments: []amadeusSegment{{
				Departure:   amadeusEndpoint{IataCode: "FRA", At: "2026-10-15T10:30:00"},
				Arrival:     amadeusEndpoint{IataCode: "JFK", At: "2026-10-15T13:00:00"},
				CarrierCode: "LH",
				Number:      "400",
				Duration:    "PT8H30M",
			}},
		}},
		Price:                  amadeusPrice{Currency: "USD", GrandTotal: grandTotal},
		ValidatingAirlineCodes: []string{"LH"},
		NumberOfBookableSeats:  5,
		TravelerPricings: []amadeusTravelerPricing{{
			FareDetailsBySegment: []amadeusFareDetail{{Cabin: cabin}},
		}},
	}
}

func newAmadeusServer(t *testing.T, offers []amadeusOffer, assertQuery func(*http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/shopping/flight-offers", r.URL.Path)
		require.Equal(t, "Bearer test-bearer", r.Header.Get("Authorization"))
		if assertQuery != nil {
			assertQuery(r)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(amadeusResponse{Data: offers}))
	}))
}

func TestAmadeusSearchNormalizes(t *testing.T) {
	tokens, closeTokens := newTestTokenManager(t)
	defer closeTokens()

	offers := []amadeusOffer{amadeusTestOffer("1", "845.30", "BUSINESS")}
	srv := newAmadeusServer(t, offers, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "FRA", q.Get("originLocationCode"))
		assert.Equal(t, "JFK", q.Get("destinationLocationCode"))
		assert.Equal(t, "2026-10-15", q.Get("departureDate"))
		assert.Equal(t, "2", q.Get("adults"))
		assert.Equal(t, "BUSINESS", q.Get("travelClass"))
		assert.Equal(t, "true", q.Get("nonStop"))
	})
	defer srv.Close()

	provider := NewAmadeusProvider("test", srv.URL, tokens, 5)
	results, err := provider.Search(context.Background(), Query{
		Origin:      "FRA",
		Destination: "JFK",
		StartDate:   "2026-10-15",
		EndDate:     "2026-10-15",
		Cabin:       models.CabinBusiness,
		Passengers:  2,
		NonStop:     true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	offer := results[0]
	assert.Equal(t, "1", offer.ID)
	assert.Equal(t, "amadeus", offer.Provider)
	assert.Equal(t, models.OfferKindCash, offer.Kind)
	assert.Equal(t, "LH", offer.Airline)
	assert.Equal(t, models.CabinBusiness, offer.Cabin)
	assert.InDelta(t, 845.30, offer.Price, 0.001)
	assert.Equal(t, "USD", offer.Currency)
	assert.Equal(t, 5, offer.RemainingSeats)
	require.Len(t, offer.Segments, 1)
	assert.Equal(t, "FRA", offer.Segments[0].From)
	assert.Equal(t, "JFK", offer.Segments[0].To)
	assert.Equal(t, 510, offer.Segments[0].DurationMin)
	assert.False(t, offer.Segments[0].DepartsAt.IsZero())
}

func TestAmadeusDropsOffersLackingCabin(t *testing.T) {
	tokens, closeTokens := newTestTokenManager(t)
	defer closeTokens()

	offers := []amadeusOffer{
		amadeusTestOffer("1", "420.00", "ECONOMY"),
		amadeusTestOffer("2", "980.00", "BUSINESS"),
	}
	srv := newAmadeusServer(t, offers, nil)
	defer srv.Close()

	provider := NewAmadeusProvider("test", srv.URL, tokens, 5)
	results, err := provider.Search(context.Background(), Query{
		Origin:      "FRA",
		Destination: "JFK",
		StartDate:   "2026-10-15",
		Cabin:       models.CabinBusiness,
		Passengers:  1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)
}

func TestAmadeusSortsByPriceAndCaps(t *testing.T) {
	tokens, closeTokens := newTestTokenManager(t)
	defer closeTokens()

	offers := []amadeusOffer{
		amadeusTestOffer("high", "1200.00", "ECONOMY"),
		amadeusTestOffer("low", "380.00", "ECONOMY"),
		amadeusTestOffer("mid", "640.00", "ECONOMY"),
	}
	srv := newAmadeusServer(t, offers, nil)
	defer srv.Close()

	provider := NewAmadeusProvider("test", srv.URL, tokens, 2)
	results, err := provider.Search(context.Background(), Query{
		Origin:      "FRA",
		Destination: "JFK",
		StartDate:   "2026-10-15",
		Cabin:       models.CabinEconomy,
		Passengers:  1,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "low", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)
}

func TestAmadeusTokenFailureIsProviderError(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer tokenSrv.Close()

	tokens := auth.NewManager("amadeus", "id", "bad-secret",
		map[string]string{"test": tokenSrv.URL}, auth.NewMemoryStore())

	provider := NewAmadeusProvider("test", "http://unused", tokens, 5)
	_, err := provider.Search(context.Background(), Query{
		Origin:      "FRA",
		Destination: "JFK",
		StartDate:   "2026-10-15",
		Cabin:       models.CabinEconomy,
		Passengers:  1,
	})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "amadeus", provErr.Provider)
}

func TestParseISODurationMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"PT8H30M", 510},
		{"PT45M", 45},
		{"PT2H", 120},
		{"garbage", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseISODurationMinutes(tt.in), tt.in)
	}
}

func TestParseFlightTimeFormats(t *testing.T) {
	for _, in := range []string{
		"2026-10-15T10:30:00Z",
		"2026-10-15T10:30:00+02:00",
		"2026-10-15T10:30:00",
		"2026-10-15 10:30:00",
		"2026-10-15T10:30",
	} {
		got, err := parseFlightTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, 10, got.Hour(), in)
		assert.Equal(t, 30, got.Minute(), in)
	}

	_, err := parseFlightTime("not a time")
	assert.Error(t, err)
}
