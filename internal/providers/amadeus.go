package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/voyago/flightsearch/internal/auth"
	"github.com/voyago/flightsearch/internal/models"
)

var amadeusCabinCodes = map[string]string{
	models.CabinEconomy:        "ECONOMY",
	models.CabinPremiumEconomy: "PREMIUM_ECONOMY",
	models.CabinBusiness:       "BUSINESS",
	models.CabinFirst:          "FIRST",
}

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusSegment struct {
	Departure     amadeusEndpoint `json:"departure"`
	Arrival       amadeusEndpoint `json:"arrival"`
	CarrierCode   string          `json:"carrierCode"`
	Number        string          `json:"number"`
	Duration      string          `json:"duration"`
	NumberOfStops int             `json:"numberOfStops"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusPrice struct {
	Currency   string `json:"currency"`
	GrandTotal string `json:"grandTotal"`
}

type amadeusFareDetail struct {
	Cabin string `json:"cabin"`
}

type amadeusTravelerPricing struct {
	FareDetailsBySegment []amadeusFareDetail `json:"fareDetailsBySegment"`
}

type amadeusOffer struct {
	ID                     string                   `json:"id"`
	Itineraries            []amadeusItinerary       `json:"itineraries"`
	Price                  amadeusPrice             `json:"price"`
	ValidatingAirlineCodes []string                 `json:"validatingAirlineCodes"`
	NumberOfBookableSeats  int                      `json:"numberOfBookableSeats"`
	TravelerPricings       []amadeusTravelerPricing `json:"travelerPricings"`
}

type amadeusResponse struct {
	Data []amadeusOffer `json:"data"`
}

// AmadeusProvider searches published cash fares. The API takes a single
// departure date, so date-range search runs through the flexible-date batch
// helper instead.
type AmadeusProvider struct {
	environment string
	baseURL     string
	tokens      *auth.Manager
	client      *http.Client
	resultCap   int
}

func NewAmadeusProvider(environment, baseURL string, tokens *auth.Manager, resultCap int) *AmadeusProvider {
	return &AmadeusProvider{
		environment: environment,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokens:      tokens,
		client:      &http.Client{Timeout: 15 * time.Second},
		resultCap:   resultCap,
	}
}

// WithHTTPClient swaps the transport, for tests.
func (p *AmadeusProvider) WithHTTPClient(client *http.Client) *AmadeusProvider {
	p.client = client
	return p
}

func (p *AmadeusProvider) Name() string {
	return "amadeus"
}

func (p *AmadeusProvider) Kind() string {
	return models.OfferKindCash
}

func (p *AmadeusProvider) SupportsDateRange() bool {
	return false
}

func (p *AmadeusProvider) Search(ctx context.Context, q Query) ([]models.FlightOffer, error) {
	cabin, ok := amadeusCabinCodes[q.Cabin]
	if !ok {
		return nil, NewProviderError(p.Name(), fmt.Errorf("unsupported cabin %q", q.Cabin))
	}

	// A failed exchange means every call this token would have authenticated
	// fails too, which is the intended provider-error behavior.
	accessToken, err := p.tokens.Token(ctx, p.environment)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}

	params := url.Values{}
	params.Set("originLocationCode", q.Origin)
	params.Set("destinationLocationCode", q.Destination)
	params.Set("departureDate", q.StartDate)
	params.Set("adults", strconv.Itoa(q.Passengers))
	params.Set("travelClass", cabin)
	params.Set("currencyCode", "USD")
	params.Set("max", "20")
	if q.NonStop {
		params.Set("nonStop", "true")
	}

	endpoint := p.baseURL + "/v2/shopping/flight-offers?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, NewProviderError(p.Name(), fmt.Errorf("search returned %d: %s", res.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload amadeusResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, NewProviderError(p.Name(), fmt.Errorf("decode search response: %w", err))
	}

	var results []models.FlightOffer
	for _, raw := range payload.Data {
		offer, err := p.normalize(raw, q.Cabin, cabin)
		if err != nil {
			continue
		}
		results = append(results, offer)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Price < results[j].Price
	})
	if p.resultCap > 0 && len(results) > p.resultCap {
		results = results[:p.resultCap]
	}

	return results, nil
}

func (p *AmadeusProvider) normalize(raw amadeusOffer, cabin, cabinCode string) (models.FlightOffer, error) {
	if !offerHasCabin(raw, cabinCode) {
		return models.FlightOffer{}, fmt.Errorf("offer %s lacks cabin %s", raw.ID, cabinCode)
	}
	if len(raw.Itineraries) == 0 || len(raw.Itineraries[0].Segments) == 0 {
		return models.FlightOffer{}, fmt.Errorf("offer %s has no segments", raw.ID)
	}

	amount, err := strconv.ParseFloat(raw.Price.GrandTotal, 64)
	if err != nil {
		return models.FlightOffer{}, fmt.Errorf("offer %s price: %w", raw.ID, err)
	}

	segments := make([]models.Segment, 0, len(raw.Itineraries[0].Segments))
	for _, s := range raw.Itineraries[0].Segments {
		dep, err := parseFlightTime(s.Departure.At)
		if err != nil {
			return models.FlightOffer{}, err
		}
		arr, err := parseFlightTime(s.Arrival.At)
		if err != nil {
			return models.FlightOffer{}, err
		}
		segments = append(segments, models.Segment{
			From:        s.Departure.IataCode,
			To:          s.Arrival.IataCode,
			DepartsAt:   dep,
			ArrivesAt:   arr,
			DurationMin: parseISODurationMinutes(s.Duration),
			Stops:       s.NumberOfStops,
		})
	}

	var airline string
	if len(raw.ValidatingAirlineCodes) > 0 {
		airline = raw.ValidatingAirlineCodes[0]
	}

	return models.FlightOffer{
		ID:             raw.ID,
		Provider:       p.Name(),
		Kind:           models.OfferKindCash,
		Airline:        airline,
		Cabin:          cabin,
		Price:          amount,
		Currency:       raw.Price.Currency,
		Segments:       segments,
		RemainingSeats: raw.NumberOfBookableSeats,
	}, nil
}

func offerHasCabin(raw amadeusOffer, cabinCode string) bool {
	for _, tp := range raw.TravelerPricings {
		for _, fd := range tp.FareDetailsBySegment {
			if fd.Cabin == cabinCode {
				return true
			}
		}
	}
	return false
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// parseISODurationMinutes handles the PT8H30M durations in segment payloads.
// Unparseable values become zero rather than failing the offer.
func parseISODurationMinutes(s string) int {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes
}
