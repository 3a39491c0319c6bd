package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/voyago/flightsearch/internal/models"
)

// seats.aero cached-search rows carry one column set per cabin letter:
// Y economy, W premium economy, J business, F first.
var seatsAeroCabinCodes = map[string]string{
	models.CabinEconomy:        "Y",
	models.CabinPremiumEconomy: "W",
	models.CabinBusiness:       "J",
	models.CabinFirst:          "F",
}

type seatsAeroResponse struct {
	Data []seatsAeroAvailability `json:"data"`
}

type seatsAeroRoute struct {
	OriginAirport      string `json:"OriginAirport"`
	DestinationAirport string `json:"DestinationAirport"`
}

type seatsAeroAvailability struct {
	ID    string         `json:"ID"`
	Route seatsAeroRoute `json:"Route"`
	Date  string         `json:"Date"`

	YAvailable bool `json:"YAvailable"`
	WAvailable bool `json:"WAvailable"`
	JAvailable bool `json:"JAvailable"`
	FAvailable bool `json:"FAvailable"`

	YMileageCost string `json:"YMileageCost"`
	WMileageCost string `json:"WMileageCost"`
	JMileageCost string `json:"JMileageCost"`
	FMileageCost string `json:"FMileageCost"`

	YTotalTaxes int `json:"YTotalTaxes"`
	WTotalTaxes int `json:"WTotalTaxes"`
	JTotalTaxes int `json:"JTotalTaxes"`
	FTotalTaxes int `json:"FTotalTaxes"`

	YRemainingSeats int `json:"YRemainingSeats"`
	WRemainingSeats int `json:"WRemainingSeats"`
	JRemainingSeats int `json:"JRemainingSeats"`
	FRemainingSeats int `json:"FRemainingSeats"`

	YDirect bool `json:"YDirect"`
	WDirect bool `json:"WDirect"`
	JDirect bool `json:"JDirect"`
	FDirect bool `json:"FDirect"`

	YAirlines string `json:"YAirlines"`
	WAirlines string `json:"WAirlines"`
	JAirlines string `json:"JAirlines"`
	FAirlines string `json:"FAirlines"`

	TaxesCurrency string `json:"TaxesCurrency"`
	Source        string `json:"Source"`
}

// SeatsAeroProvider searches award availability. The API accepts a native
// start/end date range, so flexible-date search needs only one call.
type SeatsAeroProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	resultCap int
}

func NewSeatsAeroProvider(apiKey, baseURL string, resultCap int) *SeatsAeroProvider {
	return &SeatsAeroProvider{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		resultCap: resultCap,
	}
}

// WithHTTPClient swaps the transport, for tests.
func (p *SeatsAeroProvider) WithHTTPClient(client *http.Client) *SeatsAeroProvider {
	p.client = client
	return p
}

func (p *SeatsAeroProvider) Name() string {
	return "seatsaero"
}

func (p *SeatsAeroProvider) Kind() string {
	return models.OfferKindAward
}

func (p *SeatsAeroProvider) SupportsDateRange() bool {
	return true
}

func (p *SeatsAeroProvider) Search(ctx context.Context, q Query) ([]models.FlightOffer, error) {
	cabinCode, ok := seatsAeroCabinCodes[q.Cabin]
	if !ok {
		return nil, NewProviderError(p.Name(), fmt.Errorf("unsupported cabin %q", q.Cabin))
	}

	params := url.Values{}
	params.Set("origin_airport", q.Origin)
	params.Set("destination_airport", q.Destination)
	params.Set("start_date", q.StartDate)
	params.Set("end_date", q.EndDate)
	params.Set("cabin", strings.ToLower(cabinCode))

	endpoint := p.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewProviderError(p.Name(), err)
	}
	req.Header.Set("Partner-Authorization", p.apiKey)
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

	var payload seatsAeroResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, NewProviderError(p.Name(), fmt.Errorf("decode search response: %w", err))
	}

	var results []models.FlightOffer
	for _, row := range payload.Data {
		offer, ok := p.normalize(row, cabinCode, q.Cabin)
		if !ok {
			continue
		}
		results = append(results, offer)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].MileageCost < results[j].MileageCost
	})
	if p.resultCap > 0 && len(results) > p.resultCap {
		results = results[:p.resultCap]
	}

	return results, nil
}

// normalize maps one availability row for one cabin column into the shared
// offer shape. Rows without availability in that cabin are dropped.
func (p *SeatsAeroProvider) normalize(row seatsAeroAvailability, cabinCode, cabin string) (models.FlightOffer, bool) {
	var (
		available bool
		mileage   string
		taxes     int
		seats     int
		direct    bool
		airlines  string
	)

	switch cabinCode {
	case "Y":
		available, mileage, taxes, seats, direct, airlines = row.YAvailable, row.YMileageCost, row.YTotalTaxes, row.YRemainingSeats, row.YDirect, row.YAirlines
	case "W":
		available, mileage, taxes, seats, direct, airlines = row.WAvailable, row.WMileageCost, row.WTotalTaxes, row.WRemainingSeats, row.WDirect, row.WAirlines
	case "J":
		available, mileage, taxes, seats, direct, airlines = row.JAvailable, row.JMileageCost, row.JTotalTaxes, row.JRemainingSeats, row.JDirect, row.JAirlines
	case "F":
		available, mileage, taxes, seats, direct, airlines = row.FAvailable, row.FMileageCost, row.FTotalTaxes, row.FRemainingSeats, row.FDirect, row.FAirlines
	}

	if !available {
		return models.FlightOffer{}, false
	}

	miles, err := strconv.Atoi(mileage)
	if err != nil || miles <= 0 {
		return models.FlightOffer{}, false
	}

	airline := airlines
	if idx := strings.Index(airlines, ","); idx >= 0 {
		airline = strings.TrimSpace(airlines[:idx])
	}

	stops := 0
	if !direct {
		stops = 1
	}

	return models.FlightOffer{
		ID:          row.ID,
		Provider:    p.Name(),
		Kind:        models.OfferKindAward,
		Airline:     airline,
		Cabin:       cabin,
		Program:     row.Source,
		MileageCost: miles,
		TaxesFees:   float64(taxes) / 100,
		TaxCurrency: row.TaxesCurrency,
		Segments: []models.Segment{
			{
				From:  row.Route.OriginAirport,
				To:    row.Route.DestinationAirport,
				Stops: stops,
			},
		},
		RemainingSeats: seats,
		SearchedDate:   row.Date,
	}, true
}
