package models

import "time"

const (
	OfferKindAward = "award"
	OfferKindCash  = "cash"
)

type Segment struct {
	From        string    `json:"from"`
	To          string    `json:"to"`
	DepartsAt   time.Time `json:"departs_at"`
	ArrivesAt   time.Time `json:"arrives_at"`
	DurationMin int       `json:"duration_minutes"`
	Stops       int       `json:"stops"`
}

// FlightOffer is the normalized shape every provider client produces.
// Award offers carry MileageCost plus TaxesFees; cash offers carry Price.
type FlightOffer struct {
	ID             string    `json:"id"`
	Provider       string    `json:"provider"`
	Kind           string    `json:"kind"`
	Airline        string    `json:"airline"`
	Cabin          string    `json:"cabin"`
	Program        string    `json:"program,omitempty"`
	MileageCost    int       `json:"mileage_cost,omitempty"`
	TaxesFees      float64   `json:"taxes_fees,omitempty"`
	TaxCurrency    string    `json:"tax_currency,omitempty"`
	Price          float64   `json:"price,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Formatted      string    `json:"formatted_price,omitempty"`
	Segments       []Segment `json:"segments"`
	RemainingSeats int       `json:"remaining_seats,omitempty"`
	// SearchedDate is set only on flexible-date results, naming the calendar
	// date a given offer was found on.
	SearchedDate string `json:"searched_date,omitempty"`
}

// Cost is the within-kind sort key: miles for award offers, currency amount
// for cash offers. Offers of different kinds are never compared directly.
func (o FlightOffer) Cost() float64 {
	if o.Kind == OfferKindAward {
		return float64(o.MileageCost)
	}
	return o.Price
}

// Stops reports the total stop count across the itinerary.
func (o FlightOffer) Stops() int {
	if len(o.Segments) == 0 {
		return 0
	}
	stops := len(o.Segments) - 1
	for _, s := range o.Segments {
		stops += s.Stops
	}
	return stops
}

type NearbyAirport struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	City           string  `json:"city"`
	Country        string  `json:"country"`
	DistanceMeters float64 `json:"distance_meters"`
	DriveTime      string  `json:"drive_time"`
}
