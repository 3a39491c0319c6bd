package models

import (
	"regexp"
	"strings"
	"time"
)

const (
	CabinEconomy        = "economy"
	CabinPremiumEconomy = "premium_economy"
	CabinBusiness       = "business"
	CabinFirst          = "first"
)

// cabinRank orders the four cabin tiers from lowest to highest.
var cabinRank = map[string]int{
	CabinEconomy:        0,
	CabinPremiumEconomy: 1,
	CabinBusiness:       2,
	CabinFirst:          3,
}

var iataPattern = regexp.MustCompile(`^[A-Za-z]{3}$`)

type FlightSearchRequest struct {
	Origin            string   `json:"origin"`
	Destination       string   `json:"destination"`
	DepartureDate     string   `json:"departure_date"`
	ReturnDate        *string  `json:"return_date,omitempty"`
	CabinClass        string   `json:"cabin_class"`
	Passengers        int      `json:"passengers"`
	AwardOnly         bool     `json:"award_only"`
	FlexibilityDays   int      `json:"flexibility_days"`
	NonStopOnly       bool     `json:"non_stop_only"`
	MaxTaxes          *float64 `json:"max_taxes,omitempty"`
	PreferredPrograms []string `json:"preferred_programs,omitempty"`
}

// Validate normalizes defaults and rejects requests that must never reach a
// provider. now lets tests pin the clock.
func (r *FlightSearchRequest) Validate(now time.Time) error {
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	r.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))

	if r.Origin == "" {
		return ErrMissingOrigin
	}
	if r.Destination == "" {
		return ErrMissingDestination
	}
	if !iataPattern.MatchString(r.Origin) {
		return ErrInvalidOrigin
	}
	if !iataPattern.MatchString(r.Destination) {
		return ErrInvalidDestination
	}
	if r.Origin == r.Destination {
		return ErrSameAirports
	}

	if r.DepartureDate == "" {
		return ErrMissingDepartureDate
	}
	dep, err := time.Parse("2006-01-02", r.DepartureDate)
	if err != nil {
		return ErrInvalidDepartureDate
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dep.Before(today) {
		return ErrPastDepartureDate
	}

	if r.ReturnDate != nil && *r.ReturnDate != "" {
		ret, err := time.Parse("2006-01-02", *r.ReturnDate)
		if err != nil {
			return ErrInvalidReturnDate
		}
		if ret.Before(dep) {
			return ErrReturnBeforeDeparture
		}
	}

	if r.Passengers <= 0 {
		r.Passengers = 1
	}
	if r.CabinClass == "" {
		r.CabinClass = CabinEconomy
	}
	r.CabinClass = strings.ToLower(r.CabinClass)
	if _, ok := cabinRank[r.CabinClass]; !ok {
		return ErrInvalidCabinClass
	}

	if r.FlexibilityDays < 0 || r.FlexibilityDays > 3 {
		return ErrInvalidFlexibility
	}

	return nil
}

// CabinRank returns the ordered tier of a cabin, economy lowest.
func CabinRank(cabin string) int {
	return cabinRank[strings.ToLower(cabin)]
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin         ValidationError = "origin is required"
	ErrMissingDestination    ValidationError = "destination is required"
	ErrInvalidOrigin         ValidationError = "origin must be a 3-letter IATA code"
	ErrInvalidDestination    ValidationError = "destination must be a 3-letter IATA code"
	ErrSameAirports          ValidationError = "origin and destination must differ"
	ErrMissingDepartureDate  ValidationError = "departure_date is required"
	ErrInvalidDepartureDate  ValidationError = "departure_date must be formatted YYYY-MM-DD"
	ErrPastDepartureDate     ValidationError = "departure_date must not be in the past"
	ErrInvalidReturnDate     ValidationError = "return_date must be formatted YYYY-MM-DD"
	ErrReturnBeforeDeparture ValidationError = "return_date must not be before departure_date"
	ErrInvalidCabinClass     ValidationError = "cabin_class must be one of economy, premium_economy, business, first"
	ErrInvalidFlexibility    ValidationError = "flexibility_days must be between 0 and 3"
)
