package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyago/flightsearch/internal/models"
)

func baseRequest() models.FlightSearchRequest {
	maxTaxes := 200.0
	return models.FlightSearchRequest{
		Origin:            "FRA",
		Destination:       "JFK",
		DepartureDate:     "2026-10-15",
		CabinClass:        models.CabinEconomy,
		Passengers:        2,
		FlexibilityDays:   2,
		MaxTaxes:          &maxTaxes,
		PreferredPrograms: []string{"aeroplan"},
	}
}

func TestMergeOverlaysOnlySpecifiedFields(t *testing.T) {
	prev := baseRequest()

	merged := Merge(prev, models.FlightSearchRequest{CabinClass: models.CabinBusiness})

	assert.Equal(t, "FRA", merged.Origin)
	assert.Equal(t, "JFK", merged.Destination)
	assert.Equal(t, "2026-10-15", merged.DepartureDate)
	assert.Equal(t, models.CabinBusiness, merged.CabinClass)
	assert.Equal(t, 2, merged.Passengers)
	assert.Equal(t, 2, merged.FlexibilityDays)
	assert.Equal(t, []string{"aeroplan"}, merged.PreferredPrograms)
	assert.NotNil(t, merged.MaxTaxes)
}

func TestMergeEmptyNextKeepsEverythingExceptBooleans(t *testing.T) {
	prev := baseRequest()
	prev.AwardOnly = true
	prev.NonStopOnly = true

	merged := Merge(prev, models.FlightSearchRequest{})

	assert.Equal(t, prev.Origin, merged.Origin)
	assert.Equal(t, prev.DepartureDate, merged.DepartureDate)
	// Booleans follow the follow-up verbatim: dropping award_only turns it off.
	assert.False(t, merged.AwardOnly)
	assert.False(t, merged.NonStopOnly)
}

func TestMergeReplacesRoute(t *testing.T) {
	merged := Merge(baseRequest(), models.FlightSearchRequest{
		Origin:      "MUC",
		Destination: "LAX",
	})

	assert.Equal(t, "MUC", merged.Origin)
	assert.Equal(t, "LAX", merged.Destination)
	assert.Equal(t, "2026-10-15", merged.DepartureDate)
}

func TestMergeReturnDatePointer(t *testing.T) {
	ret := "2026-10-22"
	merged := Merge(baseRequest(), models.FlightSearchRequest{ReturnDate: &ret})
	assert.Equal(t, &ret, merged.ReturnDate)

	// A nil return date in the follow-up leaves the stored one alone.
	again := Merge(merged, models.FlightSearchRequest{CabinClass: models.CabinFirst})
	assert.Equal(t, &ret, again.ReturnDate)
}
