package orchestrator

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/pkg/currency"
)

// applyRequestFilters drops offers the request rules out: itineraries with
// stops when non_stop_only is set, award offers whose taxes exceed the
// ceiling, and award offers outside the preferred loyalty programs.
func applyRequestFilters(offers []models.FlightOffer, req models.FlightSearchRequest) []models.FlightOffer {
	result := make([]models.FlightOffer, 0, len(offers))
	for _, o := range offers {
		if req.NonStopOnly && o.Stops() > 0 {
			continue
		}
		if o.Kind == models.OfferKindAward {
			if req.MaxTaxes != nil && o.TaxesFees > *req.MaxTaxes {
				continue
			}
			if len(req.PreferredPrograms) > 0 && !matchesProgram(o.Program, req.PreferredPrograms) {
				continue
			}
		}
		result = append(result, o)
	}
	return result
}

func matchesProgram(program string, preferred []string) bool {
	for _, p := range preferred {
		if strings.EqualFold(program, p) {
			return true
		}
	}
	return false
}

// dedupeOffers collapses duplicates by provider-native identifier, keeping
// the first (cheapest after sorting) occurrence.
func dedupeOffers(offers []models.FlightOffer) []models.FlightOffer {
	seen := make(map[string]bool, len(offers))
	result := make([]models.FlightOffer, 0, len(offers))
	for _, o := range offers {
		key := o.Provider + ":" + o.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, o)
	}
	return result
}

// splitSections partitions offers into the award and cash sections the
// rendering layer shows separately, each sorted ascending by its own cost
// unit. Cash offers also get their display price formatted here.
func splitSections(offers []models.FlightOffer) (award, cash []models.FlightOffer) {
	for _, o := range offers {
		if o.Kind == models.OfferKindAward {
			award = append(award, o)
		} else {
			if o.Formatted == "" {
				o.Formatted = formatCash(o)
			}
			cash = append(cash, o)
		}
	}
	sortByCost(award)
	sortByCost(cash)
	return award, cash
}

func formatCash(o models.FlightOffer) string {
	return currency.Format(o.Price, o.Currency)
}

func sortByCost(offers []models.FlightOffer) {
	sort.Slice(offers, func(i, j int) bool {
		return offers[i].Cost() < offers[j].Cost()
	})
}

// capFlexible orders each section by its own cost unit, then applies the
// combined cap to the award-first concatenation. Mileage and currency amounts
// are never compared against each other, so cheap cash offers cannot evict
// the award section.
func capFlexible(offers []models.FlightOffer, baseDate string, limit int) []models.FlightOffer {
	award, cash := splitKeepOrder(offers)
	sortFlexible(award, baseDate)
	sortFlexible(cash, baseDate)

	combined := make([]models.FlightOffer, 0, len(award)+len(cash))
	combined = append(combined, award...)
	combined = append(combined, cash...)
	if limit > 0 && len(combined) > limit {
		combined = combined[:limit]
	}
	return combined
}

// sortFlexible orders one section's offers by cost first and, on ties, by how
// close their searched date lies to the originally requested one.
func sortFlexible(offers []models.FlightOffer, baseDate string) {
	base, err := time.Parse("2006-01-02", baseDate)
	if err != nil {
		sortByCost(offers)
		return
	}

	proximity := func(o models.FlightOffer) float64 {
		d, err := time.Parse("2006-01-02", o.SearchedDate)
		if err != nil {
			return math.MaxFloat64
		}
		return math.Abs(d.Sub(base).Hours())
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].Cost() != offers[j].Cost() {
			return offers[i].Cost() < offers[j].Cost()
		}
		return proximity(offers[i]) < proximity(offers[j])
	})
}

// clearSearchedDates strips the flexible-only date tags from exact-date
// results.
func clearSearchedDates(offers []models.FlightOffer) []models.FlightOffer {
	for i := range offers {
		offers[i].SearchedDate = ""
	}
	return offers
}

// manualSearchLinks builds the fallback links handed out when every stage is
// exhausted, from the original request parameters.
func manualSearchLinks(req models.FlightSearchRequest) []models.ManualSearchLink {
	q := fmt.Sprintf("flights from %s to %s on %s", req.Origin, req.Destination, req.DepartureDate)
	return []models.ManualSearchLink{
		{
			Label: "Google Flights",
			URL:   "https://www.google.com/travel/flights?q=" + url.QueryEscape(q),
		},
		{
			Label: "Award search",
			URL: fmt.Sprintf("https://seats.aero/search?origin=%s&destination=%s&date=%s",
				url.QueryEscape(req.Origin), url.QueryEscape(req.Destination), url.QueryEscape(req.DepartureDate)),
		},
	}
}
