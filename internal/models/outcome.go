package models

// OutcomeKind is the closed set of results the orchestrator hands to the
// rendering layer. Each kind maps to one UI state.
type OutcomeKind string

const (
	OutcomeResults           OutcomeKind = "results"
	OutcomeOfferFlexible     OutcomeKind = "no_results_offer_flexible"
	OutcomeFlexibleResults   OutcomeKind = "flexible_date_results"
	OutcomeOfferAlternatives OutcomeKind = "no_results_offer_alternatives"
	OutcomeAlternatives      OutcomeKind = "alternative_airport_results"
	OutcomeError             OutcomeKind = "error"
)

type DateWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ManualSearchLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type SearchMetadata struct {
	ProvidersQueried   int      `json:"providers_queried"`
	ProvidersSucceeded int      `json:"providers_succeeded"`
	ProvidersFailed    int      `json:"providers_failed"`
	FailedProviders    []string `json:"failed_providers,omitempty"`
	SearchTimeMs       int64    `json:"search_time_ms"`
}

// SearchOutcome carries everything the rendering layer needs for one of the
// six outcome kinds. Sections not relevant to a kind stay empty.
type SearchOutcome struct {
	Kind            OutcomeKind         `json:"kind"`
	Request         FlightSearchRequest `json:"request"`
	AwardOffers     []FlightOffer       `json:"award_offers,omitempty"`
	CashOffers      []FlightOffer       `json:"cash_offers,omitempty"`
	DateWindow      *DateWindow         `json:"date_window,omitempty"`
	Alternatives    []NearbyAirport     `json:"alternatives,omitempty"`
	AlternativeSide string              `json:"alternative_side,omitempty"`
	Message         string              `json:"message,omitempty"`
	ManualLinks     []ManualSearchLink  `json:"manual_search_links,omitempty"`
	Metadata        SearchMetadata      `json:"metadata"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
