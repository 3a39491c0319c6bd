package providers

import (
	"context"

	"github.com/voyago/flightsearch/internal/models"
)

// Query is the provider-facing slice of a search request. StartDate equals
// EndDate for a single-date search; providers reporting SupportsDateRange
// accept a wider window natively.
type Query struct {
	Origin      string
	Destination string
	StartDate   string
	EndDate     string
	Cabin       string
	Passengers  int
	NonStop     bool
}

type Provider interface {
	Name() string
	// Kind is models.OfferKindAward or models.OfferKindCash.
	Kind() string
	SupportsDateRange() bool
	Search(ctx context.Context, q Query) ([]models.FlightOffer, error)
}

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Err:      err,
	}
}
