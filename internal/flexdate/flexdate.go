package flexdate

import (
	"context"
	"sync"
	"time"

	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/internal/providers"
	"github.com/voyago/flightsearch/pkg/logx"
)

// maxConcurrent is a hard ceiling on simultaneous single-date calls, chosen
// to stay inside third-party rate limits.
const maxConcurrent = 3

const defaultBatchPause = 300 * time.Millisecond

// Helper fans a ±N-day window out as single-date searches for providers
// without native date-range support.
type Helper struct {
	batchPause time.Duration
}

func NewHelper(batchPause time.Duration) *Helper {
	if batchPause <= 0 {
		batchPause = defaultBatchPause
	}
	return &Helper{batchPause: batchPause}
}

// CandidateDates lists the window around base, excluding base itself:
// exactly 2*flexDays entries, ordered by proximity to the original date.
func CandidateDates(base string, flexDays int) []string {
	day, err := time.Parse("2006-01-02", base)
	if err != nil || flexDays <= 0 {
		return nil
	}

	dates := make([]string, 0, 2*flexDays)
	for offset := 1; offset <= flexDays; offset++ {
		dates = append(dates, day.AddDate(0, 0, -offset).Format("2006-01-02"))
		dates = append(dates, day.AddDate(0, 0, offset).Format("2006-01-02"))
	}
	return dates
}

// SearchAcrossDates queries one date at a time in batches of at most three
// concurrent calls, pausing between batches. A failed date contributes zero
// offers; it never aborts the batch. Every offer is tagged with the date it
// was found on.
func (h *Helper) SearchAcrossDates(ctx context.Context, p providers.Provider, base providers.Query, flexDays int) []models.FlightOffer {
	dates := CandidateDates(base.StartDate, flexDays)
	if len(dates) == 0 {
		return nil
	}

	type dateResult struct {
		date   string
		offers []models.FlightOffer
		err    error
	}

	var all []models.FlightOffer
	for start := 0; start < len(dates); start += maxConcurrent {
		end := start + maxConcurrent
		if end > len(dates) {
			end = len(dates)
		}
		batch := dates[start:end]

		resultCh := make(chan dateResult, len(batch))
		var wg sync.WaitGroup

		for _, date := range batch {
			wg.Add(1)
			go func(date string) {
				defer wg.Done()

				q := base
				q.StartDate = date
				q.EndDate = date

				offers, err := p.Search(ctx, q)
				resultCh <- dateResult{date: date, offers: offers, err: err}
			}(date)
		}

		wg.Wait()
		close(resultCh)

		for r := range resultCh {
			if r.err != nil {
				logx.Warn().
					Str("provider", p.Name()).
					Str("date", r.date).
					Err(r.err).
					Msg("flexible date search failed, skipping date")
				continue
			}
			for _, offer := range r.offers {
				offer.SearchedDate = r.date
				all = append(all, offer)
			}
		}

		if end < len(dates) {
			select {
			case <-time.After(h.batchPause):
			case <-ctx.Done():
				return all
			}
		}
	}

	return all
}
