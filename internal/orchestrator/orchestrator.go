package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voyago/flightsearch/internal/airports"
	"github.com/voyago/flightsearch/internal/faillog"
	"github.com/voyago/flightsearch/internal/flexdate"
	"github.com/voyago/flightsearch/internal/models"
	"github.com/voyago/flightsearch/internal/providers"
	"github.com/voyago/flightsearch/internal/ratelimit"
	"github.com/voyago/flightsearch/internal/registry"
	"github.com/voyago/flightsearch/internal/retry"
	"github.com/voyago/flightsearch/pkg/logx"
)

const (
	toolSearch             = "flight_search"
	toolSearchFlexible     = "flight_search_flexible"
	toolSearchAlternatives = "flight_search_alternatives"
)

// Caller identifies who asked for a search. UserID and QueryText are
// optional; when present they flow into the failed-search log so the review
// surface has the original phrasing to match against.
type Caller struct {
	ConversationID string
	UserID         string
	QueryText      string
}

// Recorder is the tool-call registry surface the orchestrator needs. Every
// call is best-effort: a registry failure must never abort a search.
type Recorder interface {
	RecordOrBind(ctx context.Context, conversationID, toolName string, request any) (callID string, isNew bool, err error)
	Transition(ctx context.Context, callID, status string, payload []byte) error
	Get(ctx context.Context, callID string) (*registry.Record, error)
}

// SessionSaver persists per-conversation search parameters, best-effort.
type SessionSaver interface {
	SaveSuccessful(ctx context.Context, conversationID string, params models.FlightSearchRequest) error
	SavePending(ctx context.Context, conversationID string, params models.FlightSearchRequest) error
}

// FailureLogger records zero-result searches, best-effort.
type FailureLogger interface {
	Log(ctx context.Context, entry faillog.Entry) error
}

type Config struct {
	ProviderTimeout time.Duration
	FlexibleCap     int
	RetryPolicy     retry.Policy
	RateLimiter     *ratelimit.ProviderLimiter
	// DefaultFlexDays applies when a caller accepts the flexible offer
	// without naming a window.
	DefaultFlexDays  int
	BindPollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ProviderTimeout:  12 * time.Second,
		FlexibleCap:      10,
		RetryPolicy:      retry.DefaultPolicy(),
		DefaultFlexDays:  2,
		BindPollInterval: 200 * time.Millisecond,
	}
}

// Orchestrator answers "find flights for these parameters" by fanning out to
// the providers and degrading through the fallback stages. Flexible-date and
// alternative-airport execution are separate entry points because each stage
// past the exact search needs an explicit caller opt-in.
type Orchestrator struct {
	providers []providers.Provider
	flex      *flexdate.Helper
	resolver  *airports.Resolver
	directory *airports.Directory
	registry  Recorder
	sessions  SessionSaver
	failures  FailureLogger
	config    Config
	now       func() time.Time
}

func New(providerList []providers.Provider, flex *flexdate.Helper, resolver *airports.Resolver, directory *airports.Directory, config Config) *Orchestrator {
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = DefaultConfig().ProviderTimeout
	}
	if config.FlexibleCap <= 0 {
		config.FlexibleCap = DefaultConfig().FlexibleCap
	}
	if config.DefaultFlexDays <= 0 {
		config.DefaultFlexDays = DefaultConfig().DefaultFlexDays
	}
	if config.BindPollInterval <= 0 {
		config.BindPollInterval = DefaultConfig().BindPollInterval
	}
	return &Orchestrator{
		providers: providerList,
		flex:      flex,
		resolver:  resolver,
		directory: directory,
		config:    config,
		now:       time.Now,
	}
}

func (o *Orchestrator) WithRegistry(r Recorder) *Orchestrator {
	o.registry = r
	return o
}

func (o *Orchestrator) WithSessions(s SessionSaver) *Orchestrator {
	o.sessions = s
	return o
}

func (o *Orchestrator) WithFailureLog(f FailureLogger) *Orchestrator {
	o.failures = f
	return o
}

// WithClock pins the clock, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Search runs the exact-date stage. A non-empty merged result is final; an
// empty one offers the flexible-date follow-up without performing it.
func (o *Orchestrator) Search(ctx context.Context, caller Caller, req models.FlightSearchRequest) (*models.SearchOutcome, error) {
	start := time.Now()
	if err := req.Validate(o.now()); err != nil {
		return nil, err
	}

	callID, bound := o.recordOrBind(ctx, caller.ConversationID, toolSearch, req)
	if bound {
		if outcome := o.awaitBound(ctx, callID); outcome != nil {
			return outcome, nil
		}
		callID = ""
	}
	o.transition(ctx, callID, registry.StatusRunning, nil)

	q := providers.Query{
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.DepartureDate,
		EndDate:     req.DepartureDate,
		Cabin:       req.CabinClass,
		Passengers:  req.Passengers,
		NonStop:     req.NonStopOnly,
	}

	offers, meta := o.fanOut(ctx, req, q)
	offers = clearSearchedDates(offers)
	offers = applyRequestFilters(dedupeOffers(offers), req)
	award, cash := splitSections(offers)

	outcome := &models.SearchOutcome{Request: req}
	if len(award)+len(cash) > 0 {
		outcome.Kind = models.OutcomeResults
		outcome.AwardOffers = award
		outcome.CashOffers = cash
		o.saveSuccessful(ctx, caller.ConversationID, req)
	} else {
		outcome.Kind = models.OutcomeOfferFlexible
		outcome.Message = fmt.Sprintf("No flights found %s-%s on %s. A flexible-date search can check nearby dates.",
			req.Origin, req.Destination, req.DepartureDate)
		o.savePending(ctx, caller.ConversationID, req)
		o.logFailure(ctx, caller, req, "no_exact_results")
	}

	meta.SearchTimeMs = time.Since(start).Milliseconds()
	outcome.Metadata = meta
	o.finalize(ctx, callID, outcome)
	return outcome, nil
}

// SearchFlexible runs the caller-accepted ±N-day stage: one native
// date-range call for providers that support it, the batch helper for the
// rest. The original date is excluded; results carry their source date.
func (o *Orchestrator) SearchFlexible(ctx context.Context, caller Caller, req models.FlightSearchRequest) (*models.SearchOutcome, error) {
	start := time.Now()
	if err := req.Validate(o.now()); err != nil {
		return nil, err
	}

	flexDays := req.FlexibilityDays
	if flexDays == 0 {
		flexDays = o.config.DefaultFlexDays
	}

	callID, bound := o.recordOrBind(ctx, caller.ConversationID, toolSearchFlexible, req)
	if bound {
		if outcome := o.awaitBound(ctx, callID); outcome != nil {
			return outcome, nil
		}
		callID = ""
	}
	o.transition(ctx, callID, registry.StatusRunning, nil)

	dep, _ := time.Parse("2006-01-02", req.DepartureDate)
	windowStart := dep.AddDate(0, 0, -flexDays).Format("2006-01-02")
	windowEnd := dep.AddDate(0, 0, flexDays).Format("2006-01-02")

	baseQuery := providers.Query{
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.DepartureDate,
		EndDate:     req.DepartureDate,
		Cabin:       req.CabinClass,
		Passengers:  req.Passengers,
		NonStop:     req.NonStopOnly,
	}

	eligible := o.eligibleProviders(req)
	meta := models.SearchMetadata{ProvidersQueried: len(eligible)}

	searchCtx, cancel := context.WithTimeout(ctx, o.config.ProviderTimeout*2)
	defer cancel()

	type providerResult struct {
		provider string
		offers   []models.FlightOffer
		err      error
	}

	resultCh := make(chan providerResult, len(eligible))
	var wg sync.WaitGroup

	for _, p := range eligible {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			g := o.guard(p)

			if p.SupportsDateRange() {
				q := baseQuery
				q.StartDate = windowStart
				q.EndDate = windowEnd
				offers, err := g.Search(searchCtx, q)
				resultCh <- providerResult{provider: p.Name(), offers: offers, err: err}
				return
			}

			offers := o.flex.SearchAcrossDates(searchCtx, g, baseQuery, flexDays)
			resultCh <- providerResult{provider: p.Name(), offers: offers}
		}(p)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var all []models.FlightOffer
	for pr := range resultCh {
		if pr.err != nil {
			logx.Error().Str("provider", pr.provider).Err(pr.err).Msg("flexible search failed")
			meta.ProvidersFailed++
			meta.FailedProviders = append(meta.FailedProviders, pr.provider)
			continue
		}
		meta.ProvidersSucceeded++
		all = append(all, pr.offers...)
	}

	// Native ranges include the original date; the flexible stage only shows
	// dates the exact stage did not cover.
	filtered := all[:0]
	for _, offer := range all {
		if offer.SearchedDate == req.DepartureDate {
			continue
		}
		filtered = append(filtered, offer)
	}

	filtered = applyRequestFilters(dedupeOffers(filtered), req)
	filtered = capFlexible(filtered, req.DepartureDate, o.config.FlexibleCap)
	award, cash := splitKeepOrder(filtered)

	outcome := &models.SearchOutcome{Request: req}
	if len(filtered) > 0 {
		outcome.Kind = models.OutcomeFlexibleResults
		outcome.AwardOffers = award
		outcome.CashOffers = cash
		outcome.DateWindow = &models.DateWindow{Start: windowStart, End: windowEnd}
		o.saveSuccessful(ctx, caller.ConversationID, req)
	} else {
		side, ref := o.alternativeSide(req)
		outcome.Kind = models.OutcomeOfferAlternatives
		outcome.AlternativeSide = side
		outcome.Message = fmt.Sprintf("No flights found %s-%s between %s and %s. Nearby airports around %s may have availability.",
			req.Origin, req.Destination, windowStart, windowEnd, ref)
		o.savePending(ctx, caller.ConversationID, req)
		o.logFailure(ctx, caller, req, "no_flexible_results")
	}

	meta.SearchTimeMs = time.Since(start).Milliseconds()
	outcome.Metadata = meta
	o.finalize(ctx, callID, outcome)
	return outcome, nil
}

// SearchAlternatives runs the last caller-accepted stage: alternative
// airports near the side of the route assumed to be under-served.
func (o *Orchestrator) SearchAlternatives(ctx context.Context, caller Caller, req models.FlightSearchRequest) (*models.SearchOutcome, error) {
	start := time.Now()
	if err := req.Validate(o.now()); err != nil {
		return nil, err
	}

	callID, bound := o.recordOrBind(ctx, caller.ConversationID, toolSearchAlternatives, req)
	if bound {
		if outcome := o.awaitBound(ctx, callID); outcome != nil {
			return outcome, nil
		}
		callID = ""
	}
	o.transition(ctx, callID, registry.StatusRunning, nil)

	side, ref := o.alternativeSide(req)
	outcome := &models.SearchOutcome{Request: req, AlternativeSide: side}

	alternatives, err := o.resolver.Nearby(ref)
	if err != nil {
		logx.Warn().Str("airport", ref).Err(err).Msg("alternative airport lookup failed")
		outcome.Kind = models.OutcomeError
		outcome.Message = fmt.Sprintf("Could not resolve airports near %s. These searches may still turn something up:", ref)
		outcome.ManualLinks = manualSearchLinks(req)
		o.logFailure(ctx, caller, req, "unknown_airport")
	} else if len(alternatives) > 0 {
		outcome.Kind = models.OutcomeAlternatives
		outcome.Alternatives = alternatives
	} else {
		outcome.Kind = models.OutcomeError
		outcome.Message = fmt.Sprintf("No alternative airports within reach of %s. These searches may still turn something up:", ref)
		outcome.ManualLinks = manualSearchLinks(req)
		o.logFailure(ctx, caller, req, "fallback_exhausted")
	}

	outcome.Metadata = models.SearchMetadata{SearchTimeMs: time.Since(start).Milliseconds()}
	o.finalize(ctx, callID, outcome)
	return outcome, nil
}

// alternativeSide picks which end of the route gets alternative-airport
// suggestions: a major-hub origin is assumed well served, so the destination
// side must be the empty one; otherwise the origin side is.
func (o *Orchestrator) alternativeSide(req models.FlightSearchRequest) (side, refAirport string) {
	if o.directory.IsMajorHub(req.Origin) {
		return "destination", req.Destination
	}
	return "origin", req.Origin
}

func (o *Orchestrator) eligibleProviders(req models.FlightSearchRequest) []providers.Provider {
	eligible := make([]providers.Provider, 0, len(o.providers))
	for _, p := range o.providers {
		if req.AwardOnly && p.Kind() != models.OfferKindAward {
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

// guard wraps a provider with the shared rate limit and retry policy.
func (o *Orchestrator) guard(p providers.Provider) providers.Provider {
	return &guardedProvider{Provider: p, limiter: o.config.RateLimiter, policy: o.config.RetryPolicy}
}

type guardedProvider struct {
	providers.Provider
	limiter *ratelimit.ProviderLimiter
	policy  retry.Policy
}

func (g *guardedProvider) Search(ctx context.Context, q providers.Query) ([]models.FlightOffer, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.Name()); err != nil {
			return nil, err
		}
	}

	var offers []models.FlightOffer
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		offers, err = g.Provider.Search(ctx, q)
		return err
	})
	return offers, err
}

// fanOut queries every eligible provider in parallel with a tolerate-partial-
// failure join: a provider's error contributes zero offers, never an aborted
// stage.
func (o *Orchestrator) fanOut(ctx context.Context, req models.FlightSearchRequest, q providers.Query) ([]models.FlightOffer, models.SearchMetadata) {
	eligible := o.eligibleProviders(req)
	meta := models.SearchMetadata{ProvidersQueried: len(eligible)}

	searchCtx, cancel := context.WithTimeout(ctx, o.config.ProviderTimeout)
	defer cancel()

	type providerResult struct {
		provider string
		offers   []models.FlightOffer
		err      error
	}

	resultCh := make(chan providerResult, len(eligible))
	var wg sync.WaitGroup

	for _, p := range eligible {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			offers, err := o.guard(p).Search(searchCtx, q)
			resultCh <- providerResult{provider: p.Name(), offers: offers, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var offers []models.FlightOffer
	for pr := range resultCh {
		if pr.err != nil {
			logx.Error().Str("provider", pr.provider).Err(pr.err).Msg("provider search failed")
			meta.ProvidersFailed++
			meta.FailedProviders = append(meta.FailedProviders, pr.provider)
			continue
		}
		meta.ProvidersSucceeded++
		offers = append(offers, pr.offers...)
	}

	return offers, meta
}

// recordOrBind registers the call in the registry. bound=true means another
// identical call owns the dedupe key and callID names it. Registry failures
// degrade to executing the search unrecorded.
func (o *Orchestrator) recordOrBind(ctx context.Context, conversationID, toolName string, req models.FlightSearchRequest) (callID string, bound bool) {
	if o.registry == nil {
		return "", false
	}
	callID, isNew, err := o.registry.RecordOrBind(ctx, conversationID, toolName, req)
	if err != nil {
		logx.Warn().Str("tool", toolName).Err(err).Msg("tool call registration failed, proceeding unrecorded")
		return "", false
	}
	return callID, !isNew
}

// awaitBound polls the record owning the dedupe key until it reaches a
// terminal status, then returns its stored outcome. A nil return means the
// caller should execute the search itself.
func (o *Orchestrator) awaitBound(ctx context.Context, callID string) *models.SearchOutcome {
	deadline := time.NewTimer(o.config.ProviderTimeout * 2)
	defer deadline.Stop()
	tick := time.NewTicker(o.config.BindPollInterval)
	defer tick.Stop()

	for {
		rec, err := o.registry.Get(ctx, callID)
		if err != nil {
			logx.Warn().Str("call_id", callID).Err(err).Msg("bound tool call lookup failed")
			return nil
		}

		switch rec.Status {
		case registry.StatusSucceeded:
			var outcome models.SearchOutcome
			if err := json.Unmarshal([]byte(rec.Response), &outcome); err != nil {
				logx.Warn().Str("call_id", callID).Err(err).Msg("bound tool call response undecodable")
				return nil
			}
			return &outcome
		case registry.StatusFailed, registry.StatusTimeout, registry.StatusCanceled:
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-tick.C:
		}
	}
}

func (o *Orchestrator) transition(ctx context.Context, callID, status string, payload []byte) {
	if o.registry == nil || callID == "" {
		return
	}
	if err := o.registry.Transition(ctx, callID, status, payload); err != nil {
		logx.Warn().Str("call_id", callID).Str("status", status).Err(err).Msg("tool call transition rejected")
	}
}

// finalize records the terminal status: canceled or timeout when the caller's
// context ended mid-search, failed when every queried provider errored, and
// succeeded with the stored outcome otherwise. Bound duplicates only reuse
// succeeded responses, so failures are re-executed rather than replayed.
func (o *Orchestrator) finalize(ctx context.Context, callID string, outcome *models.SearchOutcome) {
	if o.registry == nil || callID == "" {
		return
	}

	if err := ctx.Err(); err != nil {
		status := registry.StatusCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			status = registry.StatusTimeout
		}
		o.transition(context.WithoutCancel(ctx), callID, status, []byte(err.Error()))
		return
	}

	if m := outcome.Metadata; m.ProvidersQueried > 0 && m.ProvidersFailed == m.ProvidersQueried {
		o.transition(ctx, callID, registry.StatusFailed, []byte("all providers failed"))
		return
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		payload = nil
	}
	o.transition(ctx, callID, registry.StatusSucceeded, payload)
}

func (o *Orchestrator) saveSuccessful(ctx context.Context, conversationID string, req models.FlightSearchRequest) {
	if o.sessions == nil {
		return
	}
	if err := o.sessions.SaveSuccessful(ctx, conversationID, req); err != nil {
		logx.Warn().Str("conversation_id", conversationID).Err(err).Msg("session state update failed")
	}
}

func (o *Orchestrator) savePending(ctx context.Context, conversationID string, req models.FlightSearchRequest) {
	if o.sessions == nil {
		return
	}
	if err := o.sessions.SavePending(ctx, conversationID, req); err != nil {
		logx.Warn().Str("conversation_id", conversationID).Err(err).Msg("session state update failed")
	}
}

func (o *Orchestrator) logFailure(ctx context.Context, caller Caller, req models.FlightSearchRequest, errorClass string) {
	if o.failures == nil {
		return
	}
	entry := faillog.Entry{
		ConversationID: caller.ConversationID,
		UserID:         caller.UserID,
		QueryText:      caller.QueryText,
		Origin:         req.Origin,
		Destination:    req.Destination,
		DepartureDate:  req.DepartureDate,
		Cabin:          req.CabinClass,
		ErrorClass:     errorClass,
	}
	if req.ReturnDate != nil {
		entry.ReturnDate = *req.ReturnDate
	}
	if err := o.failures.Log(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		logx.Warn().Str("conversation_id", caller.ConversationID).Err(err).Msg("failed-search log write failed")
	}
}

// splitKeepOrder partitions an already-sorted flexible list into the award
// and cash sections without disturbing its order.
func splitKeepOrder(offers []models.FlightOffer) (award, cash []models.FlightOffer) {
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
	return award, cash
}
