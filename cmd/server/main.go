package main

import (
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/voyago/flightsearch/internal/airports"
	"github.com/voyago/flightsearch/internal/auth"
	"github.com/voyago/flightsearch/internal/config"
	"github.com/voyago/flightsearch/internal/faillog"
	"github.com/voyago/flightsearch/internal/flexdate"
	"github.com/voyago/flightsearch/internal/handler"
	"github.com/voyago/flightsearch/internal/orchestrator"
	"github.com/voyago/flightsearch/internal/providers"
	"github.com/voyago/flightsearch/internal/ratelimit"
	"github.com/voyago/flightsearch/internal/registry"
	"github.com/voyago/flightsearch/internal/retry"
	"github.com/voyago/flightsearch/internal/session"
	"github.com/voyago/flightsearch/pkg/logx"
)

// Amadeus endpoints per environment; overridable for contract tests.
var amadeusBaseURLs = map[string]string{
	"test":       "https://test.api.amadeus.com",
	"production": "https://api.amadeus.com",
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(logx.Opts{Production: cfg.Server.Production})

	redisClient, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to connect to redis")
	}

	failures, err := faillog.Open(cfg.Sqlite.Path)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to open failed-search log")
	}
	defer failures.Close()

	directory, err := airports.NewDirectory()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load airport directory")
	}

	providerList := initializeProviders(cfg)
	logx.Info().Int("count", len(providerList)).Msg("initialized flight providers")

	rateLimiter := ratelimit.NewProviderLimiterWithDefaults()
	rateLimiter.SetProviderLimit("seatsaero", 10, 20)
	rateLimiter.SetProviderLimit("amadeus", 5, 10)

	reg := registry.New(redisClient, cfg.Search.DedupeWindow, cfg.Search.ToolCallTTL)
	sessions := session.NewStore(redisClient)

	orch := orchestrator.New(
		providerList,
		flexdate.NewHelper(cfg.Search.FlexBatchPause),
		airports.NewResolver(directory),
		directory,
		orchestrator.Config{
			ProviderTimeout: cfg.Search.ProviderTimeout,
			FlexibleCap:     cfg.Search.FlexibleCap,
			RetryPolicy:     retry.DefaultPolicy(),
			RateLimiter:     rateLimiter,
		},
	).WithRegistry(reg).WithSessions(sessions).WithFailureLog(failures)

	searchHandler := handler.NewSearchHandler(orch, reg, sessions, failures, cfg.Server.SweepSecret)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	api := e.Group("/api/v1")
	api.POST("/flights/search", searchHandler.Search)
	api.POST("/flights/search/flexible", searchHandler.SearchFlexible)
	api.POST("/flights/search/alternatives", searchHandler.SearchAlternatives)
	api.GET("/tool-calls/:id", searchHandler.ToolCall)
	api.GET("/conversations/:id/tool-calls", searchHandler.ConversationToolCalls)
	api.GET("/conversations/:id/session", searchHandler.SessionState)
	api.GET("/failed-searches", searchHandler.FailedSearches)
	api.POST("/failed-searches/sweep", searchHandler.SweepFailedSearches)
	e.GET("/health", handler.HealthHandler)

	logx.Info().Str("port", cfg.Server.Port).Msg("starting flight search server")
	if err := e.Start(":" + cfg.Server.Port); err != nil {
		logx.Fatal().Err(err).Msg("server stopped")
	}
}

func initializeProviders(cfg *config.Config) []providers.Provider {
	tokenStore := auth.NewMemoryStore()
	tokenURLs := map[string]string{}
	baseURL := cfg.Amadeus.BaseURL
	for env, base := range amadeusBaseURLs {
		tokenURLs[env] = base + "/v1/security/oauth2/token"
	}
	if baseURL == "" {
		baseURL = amadeusBaseURLs[cfg.Amadeus.Environment]
	}
	if cfg.Amadeus.TokenURL != "" {
		tokenURLs[cfg.Amadeus.Environment] = cfg.Amadeus.TokenURL
	}

	tokens := auth.NewManager("amadeus", cfg.Amadeus.ClientID, cfg.Amadeus.ClientSecret, tokenURLs, tokenStore)

	return []providers.Provider{
		providers.NewSeatsAeroProvider(cfg.SeatsAero.APIKey, cfg.SeatsAero.BaseURL, cfg.Search.ProviderCap),
		providers.NewAmadeusProvider(cfg.Amadeus.Environment, baseURL, tokens, cfg.Search.ProviderCap),
	}
}
