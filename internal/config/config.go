package config

import (
	"context"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	Port        string `default:"8080"`
	Production  bool   `split_words:"true" default:"false"`
	SweepSecret string `split_words:"true" required:"true"`
}

type Redis struct {
	URL          string `default:"redis://localhost:6379/0"`
	ReadTimeout  int    `split_words:"true" default:"3"`
	WriteTimeout int    `split_words:"true" default:"3"`
	DialTimeout  int    `split_words:"true" default:"5"`
}

// New connects and pings the configured redis instance.
func (r *Redis) New() (*redis.Client, error) {
	opts, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, err
	}

	opts.ReadTimeout = time.Duration(r.ReadTimeout) * time.Second
	opts.WriteTimeout = time.Duration(r.WriteTimeout) * time.Second
	opts.DialTimeout = time.Duration(r.DialTimeout) * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

type Sqlite struct {
	Path string `default:"flightsearch.db"`
}

type Amadeus struct {
	ClientID     string `split_words:"true" required:"true"`
	ClientSecret string `split_words:"true" required:"true"`
	Environment  string `default:"test"`
	BaseURL      string `split_words:"true"`
	TokenURL     string `split_words:"true"`
}

type SeatsAero struct {
	APIKey  string `split_words:"true" required:"true"`
	BaseURL string `split_words:"true" default:"https://seats.aero/partnerapi"`
}

type Search struct {
	ProviderTimeout time.Duration `split_words:"true" default:"12s"`
	ProviderCap     int           `split_words:"true" default:"5"`
	FlexibleCap     int           `split_words:"true" default:"10"`
	FlexBatchPause  time.Duration `split_words:"true" default:"300ms"`
	DedupeWindow    time.Duration `split_words:"true" default:"5m"`
	ToolCallTTL     time.Duration `split_words:"true" default:"24h"`
}

type Config struct {
	Server    Server
	Redis     Redis
	Sqlite    Sqlite
	Amadeus   Amadeus
	SeatsAero SeatsAero
	Search    Search
}

// Load reads the full configuration from the environment, prefixed FS_
// (FS_SERVER_PORT, FS_AMADEUS_CLIENT_ID, ...).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("fs", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
