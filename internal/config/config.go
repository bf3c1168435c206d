package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true" validate:"required"`
	DBMinConns  int32  `envconfig:"WHATSON_DB_MIN_CONNS" default:"1" validate:"gte=0"`
	DBMaxConns  int32  `envconfig:"WHATSON_DB_MAX_CONNS" default:"8" validate:"gte=1"`

	// Deployed read API queried by the change detector before a full rebuild.
	APIBaseURL string `envconfig:"WHATSON_API_BASE_URL" default:"https://whatson-api.onrender.com" validate:"url"`

	AlloCineBaseURL       string `envconfig:"ALLOCINE_BASE_URL" default:"https://www.allocine.fr" validate:"url"`
	IMDbBaseURL           string `envconfig:"IMDB_BASE_URL" default:"https://www.imdb.com" validate:"url"`
	IMDbGraphQLURL        string `envconfig:"IMDB_GRAPHQL_URL" default:"https://caching.graphql.imdb.com" validate:"url"`
	BetaseriesBaseURL     string `envconfig:"BETASERIES_BASE_URL" default:"https://www.betaseries.com" validate:"url"`
	MetacriticBaseURL     string `envconfig:"METACRITIC_BASE_URL" default:"https://www.metacritic.com" validate:"url"`
	RottenTomatoesBaseURL string `envconfig:"ROTTEN_TOMATOES_BASE_URL" default:"https://www.rottentomatoes.com" validate:"url"`
	SensCritiqueBaseURL   string `envconfig:"SENSCRITIQUE_BASE_URL" default:"https://www.senscritique.com" validate:"url"`
	TraktBaseURL          string `envconfig:"TRAKT_BASE_URL" default:"https://trakt.tv" validate:"url"`
	TMDBBaseURL           string `envconfig:"TMDB_BASE_URL" default:"https://api.themoviedb.org/3" validate:"url"`
	TMDBAPIKey            string `envconfig:"TMDB_API_KEY" default:""`

	HTTPTimeout       time.Duration `envconfig:"WHATSON_HTTP_TIMEOUT" default:"30s"`
	HTTPRetryCount    int           `envconfig:"WHATSON_HTTP_RETRY_COUNT" default:"3" validate:"gte=0,lte=10"`
	HTTPRetryDelay    time.Duration `envconfig:"WHATSON_HTTP_RETRY_DELAY" default:"5s"`
	RequestsPerSecond float64       `envconfig:"WHATSON_REQUESTS_PER_SECOND" default:"2" validate:"gt=0"`
	UserAgent         string        `envconfig:"WHATSON_USER_AGENT" default:"whatson-sync/1.0" validate:"required"`

	EpisodePageSize int `envconfig:"WHATSON_EPISODE_PAGE_SIZE" default:"250" validate:"gte=1,lte=250"`

	// Heap ceiling for the batch circuit breaker, in mebibytes.
	MaxHeapMB       int    `envconfig:"WHATSON_MAX_HEAP_MB" default:"1536" validate:"gte=64"`
	RatingsErrorLog string `envconfig:"WHATSON_RATINGS_ERROR_LOG" default:"null_ratings.log" validate:"required"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("WHATSON_DB_MIN_CONNS (%d) cannot exceed WHATSON_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.HTTPTimeout < time.Second {
		return fmt.Errorf("WHATSON_HTTP_TIMEOUT must be at least 1s")
	}
	if c.HTTPRetryDelay < 0 {
		return fmt.Errorf("WHATSON_HTTP_RETRY_DELAY must not be negative")
	}
	return nil
}
