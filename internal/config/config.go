package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Environment selects defaults that differ between local runs and deploys.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) IsProduction() bool { return e == Production }

type Config struct {
	Env    Environment `env:"ENV" envDefault:"development"`
	Port   string             `env:"PORT" envDefault:"8080"`
	AppURL string             `env:"APP_URL" envDefault:"http://localhost:3000"`
	// BaseURL is this service's public origin, used to build OAuth redirect URLs.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Database  Database  `envPrefix:"DATABASE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Sync      Sync      `envPrefix:"SYNC_"`

	Whoop  Provider `envPrefix:"WHOOP_"`
	Oura   Provider `envPrefix:"OURA_"`
	Fitbit Provider `envPrefix:"FITBIT_"`
	Garmin Provider `envPrefix:"GARMIN_"`
}

type Database struct {
	// URL is optional; without it the server keeps everything in memory.
	URL string `env:"URL"`
}

type Redis struct {
	// URL is optional; without it locks, state and rate limits are process-local.
	URL string `env:"URL"`
}

type Auth struct {
	JWKSURL  string `env:"JWKS_URL"`
	Issuer   string `env:"ISSUER"`
	Audience string `env:"AUDIENCE" envDefault:"authenticated"`
}

type RateLimit struct {
	// Limit is requests per second per IP on unauthenticated routes.
	Limit float64 `env:"LIMIT" envDefault:"10"`
	Burst int     `env:"BURST" envDefault:"20"`
}

type Sync struct {
	BackfillDays   int           `env:"BACKFILL_DAYS" envDefault:"60"`
	Overlap        time.Duration `env:"OVERLAP" envDefault:"48h"`
	CallTimeout    time.Duration `env:"CALL_TIMEOUT" envDefault:"30s"`
	PassTimeout    time.Duration `env:"PASS_TIMEOUT" envDefault:"5m"`
	Interval       time.Duration `env:"INTERVAL" envDefault:"0"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"4"`
	MaxPages       int           `env:"MAX_PAGES" envDefault:"50"`
	DayPacing      time.Duration `env:"DAY_PACING" envDefault:"100ms"`
}

type Provider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	BaseURL      string `env:"BASE_URL"`
}

// Enabled reports whether the provider has credentials configured.
func (p Provider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// RedirectURL is where a vendor sends the user back after consent.
func (c Config) RedirectURL(provider string) string {
	return c.BaseURL + "/oauth/" + provider + "/callback"
}

func Read() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sync.BackfillDays <= 0 {
		return fmt.Errorf("SYNC_BACKFILL_DAYS must be positive, got %d", c.Sync.BackfillDays)
	}
	if c.Sync.MaxConcurrency <= 0 {
		return fmt.Errorf("SYNC_MAX_CONCURRENCY must be positive, got %d", c.Sync.MaxConcurrency)
	}
	if c.Env.IsProduction() && c.Auth.JWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL is required in %s", c.Env)
	}
	return nil
}
