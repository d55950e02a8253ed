package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
	Geocoding  GeocodingConfig   `yaml:"geocoding"`
	Cache      CacheConfig       `yaml:"cache"`
	Enrichment EnrichmentConfig  `yaml:"enrichment"`
	Photos     PhotosConfig      `yaml:"photos"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.Geocoding, &c.Cache, &c.Enrichment, &c.Photos,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	CORS     CORSConfig `yaml:"cors"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how the admin routes are guarded:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// JWTSecret enables the property-claim routes, which need a signed-in user
// carried as an HS256 token. JWTIssuer, when set, must match the token's iss.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ClaimsEnabled reports whether user tokens can be verified.
func (c *AuthConfig) ClaimsEnabled() bool {
	return c.JWTSecret != ""
}

// GeocodingConfig configures the two upstream providers.
type GeocodingConfig struct {
	CensusURL       string        `yaml:"census_url"`
	CensusBenchmark string        `yaml:"census_benchmark"`
	NominatimURL    string        `yaml:"nominatim_url"`
	UserAgent       string        `yaml:"user_agent"`
	Timeout         time.Duration `yaml:"timeout"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// Validate validates the geocoding configuration.
func (c *GeocodingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CensusURL, validation.Required, is.URL),
		validation.Field(&c.NominatimURL, validation.Required, is.URL),
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// CacheConfig configures the process-local address cache.
type CacheConfig struct {
	MemoryTTL time.Duration `yaml:"memory_ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MemoryTTL, validation.Required, validation.Min(time.Second)),
	)
}

// EnrichmentConfig configures freshness and the admin backfill.
type EnrichmentConfig struct {
	StaleAfter           time.Duration `yaml:"stale_after"`
	BackfillConcurrency  int           `yaml:"backfill_concurrency"`
	BackfillDelay        time.Duration `yaml:"backfill_delay"`
	BackfillDefaultLimit int           `yaml:"backfill_default_limit"`
}

// Validate validates the enrichment configuration.
func (c *EnrichmentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StaleAfter, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.BackfillConcurrency, validation.Required, validation.Min(1), validation.Max(50)),
		validation.Field(&c.BackfillDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.BackfillDefaultLimit, validation.Required, validation.Min(1)),
	)
}

// PhotosConfig configures local photo storage.
type PhotosConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Validate validates the photo configuration.
func (c *PhotosConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1024))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3001,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		SQLite: SQLiteConfig{
			Path: "./homehistory.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Geocoding: GeocodingConfig{
			CensusURL:       "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress",
			CensusBenchmark: "2020",
			NominatimURL:    "https://nominatim.openstreetmap.org/search",
			UserAgent:       "HomeHistoryApp/1.0",
			Timeout:         10 * time.Second,
			Breaker: BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: time.Minute,
			},
		},
		Cache: CacheConfig{
			MemoryTTL: 24 * time.Hour,
		},
		Enrichment: EnrichmentConfig{
			StaleAfter:           30 * 24 * time.Hour,
			BackfillConcurrency:  5,
			BackfillDelay:        1100 * time.Millisecond,
			BackfillDefaultLimit: 100,
		},
		Photos: PhotosConfig{
			Dir:      "./photos",
			MaxBytes: 10 << 20,
		},
	}
}
