package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/homehistory/internal/auth"
	"github.com/starford/homehistory/internal/backfill"
	"github.com/starford/homehistory/internal/claim"
	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/geocode"
	"github.com/starford/homehistory/internal/metrics"
	"github.com/starford/homehistory/internal/property"
	"github.com/starford/homehistory/internal/store"
)

// components is the wired service graph shared by every run mode.
type components struct {
	db         *store.DB
	metrics    *metrics.Collector
	enricher   *enrich.Enricher
	properties *property.Service
	backfill   *backfill.Backfiller

	// claims and users are nil unless auth.jwt_secret is set.
	claims *claim.Service
	users  *auth.Verifier
}

func (a *application) logger() (*slog.Logger, *slog.LevelVar, error) {
	if a.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}
	level := new(slog.LevelVar)
	level.Set(a.config.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, level, nil
}

// buildComponents opens the store and wires the services. Property events
// are counted and, when events is non-nil, forwarded to it.
func buildComponents(cfg *Config, logger *slog.Logger, events property.Notifier) (*components, error) {
	if dir := cfg.Photos.Dir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create photo dir: %w", err)
		}
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	collector := metrics.New("homehistory")

	gcfg := geocode.Config{
		CensusURL:          cfg.Geocoding.CensusURL,
		CensusBenchmark:    cfg.Geocoding.CensusBenchmark,
		NominatimURL:       cfg.Geocoding.NominatimURL,
		UserAgent:          cfg.Geocoding.UserAgent,
		Timeout:            cfg.Geocoding.Timeout,
		BreakerMaxFailures: cfg.Geocoding.Breaker.MaxFailures,
		BreakerOpenTimeout: cfg.Geocoding.Breaker.OpenTimeout,
	}
	enricher := enrich.New(
		geocode.NewCensus(gcfg, logger),
		geocode.NewNominatim(gcfg, logger),
		enrich.NewMemoryCache(cfg.Cache.MemoryTTL),
		db,
		logger,
		enrich.WithRecorder(collector),
	)

	notifier := property.NotifierFunc(func(kind, id string) {
		collector.PropertyEvent(kind)
		if events != nil {
			events.Notify(kind, id)
		}
	})

	c := &components{
		db:       db,
		metrics:  collector,
		enricher: enricher,
		properties: property.NewService(db, enricher, logger,
			property.WithNotifier(notifier),
			property.WithStaleAfter(cfg.Enrichment.StaleAfter),
		),
		backfill: backfill.New(db, enricher, logger,
			backfill.WithConcurrency(cfg.Enrichment.BackfillConcurrency),
			backfill.WithDelay(cfg.Enrichment.BackfillDelay),
			backfill.WithDefaultLimit(cfg.Enrichment.BackfillDefaultLimit),
			backfill.WithStaleAfter(cfg.Enrichment.StaleAfter),
			backfill.WithRecorder(collector),
		),
	}
	if cfg.Auth.ClaimsEnabled() {
		users, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init claims: %w", err)
		}
		c.users = users
		c.claims = claim.NewService(db, logger)
	}
	return c, nil
}

// Close drains pending cache writes, then closes the database.
func (c *components) Close() {
	c.enricher.Close()
	_ = c.db.Close()
}
