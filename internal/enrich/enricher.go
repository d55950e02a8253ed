// Package enrich resolves free-text addresses into geocoding data through a
// two-tier cache: a process-local MemoryCache checked first, the persistent
// address cache second, and the external providers last.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/geocode"
	"github.com/starford/homehistory/internal/metrics"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
)

// Fetcher is a single geocoding provider.
type Fetcher interface {
	Fetch(ctx context.Context, address string) geocode.Response
}

// Recorder receives cache and provider observations.
type Recorder interface {
	CacheLookup(tier string, hit bool)
	ProviderCall(provider string, err error)
	CacheWriteFailed()
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, bool)   {}
func (nopRecorder) ProviderCall(string, error) {}
func (nopRecorder) CacheWriteFailed()          {}

// Result is what an enrichment lookup produces.
type Result struct {
	Address string          `json:"address"`
	Census  json.RawMessage `json:"census"`
	Geocode json.RawMessage `json:"geocode"`

	// Cached is true when the data came from either cache tier.
	Cached bool `json:"-"`
	// Enrichment is the normalized projection stamped at lookup time.
	Enrichment models.Enrichment `json:"-"`
}

// CacheStats reports both tiers.
type CacheStats struct {
	Database struct {
		TotalEntries int64 `json:"totalEntries"`
	} `json:"database"`
	Memory MemoryStats `json:"memory"`
}

// Enricher resolves addresses. It never fails outward: provider faults
// degrade to absent fields and cache faults fall through to a live fetch.
type Enricher struct {
	census    Fetcher
	nominatim Fetcher
	memory    *MemoryCache
	store     store.CacheStore
	writer    *CacheWriter
	logger    *slog.Logger
	recorder  Recorder
	now       func() time.Time
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithRecorder wires a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Enricher) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		e.now = now
		e.memory.now = now
	}
}

// New builds an Enricher over the two providers, the process-local cache and
// the persistent cache store.
func New(census, nominatim Fetcher, memory *MemoryCache, st store.CacheStore, logger *slog.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		census:    census,
		nominatim: nominatim,
		memory:    memory,
		store:     st,
		logger:    logger,
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.writer = NewCacheWriter(st, logger, e.recorder.CacheWriteFailed)
	return e
}

// Enrich resolves address, consulting the caches before the providers.
func (e *Enricher) Enrich(ctx context.Context, address string) Result {
	key := Normalize(address)

	if item, ok := e.memory.Get(key); ok {
		e.recorder.CacheLookup(metrics.TierMemory, true)
		e.logger.Debug("enrich: memory cache hit", slog.String("address", address))
		return e.result(item.Address, item.Census, item.Geocode, true)
	}
	e.recorder.CacheLookup(metrics.TierMemory, false)

	entry, err := e.store.GetCacheEntry(ctx, key)
	switch {
	case err == nil:
		e.recorder.CacheLookup(metrics.TierPersistent, true)
		e.logger.Debug("enrich: persistent cache hit", slog.String("address", address))
		e.memory.Set(key, CachedAddress{Address: entry.Address, Census: entry.CensusData, Geocode: entry.GeocodeData})
		return e.result(entry.Address, entry.CensusData, entry.GeocodeData, true)
	case errors.Is(err, apperr.ErrNotFound):
		e.recorder.CacheLookup(metrics.TierPersistent, false)
	default:
		e.recorder.CacheLookup(metrics.TierPersistent, false)
		e.logger.Warn("enrich: persistent cache lookup failed, fetching live",
			slog.String("address", address),
			slog.String("error", err.Error()))
	}

	e.logger.Info("enrich: cache miss, querying providers", slog.String("address", address))
	census, geo := e.fetchAndStore(ctx, key, address)
	return e.result(address, census, geo, false)
}

// Refresh bypasses both cache tiers, queries the providers live and writes
// the answer back through both tiers. It returns the projection stamped now.
func (e *Enricher) Refresh(ctx context.Context, address string) models.Enrichment {
	census, geo := e.fetchAndStore(ctx, Normalize(address), address)
	return Project(census, geo, e.now())
}

func (e *Enricher) fetchAndStore(ctx context.Context, key, address string) (census, geo json.RawMessage) {
	census, geo = e.fetchBoth(ctx, address)
	e.memory.Set(key, CachedAddress{Address: address, Census: census, Geocode: geo})
	e.writer.Submit(models.AddressCacheEntry{
		NormalizedAddress: key,
		Address:           address,
		CensusData:        census,
		GeocodeData:       geo,
	})
	return census, geo
}

// fetchBoth calls both providers concurrently and waits for both to settle.
// Neither call can cancel the other, and a caller going away cancels neither;
// each is bounded by its client timeout.
func (e *Enricher) fetchBoth(ctx context.Context, address string) (census, geo json.RawMessage) {
	ctx = context.WithoutCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		resp := e.census.Fetch(ctx, address)
		e.observe(resp)
		census = resp.Raw
		return nil
	})
	g.Go(func() error {
		resp := e.nominatim.Fetch(ctx, address)
		e.observe(resp)
		geo = resp.Raw
		return nil
	})
	_ = g.Wait()
	return census, geo
}

func (e *Enricher) observe(resp geocode.Response) {
	e.recorder.ProviderCall(resp.Provider, resp.Err)
	if resp.Err != nil {
		e.logger.Warn("enrich: provider failed",
			slog.String("provider", resp.Provider),
			slog.String("error", resp.Err.Error()))
	}
}

func (e *Enricher) result(address string, census, geo json.RawMessage, cached bool) Result {
	return Result{
		Address:    address,
		Census:     census,
		Geocode:    geo,
		Cached:     cached,
		Enrichment: Project(census, geo, e.now()),
	}
}

// Project extracts the normalized Enrichment from raw provider payloads.
func Project(census, geo json.RawMessage, at time.Time) models.Enrichment {
	out := models.Enrichment{Source: models.EnrichmentSource, EnrichedAt: &at}
	if m, ok := geocode.ParseCensus(census); ok {
		out.MatchedAddress = m.MatchedAddress
		out.City = m.City
		out.State = m.State
		out.Zip = m.Zip
	}
	out.Lat, out.Lon = geocode.ParseNominatim(geo)
	return out
}

// ClearCache empties both tiers and returns the number of persistent rows removed.
func (e *Enricher) ClearCache(ctx context.Context) (int64, error) {
	e.memory.Clear()
	return e.store.DeleteAllCacheEntries(ctx)
}

// Stats reports entry counts for both tiers.
func (e *Enricher) Stats(ctx context.Context) (CacheStats, error) {
	var s CacheStats
	n, err := e.store.CountCacheEntries(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	s.Database.TotalEntries = n
	s.Memory = e.memory.Stats()
	return s, nil
}

// Close waits for pending write-throughs.
func (e *Enricher) Close() {
	e.writer.Wait()
}
