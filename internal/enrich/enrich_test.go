package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/homehistory/internal/geocode"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/testutil"
)

const (
	censusOK    = `{"result":{"addressMatches":[{"matchedAddress":"123 MAIN ST, SPRINGFIELD, IL, 62701","addressComponents":{"city":"SPRINGFIELD","state":"IL","zip":"62701"}}]}}`
	nominatimOK = `[{"lat":"39.7817","lon":"-89.6501"}]`
)

type fakeFetcher struct {
	name      string
	raw       string
	err       error
	calls     atomic.Int32
	cancelled atomic.Int32
	hook      func()
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ string) geocode.Response {
	f.calls.Add(1)
	if ctx.Err() != nil {
		f.cancelled.Add(1)
	}
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		raw, _ := json.Marshal(map[string]string{"error": f.name + " failed", "details": f.err.Error()})
		return geocode.Response{Provider: f.name, Raw: raw, Err: f.err}
	}
	return geocode.Response{Provider: f.name, Raw: json.RawMessage(f.raw)}
}

type countingRecorder struct {
	mu         sync.Mutex
	hits       map[string]int
	writeFails int
}

func (r *countingRecorder) CacheLookup(tier string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hits == nil {
		r.hits = map[string]int{}
	}
	if hit {
		r.hits[tier]++
	}
}
func (r *countingRecorder) ProviderCall(string, error) {}
func (r *countingRecorder) CacheWriteFailed() {
	r.mu.Lock()
	r.writeFails++
	r.mu.Unlock()
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func okFetchers() (*fakeFetcher, *fakeFetcher) {
	return &fakeFetcher{name: geocode.ProviderCensus, raw: censusOK},
		&fakeFetcher{name: geocode.ProviderNominatim, raw: nominatimOK}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, addr := range []string{"  123 Main St  ", "ALL CAPS", "", "\tMixed Case\n", "already normal"} {
		once := Normalize(addr)
		assert.Equal(t, once, Normalize(once), "address %q", addr)
	}
	assert.Equal(t, "123 main st", Normalize("  123 Main St "))
}

func TestEnrich_CacheRoundTrip(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	e := New(census, nominatim, NewMemoryCache(DefaultMemoryTTL), db, testutil.Logger())
	defer e.Close()

	first := e.Enrich(context.Background(), "123 Main St")
	assert.False(t, first.Cached)
	assert.Equal(t, int32(1), census.calls.Load())
	assert.Equal(t, int32(1), nominatim.calls.Load())

	second := e.Enrich(context.Background(), "  123 MAIN st ")
	assert.True(t, second.Cached)
	assert.Equal(t, first.Address, second.Address)
	assert.JSONEq(t, string(first.Census), string(second.Census))
	assert.JSONEq(t, string(first.Geocode), string(second.Geocode))
	assert.Equal(t, int32(1), census.calls.Load(), "no extra provider calls")
	assert.Equal(t, int32(1), nominatim.calls.Load(), "no extra provider calls")
}

func TestEnrich_ProjectsNormalizedFields(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	clk := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	e := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger(), WithClock(clk.Now))
	defer e.Close()

	en := e.Refresh(context.Background(), "123 Main St")
	assert.Equal(t, "123 MAIN ST, SPRINGFIELD, IL, 62701", en.MatchedAddress)
	assert.Equal(t, "SPRINGFIELD", en.City)
	assert.Equal(t, "IL", en.State)
	assert.Equal(t, "62701", en.Zip)
	require.NotNil(t, en.Lat)
	require.NotNil(t, en.Lon)
	assert.InDelta(t, 39.7817, *en.Lat, 1e-9)
	assert.InDelta(t, -89.6501, *en.Lon, 1e-9)
	assert.Equal(t, models.EnrichmentSource, en.Source)
	require.NotNil(t, en.EnrichedAt)
	assert.True(t, en.EnrichedAt.Equal(clk.Now()))
}

func TestEnrich_CallerCancellationDoesNotReachProviders(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	e := New(census, nominatim, NewMemoryCache(DefaultMemoryTTL), db, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Enrich(ctx, "1 A St")
	e.Close()

	assert.Equal(t, int32(0), census.cancelled.Load())
	assert.Equal(t, int32(0), nominatim.cancelled.Load())
	assert.JSONEq(t, censusOK, string(res.Census))
	assert.JSONEq(t, nominatimOK, string(res.Geocode))

	// A new process reads the persisted answer, not a cancellation error.
	census2, nominatim2 := okFetchers()
	e2 := New(census2, nominatim2, NewMemoryCache(DefaultMemoryTTL), db, testutil.Logger())
	defer e2.Close()
	again := e2.Enrich(context.Background(), "1 A St")
	assert.True(t, again.Cached)
	assert.JSONEq(t, censusOK, string(again.Census))
	assert.Equal(t, int32(0), census2.calls.Load())
}

func TestRefresh_BypassesBothTiers(t *testing.T) {
	db := testutil.TestDB(t)
	census := &fakeFetcher{name: geocode.ProviderCensus, err: errors.New("down")}
	nominatim := &fakeFetcher{name: geocode.ProviderNominatim, raw: nominatimOK}
	clk := &clock{t: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	e := New(census, nominatim, NewMemoryCache(DefaultMemoryTTL), db, testutil.Logger(), WithClock(clk.Now))
	defer e.Close()

	first := e.Enrich(context.Background(), "123 Main St")
	assert.Empty(t, first.Enrichment.MatchedAddress)

	census.err = nil
	census.raw = censusOK
	clk.Advance(31 * 24 * time.Hour)

	en := e.Refresh(context.Background(), "123 Main St")
	assert.Equal(t, int32(2), census.calls.Load(), "refresh goes to the provider")
	assert.Equal(t, "123 MAIN ST, SPRINGFIELD, IL, 62701", en.MatchedAddress)
	require.NotNil(t, en.EnrichedAt)
	assert.True(t, en.EnrichedAt.Equal(clk.Now()))

	// The refreshed answer replaces the cached failure.
	cached := e.Enrich(context.Background(), "123 Main St")
	assert.True(t, cached.Cached)
	assert.JSONEq(t, censusOK, string(cached.Census))
	assert.Equal(t, int32(2), census.calls.Load())
}

func TestEnrich_PartialProviderFailure(t *testing.T) {
	db := testutil.TestDB(t)
	census := &fakeFetcher{name: geocode.ProviderCensus, err: errors.New("timeout")}
	nominatim := &fakeFetcher{name: geocode.ProviderNominatim, raw: nominatimOK}
	e := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger())
	defer e.Close()

	res := e.Enrich(context.Background(), "123 Main St")
	assert.False(t, res.Cached)
	assert.Empty(t, res.Enrichment.MatchedAddress)
	assert.Empty(t, res.Enrichment.City)
	assert.Empty(t, res.Enrichment.State)
	assert.Empty(t, res.Enrichment.Zip)
	require.NotNil(t, res.Enrichment.Lat)
	require.NotNil(t, res.Enrichment.Lon)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(res.Census, &payload))
	assert.NotEmpty(t, payload["error"])
}

func TestEnrich_BothProvidersFail(t *testing.T) {
	db := testutil.TestDB(t)
	census := &fakeFetcher{name: geocode.ProviderCensus, err: errors.New("down")}
	nominatim := &fakeFetcher{name: geocode.ProviderNominatim, err: errors.New("down")}
	e := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger())
	defer e.Close()

	res := e.Enrich(context.Background(), "nowhere")
	assert.Nil(t, res.Enrichment.Lat)
	assert.Empty(t, res.Enrichment.City)
	assert.Equal(t, models.EnrichmentSource, res.Enrichment.Source)
	assert.NotNil(t, res.Enrichment.EnrichedAt)
}

func TestEnrich_ProvidersRunConcurrently(t *testing.T) {
	db := testutil.TestDB(t)
	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	barrier := func() {
		started.Done()
		<-release
	}
	census := &fakeFetcher{name: geocode.ProviderCensus, raw: censusOK, hook: barrier}
	nominatim := &fakeFetcher{name: geocode.ProviderNominatim, raw: nominatimOK, hook: barrier}
	e := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger())
	defer e.Close()

	done := make(chan Result, 1)
	go func() { done <- e.Enrich(context.Background(), "1 Parallel Way") }()

	bothStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(bothStarted)
	}()
	select {
	case <-bothStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("providers were not called in parallel")
	}
	close(release)

	select {
	case res := <-done:
		assert.NotNil(t, res.Enrichment.Lat)
	case <-time.After(2 * time.Second):
		t.Fatal("enrich did not return")
	}
}

func TestEnrich_PersistentTierServesNewProcess(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	first := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger())
	first.Enrich(context.Background(), "123 Main St")
	first.Close()

	rec := &countingRecorder{}
	memory := NewMemoryCache(0)
	second := New(census, nominatim, memory, db, testutil.Logger(), WithRecorder(rec))
	defer second.Close()

	res := second.Enrich(context.Background(), "123 main st")
	assert.True(t, res.Cached)
	assert.Equal(t, "123 Main St", res.Address)
	assert.Equal(t, int32(1), census.calls.Load())
	assert.Equal(t, 1, rec.hits["persistent"])
	assert.Equal(t, 1, memory.Stats().TotalEntries, "persistent hit repopulates memory tier")
}

func TestEnrich_MemoryTTLExpiryFallsToPersistent(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	clk := &clock{t: time.Now()}
	rec := &countingRecorder{}
	memory := NewMemoryCache(DefaultMemoryTTL)
	e := New(census, nominatim, memory, db, testutil.Logger(), WithClock(clk.Now), WithRecorder(rec))
	defer e.Close()

	e.Enrich(context.Background(), "123 Main St")
	e.writer.Wait()

	clk.Advance(25 * time.Hour)
	stats := memory.Stats()
	assert.Equal(t, 1, stats.StaleEntries)
	assert.Equal(t, 0, stats.FreshEntries)

	res := e.Enrich(context.Background(), "123 Main St")
	assert.True(t, res.Cached)
	assert.Equal(t, 0, rec.hits["memory"])
	assert.Equal(t, 1, rec.hits["persistent"])
	assert.Equal(t, int32(1), census.calls.Load())
}

type brokenCache struct{}

func (brokenCache) GetCacheEntry(context.Context, string) (*models.AddressCacheEntry, error) {
	return nil, errors.New("disk on fire")
}
func (brokenCache) UpsertCacheEntry(context.Context, *models.AddressCacheEntry) error {
	return errors.New("disk on fire")
}
func (brokenCache) DeleteAllCacheEntries(context.Context) (int64, error) {
	return 0, errors.New("disk on fire")
}
func (brokenCache) CountCacheEntries(context.Context) (int64, error) {
	return 0, errors.New("disk on fire")
}

func TestEnrich_BrokenPersistentCacheDegrades(t *testing.T) {
	census, nominatim := okFetchers()
	rec := &countingRecorder{}
	e := New(census, nominatim, NewMemoryCache(0), brokenCache{}, testutil.Logger(), WithRecorder(rec))

	res := e.Enrich(context.Background(), "123 Main St")
	e.Close()

	assert.False(t, res.Cached)
	assert.Equal(t, "SPRINGFIELD", res.Enrichment.City)
	assert.Equal(t, 1, rec.writeFails, "write-through failure is recorded, not returned")

	again := e.Enrich(context.Background(), "123 Main St")
	assert.True(t, again.Cached, "memory tier still serves")
}

func TestClearCacheAndStats(t *testing.T) {
	db := testutil.TestDB(t)
	census, nominatim := okFetchers()
	e := New(census, nominatim, NewMemoryCache(0), db, testutil.Logger())
	defer e.Close()

	e.Enrich(context.Background(), "1 A St")
	e.Enrich(context.Background(), "2 B St")
	e.writer.Wait()

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Database.TotalEntries)
	assert.Equal(t, 2, stats.Memory.TotalEntries)
	assert.Equal(t, 2, stats.Memory.FreshEntries)
	assert.Equal(t, DefaultMemoryTTL.Milliseconds(), stats.Memory.TTL)

	deleted, err := e.ClearCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stats, err = e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Database.TotalEntries)
	assert.Equal(t, 0, stats.Memory.TotalEntries)

	res := e.Enrich(context.Background(), "1 A St")
	assert.False(t, res.Cached)
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	day := 24 * time.Hour
	t29 := now.Add(-29 * day)
	t31 := now.Add(-31 * day)
	var zero time.Time

	assert.False(t, IsStale(&t29, now))
	assert.True(t, IsStale(&t31, now))
	assert.True(t, IsStale(nil, now))
	assert.True(t, IsStale(&zero, now))
	assert.False(t, IsStale(&now, now))
}
