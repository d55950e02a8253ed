package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/geocode"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
	"github.com/starford/homehistory/internal/testutil"
)

type slowEnricher struct {
	latency  time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (e *slowEnricher) Refresh(_ context.Context, address string) models.Enrichment {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(e.latency)
	e.inFlight.Add(-1)
	now := time.Now()
	return models.Enrichment{MatchedAddress: address, Source: models.EnrichmentSource, EnrichedAt: &now}
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *outcomeCounter) BackfillOutcome(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func seed(t *testing.T, db *store.DB, n int, enrichedAt *time.Time) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		now := time.Now()
		p := &models.Property{
			ID:        fmt.Sprintf("p-%02d", i),
			Address:   fmt.Sprintf("%d Elm St", i),
			Lat:       40,
			Lng:       -74,
			Memories:  []models.Memory{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if enrichedAt != nil {
			at := *enrichedAt
			p.Enrichment = &models.Enrichment{Source: models.EnrichmentSource, EnrichedAt: &at}
		}
		require.NoError(t, db.InsertProperty(context.Background(), p))
		ids = append(ids, p.ID)
	}
	return ids
}

func TestRun_ConcurrencyCeiling(t *testing.T) {
	db := testutil.TestDB(t)
	old := time.Now().Add(-45 * 24 * time.Hour)
	seed(t, db, 20, &old)

	enr := &slowEnricher{latency: 30 * time.Millisecond}
	rec := &outcomeCounter{}
	b := New(db, enr, testutil.Logger(), WithDelay(5*time.Millisecond), WithRecorder(rec))

	res, err := b.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 20, Updated: 20}, res)
	assert.LessOrEqual(t, enr.maxSeen.Load(), int32(DefaultConcurrency))
	assert.Greater(t, enr.maxSeen.Load(), int32(1), "work ran in parallel")
	assert.Equal(t, 20, rec.counts[OutcomeUpdated])
}

type providerStub struct {
	name  string
	raw   string
	err   error
	calls atomic.Int32
}

func (p *providerStub) Fetch(context.Context, string) geocode.Response {
	p.calls.Add(1)
	if p.err != nil {
		raw, _ := json.Marshal(map[string]string{"error": p.name + " failed", "details": p.err.Error()})
		return geocode.Response{Provider: p.name, Raw: raw, Err: p.err}
	}
	return geocode.Response{Provider: p.name, Raw: json.RawMessage(p.raw)}
}

func TestRun_RefreshIgnoresCachedProviderAnswer(t *testing.T) {
	db := testutil.TestDB(t)
	census := &providerStub{name: geocode.ProviderCensus, err: errors.New("down")}
	nominatim := &providerStub{name: geocode.ProviderNominatim, raw: `[{"lat":"40","lon":"-74"}]`}
	enr := enrich.New(census, nominatim, enrich.NewMemoryCache(enrich.DefaultMemoryTTL), db, testutil.Logger())

	// The failed answer is now in both cache tiers.
	enr.Enrich(context.Background(), "0 Elm St")
	enr.Close()
	old := time.Now().Add(-45 * 24 * time.Hour)
	seed(t, db, 1, &old)

	census.err = nil
	census.raw = `{"result":{"addressMatches":[{"matchedAddress":"0 ELM ST, TOWN, NJ, 07001","addressComponents":{"city":"TOWN","state":"NJ","zip":"07001"}}]}}`

	b := New(db, enr, testutil.Logger(), WithDelay(0))
	res, err := b.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Updated: 1}, res)
	assert.Equal(t, int32(2), census.calls.Load())

	p, err := db.GetProperty(context.Background(), "p-00")
	require.NoError(t, err)
	require.NotNil(t, p.Enrichment)
	assert.Equal(t, "0 ELM ST, TOWN, NJ, 07001", p.Enrichment.MatchedAddress)
	enr.Close()
}

func TestProcess_RerunSkipsFreshProperties(t *testing.T) {
	db := testutil.TestDB(t)
	seed(t, db, 6, nil)

	enr := &slowEnricher{}
	b := New(db, enr, testutil.Logger(), WithDelay(0))
	candidates, err := db.ListNeedingEnrichment(context.Background(), time.Now(), 100)
	require.NoError(t, err)
	require.Len(t, candidates, 6)

	first := b.Process(context.Background(), candidates)
	assert.Equal(t, Result{Processed: 6, Updated: 6}, first)

	second := b.Process(context.Background(), candidates)
	assert.Equal(t, Result{Processed: 6, Skipped: 6}, second)
	assert.Equal(t, int32(6), enr.calls.Load())

	again, err := b.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{}, again, "fresh properties are not selected")
}

func TestRun_RespectsLimit(t *testing.T) {
	db := testutil.TestDB(t)
	seed(t, db, 4, nil)
	b := New(db, &slowEnricher{}, testutil.Logger(), WithDelay(0))

	res, err := b.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Updated)
}

type flakyStore struct {
	*store.DB
	failID string
}

func (f *flakyStore) SetEnrichment(ctx context.Context, id string, e *models.Enrichment, at time.Time) error {
	if id == f.failID {
		return errors.New("disk full")
	}
	return f.DB.SetEnrichment(ctx, id, e, at)
}

func TestRun_CountsErrorsWithoutAborting(t *testing.T) {
	db := testutil.TestDB(t)
	ids := seed(t, db, 5, nil)
	rec := &outcomeCounter{}
	b := New(&flakyStore{DB: db, failID: ids[2]}, &slowEnricher{}, testutil.Logger(),
		WithDelay(0), WithRecorder(rec))

	res, err := b.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 5, Updated: 4, Errors: 1}, res)
	assert.Equal(t, 1, rec.counts[OutcomeError])
}

func TestStats(t *testing.T) {
	db := testutil.TestDB(t)
	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	for i, at := range []*time.Time{nil, &old, &recent, &recent} {
		now := time.Now()
		p := &models.Property{ID: fmt.Sprintf("s-%d", i), Address: "x", CreatedAt: now, UpdatedAt: now}
		if at != nil {
			p.Enrichment = &models.Enrichment{EnrichedAt: at}
		}
		require.NoError(t, db.InsertProperty(context.Background(), p))
	}

	got, err := New(db, &slowEnricher{}, testutil.Logger()).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Coverage{Total: 4, Enriched: 3, Missing: 1, Stale: 1, Fresh: 2}, got)
}
