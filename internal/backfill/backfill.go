// Package backfill refreshes the enrichment snapshot of stored properties in
// bounded-parallel batches and reports enrichment coverage.
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
)

// Defaults used when the Backfiller is built without overrides.
const (
	DefaultConcurrency = 5
	DefaultLimit       = 100
	DefaultDelay       = 1100 * time.Millisecond
)

// Outcome labels passed to the Recorder.
const (
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Store is the slice of the property store the backfill needs.
type Store interface {
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	ListNeedingEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Property, error)
	SetEnrichment(ctx context.Context, id string, e *models.Enrichment, at time.Time) error
	EnrichmentCounts(ctx context.Context, staleBefore time.Time) (store.EnrichmentCounts, error)
}

// Enricher queries the providers live for an address.
type Enricher interface {
	Refresh(ctx context.Context, address string) models.Enrichment
}

// Recorder receives one outcome per processed property.
type Recorder interface {
	BackfillOutcome(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) BackfillOutcome(string) {}

// Result is the aggregate of one backfill pass.
type Result struct {
	Processed int64 `json:"processed"`
	Updated   int64 `json:"updated"`
	Skipped   int64 `json:"skipped"`
	Errors    int64 `json:"errors"`
}

// Coverage counts properties by enrichment presence and freshness.
type Coverage struct {
	Total    int64 `json:"total"`
	Enriched int64 `json:"enriched"`
	Missing  int64 `json:"missing"`
	Stale    int64 `json:"stale"`
	Fresh    int64 `json:"fresh"`
}

// Backfiller runs enrichment passes over stored properties.
type Backfiller struct {
	store        Store
	enricher     Enricher
	logger       *slog.Logger
	recorder     Recorder
	concurrency  int64
	delay        time.Duration
	defaultLimit int
	staleAfter   time.Duration
	now          func() time.Time
}

// Option configures a Backfiller.
type Option func(*Backfiller)

// WithConcurrency sets the number of simultaneous enrichments.
func WithConcurrency(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.concurrency = int64(n)
		}
	}
}

// WithDelay sets the pause held after each update before its slot is freed.
func WithDelay(d time.Duration) Option {
	return func(b *Backfiller) {
		if d >= 0 {
			b.delay = d
		}
	}
}

// WithDefaultLimit sets the batch size used when Run gets a non-positive limit.
func WithDefaultLimit(n int) Option {
	return func(b *Backfiller) {
		if n > 0 {
			b.defaultLimit = n
		}
	}
}

// WithStaleAfter overrides the freshness window.
func WithStaleAfter(d time.Duration) Option {
	return func(b *Backfiller) {
		if d > 0 {
			b.staleAfter = d
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Backfiller) { b.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backfiller) { b.now = now }
}

// New creates a Backfiller.
func New(st Store, enricher Enricher, logger *slog.Logger, opts ...Option) *Backfiller {
	b := &Backfiller{
		store:        st,
		enricher:     enricher,
		logger:       logger,
		recorder:     nopRecorder{},
		concurrency:  DefaultConcurrency,
		delay:        DefaultDelay,
		defaultLimit: DefaultLimit,
		staleAfter:   enrich.StaleAfter,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run selects up to limit properties whose enrichment is missing or stale
// and refreshes them. Only the selection query can fail the pass.
func (b *Backfiller) Run(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = b.defaultLimit
	}
	candidates, err := b.store.ListNeedingEnrichment(ctx, b.now().Add(-b.staleAfter), limit)
	if err != nil {
		return Result{}, fmt.Errorf("backfill: select candidates: %w", err)
	}
	b.logger.Info("backfill started", slog.Int("limit", limit), slog.Int("candidates", len(candidates)))
	res := b.Process(ctx, candidates)
	b.logger.Info("backfill complete",
		slog.Int64("processed", res.Processed),
		slog.Int64("updated", res.Updated),
		slog.Int64("skipped", res.Skipped),
		slog.Int64("errors", res.Errors),
	)
	return res, nil
}

// Process refreshes the given properties with at most the configured number
// of enrichments in flight. Each one is re-read first and skipped when it is
// already fresh. Per-property failures are counted, never returned.
func (b *Backfiller) Process(ctx context.Context, candidates []*models.Property) Result {
	var (
		processed, updated, skipped, errs atomic.Int64
		wg                                sync.WaitGroup
	)
	sem := semaphore.NewWeighted(b.concurrency)
	for _, p := range candidates {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)
			processed.Add(1)
			outcome, err := b.refresh(ctx, id)
			switch {
			case err != nil:
				errs.Add(1)
				outcome = OutcomeError
				b.logger.Error("backfill: property failed", slog.String("id", id), slog.String("error", err.Error()))
			case outcome == OutcomeSkipped:
				skipped.Add(1)
			default:
				updated.Add(1)
			}
			b.recorder.BackfillOutcome(outcome)
		}(p.ID)
	}
	wg.Wait()
	return Result{
		Processed: processed.Load(),
		Updated:   updated.Load(),
		Skipped:   skipped.Load(),
		Errors:    errs.Load(),
	}
}

func (b *Backfiller) refresh(ctx context.Context, id string) (string, error) {
	current, err := b.store.GetProperty(ctx, id)
	if err != nil {
		return "", err
	}
	if !enrich.IsStaleAfter(current.EnrichedAt(), b.now(), b.staleAfter) {
		b.logger.Debug("backfill: enrichment fresh, skipping", slog.String("id", id))
		return OutcomeSkipped, nil
	}
	enrichment := b.enricher.Refresh(ctx, current.Address)
	if err := b.store.SetEnrichment(ctx, id, &enrichment, b.now()); err != nil {
		return "", err
	}
	b.logger.Debug("backfill: property updated", slog.String("id", id))

	// Nominatim allows roughly one request per second; hold the slot.
	if b.delay > 0 {
		t := time.NewTimer(b.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return OutcomeUpdated, nil
}

// Stats reports enrichment coverage across every property.
func (b *Backfiller) Stats(ctx context.Context) (Coverage, error) {
	c, err := b.store.EnrichmentCounts(ctx, b.now().Add(-b.staleAfter))
	if err != nil {
		return Coverage{}, err
	}
	return Coverage{
		Total:    c.Total,
		Enriched: c.Enriched,
		Missing:  c.Total - c.Enriched,
		Stale:    c.Stale,
		Fresh:    c.Enriched - c.Stale,
	}, nil
}
