package store

import (
	"context"
	"time"

	"github.com/starford/homehistory/internal/geo"
	"github.com/starford/homehistory/internal/models"
)

// PropertyStore is the persistence contract for properties.
// Consumers depend on it rather than *DB so tests can swap in fakes.
type PropertyStore interface {
	InsertProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id string) (*models.Property, error)
	SaveProperty(ctx context.Context, p *models.Property) error
	AppendMemory(ctx context.Context, id string, m models.Memory, at time.Time) (*models.Property, error)
	DeleteProperty(ctx context.Context, id string) error
	FindInBox(ctx context.Context, box geo.Box) (*models.Property, error)
	ListProperties(ctx context.Context) ([]*models.Property, error)
	ListNeedingEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Property, error)
	SetEnrichment(ctx context.Context, id string, e *models.Enrichment, at time.Time) error
	EnrichmentCounts(ctx context.Context, staleBefore time.Time) (EnrichmentCounts, error)
}

// CacheStore is the persistence contract for the address cache tier.
type CacheStore interface {
	GetCacheEntry(ctx context.Context, normalized string) (*models.AddressCacheEntry, error)
	UpsertCacheEntry(ctx context.Context, e *models.AddressCacheEntry) error
	DeleteAllCacheEntries(ctx context.Context) (int64, error)
	CountCacheEntries(ctx context.Context) (int64, error)
}

// ClaimStore is the persistence contract for property claims.
type ClaimStore interface {
	InsertClaim(ctx context.Context, c *models.PropertyClaim) error
	ListClaimsByUser(ctx context.Context, userID string) ([]*models.PropertyClaim, error)
	GetClaim(ctx context.Context, userID, id string) (*models.PropertyClaim, error)
}

// EnrichmentCounts summarises enrichment coverage across all properties.
type EnrichmentCounts struct {
	Total    int64
	Enriched int64
	Stale    int64
}

// Verify *DB satisfies every contract at compile time.
var (
	_ PropertyStore = (*DB)(nil)
	_ CacheStore    = (*DB)(nil)
	_ ClaimStore    = (*DB)(nil)
)
