// Package property implements the property and memory operations: creation,
// memory append, proximity find-or-create, lazy enrichment refresh on read,
// and radius search.
package property

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/checksum"
	"github.com/starford/homehistory/internal/enrich"
	"github.com/starford/homehistory/internal/geo"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
)

// Event kinds passed to the Notifier.
const (
	EventPropertyCreated = "property.created"
	EventMemoryAdded     = "memory.added"
	EventPropertyUpdated = "property.updated"
	EventPropertyDeleted = "property.deleted"
)

// DefaultRadiusMiles is the search radius used when none is given.
const DefaultRadiusMiles = 1.0

// Enricher produces a live enrichment snapshot for an address, skipping any
// cached provider answer. Implementations must not fail; provider trouble
// shows up as absent fields.
type Enricher interface {
	Refresh(ctx context.Context, address string) models.Enrichment
}

// Notifier is told about every successful mutation.
type Notifier interface {
	Notify(kind, propertyID string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind, propertyID string)

// Notify calls f.
func (f NotifierFunc) Notify(kind, propertyID string) { f(kind, propertyID) }

type timeSource func() time.Time

// Service coordinates the property store and the enricher.
type Service struct {
	store      store.PropertyStore
	enricher   Enricher
	notifier   Notifier
	logger     *slog.Logger
	now        timeSource
	newID      func() string
	staleAfter time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the mutation listener.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStaleAfter overrides the enrichment freshness window.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// NewService creates a property service.
func NewService(st store.PropertyStore, enricher Enricher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      st,
		enricher:   enricher,
		notifier:   NotifierFunc(func(string, string) {}),
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		staleAfter: enrich.StaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new property seeded with one memory. Enrichment is
// best-effort and attached before the first write.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Property, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in CreateInput) (*models.Property, error) {
	now := s.now()
	enrichment := s.enricher.Refresh(ctx, in.Address)
	p := &models.Property{
		ID:         s.newID(),
		Address:    in.Address,
		Lat:        in.Coordinates.Lat,
		Lng:        in.Coordinates.Lng,
		YearBuilt:  in.YearBuilt,
		Memories:   []models.Memory{in.Memory.toMemory(s.newID(), s.now)},
		Enrichment: &enrichment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertProperty(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("property created", slog.String("id", p.ID), slog.String("address", p.Address))
	s.notifier.Notify(EventPropertyCreated, p.ID)
	return p, nil
}

// AddMemory appends a memory to an existing property.
func (s *Service) AddMemory(ctx context.Context, id string, in MemoryInput) (*models.Property, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	p, err := s.store.AppendMemory(ctx, id, in.toMemory(s.newID(), s.now), s.now())
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(EventMemoryAdded, p.ID)
	return p, nil
}

// FindOrCreate attaches the memory to the first property inside the
// ±geo.ProximityDelta box around the coordinates, or creates a new property.
// created reports which branch ran.
//
// The lookup and the write are not isolated from each other: two concurrent
// submissions at the same new location can both miss and create two
// properties. Duplicates are left for moderation.
func (s *Service) FindOrCreate(ctx context.Context, in CreateInput) (p *models.Property, created bool, err error) {
	if err := in.Validate(); err != nil {
		return nil, false, apperr.Validation(err)
	}
	existing, err := s.store.FindInBox(ctx, geo.BoxAround(in.Coordinates, geo.ProximityDelta))
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		p, err := s.create(ctx, in)
		return p, err == nil, err
	}
	p, err = s.store.AppendMemory(ctx, existing.ID, in.Memory.toMemory(s.newID(), s.now), s.now())
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("memory matched to nearby property", slog.String("id", p.ID))
	s.notifier.Notify(EventMemoryAdded, p.ID)
	return p, false, nil
}

// Get returns a property, refreshing and persisting its enrichment first
// when the snapshot is stale.
func (s *Service) Get(ctx context.Context, id string) (*models.Property, error) {
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if !enrich.IsStaleAfter(p.EnrichedAt(), s.now(), s.staleAfter) {
		return p, nil
	}
	s.logger.Info("enrichment stale, refreshing", slog.String("id", p.ID))
	enrichment := s.enricher.Refresh(ctx, p.Address)
	if err := s.store.SetEnrichment(ctx, p.ID, &enrichment, s.now()); err != nil {
		return nil, fmt.Errorf("refresh enrichment: %w", err)
	}
	return s.store.GetProperty(ctx, p.ID)
}

// List returns every property.
func (s *Service) List(ctx context.Context) ([]*models.Property, error) {
	return s.store.ListProperties(ctx)
}

// Nearby scans every property and keeps those within radiusMiles of c by
// great-circle distance. Callers apply DefaultRadiusMiles when none is given.
func (s *Service) Nearby(ctx context.Context, c models.Coordinates, radiusMiles float64) ([]*models.Property, error) {
	all, err := s.store.ListProperties(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Property, 0, len(all))
	for _, p := range all {
		if geo.Distance(c, p.Coordinates()) <= radiusMiles {
			out = append(out, p)
		}
	}
	return out, nil
}

// Update replaces the location fields of a property. When ifMatch is set it
// must equal the current Checksum. A changed address drops the enrichment so
// the next read refreshes it.
func (s *Service) Update(ctx context.Context, id string, in LocationInput, ifMatch string) (*models.Property, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" {
		current, err := Checksum(p)
		if err != nil {
			return nil, err
		}
		if current != ifMatch {
			return nil, apperr.ErrConflict
		}
	}
	if enrich.Normalize(in.Address) != enrich.Normalize(p.Address) {
		p.Enrichment = nil
	}
	p.Address = in.Address
	p.Lat = in.Coordinates.Lat
	p.Lng = in.Coordinates.Lng
	p.YearBuilt = in.YearBuilt
	p.UpdatedAt = s.now()
	if err := s.store.SaveProperty(ctx, p); err != nil {
		return nil, err
	}
	s.notifier.Notify(EventPropertyUpdated, p.ID)
	return s.store.GetProperty(ctx, p.ID)
}

// Delete removes a property.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(EventPropertyDeleted, id)
	return nil
}

// Checksum fingerprints the property document for If-Match / ETag use.
func Checksum(p *models.Property) (string, error) {
	return checksum.OfJSON(p)
}
