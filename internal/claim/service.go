// Package claim lets a signed-in user record that they lived at an address.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/models"
	"github.com/starford/homehistory/internal/store"
)

// SubmitInput is a new claim as the user sent it.
type SubmitInput struct {
	Address            string
	Location           *models.Coordinates
	VerificationStatus string
	ResidencyDates     *models.ClaimResidency
}

// Validate checks the address, the location and the residency period.
func (in SubmitInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Address, validation.By(func(v interface{}) error {
			if strings.TrimSpace(v.(string)) == "" {
				return errors.New("cannot be blank")
			}
			return nil
		})),
		validation.Field(&in.Location, validation.NotNil),
		validation.Field(&in.VerificationStatus,
			validation.In(models.VerificationBasic, models.VerificationEnhanced)),
	); err != nil {
		return err
	}
	if l := in.Location; l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return errors.New("location: coordinates out of range")
	}
	if r := in.ResidencyDates; r != nil {
		if r.StartDate.IsZero() {
			return errors.New("residencyDates: startDate is required")
		}
		if r.EndDate != nil {
			if r.Current {
				return errors.New("residencyDates: a current residency has no endDate")
			}
			if r.EndDate.Before(r.StartDate) {
				return errors.New("residencyDates: endDate precedes startDate")
			}
		}
	}
	return nil
}

// Service manages property claims.
type Service struct {
	store  store.ClaimStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a claim service.
func NewService(st store.ClaimStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: st, logger: logger, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores a claim for userID. A repeat claim on the same address
// returns apperr.ErrConflict.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*models.PropertyClaim, error) {
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation(err)
	}
	status := in.VerificationStatus
	if status == "" {
		status = models.VerificationBasic
	}
	c := &models.PropertyClaim{
		ID:                    s.newID(),
		UserID:                userID,
		Address:               in.Address,
		Location:              *in.Location,
		VerificationStatus:    status,
		ClaimedAt:             s.now().UTC(),
		ResidencyDates:        in.ResidencyDates,
		VerificationDocuments: []models.VerificationDocument{},
	}
	if err := s.store.InsertClaim(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("property claimed", slog.String("id", c.ID), slog.String("user", userID))
	return c, nil
}

// ForUser lists the user's claims.
func (s *Service) ForUser(ctx context.Context, userID string) ([]*models.PropertyClaim, error) {
	return s.store.ListClaimsByUser(ctx, userID)
}

// Get returns one of the user's claims. Claims of other users are reported
// as apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.PropertyClaim, error) {
	return s.store.GetClaim(ctx, userID, id)
}
