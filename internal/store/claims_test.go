package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/models"
)

func newClaim(id, userID, address string, at time.Time) *models.PropertyClaim {
	return &models.PropertyClaim{
		ID:                 id,
		UserID:             userID,
		Address:            address,
		Location:           models.Coordinates{Lat: 40, Lng: -74},
		VerificationStatus: models.VerificationBasic,
		ClaimedAt:          at,
	}
}

func TestClaims_InsertAndRead(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	start := time.Date(1998, 6, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	c := newClaim("c1", "u1", "12 Oak Ave", at)
	c.ResidencyDates = &models.ClaimResidency{StartDate: start, Current: true}
	require.NoError(t, db.InsertClaim(ctx, c))
	require.NoError(t, db.InsertClaim(ctx, newClaim("c2", "u1", "9 Elm St", at.Add(time.Hour))))
	require.NoError(t, db.InsertClaim(ctx, newClaim("c3", "u2", "12 Oak Ave", at)))

	got, err := db.GetClaim(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "12 Oak Ave", got.Address)
	assert.True(t, got.ClaimedAt.Equal(at))
	require.NotNil(t, got.ResidencyDates)
	assert.True(t, got.ResidencyDates.StartDate.Equal(start))
	assert.True(t, got.ResidencyDates.Current)
	assert.Empty(t, got.VerificationDocuments)

	mine, err := db.ListClaimsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c1", mine[0].ID)
	assert.Equal(t, "c2", mine[1].ID)

	none, err := db.ListClaimsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClaims_DuplicatePerUser(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.InsertClaim(ctx, newClaim("c1", "u1", "12 Oak Ave", now)))
	err := db.InsertClaim(ctx, newClaim("c2", "u1", "12 Oak Ave", now))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestClaims_OtherUsersClaimIsNotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertClaim(ctx, newClaim("c1", "u1", "12 Oak Ave", time.Now())))

	_, err := db.GetClaim(ctx, "u2", "c1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = db.GetClaim(ctx, "u1", "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
