package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/models"
)

const claimColumns = `id, user_id, address, lat, lng, verification_status, residency, verification_documents, claimed_at`

func scanClaim(row rowScanner) (*models.PropertyClaim, error) {
	var (
		c         models.PropertyClaim
		residency sql.NullString
		documents string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Address, &c.Location.Lat, &c.Location.Lng,
		&c.VerificationStatus, &residency, &documents, &c.ClaimedAt); err != nil {
		return nil, err
	}
	if residency.Valid && residency.String != "" {
		var r models.ClaimResidency
		if err := json.Unmarshal([]byte(residency.String), &r); err != nil {
			return nil, fmt.Errorf("store: decode residency for claim %s: %w", c.ID, err)
		}
		c.ResidencyDates = &r
	}
	if err := json.Unmarshal([]byte(documents), &c.VerificationDocuments); err != nil {
		return nil, fmt.Errorf("store: decode documents for claim %s: %w", c.ID, err)
	}
	if c.VerificationDocuments == nil {
		c.VerificationDocuments = []models.VerificationDocument{}
	}
	return &c, nil
}

// InsertClaim stores a new claim. A second claim by the same user on the
// same address returns apperr.ErrConflict.
func (db *DB) InsertClaim(ctx context.Context, c *models.PropertyClaim) error {
	var residency any
	if c.ResidencyDates != nil {
		b, err := json.Marshal(c.ResidencyDates)
		if err != nil {
			return fmt.Errorf("store: encode residency: %w", err)
		}
		residency = string(b)
	}
	docs := c.VerificationDocuments
	if docs == nil {
		docs = []models.VerificationDocument{}
	}
	docJSON, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("store: encode documents: %w", err)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO property_claims (`+claimColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Address, c.Location.Lat, c.Location.Lng,
		c.VerificationStatus, residency, string(docJSON), c.ClaimedAt.UTC())
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return apperr.ErrConflict
		}
		return fmt.Errorf("store: insert claim: %w", err)
	}
	return nil
}

// ListClaimsByUser returns the user's claims, oldest first.
func (db *DB) ListClaimsByUser(ctx context.Context, userID string) ([]*models.PropertyClaim, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM property_claims WHERE user_id = ? ORDER BY claimed_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list claims: %w", err)
	}
	defer rows.Close()
	out := []*models.PropertyClaim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClaim returns the claim only when it belongs to userID; any other
// claim looks absent.
func (db *DB) GetClaim(ctx context.Context, userID, id string) (*models.PropertyClaim, error) {
	c, err := scanClaim(db.conn.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM property_claims WHERE id = ? AND user_id = ?
	`, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get claim: %w", err)
	}
	return c, nil
}
