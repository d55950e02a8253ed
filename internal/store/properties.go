package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/geo"
	"github.com/starford/homehistory/internal/models"
)

const propertyColumns = `id, address, lat, lng, year_built, memories, enrichment, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var (
		p          models.Property
		yearBuilt  sql.NullInt64
		memories   string
		enrichment sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Address, &p.Lat, &p.Lng, &yearBuilt, &memories, &enrichment, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if yearBuilt.Valid {
		y := int(yearBuilt.Int64)
		p.YearBuilt = &y
	}
	if err := json.Unmarshal([]byte(memories), &p.Memories); err != nil {
		return nil, fmt.Errorf("store: decode memories for %s: %w", p.ID, err)
	}
	if p.Memories == nil {
		p.Memories = []models.Memory{}
	}
	if enrichment.Valid && enrichment.String != "" {
		var e models.Enrichment
		if err := json.Unmarshal([]byte(enrichment.String), &e); err != nil {
			return nil, fmt.Errorf("store: decode enrichment for %s: %w", p.ID, err)
		}
		p.Enrichment = &e
	}
	return &p, nil
}

// propertyArgs encodes the document columns shared by insert and update.
func propertyArgs(p *models.Property) (yearBuilt any, memories string, enrichment any, enrichedAt any, err error) {
	if p.YearBuilt != nil {
		yearBuilt = *p.YearBuilt
	}
	memJSON, err := json.Marshal(p.Memories)
	if err != nil {
		return nil, "", nil, nil, fmt.Errorf("store: encode memories: %w", err)
	}
	if p.Enrichment != nil {
		encJSON, err := json.Marshal(p.Enrichment)
		if err != nil {
			return nil, "", nil, nil, fmt.Errorf("store: encode enrichment: %w", err)
		}
		enrichment = string(encJSON)
		if p.Enrichment.EnrichedAt != nil {
			enrichedAt = p.Enrichment.EnrichedAt.UTC()
		}
	}
	return yearBuilt, string(memJSON), enrichment, enrichedAt, nil
}

// InsertProperty stores a new property document.
func (db *DB) InsertProperty(ctx context.Context, p *models.Property) error {
	yearBuilt, memories, enrichment, enrichedAt, err := propertyArgs(p)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO properties (id, address, lat, lng, year_built, memories, enrichment, enriched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Address, p.Lat, p.Lng, yearBuilt, memories, enrichment, enrichedAt, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: insert property: %w", err)
	}
	return nil
}

// GetProperty loads a property by id. Returns apperr.ErrNotFound when absent.
func (db *DB) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get property: %w", err)
	}
	return p, nil
}

// SaveProperty replaces the whole document for an existing property.
func (db *DB) SaveProperty(ctx context.Context, p *models.Property) error {
	yearBuilt, memories, enrichment, enrichedAt, err := propertyArgs(p)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE properties SET
			address     = ?,
			lat         = ?,
			lng         = ?,
			year_built  = ?,
			memories    = ?,
			enrichment  = ?,
			enriched_at = ?,
			updated_at  = ?
		WHERE id = ?
	`, p.Address, p.Lat, p.Lng, yearBuilt, memories, enrichment, enrichedAt, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		return fmt.Errorf("store: save property: %w", err)
	}
	return requireAffected(res)
}

// AppendMemory pushes m onto the property's memory list inside a transaction,
// stamps updated_at with at and returns the updated document.
func (db *DB) AppendMemory(ctx context.Context, id string, m models.Memory, at time.Time) (*models.Property, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	p, err := scanProperty(tx.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: load property: %w", err)
	}

	p.Memories = append(p.Memories, m)
	p.UpdatedAt = at.UTC()
	memJSON, err := json.Marshal(p.Memories)
	if err != nil {
		return nil, fmt.Errorf("store: encode memories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE properties SET memories = ?, updated_at = ? WHERE id = ?`,
		string(memJSON), p.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("store: append memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return p, nil
}

// DeleteProperty removes a property. Returns apperr.ErrNotFound when absent.
func (db *DB) DeleteProperty(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete property: %w", err)
	}
	return requireAffected(res)
}

// FindInBox returns the oldest property whose coordinates fall inside box,
// or nil when none does.
func (db *DB) FindInBox(ctx context.Context, box geo.Box) (*models.Property, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
		ORDER BY created_at, id
		LIMIT 1
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	p, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find in box: %w", err)
	}
	return p, nil
}

// ListProperties returns every stored property, oldest first.
func (db *DB) ListProperties(ctx context.Context) ([]*models.Property, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list properties: %w", err)
	}
	return collectProperties(rows)
}

// ListNeedingEnrichment returns up to limit properties with no enrichment,
// no enrichment timestamp, or a timestamp before staleBefore.
func (db *DB) ListNeedingEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Property, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+propertyColumns+`
		FROM properties
		WHERE enrichment IS NULL OR enriched_at IS NULL OR enriched_at < ?
		ORDER BY created_at, id
		LIMIT ?
	`, staleBefore.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: list needing enrichment: %w", err)
	}
	return collectProperties(rows)
}

// SetEnrichment overwrites the enrichment snapshot of a property and stamps
// updated_at with at.
func (db *DB) SetEnrichment(ctx context.Context, id string, e *models.Enrichment, at time.Time) error {
	var (
		encoded    any
		enrichedAt any
	)
	if e != nil {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("store: encode enrichment: %w", err)
		}
		encoded = string(b)
		if e.EnrichedAt != nil {
			enrichedAt = e.EnrichedAt.UTC()
		}
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE properties SET enrichment = ?, enriched_at = ?, updated_at = ? WHERE id = ?
	`, encoded, enrichedAt, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set enrichment: %w", err)
	}
	return requireAffected(res)
}

// EnrichmentCounts counts properties by enrichment presence and staleness.
func (db *DB) EnrichmentCounts(ctx context.Context, staleBefore time.Time) (EnrichmentCounts, error) {
	var c EnrichmentCounts
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(enriched_at),
			coalesce(sum(CASE WHEN enriched_at < ? THEN 1 ELSE 0 END), 0)
		FROM properties
	`, staleBefore.UTC()).Scan(&c.Total, &c.Enriched, &c.Stale)
	if err != nil {
		return EnrichmentCounts{}, fmt.Errorf("store: enrichment counts: %w", err)
	}
	return c, nil
}

func collectProperties(rows *sql.Rows) ([]*models.Property, error) {
	defer rows.Close()
	out := []*models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
