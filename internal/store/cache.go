package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/homehistory/internal/apperr"
	"github.com/starford/homehistory/internal/models"
)

// GetCacheEntry returns the cached provider payloads for a normalized address.
// Returns apperr.ErrNotFound on a miss.
func (db *DB) GetCacheEntry(ctx context.Context, normalized string) (*models.AddressCacheEntry, error) {
	var (
		e               models.AddressCacheEntry
		census, geocode sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT normalized_address, address, census_data, geocode_data, created_at, updated_at
		FROM address_cache
		WHERE normalized_address = ?
	`, normalized).Scan(&e.NormalizedAddress, &e.Address, &census, &geocode, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("store: get cache entry: %w", err)
	}
	if census.Valid {
		e.CensusData = json.RawMessage(census.String)
	}
	if geocode.Valid {
		e.GeocodeData = json.RawMessage(geocode.String)
	}
	return &e, nil
}

// UpsertCacheEntry writes the entry, refreshing updated_at on every write.
func (db *DB) UpsertCacheEntry(ctx context.Context, e *models.AddressCacheEntry) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO address_cache (normalized_address, address, census_data, geocode_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_address) DO UPDATE SET
			address      = excluded.address,
			census_data  = excluded.census_data,
			geocode_data = excluded.geocode_data,
			updated_at   = excluded.updated_at
	`, e.NormalizedAddress, e.Address, nullableJSON(e.CensusData), nullableJSON(e.GeocodeData), now, now)
	if err != nil {
		return fmt.Errorf("store: upsert cache entry: %w", err)
	}
	return nil
}

// DeleteAllCacheEntries empties the address cache and reports how many rows went.
func (db *DB) DeleteAllCacheEntries(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM address_cache`)
	if err != nil {
		return 0, fmt.Errorf("store: clear cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}

// CountCacheEntries returns the number of persistent cache rows.
func (db *DB) CountCacheEntries(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM address_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count cache entries: %w", err)
	}
	return n, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
