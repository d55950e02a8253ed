// Package store provides the SQLite-backed document store for properties,
// property claims and the persistent address cache.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS properties (
	id          TEXT PRIMARY KEY,
	address     TEXT NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	year_built  INTEGER,
	memories    TEXT NOT NULL DEFAULT '[]',
	enrichment  TEXT,
	enriched_at DATETIME,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_properties_lat_lng ON properties(lat, lng);
CREATE INDEX IF NOT EXISTS idx_properties_enriched_at ON properties(enriched_at);

CREATE TABLE IF NOT EXISTS property_claims (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	address                TEXT NOT NULL,
	lat                    REAL NOT NULL,
	lng                    REAL NOT NULL,
	verification_status    TEXT NOT NULL DEFAULT 'basic',
	residency              TEXT,
	verification_documents TEXT NOT NULL DEFAULT '[]',
	claimed_at             DATETIME NOT NULL,
	UNIQUE (user_id, address)
);

CREATE INDEX IF NOT EXISTS idx_property_claims_user ON property_claims(user_id, claimed_at);

CREATE TABLE IF NOT EXISTS address_cache (
	normalized_address TEXT PRIMARY KEY,
	address            TEXT NOT NULL,
	census_data        TEXT,
	geocode_data       TEXT,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
