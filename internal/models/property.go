// Package models defines the domain types for Home History.
package models

import (
	"encoding/json"
	"time"
)

// EnrichmentSource is the provenance tag stamped on every enrichment snapshot.
const EnrichmentSource = "census+osm"

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Residency describes when a submitter lived at the property.
// Current implies YearMovedOut is unset.
type Residency struct {
	YearMovedIn  *int `json:"yearMovedIn,omitempty"`
	YearMovedOut *int `json:"yearMovedOut,omitempty"`
	Current      bool `json:"current"`
}

// Memory is one user's contribution to a Property. Memories are append-only.
type Memory struct {
	ID            string     `json:"id"`
	Text          string     `json:"memory"`
	SubmitterName string     `json:"submitterName"`
	Contact       string     `json:"contact,omitempty"`
	PhotoURL      string     `json:"photo,omitempty"`
	Residency     *Residency `json:"residency,omitempty"`
	SubmittedAt   time.Time  `json:"submittedAt"`
}

// Enrichment is a normalized geocoding snapshot attached to a Property.
// It is replaced wholesale on refresh.
type Enrichment struct {
	MatchedAddress string     `json:"matchedAddress,omitempty"`
	City           string     `json:"city,omitempty"`
	State          string     `json:"state,omitempty"`
	Zip            string     `json:"zip,omitempty"`
	Lat            *float64   `json:"lat,omitempty"`
	Lon            *float64   `json:"lon,omitempty"`
	Source         string     `json:"source"`
	EnrichedAt     *time.Time `json:"enrichedAt,omitempty"`
}

// Property is a physical location carrying user memories.
type Property struct {
	ID         string      `json:"id"`
	Address    string      `json:"address"`
	Lat        float64     `json:"lat"`
	Lng        float64     `json:"lng"`
	YearBuilt  *int        `json:"yearBuilt,omitempty"`
	Memories   []Memory    `json:"memories"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Coordinates returns the property location.
func (p *Property) Coordinates() Coordinates {
	return Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// EnrichedAt returns the enrichment timestamp or nil when the property has none.
func (p *Property) EnrichedAt() *time.Time {
	if p.Enrichment == nil {
		return nil
	}
	return p.Enrichment.EnrichedAt
}

// AddressCacheEntry is the persistent cache record keyed by normalized address.
// CensusData and GeocodeData hold raw provider payloads and may encode a fetch error.
type AddressCacheEntry struct {
	NormalizedAddress string          `json:"normalizedAddress"`
	Address           string          `json:"address"`
	CensusData        json.RawMessage `json:"censusData"`
	GeocodeData       json.RawMessage `json:"geocodeData"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}
