package enrich

import (
	"strings"
	"time"
)

// StaleAfter is the age at which an enrichment snapshot must be refreshed.
const StaleAfter = 30 * 24 * time.Hour

// Normalize lowercases and trims an address to form the cache key.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsStale reports whether an enrichment stamped at enrichedAt needs a refresh
// at now: true when the stamp is absent or older than StaleAfter.
func IsStale(enrichedAt *time.Time, now time.Time) bool {
	return IsStaleAfter(enrichedAt, now, StaleAfter)
}

// IsStaleAfter is IsStale with an explicit maximum age.
func IsStaleAfter(enrichedAt *time.Time, now time.Time, maxAge time.Duration) bool {
	if enrichedAt == nil || enrichedAt.IsZero() {
		return true
	}
	return enrichedAt.Before(now.Add(-maxAge))
}
