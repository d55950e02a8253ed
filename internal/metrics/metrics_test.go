package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	c := New("homehistory")
	c.CacheLookup(TierMemory, true)
	c.CacheLookup(TierPersistent, false)
	c.ProviderCall("census", errors.New("boom"))
	c.ProviderCall("nominatim", nil)
	c.BackfillOutcome("updated")
	c.PropertyEvent("property.created")
	c.CacheWriteFailed()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`homehistory_address_cache_lookups_total{result="hit",tier="memory"} 1`,
		`homehistory_address_cache_lookups_total{result="miss",tier="persistent"} 1`,
		`homehistory_geocode_requests_total{outcome="error",provider="census"} 1`,
		`homehistory_geocode_requests_total{outcome="ok",provider="nominatim"} 1`,
		`homehistory_backfill_properties_total{outcome="updated"} 1`,
		`homehistory_property_events_total{kind="property.created"} 1`,
		`homehistory_address_cache_write_failures_total 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorsAreIsolated(t *testing.T) {
	// Two collectors with the same namespace must not panic on registration.
	_ = New("homehistory")
	_ = New("homehistory")
}
