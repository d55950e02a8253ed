package geocode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const censusBody = `{"result":{"addressMatches":[{"matchedAddress":"123 MAIN ST, SPRINGFIELD, IL, 62701",` +
	`"addressComponents":{"city":"SPRINGFIELD","state":"IL","zip":"62701"}}]}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(census, nominatim string) Config {
	return Config{
		CensusURL:          census,
		CensusBenchmark:    "2020",
		NominatimURL:       nominatim,
		UserAgent:          "HomeHistoryApp/1.0",
		Timeout:            time.Second,
		BreakerMaxFailures: 3,
		BreakerOpenTimeout: time.Minute,
	}
}

func TestCensusFetch_SendsQueryAndUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123 Main St", r.URL.Query().Get("address"))
		assert.Equal(t, "2020", r.URL.Query().Get("benchmark"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "HomeHistoryApp/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(censusBody))
	}))
	defer srv.Close()

	c := NewCensus(testConfig(srv.URL, ""), discardLogger())
	resp := c.Fetch(context.Background(), "123 Main St")
	require.NoError(t, resp.Err)
	assert.Equal(t, ProviderCensus, resp.Provider)

	m, ok := ParseCensus(resp.Raw)
	require.True(t, ok)
	assert.Equal(t, "123 MAIN ST, SPRINGFIELD, IL, 62701", m.MatchedAddress)
	assert.Equal(t, "SPRINGFIELD", m.City)
	assert.Equal(t, "IL", m.State)
	assert.Equal(t, "62701", m.Zip)
}

func TestNominatimFetch_ParsesFirstResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "123 Main St", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"lat":"39.7817","lon":"-89.6501"}]`))
	}))
	defer srv.Close()

	c := NewNominatim(testConfig("", srv.URL), discardLogger())
	resp := c.Fetch(context.Background(), "123 Main St")
	require.NoError(t, resp.Err)

	lat, lon := ParseNominatim(resp.Raw)
	require.NotNil(t, lat)
	require.NotNil(t, lon)
	assert.InDelta(t, 39.7817, *lat, 1e-9)
	assert.InDelta(t, -89.6501, *lon, 1e-9)
}

func TestFetch_ServerErrorBecomesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCensus(testConfig(srv.URL, ""), discardLogger())
	resp := c.Fetch(context.Background(), "anywhere")
	require.Error(t, resp.Err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(resp.Raw, &payload))
	assert.Equal(t, "Census API request failed", payload["error"])
	assert.NotEmpty(t, payload["details"])

	_, ok := ParseCensus(resp.Raw)
	assert.False(t, ok)
}

func TestFetch_TimeoutBecomesErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	cfg := testConfig("", srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c := NewNominatim(cfg, discardLogger())
	resp := c.Fetch(context.Background(), "slow")
	require.Error(t, resp.Err)

	lat, lon := ParseNominatim(resp.Raw)
	assert.Nil(t, lat)
	assert.Nil(t, lon)
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCensus(testConfig(srv.URL, ""), discardLogger())
	for i := 0; i < 5; i++ {
		resp := c.Fetch(context.Background(), "x")
		require.Error(t, resp.Err)
	}
	assert.Equal(t, 3, calls, "breaker should stop calls after 3 consecutive failures")
}

func TestParseCensus_NoMatches(t *testing.T) {
	_, ok := ParseCensus(json.RawMessage(`{"result":{"addressMatches":[]}}`))
	assert.False(t, ok)
}

func TestParseCensus_MissingComponents(t *testing.T) {
	m, ok := ParseCensus(json.RawMessage(`{"result":{"addressMatches":[{"matchedAddress":"X"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "X", m.MatchedAddress)
	assert.Empty(t, m.City)
}

func TestParseNominatim_EmptyAndBadValues(t *testing.T) {
	lat, lon := ParseNominatim(json.RawMessage(`[]`))
	assert.Nil(t, lat)
	assert.Nil(t, lon)

	lat, lon = ParseNominatim(json.RawMessage(`[{"lat":"abc","lon":"1.5"}]`))
	assert.Nil(t, lat)
	require.NotNil(t, lon)
	assert.Equal(t, 1.5, *lon)

	lat, lon = ParseNominatim(json.RawMessage(`{"error":"Nominatim API request failed"}`))
	assert.Nil(t, lat)
	assert.Nil(t, lon)
}
