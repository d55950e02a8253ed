// Package geocode talks to the two external geocoding providers: the US Census
// one-line address geocoder and the OpenStreetMap Nominatim search API.
//
// A provider call never returns an error to its caller in the usual sense.
// Fetch always yields a Response; on failure Raw holds an error payload and Err
// records the cause so the enrichment layer can degrade instead of aborting.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

// Provider names, also used as metric labels.
const (
	ProviderCensus    = "census"
	ProviderNominatim = "nominatim"
)

const maxResponseBytes = 5 << 20

// Config configures both provider clients.
type Config struct {
	CensusURL          string
	CensusBenchmark    string
	NominatimURL       string
	UserAgent          string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Response is the outcome of one provider call.
type Response struct {
	Provider string
	Raw      json.RawMessage
	Err      error
}

// Client issues GET requests against a single provider endpoint.
type Client struct {
	name         string
	endpoint     string
	userAgent    string
	failureLabel string
	query        func(address string) url.Values
	http         *http.Client
	breaker      *gobreaker.CircuitBreaker
}

// NewCensus returns a client for the Census one-line address geocoder.
func NewCensus(cfg Config, logger *slog.Logger) *Client {
	benchmark := cfg.CensusBenchmark
	return newClient(ProviderCensus, cfg.CensusURL, "Census API request failed", cfg, logger,
		func(address string) url.Values {
			return url.Values{
				"address":   {address},
				"benchmark": {benchmark},
				"format":    {"json"},
			}
		})
}

// NewNominatim returns a client for the Nominatim search endpoint.
func NewNominatim(cfg Config, logger *slog.Logger) *Client {
	return newClient(ProviderNominatim, cfg.NominatimURL, "Nominatim API request failed", cfg, logger,
		func(address string) url.Values {
			return url.Values{
				"q":      {address},
				"format": {"json"},
				"limit":  {"1"},
			}
		})
}

func newClient(name, endpoint, failureLabel string, cfg Config, logger *slog.Logger, query func(string) url.Values) *Client {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return &Client{
		name:         name,
		endpoint:     endpoint,
		userAgent:    cfg.UserAgent,
		failureLabel: failureLabel,
		query:        query,
		http:         &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("geocode: circuit breaker state changed",
					slog.String("provider", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Fetch queries the provider for address. Failures are folded into the
// returned Response; Fetch never panics on provider misbehaviour.
func (c *Client) Fetch(ctx context.Context, address string) Response {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, address)
	})
	if err != nil {
		details, _ := json.Marshal(map[string]string{
			"error":   c.failureLabel,
			"details": err.Error(),
		})
		return Response{Provider: c.name, Raw: details, Err: err}
	}
	return Response{Provider: c.name, Raw: out.(json.RawMessage)}
}

func (c *Client) get(ctx context.Context, address string) (json.RawMessage, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("geocode: %s: parse endpoint: %w", c.name, err)
	}
	u.RawQuery = c.query(address).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: %s: build request: %w", c.name, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode: %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("geocode: %s: read body: %w", c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode: %s: unexpected status %d", c.name, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("geocode: %s: response is not JSON", c.name)
	}
	return json.RawMessage(body), nil
}
