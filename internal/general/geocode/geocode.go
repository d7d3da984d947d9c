// Package geocode resolves street addresses to coordinates through a
// Nominatim-style search endpoint. Lookups are rate limited; public
// geocoders throttle aggressively and a burst of trip projections must
// not get the agent banned.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"driver-console/internal/domain/geo"
	"driver-console/internal/general/logger"
)

var ErrNoMatch = errors.New("address has no geocoding match")

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func New(baseURL string, requestsPerSecond float64, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:     log,
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves an address to a point. Failures here are soft for the
// caller: trip projection proceeds without distance data.
func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	if strings.TrimSpace(address) == "" {
		return geo.Point{}, ErrNoMatch
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return geo.Point{}, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return geo.Point{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, fmt.Errorf("geocoder returned %d for %q", resp.StatusCode, address)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Point{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return geo.Point{}, ErrNoMatch
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}

	pt, err := geo.NewPoint(lat, lng)
	if err != nil {
		return geo.Point{}, fmt.Errorf("geocoder out of range for %q: %w", address, err)
	}

	c.log.Debug(ctx, "address_geocoded", address, map[string]any{"lat": pt.Lat, "lng": pt.Lng})
	return pt, nil
}
