// Package mapbox geocodes event places and camera positions through the
// Mapbox Geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
// Lookups are restricted to Brazil and answered in Portuguese.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	country    string
	language   string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		country:    "br",
		language:   "pt",
		logger:     logger,
		metrics:    metrics,
	}
}

// ForwardGeocode resolves a venue or street name within region to coordinates.
func (c *Client) ForwardGeocode(ctx context.Context, name, region string) (domain.GeocodingResult, error) {
	query := strings.TrimSpace(name)
	if region != "" {
		query = fmt.Sprintf("%s, %s", query, region)
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := c.params()
	params.Set("types", "poi,address,neighborhood,locality,place")

	return c.doRequest(ctx, u+"?"+params.Encode(), "forward")
}

// ReverseGeocode resolves coordinates to the nearest street address.
func (c *Client) ReverseGeocode(ctx context.Context, at domain.Geo) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", at.Lon, at.Lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := c.params()
	params.Set("types", "address")

	return c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
}

func (c *Client) params() url.Values {
	v := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}
	if c.country != "" {
		v.Set("country", c.country)
	}
	if c.language != "" {
		v.Set("language", c.language)
	}
	return v
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) (domain.GeocodingResult, error) {
	start := time.Now()
	result, err := c.request(ctx, fullURL, method)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
	case !result.Found():
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		c.logger.Debug("geocoding returned no features", "method", method)
	default:
		c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	}
	return result, err
}

func (c *Client) request(ctx context.Context, fullURL, method string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		return domain.GeocodingResult{}, nil
	}

	f := mapboxResp.Features[0]
	result := domain.GeocodingResult{
		Address:   f.PlaceName,
		Name:      f.Text,
		Relevance: f.Relevance,
	}
	if len(f.Center) == 2 {
		result.Geo = &domain.Geo{Lat: f.Center[1], Lon: f.Center[0]}
	}
	return result, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
