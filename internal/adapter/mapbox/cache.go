package mapbox

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
)

const defaultCacheSize = 1000

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Concurrent
// lookups of the same key share one upstream request.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.GeocodingResult]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	if maxEntries <= 0 {
		maxEntries = defaultCacheSize
	}
	cache, _ := lru.New[string, domain.GeocodingResult](maxEntries) // only fails for size <= 0
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, name, region string) (domain.GeocodingResult, error) {
	key := forwardKey(name, region)
	return c.lookup(key, "forward", func() (domain.GeocodingResult, error) {
		return c.inner.ForwardGeocode(ctx, name, region)
	})
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, at domain.Geo) (domain.GeocodingResult, error) {
	key := reverseKey(at)
	return c.lookup(key, "reverse", func() (domain.GeocodingResult, error) {
		return c.inner.ReverseGeocode(ctx, at)
	})
}

// Len is the number of cached results.
func (c *CachedGeocoder) Len() int { return c.cache.Len() }

func (c *CachedGeocoder) lookup(key, method string, load func() (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		result, err := load()
		if err != nil {
			return result, err
		}
		// Only cache non-empty results so "not found" can be retried next cycle.
		if result.Found() {
			c.cache.Add(key, result)
		}
		return result, nil
	})
	return v.(domain.GeocodingResult), err
}

func forwardKey(name, region string) string {
	return "fwd:" + strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(region))
}

// reverseKey rounds to 5 decimals (about a metre) so jittering camera
// coordinates share an entry.
func reverseKey(at domain.Geo) string {
	return fmt.Sprintf("rev:%.5f,%.5f", at.Lat, at.Lon)
}
