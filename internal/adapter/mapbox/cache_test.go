package mapbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/couchcryptid/cityops-feeds-service/internal/observability"
)

type countingGeocoder struct {
	forwardCalls atomic.Int32
	reverseCalls atomic.Int32
	result       domain.GeocodingResult
	err          error
	delay        time.Duration
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _, _ string) (domain.GeocodingResult, error) {
	m.forwardCalls.Add(1)
	time.Sleep(m.delay)
	return m.result, m.err
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _ domain.Geo) (domain.GeocodingResult, error) {
	m.reverseCalls.Add(1)
	time.Sleep(m.delay)
	return m.result, m.err
}

func TestCachedGeocoder_ForwardCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Geo: &domain.Geo{Lat: -22.91, Lon: -43.23}, Name: "Maracanã", Address: "Maracanã, Rio de Janeiro"},
	}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.ForwardGeocode(context.Background(), "Maracanã", "Rio de Janeiro")
	require.NoError(t, err)
	assert.Equal(t, "Maracanã", r1.Name)

	// Keys ignore case and surrounding space.
	r2, err := cached.ForwardGeocode(context.Background(), "  MARACANÃ ", "rio de janeiro")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, int32(1), inner.forwardCalls.Load(), "should only call inner once")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "hit")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeCache.WithLabelValues("forward", "miss")), 0)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Address: "Avenida Brasil"}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.ReverseGeocode(context.Background(), domain.Geo{Lat: -22.880001, Lon: -43.280001})
	require.NoError(t, err)
	_, err = cached.ReverseGeocode(context.Background(), domain.Geo{Lat: -22.880002, Lon: -43.280002})
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.reverseCalls.Load(), "nearby coordinates share an entry")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Name: "Place", Address: "Place, RJ"}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.ForwardGeocode(context.Background(), "Maracanã", "RJ")
	_, _ = cached.ForwardGeocode(context.Background(), "Engenhão", "RJ")

	assert.Equal(t, int32(2), inner.forwardCalls.Load())
	assert.Equal(t, 2, cached.Len())
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.ForwardGeocode(context.Background(), "Lugar Nenhum", "RJ")
	_, _ = cached.ForwardGeocode(context.Background(), "Lugar Nenhum", "RJ")
	assert.Equal(t, int32(2), inner.forwardCalls.Load())

	inner.err = errors.New("rate limited")
	_, err := cached.ReverseGeocode(context.Background(), domain.Geo{Lat: -22.9, Lon: -43.2})
	require.Error(t, err)
	assert.Zero(t, cached.Len())
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{Address: "somewhere"}}
	cached := NewCachedGeocoder(inner, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	_, _ = cached.ForwardGeocode(ctx, "a", "")
	_, _ = cached.ForwardGeocode(ctx, "b", "")
	_, _ = cached.ForwardGeocode(ctx, "a", "") // promotes a
	_, _ = cached.ForwardGeocode(ctx, "c", "") // evicts b
	assert.Equal(t, int32(3), inner.forwardCalls.Load())

	_, _ = cached.ForwardGeocode(ctx, "a", "")
	assert.Equal(t, int32(3), inner.forwardCalls.Load(), "a survived eviction")
	_, _ = cached.ForwardGeocode(ctx, "b", "")
	assert.Equal(t, int32(4), inner.forwardCalls.Load(), "b was evicted")
}

func TestCachedGeocoder_ConcurrentLookupsShareRequest(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Address: "Avenida Brasil"},
		delay:  50 * time.Millisecond,
	}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := cached.ReverseGeocode(context.Background(), domain.Geo{Lat: -22.88, Lon: -43.28})
			assert.NoError(t, err)
			assert.Equal(t, "Avenida Brasil", r.Address)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inner.reverseCalls.Load())
}

func TestNewCachedGeocoder_DefaultSize(t *testing.T) {
	cached := NewCachedGeocoder(&countingGeocoder{}, 0, observability.NewMetricsForTesting())
	require.NotNil(t, cached.cache)
}
