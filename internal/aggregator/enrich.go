package aggregator

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// GeocodingEnricher fills missing event positions and camera addresses.
type GeocodingEnricher struct {
	geocoder domain.Geocoder
	region   string
	logger   *slog.Logger
}

// NewGeocodingEnricher wraps a geocoder as an Enricher. region biases forward
// lookups (e.g. "Rio de Janeiro").
func NewGeocodingEnricher(g domain.Geocoder, region string, logger *slog.Logger) *GeocodingEnricher {
	return &GeocodingEnricher{geocoder: g, region: region, logger: logger}
}

func (e *GeocodingEnricher) Enrich(ctx context.Context, records []domain.Record) []domain.Record {
	return domain.EnrichWithGeocoding(ctx, records, e.geocoder, e.region, e.logger)
}
