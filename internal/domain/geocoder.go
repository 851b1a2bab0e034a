package domain

import "context"

// GeocodingResult is the best match for one lookup. The zero value means the
// provider found nothing.
type GeocodingResult struct {
	Geo       *Geo
	Address   string // full label, e.g. "Avenida Brasil, Penha, Rio de Janeiro"
	Name      string
	Relevance float64
}

// Found reports whether the lookup matched a place.
func (r GeocodingResult) Found() bool { return r.Address != "" || r.Geo != nil }

// Geocoder looks places up by name within a region, or by position. Used only
// for optional enrichment; callers treat every error as "no match".
type Geocoder interface {
	ForwardGeocode(ctx context.Context, place, region string) (GeocodingResult, error)
	ReverseGeocode(ctx context.Context, at Geo) (GeocodingResult, error)
}
