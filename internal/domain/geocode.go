package domain

import (
	"context"
	"log/slog"
)

// EnrichWithGeocoding fills in what the feeds leave out: events that name a
// place but carry no coordinates are forward geocoded, cameras without an
// address are reverse geocoded. Lookups that fail or return nothing leave the
// record untouched. The input slice is not modified.
func EnrichWithGeocoding(ctx context.Context, records []Record, geocoder Geocoder, region string, logger *slog.Logger) []Record {
	if geocoder == nil || len(records) == 0 {
		return records
	}

	out := make([]Record, len(records))
	for i, rec := range records {
		switch r := rec.(type) {
		case Event:
			out[i] = enrichEvent(ctx, r, geocoder, region, logger)
		case Camera:
			out[i] = enrichCamera(ctx, r, geocoder, logger)
		default:
			out[i] = rec
		}
	}
	return out
}

func enrichEvent(ctx context.Context, event Event, geocoder Geocoder, region string, logger *slog.Logger) Event {
	if event.Geo != nil || event.Place == "" {
		return event
	}
	result, err := geocoder.ForwardGeocode(ctx, event.Place, region)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"event", event.Name,
			"place", event.Place,
			"error", err,
		)
		return event
	}
	if result.Geo == nil || *result.Geo == (Geo{}) {
		return event
	}
	at := *result.Geo
	event.Geo = &at
	return event
}

func enrichCamera(ctx context.Context, camera Camera, geocoder Geocoder, logger *slog.Logger) Camera {
	if camera.Geo == nil || camera.Address != "" {
		return camera
	}
	result, err := geocoder.ReverseGeocode(ctx, *camera.Geo)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"camera", camera.ExternalID,
			"lat", camera.Geo.Lat,
			"lon", camera.Geo.Lon,
			"error", err,
		)
		return camera
	}
	camera.Address = result.Address
	return camera
}
