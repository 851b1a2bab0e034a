package parser

import (
	"strings"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// layouts maps each text shape to its line layout. Field positions follow the
// upstream column order.
var layouts = map[domain.Shape]lineLayout{
	// name;message;area;audioURL
	domain.ShapeAlert: {minFields: 2, build: func(f fields) (domain.Record, bool) {
		name, msg := f.text(0), f.text(1)
		if blank(name) || blank(msg) {
			return nil, false
		}
		return domain.Alert{Name: name, Message: msg, Area: f.text(2), AudioURL: f.text(3)}, true
	}},

	// name;source;tempC;humidity;windMs;windDir;lat;lon
	domain.ShapeWeatherStation: {minFields: 8, build: func(f fields) (domain.Record, bool) {
		geo := f.geo(6, 7)
		if geo == nil {
			return nil, false
		}
		return domain.WeatherStation{
			Name:        f.text(0),
			Source:      f.text(1),
			TempC:       f.optNumber(2),
			HumidityPct: f.optNumber(3),
			WindMs:      f.optNumber(4),
			WindDir:     f.text(5),
			Geo:         geo,
		}, true
	}},

	// text
	domain.ShapeTrafficNote: {minFields: 1, build: func(f fields) (domain.Record, bool) {
		if blank(f.text(0)) {
			return nil, false
		}
		return domain.TrafficNote{Text: f.text(0)}, true
	}},

	// id;name;lat;lon
	domain.ShapeCamera: {minFields: 4, build: func(f fields) (domain.Record, bool) {
		geo := f.geo(2, 3)
		if blank(f.text(0)) || geo == nil {
			return nil, false
		}
		return domain.Camera{ExternalID: f.text(0), Name: f.text(1), Geo: geo}, true
	}},

	// name;status;lat;lon
	domain.ShapeSiren: {minFields: 4, build: func(f fields) (domain.Record, bool) {
		geo := f.geo(2, 3)
		if geo == nil {
			return nil, false
		}
		return domain.Siren{Name: f.text(0), Status: f.text(1), Geo: geo}, true
	}},

	// name;address;community;lat;lon
	domain.ShapeSupportPoint: {minFields: 5, build: func(f fields) (domain.Record, bool) {
		geo := f.geo(3, 4)
		if geo == nil {
			return nil, false
		}
		return domain.SupportPoint{Name: f.text(0), Address: f.text(1), Community: f.text(2), Geo: geo}, true
	}},

	// name;municipality;inst;1h;4h;24h;96h;30d;status;source;lat;lon
	domain.ShapeRainGauge: {minFields: 12, build: func(f fields) (domain.Record, bool) {
		rain1h, ok := f.number(3)
		if !ok {
			return nil, false
		}
		return domain.RainGauge{
			Name:         f.text(0),
			Municipality: f.text(1),
			RainInst:     f.optNumber(2),
			Rain1h:       rain1h,
			Rain4h:       f.optNumber(4),
			Rain24h:      f.optNumber(5),
			Rain96h:      f.optNumber(6),
			Rain30d:      f.optNumber(7),
			Status:       gaugeStatus(f.text(8)),
			StatusText:   f.text(8),
			Source:       f.text(9),
			Geo:          f.geo(10, 11),
		}, true
	}},

	// name;skyCode;lat;lon
	domain.ShapeSkyStation: {minFields: 2, build: func(f fields) (domain.Record, bool) {
		code, ok := f.integer(1)
		if !ok {
			return nil, false
		}
		return domain.SkyStation{Name: f.text(0), SkyCode: domain.SkyCode(code), Geo: f.geo(2, 3)}, true
	}},

	// sunrise;sunset
	domain.ShapeSunTimes: {minFields: 2, build: func(f fields) (domain.Record, bool) {
		sunrise, okR := parseClock(f.text(0))
		sunset, okS := parseClock(f.text(1))
		if !okR || !okS {
			return nil, false
		}
		return domain.SunTimes{Sunrise: sunrise, Sunset: sunset}, true
	}},

	// level
	domain.ShapeOperationalStage: {minFields: 1, build: func(f fields) (domain.Record, bool) {
		level, ok := f.integer(0)
		if !ok || level < 1 || level > 5 {
			return nil, false
		}
		return domain.OperationalStage{Level: level}, true
	}},
}

var staleMarkers = []string{"atras", "delay", "stale"}

// gaugeStatus maps the free-text status onto current/stale. Only an explicit
// delay marker makes a gauge stale.
func gaugeStatus(s string) domain.GaugeStatus {
	s = strings.ToLower(s)
	for _, marker := range staleMarkers {
		if strings.Contains(s, marker) {
			return domain.GaugeStale
		}
	}
	return domain.GaugeCurrent
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
