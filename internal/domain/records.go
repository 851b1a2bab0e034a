package domain

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is one typed entry decoded from a feed.
type Record interface {
	Shape() Shape
}

// Plottable is implemented by records that may carry a map position. The
// boolean is false when either coordinate was missing upstream.
type Plottable interface {
	Record
	Position() (Geo, bool)
}

func position(g *Geo) (Geo, bool) {
	if g == nil {
		return Geo{}, false
	}
	return *g, true
}

// Alert is a civil-defence message, optionally with a spoken version. The
// upstream "geo" column names the affected area ("Zona Norte") and never
// carries coordinates, so alerts are not plottable.
type Alert struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	Area     string `json:"area,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// WeatherStation is one meteorological station reading. Readings the station
// did not report are nil.
type WeatherStation struct {
	Name        string   `json:"name"`
	Source      string   `json:"source,omitempty"`
	TempC       *float64 `json:"temp_c,omitempty"`
	HumidityPct *float64 `json:"humidity_pct,omitempty"`
	WindMs      *float64 `json:"wind_ms,omitempty"`
	WindDir     string   `json:"wind_dir,omitempty"`
	Geo         *Geo     `json:"geo,omitempty"`
}

// TrafficNote is a free-text traffic bulletin.
type TrafficNote struct {
	Text string `json:"text"`
}

// Camera is a public traffic camera.
type Camera struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Geo        *Geo   `json:"geo,omitempty"`

	// Address is filled by reverse geocoding when enrichment is enabled.
	Address string `json:"address,omitempty"`
}

// Siren is an outdoor warning siren.
type Siren struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Geo    *Geo   `json:"geo,omitempty"`
}

// SupportPoint is a shelter or assistance location.
type SupportPoint struct {
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Community string `json:"community,omitempty"`
	Geo       *Geo   `json:"geo,omitempty"`
}

// GaugeStatus reports whether a rain gauge reading is fresh.
type GaugeStatus string

const (
	GaugeCurrent GaugeStatus = "current"
	GaugeStale   GaugeStatus = "stale"
)

// RainGauge holds accumulated rainfall in millimetres over several windows.
type RainGauge struct {
	Name         string      `json:"name"`
	Municipality string      `json:"municipality,omitempty"`
	RainInst     *float64    `json:"rain_inst,omitempty"`
	Rain1h       float64     `json:"rain_1h"`
	Rain4h       *float64    `json:"rain_4h,omitempty"`
	Rain24h      *float64    `json:"rain_24h,omitempty"`
	Rain96h      *float64    `json:"rain_96h,omitempty"`
	Rain30d      *float64    `json:"rain_30d,omitempty"`
	Status       GaugeStatus `json:"status"`
	StatusText   string      `json:"status_text,omitempty"`
	Source       string      `json:"source,omitempty"`
	Geo          *Geo        `json:"geo,omitempty"`
}

// SkyCode is the sky condition reported by a sky station.
type SkyCode int

const (
	SkyClear        SkyCode = 0
	SkyPartlyCloudy SkyCode = 1
	SkyCloudy       SkyCode = 2
)

// SkyStation reports the observed sky condition.
type SkyStation struct {
	Name    string  `json:"name"`
	SkyCode SkyCode `json:"sky_code"`
	Geo     *Geo    `json:"geo,omitempty"`
}

// SunTimes holds today's sunrise and sunset as minutes since local midnight.
type SunTimes struct {
	Sunrise int `json:"sunrise_min"`
	Sunset  int `json:"sunset_min"`
}

// OperationalStage is the city-wide operational level, 1 (normal) to 5 (crisis).
type OperationalStage struct {
	Level int `json:"level"`
}

// Event is a scheduled public event. Optional fields the feed omitted are nil.
type Event struct {
	Name        string `json:"name"`
	Date        string `json:"date,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Place       string `json:"place,omitempty"`
	Zone        string `json:"zone,omitempty"`
	PeopleCount *int   `json:"people_count,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Source      string `json:"source,omitempty"`
	Geo         *Geo   `json:"geo,omitempty"`
	Important   *bool  `json:"important,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

func (Alert) Shape() Shape            { return ShapeAlert }
func (WeatherStation) Shape() Shape   { return ShapeWeatherStation }
func (TrafficNote) Shape() Shape      { return ShapeTrafficNote }
func (Camera) Shape() Shape           { return ShapeCamera }
func (Siren) Shape() Shape            { return ShapeSiren }
func (SupportPoint) Shape() Shape     { return ShapeSupportPoint }
func (RainGauge) Shape() Shape        { return ShapeRainGauge }
func (SkyStation) Shape() Shape       { return ShapeSkyStation }
func (SunTimes) Shape() Shape         { return ShapeSunTimes }
func (OperationalStage) Shape() Shape { return ShapeOperationalStage }
func (Event) Shape() Shape            { return ShapeEvent }

func (r WeatherStation) Position() (Geo, bool) { return position(r.Geo) }
func (r Camera) Position() (Geo, bool)         { return position(r.Geo) }
func (r Siren) Position() (Geo, bool)          { return position(r.Geo) }
func (r SupportPoint) Position() (Geo, bool)   { return position(r.Geo) }
func (r RainGauge) Position() (Geo, bool)      { return position(r.Geo) }
func (r SkyStation) Position() (Geo, bool)     { return position(r.Geo) }
func (r Event) Position() (Geo, bool)          { return position(r.Geo) }
