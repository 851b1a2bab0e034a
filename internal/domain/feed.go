package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// FeedID identifies one upstream feed, e.g. "rain" or "cameras".
type FeedID string

// Shape names the record layout a feed produces.
type Shape string

const (
	ShapeAlert            Shape = "alert"
	ShapeWeatherStation   Shape = "weather_station"
	ShapeTrafficNote      Shape = "traffic_note"
	ShapeCamera           Shape = "camera"
	ShapeSiren            Shape = "siren"
	ShapeSupportPoint     Shape = "support_point"
	ShapeRainGauge        Shape = "rain_gauge"
	ShapeSkyStation       Shape = "sky_station"
	ShapeSunTimes         Shape = "sun_times"
	ShapeOperationalStage Shape = "operational_stage"
	ShapeEvent            Shape = "event"
)

// Shapes lists every known record layout.
var Shapes = []Shape{
	ShapeAlert, ShapeWeatherStation, ShapeTrafficNote, ShapeCamera, ShapeSiren,
	ShapeSupportPoint, ShapeRainGauge, ShapeSkyStation, ShapeSunTimes,
	ShapeOperationalStage, ShapeEvent,
}

// Valid reports whether s is a known layout.
func (s Shape) Valid() bool {
	for _, known := range Shapes {
		if s == known {
			return true
		}
	}
	return false
}

// Charset is the byte encoding a feed is published in. Empty means "use the
// response Content-Type, else UTF-8".
type Charset string

const (
	CharsetUTF8   Charset = "utf-8"
	CharsetLatin1 Charset = "iso-8859-1"
)

// FeedDescriptor describes how to fetch and decode one feed. Descriptors are
// built once at startup and never mutated.
type FeedDescriptor struct {
	ID        FeedID  `yaml:"id"`
	URL       string  `yaml:"url"`
	Localized bool    `yaml:"localized"`
	Shape     Shape   `yaml:"shape"`
	Charset   Charset `yaml:"charset"`
}

// Validate checks that the descriptor can be used by the fetcher and parser.
func (d FeedDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("feed descriptor: missing id")
	}
	if d.URL == "" {
		return fmt.Errorf("feed %s: missing url", d.ID)
	}
	if !d.Shape.Valid() {
		return fmt.Errorf("feed %s: unknown shape %q", d.ID, d.Shape)
	}
	switch d.Charset {
	case "", CharsetUTF8, CharsetLatin1:
	default:
		return fmt.Errorf("feed %s: unsupported charset %q", d.ID, d.Charset)
	}
	return nil
}

// DefaultFeeds returns the built-in feed table rooted at baseURL.
func DefaultFeeds(baseURL string) []FeedDescriptor {
	base := strings.TrimRight(baseURL, "/")
	feed := func(id FeedID, path string, localized bool, shape Shape) FeedDescriptor {
		return FeedDescriptor{ID: id, URL: base + path, Localized: localized, Shape: shape}
	}
	return []FeedDescriptor{
		feed("alerts", "/alertas", true, ShapeAlert),
		feed("stations", "/estacoes", false, ShapeWeatherStation),
		feed("traffic", "/transito", true, ShapeTrafficNote),
		feed("cameras", "/cameras", false, ShapeCamera),
		feed("sirens", "/sirenes", true, ShapeSiren),
		feed("support", "/pontos-apoio", false, ShapeSupportPoint),
		feed("rain", "/pluviometros", false, ShapeRainGauge),
		feed("sky", "/ceu", false, ShapeSkyStation),
		feed("sun", "/sol", false, ShapeSunTimes),
		feed("stage", "/estagio", false, ShapeOperationalStage),
		feed("events", "/eventos", true, ShapeEvent),
	}
}

// RawPayload is a fetched, charset-decoded response body. It lives only until
// the parser has consumed it.
type RawPayload struct {
	Body   []byte
	Status int
}

// Locale is one of the languages the upstream service publishes.
type Locale string

const (
	LocalePortuguese Locale = "pt"
	LocaleEnglish    Locale = "en"
	LocaleSpanish    Locale = "es"
	LocaleFrench     Locale = "fr"
	LocaleChinese    Locale = "zh"
)

var (
	supportedLocales = []Locale{LocalePortuguese, LocaleEnglish, LocaleSpanish, LocaleFrench, LocaleChinese}
	localeMatcher    = language.NewMatcher([]language.Tag{
		language.Portuguese, language.English, language.Spanish, language.French, language.Chinese,
	})
)

// MatchLocale maps an arbitrary language code ("pt-BR", "en_US", "zh-Hant")
// onto a supported locale. Unknown or empty codes fall back to Portuguese.
func MatchLocale(code string) Locale {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return LocalePortuguese
	}
	tag, err := language.Parse(code)
	if err != nil {
		return LocalePortuguese
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return LocalePortuguese
	}
	return supportedLocales[idx]
}
