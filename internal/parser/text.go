package parser

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

const fieldSeparator = ";"

var (
	// Placeholders the publisher writes for characters its format cannot carry.
	newlineTokenRe   = regexp.MustCompile(`(?i)pulalinha`)
	separatorTokenRe = regexp.MustCompile(`(?i)pontoevirgula`)

	numberCutset = " \t\"'"
)

// lineLayout describes one text feed: the minimum number of fields a line must
// have and how to turn the fields into a record. build returns false to drop
// the line.
type lineLayout struct {
	minFields int
	build     func(f fields) (domain.Record, bool)
}

// decodeLines applies a layout to every line of a text payload. Lines that are
// blank, too short or rejected by the layout are dropped; if nothing survives
// the feed is reported as unusable.
func decodeLines(feed domain.FeedID, payload string, layout lineLayout) ([]domain.Record, error) {
	payload = strings.TrimPrefix(payload, "\ufeff")
	if strings.TrimSpace(payload) == "" {
		return nil, domain.NewFeedError(domain.KindParsingFailed, feed, fmt.Errorf("empty payload"))
	}

	lines := strings.Split(payload, "\n")
	records := make([]domain.Record, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		raw := strings.Split(line, fieldSeparator)
		if len(raw) < layout.minFields {
			continue
		}
		f := make(fields, len(raw))
		for i, v := range raw {
			f[i] = unescape(strings.TrimSpace(v))
		}
		if rec, ok := layout.build(f); ok {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return nil, domain.NewFeedError(domain.KindParsingFailed, feed,
			fmt.Errorf("no usable lines in %d", len(lines)))
	}
	return records, nil
}

// unescape expands placeholders inside a single field, newline first.
func unescape(field string) string {
	field = newlineTokenRe.ReplaceAllLiteralString(field, "\n")
	return separatorTokenRe.ReplaceAllLiteralString(field, fieldSeparator)
}

// parseNumber accepts "12.5", "12,5", ` "12,5" ` and rejects NaN/Inf.
func parseNumber(s string) (float64, bool) {
	s = strings.Trim(s, numberCutset)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInteger(s string) (int, bool) {
	v, ok := parseNumber(s)
	if !ok || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// parseClock reads "HH:MM", "HH:MM:SS" or "HHhMM" into minutes since midnight.
func parseClock(s string) (int, bool) {
	s = strings.Trim(s, numberCutset)
	s = strings.ReplaceAll(strings.ToLower(s), "h", ":")
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	hour, errH := strconv.Atoi(parts[0])
	mins, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return 0, false
	}
	return hour*60 + mins, true
}

// parseGeo returns nil unless both coordinates parse and fall in range.
// (0, 0) is how the publisher writes an unknown position.
func parseGeo(latS, lonS string) *domain.Geo {
	lat, okLat := parseNumber(latS)
	lon, okLon := parseNumber(lonS)
	if !okLat || !okLon {
		return nil
	}
	return newGeo(lat, lon)
}

func newGeo(lat, lon float64) *domain.Geo {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || (lat == 0 && lon == 0) {
		return nil
	}
	return &domain.Geo{Lat: lat, Lon: lon}
}

// fields is one split and unescaped line.
type fields []string

func (f fields) text(i int) string {
	if i >= len(f) {
		return ""
	}
	return f[i]
}

func (f fields) number(i int) (float64, bool) { return parseNumber(f.text(i)) }

func (f fields) optNumber(i int) *float64 {
	v, ok := f.number(i)
	if !ok {
		return nil
	}
	return &v
}

func (f fields) integer(i int) (int, bool) { return parseInteger(f.text(i)) }

func (f fields) geo(latIdx, lonIdx int) *domain.Geo { return parseGeo(f.text(latIdx), f.text(lonIdx)) }
