package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// eventsDocument is the events feed envelope.
type eventsDocument struct {
	Events []json.RawMessage `json:"eventos"`
}

type rawEvent struct {
	Name        string    `json:"nome"`
	Date        string    `json:"data"`
	Start       string    `json:"inicio"`
	End         string    `json:"fim"`
	Place       string    `json:"local"`
	Zone        string    `json:"zona"`
	PeopleCount flexInt   `json:"publico"`
	Severity    string    `json:"criticidade"`
	Source      string    `json:"fonte"`
	Lat         flexFloat `json:"lat"`
	Lon         flexFloat `json:"lon"`
	Important   flexBool  `json:"importante"`
	Image       string    `json:"imagem"`
	Description string    `json:"descricao"`
	Category    string    `json:"categoria"`
}

// decodeEvents parses the events document. Elements that do not decode or
// have no name are dropped; an empty array is a valid "no events" answer.
func decodeEvents(feed domain.FeedID, payload []byte, imageBase string) ([]domain.Record, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, domain.NewFeedError(domain.KindParsingFailed, feed, fmt.Errorf("empty payload"))
	}

	var doc eventsDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, domain.NewFeedError(domain.KindDecodingFailed, feed, fmt.Errorf("decode events: %w", err))
	}
	if doc.Events == nil {
		return nil, domain.NewFeedError(domain.KindParsingFailed, feed, fmt.Errorf("missing eventos array"))
	}
	if len(doc.Events) == 0 {
		return nil, nil
	}

	records := make([]domain.Record, 0, len(doc.Events))
	for _, elem := range doc.Events {
		var raw rawEvent
		if err := json.Unmarshal(elem, &raw); err != nil || blank(raw.Name) {
			continue
		}
		records = append(records, raw.toEvent(imageBase))
	}
	if len(records) == 0 {
		return nil, domain.NewFeedError(domain.KindParsingFailed, feed,
			fmt.Errorf("no usable events in %d", len(doc.Events)))
	}
	return records, nil
}

func (r rawEvent) toEvent(imageBase string) domain.Event {
	event := domain.Event{
		Name:        strings.TrimSpace(r.Name),
		Date:        r.Date,
		Start:       r.Start,
		End:         r.End,
		Place:       r.Place,
		Zone:        r.Zone,
		PeopleCount: r.PeopleCount.v,
		Severity:    r.Severity,
		Source:      r.Source,
		Important:   r.Important.v,
		ImageURL:    absoluteImageURL(imageBase, r.Image),
		Description: r.Description,
		Category:    r.Category,
	}
	if r.Lat.v != nil && r.Lon.v != nil {
		event.Geo = newGeo(*r.Lat.v, *r.Lon.v)
	}
	return event
}

// absoluteImageURL prefixes relative image paths with the image origin.
func absoluteImageURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || schemeRe.MatchString(path) || base == "" {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// flexInt accepts 12, 12.0 or "12". Anything else leaves it absent.
type flexInt struct{ v *int }

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s, ok := scalarText(data)
	if !ok {
		return nil
	}
	if n, ok := parseInteger(s); ok {
		f.v = &n
	}
	return nil
}

// flexFloat accepts -22.9, "-22.9" or "-22,9".
type flexFloat struct{ v *float64 }

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s, ok := scalarText(data)
	if !ok {
		return nil
	}
	if n, ok := parseNumber(s); ok {
		f.v = &n
	}
	return nil
}

// flexBool accepts true/false and the localized strings the feed uses.
type flexBool struct{ v *bool }

var boolWords = map[string]bool{
	"true": true, "sim": true, "s": true, "yes": true, "1": true,
	"false": false, "não": false, "nao": false, "n": false, "no": false, "0": false,
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s, ok := scalarText(data)
	if !ok {
		return nil
	}
	if b, known := boolWords[strings.ToLower(strings.TrimSpace(s))]; known {
		f.v = &b
	}
	return nil
}

// scalarText returns the textual value of a JSON string, number or boolean.
// null, objects and arrays yield false.
func scalarText(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	default:
		return string(data), true
	}
}
