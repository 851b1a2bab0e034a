// Package parser turns raw feed payloads into typed records.
package parser

import (
	"fmt"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// Parser decodes payloads according to each feed's shape.
type Parser struct {
	imageBase string
}

// New creates a Parser. imageBase is the origin prepended to relative event
// image paths.
func New(imageBase string) *Parser {
	return &Parser{imageBase: imageBase}
}

// Parse decodes one payload. A payload with some malformed lines yields the
// good records and a nil error; a payload with none yields a *domain.FeedError.
func (p *Parser) Parse(desc domain.FeedDescriptor, payload []byte) ([]domain.Record, error) {
	if desc.Shape == domain.ShapeEvent {
		return decodeEvents(desc.ID, payload, p.imageBase)
	}
	layout, ok := layouts[desc.Shape]
	if !ok {
		return nil, domain.NewFeedError(domain.KindParsingFailed, desc.ID, fmt.Errorf("no layout for shape %q", desc.Shape))
	}
	return decodeLines(desc.ID, string(payload), layout)
}
