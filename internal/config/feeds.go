package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// feedsFile is the FEEDS_FILE document. Feed URLs starting with "/" are
// resolved against base_url, or the FEEDS_BASE_URL default when it is unset.
type feedsFile struct {
	BaseURL string                  `yaml:"base_url"`
	Feeds   []domain.FeedDescriptor `yaml:"feeds"`
}

// LoadFeeds reads and validates a YAML feed table.
func LoadFeeds(path, defaultBase string) ([]domain.FeedDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return ParseFeeds(data, defaultBase)
}

// ParseFeeds decodes a YAML feed table. Unknown keys are rejected so typos
// surface at startup.
func ParseFeeds(data []byte, defaultBase string) ([]domain.FeedDescriptor, error) {
	var doc feedsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}
	if len(doc.Feeds) == 0 {
		return nil, errors.New("feeds file lists no feeds")
	}

	base := doc.BaseURL
	if base == "" {
		base = defaultBase
	}
	base = strings.TrimRight(base, "/")

	seen := make(map[domain.FeedID]bool, len(doc.Feeds))
	out := make([]domain.FeedDescriptor, 0, len(doc.Feeds))
	for _, d := range doc.Feeds {
		if strings.HasPrefix(d.URL, "/") {
			d.URL = base + d.URL
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("feed %s: duplicate id", d.ID)
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out, nil
}
