package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feed table and aggregation.
	FeedsBaseURL      string
	FeedsFile         string
	Feeds             []domain.FeedDescriptor
	FeedTimeout       time.Duration
	FeedRetries       int
	ReloadMinInterval time.Duration
	ReloadSettleDelay time.Duration
	RefreshInterval   time.Duration
	DefaultLocale     domain.Locale
	Location          *time.Location
	ImageBaseURL      string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRegion    string

	// Kafka snapshot publication.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FeedsBaseURL:  sharedcfg.EnvOrDefault("FEEDS_BASE_URL", "https://aplicativo.cor.rio/api"),
		FeedsFile:     os.Getenv("FEEDS_FILE"),
		DefaultLocale: domain.MatchLocale(sharedcfg.EnvOrDefault("DEFAULT_LOCALE", "pt")),
		ImageBaseURL:  sharedcfg.EnvOrDefault("IMAGE_BASE_URL", "https://aplicativo.cor.rio"),

		MapboxToken:  os.Getenv("MAPBOX_TOKEN"),
		MapboxRegion: sharedcfg.EnvOrDefault("MAPBOX_REGION", "Rio de Janeiro"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "cityops-snapshots"),
	}

	durations := []struct {
		name      string
		def       string
		allowZero bool
		dst       *time.Duration
	}{
		{"FEED_TIMEOUT", "10s", false, &cfg.FeedTimeout},
		{"RELOAD_MIN_INTERVAL", "30s", false, &cfg.ReloadMinInterval},
		{"RELOAD_SETTLE_DELAY", "1s", false, &cfg.ReloadSettleDelay},
		{"REFRESH_INTERVAL", "5m", true, &cfg.RefreshInterval},
		{"MAPBOX_TIMEOUT", "5s", false, &cfg.MapboxTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.name, d.def, d.allowZero)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.FeedRetries, err = parseInt("FEED_RETRIES", 0, 0, 10); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parseInt("MAPBOX_CACHE_SIZE", 1000, 1, 1_000_000); err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "America/Sao_Paulo")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if cfg.FeedsFile != "" {
		cfg.Feeds, err = LoadFeeds(cfg.FeedsFile, cfg.FeedsBaseURL)
		if err != nil {
			return nil, err
		}
	} else {
		cfg.Feeds = domain.DefaultFeeds(cfg.FeedsBaseURL)
	}

	if len(cfg.Feeds) == 0 {
		return nil, errors.New("feed table is empty")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseDuration(name, def string, allowZero bool) (time.Duration, error) {
	raw := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return d, nil
}

func parseInt(name string, def, lo, hi int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: %q (want %d..%d)", name, raw, lo, hi)
	}
	return n, nil
}
