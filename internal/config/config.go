package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	UpstreamURL     string
	UpstreamTimeout time.Duration
	RefreshSchedule string // cron spec, e.g. "@every 10m"

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Threshold/coordinate reference tables; empty paths use the embedded assets.
	ThresholdsPath  string
	CoordinatesPath string

	// Persistent coordinate cache (SQLite).
	CoordCachePath string

	// Geocoding configuration.
	GeocodeEnabled    bool
	GeocodeURL        string
	GeocodeCountry    string
	GeocodeTimeout    time.Duration
	GeocodeBatchSize  int
	GeocodeBatchDelay time.Duration
	GeocodeCacheSize  int

	// Optional Kafka sink for classified snapshots.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from the environment, applying defaults where
// unset. A local .env file is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // best effort; absence is the normal case

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parseDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocodeBatchDelay, err := parseDuration("GEOCODE_BATCH_DELAY", "1500ms")
	if err != nil {
		return nil, err
	}
	geocodeBatchSize, err := parseInt("GEOCODE_BATCH_SIZE", 8, 1, 50)
	if err != nil {
		return nil, err
	}
	geocodeCacheSize, err := parseInt("GEOCODE_CACHE_SIZE", 1000, 1, 100000)
	if err != nil {
		return nil, err
	}

	geocodeEnabled := true
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		geocodeEnabled = v == "true"
	}

	cfg := &Config{
		UpstreamURL:     envOrDefault("UPSTREAM_URL", "https://danepubliczne.imgw.pl/api/data/hydro"),
		UpstreamTimeout: upstreamTimeout,
		RefreshSchedule: envOrDefault("REFRESH_SCHEDULE", "@every 10m"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ThresholdsPath:  os.Getenv("THRESHOLDS_PATH"),
		CoordinatesPath: os.Getenv("COORDINATES_PATH"),
		CoordCachePath:  envOrDefault("COORD_CACHE_PATH", "data/coordcache.db"),

		GeocodeEnabled:    geocodeEnabled,
		GeocodeURL:        envOrDefault("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeCountry:    envOrDefault("GEOCODE_COUNTRY", "pl"),
		GeocodeTimeout:    geocodeTimeout,
		GeocodeBatchSize:  geocodeBatchSize,
		GeocodeBatchDelay: geocodeBatchDelay,
		GeocodeCacheSize:  geocodeCacheSize,

		KafkaBrokers:   parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "classified-stations"),
	}

	if cfg.UpstreamURL == "" {
		return nil, errors.New("UPSTREAM_URL is required")
	}
	if cfg.GeocodeEnabled && cfg.GeocodeURL == "" {
		return nil, errors.New("GEOCODE_ENABLED is true but GEOCODE_URL is empty")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_SINK_TOPIC is empty")
	}

	return cfg, nil
}

// SinkEnabled reports whether the optional Kafka sink is configured.
func (c *Config) SinkEnabled() bool { return len(c.KafkaBrokers) > 0 }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def, min, max int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("invalid %s: %q (want %d-%d)", key, s, min, max)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
