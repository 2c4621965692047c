package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka event publishing and command intake.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaEventsTopic   string
	KafkaCommandsTopic string
	KafkaGroupID       string

	// Playback and prefetch.
	TickInterval        time.Duration
	PrefetchConcurrency int
	PrefetchMaxTiles    int
	TileTimeout         time.Duration
	TileCacheSize       int
	DisplayTimezone     *time.Location
	DefaultSite         string
	MosaicAPIKey        string

	// RealEarth latest-timestamp lookup.
	RealEarthBaseURL         string
	RealEarthTimeout         time.Duration
	RealEarthCacheTTL        time.Duration
	RealEarthRefreshInterval time.Duration

	// NEXRAD processing backend.
	NexradAPIURL       string
	NexradTimeout      time.Duration
	NexradPollInterval time.Duration
	NexradMaxPolls     int

	DemoMode bool
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

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic:   sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "radar-loop-events"),
		KafkaCommandsTopic: sharedcfg.EnvOrDefault("KAFKA_COMMANDS_TOPIC", "radar-loop-commands"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "storm-radar-loop"),

		DefaultSite:  sharedcfg.EnvOrDefault("DEFAULT_SITE", "KMOB"),
		MosaicAPIKey: os.Getenv("MOSAIC_API_KEY"),

		RealEarthBaseURL: sharedcfg.EnvOrDefault("REALEARTH_BASE_URL", "https://realearth.ssec.wisc.edu"),
		NexradAPIURL:     sharedcfg.EnvOrDefault("NEXRAD_API_URL", "http://localhost:5000/api"),

		DemoMode: os.Getenv("DEMO_MODE") == "true",
	}

	if cfg.TickInterval, err = parsePositiveDuration("TICK_INTERVAL", "250ms"); err != nil {
		return nil, err
	}
	if cfg.TileTimeout, err = parsePositiveDuration("TILE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.RealEarthTimeout, err = parsePositiveDuration("REALEARTH_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.RealEarthCacheTTL, err = parsePositiveDuration("REALEARTH_CACHE_TTL", "5m"); err != nil {
		return nil, err
	}
	if cfg.RealEarthRefreshInterval, err = parsePositiveDuration("REALEARTH_REFRESH_INTERVAL", "4m"); err != nil {
		return nil, err
	}
	if cfg.NexradTimeout, err = parsePositiveDuration("NEXRAD_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.NexradPollInterval, err = parsePositiveDuration("NEXRAD_POLL_INTERVAL", "5s"); err != nil {
		return nil, err
	}
	if cfg.PrefetchConcurrency, err = parsePositiveInt("PREFETCH_CONCURRENCY", 16); err != nil {
		return nil, err
	}
	if cfg.PrefetchMaxTiles, err = parsePositiveInt("PREFETCH_MAX_TILES", 4096); err != nil {
		return nil, err
	}
	if cfg.TileCacheSize, err = parsePositiveInt("TILE_CACHE_SIZE", 2048); err != nil {
		return nil, err
	}
	if cfg.NexradMaxPolls, err = parsePositiveInt("NEXRAD_MAX_POLLS", 60); err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("DISPLAY_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	cfg.DisplayTimezone = loc

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaEventsTopic == "" {
			return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
		}
		if cfg.KafkaCommandsTopic == "" {
			return nil, errors.New("KAFKA_COMMANDS_TOPIC is required")
		}
	}
	if cfg.DefaultSite == "" {
		return nil, errors.New("DEFAULT_SITE is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
