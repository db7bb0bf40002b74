package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// USGS feed configuration.
	USGSBaseURL    string
	USGSTimeout    time.Duration
	USGSLimit      int
	CircleRadiusKm float64

	// Kafka publishing of polled events.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	PollInterval    time.Duration
	PollWindowIndex int
	PollMagnitudes  []int
	SeenCacheSize   int

	// DatabaseURL selects the PostgreSQL settings store when set.
	DatabaseURL string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usgsTimeout, err := parsePositiveDuration("USGS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "60s")
	if err != nil {
		return nil, err
	}

	usgsLimit, err := parsePositiveInt("USGS_LIMIT", 5000)
	if err != nil {
		return nil, err
	}
	if usgsLimit > 20000 {
		// The FDSN service rejects limits above 20000.
		return nil, errors.New("invalid USGS_LIMIT: must be at most 20000")
	}

	radius, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("CIRCLE_RADIUS_KM", "1000"), 64)
	if err != nil || radius <= 0 || radius > 20001.6 {
		return nil, errors.New("invalid CIRCLE_RADIUS_KM")
	}

	windowIndex, err := strconv.Atoi(sharedcfg.EnvOrDefault("POLL_WINDOW_INDEX", "0"))
	if err != nil || windowIndex < 0 || windowIndex > 3 {
		return nil, errors.New("invalid POLL_WINDOW_INDEX: must be 0-3")
	}

	magnitudes, err := parseIndexList(os.Getenv("POLL_MAGNITUDES"))
	if err != nil {
		return nil, err
	}

	seenCacheSize, err := parsePositiveInt("SEEN_CACHE_SIZE", 5000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		USGSBaseURL:    strings.TrimRight(sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/fdsnws/event/1"), "/"),
		USGSTimeout:    usgsTimeout,
		USGSLimit:      usgsLimit,
		CircleRadiusKm: radius,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "earthquakes"),

		PollInterval:    pollInterval,
		PollWindowIndex: windowIndex,
		PollMagnitudes:  magnitudes,
		SeenCacheSize:   seenCacheSize,

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if cfg.USGSBaseURL == "" {
		return nil, errors.New("USGS_BASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
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
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// parseIndexList parses a comma-separated list of magnitude band indices.
func parseIndexList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 3 {
			return nil, fmt.Errorf("invalid POLL_MAGNITUDES entry %q: must be 0-3", p)
		}
		out = append(out, n)
	}
	return out, nil
}
