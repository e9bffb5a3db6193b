package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Salon directory service.
	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	// IP geolocation provider.
	LocateEnabled      bool
	LocateBaseURL      string
	LocateTimeout      time.Duration
	LocateMaxCacheAge  time.Duration
	LocateHighAccuracy bool
	LocateCacheSize    int

	// Reverse geocoding configuration.
	GeocodeEnabled   bool
	GeocodeBaseURL   string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	// Style handoff storage. An empty RedisAddr selects the in-process store.
	RedisAddr        string
	HandoffKeyPrefix string

	// Selection publishing. Empty KafkaBrokers disables the publisher.
	KafkaBrokers      []string
	KafkaHandoffTopic string

	SessionMaxIdle time.Duration
	NearbyRadiusKm float64
	Locale         string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	// A zero directory timeout leaves the outbound client without a
	// deadline; per-request contexts still bound individual calls.
	directoryTimeout, err := parseNonNegativeDuration("DIRECTORY_TIMEOUT", "0s")
	if err != nil {
		return nil, err
	}

	locateTimeout, err := parsePositiveDuration("LOCATE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	// A zero cache age disables fix reuse entirely.
	locateMaxCacheAge, err := parseNonNegativeDuration("LOCATE_MAX_CACHE_AGE", "5m")
	if err != nil {
		return nil, err
	}

	geocodeTimeout, err := parsePositiveDuration("GEOCODE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	sessionMaxIdle, err := parsePositiveDuration("SESSION_MAX_IDLE", "30m")
	if err != nil {
		return nil, err
	}

	radiusKm, err := parseRadiusKm()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DirectoryBaseURL: os.Getenv("DIRECTORY_BASE_URL"),
		DirectoryTimeout: directoryTimeout,

		LocateEnabled:      envBoolOrDefault("LOCATE_ENABLED", true),
		LocateBaseURL:      envOrDefault("LOCATE_BASE_URL", "http://ip-api.com"),
		LocateTimeout:      locateTimeout,
		LocateMaxCacheAge:  locateMaxCacheAge,
		LocateHighAccuracy: envBoolOrDefault("LOCATE_HIGH_ACCURACY", true),
		LocateCacheSize:    parseCacheSize("LOCATE_CACHE_SIZE"),

		GeocodeEnabled:   envBoolOrDefault("GEOCODE_ENABLED", true),
		GeocodeBaseURL:   envOrDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocodeTimeout:   geocodeTimeout,
		GeocodeCacheSize: parseCacheSize("GEOCODE_CACHE_SIZE"),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		HandoffKeyPrefix: envOrDefault("HANDOFF_KEY_PREFIX", "handoff"),

		KafkaBrokers:      parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaHandoffTopic: envOrDefault("KAFKA_HANDOFF_TOPIC", "booking-handoffs"),

		SessionMaxIdle: sessionMaxIdle,
		NearbyRadiusKm: radiusKm,
		Locale:         envOrDefault("LOCALE", "en"),
	}

	if cfg.DirectoryBaseURL == "" {
		return nil, errors.New("DIRECTORY_BASE_URL is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaHandoffTopic == "" {
		return nil, errors.New("KAFKA_HANDOFF_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if b := strings.TrimSpace(p); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseCacheSize(key string) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func parseRadiusKm() (float64, error) {
	s := envOrDefault("NEARBY_RADIUS_KM", "50")
	r, err := strconv.ParseFloat(s, 64)
	if err != nil || r <= 0 {
		return 0, errors.New("invalid NEARBY_RADIUS_KM")
	}
	return r, nil
}
