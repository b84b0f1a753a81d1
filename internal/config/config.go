package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// Store and sink selectors.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SinkKafka = "kafka"
	SinkMQTT  = "mqtt"
	SinkNone  = "none"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Scale           domain.Scale

	// Advisory cycle.
	Places           []domain.Place
	Interval         time.Duration
	Confidence       domain.Confidence
	Workers          int
	HistoricBounds   domain.Bounds
	ForecastMidpoint bool

	// Crop storage.
	CropStore   string
	SQLitePath  string
	DatabaseURL string

	// Recommendation sink.
	Sink         string
	KafkaBrokers []string
	KafkaTopic   string
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	// Open-Meteo weather source.
	WeatherForecastURL  string
	WeatherArchiveURL   string
	WeatherTimeout      time.Duration
	WeatherForecastDays int
	WeatherCacheSize    int
	WeatherCacheTTL     time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "json"),
		CropStore:   envOrDefault("CROP_STORE", StoreSQLite),
		SQLitePath:  envOrDefault("SQLITE_PATH", "data/crops.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		Sink:         envOrDefault("RECOMMENDATION_SINK", SinkKafka),
		KafkaBrokers: parseList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "crop-recommendations"),
		MQTTBroker:   envOrDefault("MQTT_BROKER", "localhost"),
		MQTTClientID: envOrDefault("MQTT_CLIENT_ID", "crop-advisor"),
		MQTTTopic:    envOrDefault("MQTT_TOPIC", "crop-advisor/recommendations"),

		WeatherForecastURL: envOrDefault("WEATHER_FORECAST_URL", "https://api.open-meteo.com/v1/forecast"),
		WeatherArchiveURL:  envOrDefault("WEATHER_ARCHIVE_URL", "https://archive-api.open-meteo.com/v1/archive"),

		MapboxToken: os.Getenv("MAPBOX_TOKEN"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.Interval, err = parseDuration("ADVISORY_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.WeatherTimeout, err = parseDuration("WEATHER_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheTTL, err = parseDuration("WEATHER_CACHE_TTL", "30m"); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parseDuration("MAPBOX_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parsePositiveInt("ADVISORY_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.MQTTPort, err = parsePositiveInt("MQTT_PORT", 1883); err != nil {
		return nil, err
	}
	if cfg.WeatherForecastDays, err = parsePositiveInt("WEATHER_FORECAST_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.WeatherForecastDays > 16 {
		return nil, errors.New("invalid WEATHER_FORECAST_DAYS: at most 16 days are forecast")
	}
	if cfg.WeatherCacheSize, err = parsePositiveInt("WEATHER_CACHE_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parsePositiveInt("MAPBOX_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ForecastMidpoint, err = parseBool("FORECAST_MIDPOINT", false); err != nil {
		return nil, err
	}

	if cfg.Scale, err = domain.ParseScale(envOrDefault("TEMPERATURE_SCALE", "F")); err != nil {
		return nil, fmt.Errorf("invalid TEMPERATURE_SCALE: %w", err)
	}
	if cfg.Confidence, err = domain.ParseConfidence(envOrDefault("ADVISORY_CONFIDENCE", "high")); err != nil {
		return nil, fmt.Errorf("invalid ADVISORY_CONFIDENCE: %w", err)
	}
	if cfg.HistoricBounds, err = domain.ParseBounds(envOrDefault("HISTORIC_BOUNDS", "exclusive")); err != nil {
		return nil, fmt.Errorf("invalid HISTORIC_BOUNDS: %w", err)
	}
	if cfg.Places, err = parsePlaces(os.Getenv("ADVISORY_PLACES")); err != nil {
		return nil, fmt.Errorf("invalid ADVISORY_PLACES: %w", err)
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CropStore {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when CROP_STORE is sqlite")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when CROP_STORE is postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid CROP_STORE %q", c.CropStore)
	}

	switch c.Sink {
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required")
		}
	case SinkMQTT:
		if c.MQTTBroker == "" {
			return errors.New("MQTT_BROKER is required")
		}
		if c.MQTTTopic == "" {
			return errors.New("MQTT_TOPIC is required")
		}
	case SinkNone:
	default:
		return fmt.Errorf("invalid RECOMMENDATION_SINK %q", c.Sink)
	}

	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if !c.MapboxEnabled {
		for _, p := range c.Places {
			if !p.Located() {
				return fmt.Errorf("invalid ADVISORY_PLACES: %s has no coordinates and geocoding is disabled; set MAPBOX_TOKEN or write it as %s:%s@LAT,LON",
					p.Key(), p.Country, p.PostalCode)
			}
		}
	}
	return nil
}

// BoundaryPolicy is the recommender policy selected by HISTORIC_BOUNDS.
func (c *Config) BoundaryPolicy() domain.BoundaryPolicy {
	p := domain.DefaultBoundaryPolicy()
	p.Historic = c.HistoricBounds
	return p
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePlaces reads "US:22405,US:10001@40.75,-73.99". An empty string
// configures no places.
func parsePlaces(s string) ([]domain.Place, error) {
	items := splitPlaces(s)
	places := make([]domain.Place, 0, len(items))
	for _, item := range items {
		p, err := domain.ParsePlace(item)
		if err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, nil
}

// splitPlaces splits on commas but keeps the comma inside an "@LAT,LON"
// suffix. A fragment without a country separator continues the previous
// place's coordinates.
func splitPlaces(s string) []string {
	var out []string
	for _, part := range parseList(s) {
		if n := len(out); n > 0 && !strings.Contains(part, ":") {
			if _, loc, ok := strings.Cut(out[n-1], "@"); ok && !strings.Contains(loc, ",") {
				out[n-1] += "," + part
				continue
			}
		}
		out = append(out, part)
	}
	return out
}
