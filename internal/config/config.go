package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Default source endpoints on the NYC Open Data portal.
const (
	DefaultCollisionsURL = "https://data.cityofnewyork.us/resource/h9gi-nx95.csv"
	DefaultPopulationURL = "https://data.cityofnewyork.us/resource/xi7c-iiu2.csv"
	DefaultStreetsURL    = "https://data.cityofnewyork.us/api/views/w4v2-rv6b/files/street_name_dictionary.zip"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir string

	CollisionsURL    string
	PopulationURL    string
	StreetsURL       string
	StreetsZipMember string // suffix of the CSV member inside a ZIP source

	// Column names in the street reference dataset.
	StreetNameColumn    string
	StreetBoroughColumn string

	HTTPTimeout time.Duration
	HTTPAddr    string // empty disables the health/metrics listener

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Expected count columns in the collisions source. Absence of a whole
	// group is a fatal schema error during normalization.
	KilledColumns  []string
	InjuredColumns []string

	// Summary publishing configuration.
	PublishEnabled bool
	KafkaBrokers   []string
	KafkaTopic     string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	publishEnabled := false
	if v := os.Getenv("PUBLISH_ENABLED"); v != "" {
		publishEnabled = v == "true"
	}

	cfg := &Config{
		DataDir: envOrDefault("DATA_DIR", "./data"),

		CollisionsURL:    envOrDefault("COLLISIONS_URL", DefaultCollisionsURL),
		PopulationURL:    envOrDefault("POPULATION_URL", DefaultPopulationURL),
		StreetsURL:       envOrDefault("STREETS_URL", DefaultStreetsURL),
		StreetsZipMember: envOrDefault("STREETS_ZIP_MEMBER", ".csv"),

		StreetNameColumn:    envOrDefault("STREETS_NAME_COLUMN", "street_name"),
		StreetBoroughColumn: envOrDefault("STREETS_BOROUGH_COLUMN", "borough_code"),

		HTTPTimeout: httpTimeout,
		HTTPAddr:    os.Getenv("HTTP_ADDR"),

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KilledColumns: parseList(envOrDefault("COLLISION_KILLED_COLUMNS",
			"number_of_persons_killed,number_of_pedestrians_killed,number_of_cyclist_killed,number_of_motorist_killed")),
		InjuredColumns: parseList(envOrDefault("COLLISION_INJURED_COLUMNS",
			"number_of_persons_injured,number_of_pedestrians_injured,number_of_cyclist_injured,number_of_motorist_injured")),

		PublishEnabled: publishEnabled,
		KafkaBrokers:   parseList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:     envOrDefault("KAFKA_TOPIC", "borough-risk-summaries"),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.CollisionsURL == "" || cfg.PopulationURL == "" || cfg.StreetsURL == "" {
		return nil, errors.New("COLLISIONS_URL, POPULATION_URL and STREETS_URL are required")
	}
	if len(cfg.KilledColumns) == 0 {
		return nil, errors.New("COLLISION_KILLED_COLUMNS must name at least one column")
	}
	if len(cfg.InjuredColumns) == 0 {
		return nil, errors.New("COLLISION_INJURED_COLUMNS must name at least one column")
	}
	if cfg.PublishEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("PUBLISH_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("PUBLISH_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

// parseList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
