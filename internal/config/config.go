// Package config loads the tally.yaml configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Storage backends selectable in tally.yaml.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events,omitempty"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // memory | postgres | mongo
	Postgres string `yaml:"postgres_dsn,omitempty"`
	MongoURI string `yaml:"mongo_uri,omitempty"`
	MongoDB  string `yaml:"mongo_database,omitempty"`
}

// EventsConfig configures the optional Kafka event publisher.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// Enabled reports whether event publishing is configured.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

// Load reads a tally.yaml file from disk and applies environment
// overrides (TALLY_POSTGRES_DSN, TALLY_MONGO_URI) so credentials can
// live in a .env file rather than the config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config using the in-memory backend.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: BackendMemory},
		Events:  EventsConfig{Topic: "ledger.transactions.posted"},
	}
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("TALLY_POSTGRES_DSN"); dsn != "" {
		c.Storage.Postgres = dsn
	}
	if uri := os.Getenv("TALLY_MONGO_URI"); uri != "" {
		c.Storage.MongoURI = uri
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
		return nil
	case BackendPostgres:
		if c.Storage.Postgres == "" {
			return fmt.Errorf("postgres backend requires postgres_dsn or TALLY_POSTGRES_DSN")
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("mongo backend requires mongo_uri or TALLY_MONGO_URI")
		}
		if c.Storage.MongoDB == "" {
			c.Storage.MongoDB = "tally"
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
