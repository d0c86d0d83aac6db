// Package config provides configuration loading and management for semvault.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semvault/connectivity"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Config represents the complete semvault configuration
type Config struct {
	Store          StoreConfig       `yaml:"store"`
	NATS           NATSConfig        `yaml:"nats"`
	Schemas        SchemasConfig     `yaml:"schemas"`
	Purl           PurlConfig        `yaml:"purl"`
	Policies       PoliciesConfig    `yaml:"policies"`
	DataReferences map[string]string `yaml:"data_references"`
	Metrics        MetricsConfig     `yaml:"metrics"`
}

// StoreConfig selects the permanent statement store
type StoreConfig struct {
	// Backend is "memory" or "nats" (default: nats)
	Backend string `yaml:"backend"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
	// Bucket is the JetStream KV bucket holding statements
	Bucket string `yaml:"bucket"`
	// StoreDir is where the embedded server keeps JetStream data (empty = temp dir)
	StoreDir string `yaml:"store_dir"`
}

// SchemasConfig configures the schema manifest
type SchemasConfig struct {
	// Manifest is the YAML schema manifest path
	Manifest string `yaml:"manifest"`
	// Debounce is how long the watcher waits for more changes before reloading
	Debounce time.Duration `yaml:"debounce"`
}

// PurlConfig configures placeholder identifier rewriting
type PurlConfig struct {
	// Prefix is the permanent identifier prefix
	Prefix string `yaml:"prefix"`
	// TemporaryPrefixes mark identifiers to rewrite
	TemporaryPrefixes []string `yaml:"temporary_prefixes"`
}

// PoliciesConfig holds the default request policies
type PoliciesConfig struct {
	// Dangling is the default dangling-object policy (ignore, report, force-clean)
	Dangling string `yaml:"dangling"`
	// Verify enables data reference verification by default
	Verify bool `yaml:"verify"`
}

// MetricsConfig configures the metrics endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendNATS,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
			Bucket:   "SEMVAULT_STATEMENTS",
		},
		Schemas: SchemasConfig{
			Manifest: "schemas.yaml",
			Debounce: 500 * time.Millisecond,
		},
		Purl: PurlConfig{
			Prefix:            "https://purl.semvault.dev/",
			TemporaryPrefixes: []string{"urn:temp:"},
		},
		Policies: PoliciesConfig{
			Dangling: string(connectivity.PolicyReport),
			Verify:   true,
		},
		DataReferences: nil,
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendNATS:
	default:
		return fmt.Errorf("store.backend must be %q or %q", BackendMemory, BackendNATS)
	}
	if c.Store.Backend == BackendNATS {
		if c.NATS.URL == "" && !c.NATS.Embedded {
			return fmt.Errorf("nats.url is required when nats.embedded is false")
		}
		if c.NATS.Bucket == "" {
			return fmt.Errorf("nats.bucket is required")
		}
	}
	if c.Schemas.Debounce < 0 {
		return fmt.Errorf("schemas.debounce must not be negative")
	}
	if c.Purl.Prefix == "" {
		return fmt.Errorf("purl.prefix is required")
	}
	if _, err := connectivity.ParsePolicy(c.Policies.Dangling); err != nil {
		return fmt.Errorf("policies.dangling: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// relative schema manifests are taken from the config file's directory
	if config.Schemas.Manifest != "" && !filepath.IsAbs(config.Schemas.Manifest) {
		config.Schemas.Manifest = filepath.Join(filepath.Dir(path), config.Schemas.Manifest)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Store
	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.Bucket != "" {
		c.NATS.Bucket = other.NATS.Bucket
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}

	// Schemas
	if other.Schemas.Manifest != "" {
		c.Schemas.Manifest = other.Schemas.Manifest
	}
	if other.Schemas.Debounce != 0 {
		c.Schemas.Debounce = other.Schemas.Debounce
	}

	// Purl
	if other.Purl.Prefix != "" {
		c.Purl.Prefix = other.Purl.Prefix
	}
	if len(other.Purl.TemporaryPrefixes) > 0 {
		c.Purl.TemporaryPrefixes = other.Purl.TemporaryPrefixes
	}

	// Policies
	if other.Policies.Dangling != "" {
		c.Policies.Dangling = other.Policies.Dangling
	}
	// other was loaded over defaults, so its flag is always meaningful
	c.Policies.Verify = other.Policies.Verify

	// Data references are additive
	for alias, root := range other.DataReferences {
		if c.DataReferences == nil {
			c.DataReferences = make(map[string]string)
		}
		c.DataReferences[alias] = root
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
