// Package config handles configuration loading for sentinel.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"sentinel/internal/adapters"
	"sentinel/internal/logging"
	"sentinel/internal/publish"
	"sentinel/internal/risk"
	"sentinel/internal/sequence"
)

// DefaultPath is read when SENTINEL_CONFIG_PATH is not set.
const DefaultPath = "configs/sentinel.yaml"

// Config holds the complete application configuration.
type Config struct {
	Scan     ScanConfig          `yaml:"scan"`
	Rules    RulesConfig         `yaml:"rules"`
	Risk     risk.Config         `yaml:"risk"`
	Sequence sequence.Config     `yaml:"sequence"`
	Adapters AdaptersConfig      `yaml:"adapters"`
	Publish  publish.Config      `yaml:"publish"`
	Notify   publish.RedisConfig `yaml:"notify"`
	Logging  logging.Config      `yaml:"logging"`

	// ProductionMode scrubs paths and credentials from adapter errors.
	ProductionMode bool `yaml:"production_mode"`
}

// ScanConfig holds source scanning settings.
type ScanConfig struct {
	Workers        int      `yaml:"workers" validate:"gte=0"` // 0 means one per CPU
	NarrowScope    bool     `yaml:"narrow_scope"`             // skip proxy/bridge rules for unrelated sources
	ExcerptLength  int      `yaml:"excerpt_length" validate:"gte=0,lte=200"`
	MaxSourceBytes int64    `yaml:"max_source_bytes" validate:"gt=0"`
	Extensions     []string `yaml:"extensions" validate:"min=1,dive,required"`
}

// RulesConfig selects the rule catalog.
type RulesConfig struct {
	Paths          []string `yaml:"paths"`           // extra YAML rule files or directories
	DisableBuiltin bool     `yaml:"disable_builtin"` // use only Paths
	Disabled       []string `yaml:"disabled"`        // rule IDs to skip
}

// AdaptersConfig holds external analyzer settings.
type AdaptersConfig struct {
	Slither adapters.SlitherConfig `yaml:"slither"`
	Solc    adapters.SolcConfig    `yaml:"solc"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			NarrowScope:    true,
			ExcerptLength:  200,
			MaxSourceBytes: 4 * 1024 * 1024,
			Extensions:     []string{".sol"},
		},
		Risk: risk.DefaultConfig(),
		Adapters: AdaptersConfig{
			Slither: adapters.DefaultSlitherConfig(),
			Solc:    adapters.DefaultSolcConfig(),
		},
		Publish: publish.DefaultConfig(),
		Notify:  publish.DefaultRedisConfig(),
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the file named by SENTINEL_CONFIG_PATH (or DefaultPath) and
// applies environment overrides.
func Load() (*Config, error) {
	path := os.Getenv("SENTINEL_CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadPath(path)
}

// LoadPath reads path and applies environment overrides. A missing file
// yields the defaults.
func LoadPath(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file on top of the defaults. It does
// not apply environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if workers := os.Getenv("SENTINEL_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid SENTINEL_WORKERS %q: %w", workers, err)
		}
		c.Scan.Workers = n
	}

	if level := os.Getenv("SENTINEL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if prod := os.Getenv("SENTINEL_PRODUCTION"); prod != "" {
		v, err := strconv.ParseBool(prod)
		if err != nil {
			return fmt.Errorf("invalid SENTINEL_PRODUCTION %q: %w", prod, err)
		}
		c.ProductionMode = v
	}

	// Adapters
	if path := os.Getenv("SENTINEL_SLITHER_PATH"); path != "" {
		c.Adapters.Slither.Path = path
		c.Adapters.Slither.Enabled = true
	}

	if path := os.Getenv("SENTINEL_SOLC_PATH"); path != "" {
		c.Adapters.Solc.Path = path
		c.Adapters.Solc.Enabled = true
	}

	// Publishing
	if brokers := os.Getenv("SENTINEL_KAFKA_BROKERS"); brokers != "" {
		c.Publish.Brokers = splitAndTrim(brokers, ",")
		c.Publish.Enabled = true
	}

	if topic := os.Getenv("SENTINEL_KAFKA_TOPIC"); topic != "" {
		c.Publish.Topic = topic
	}

	if pass := os.Getenv("SENTINEL_KAFKA_SASL_PASSWORD"); pass != "" {
		c.Publish.SASLPassword = pass
	}

	// Live notifications
	if addr := os.Getenv("SENTINEL_REDIS_ADDR"); addr != "" {
		c.Notify.Addr = addr
		c.Notify.Enabled = true
	}

	if pass := os.Getenv("SENTINEL_REDIS_PASSWORD"); pass != "" {
		c.Notify.Password = pass
	}

	return nil
}

// splitAndTrim splits s by sep and drops empty parts.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("invalid risk configuration: %w", err)
	}
	if _, err := sequence.NewDetector(c.Sequence); err != nil {
		return fmt.Errorf("invalid sequence configuration: %w", err)
	}
	if err := c.Publish.Validate(); err != nil {
		return err
	}
	if err := c.Notify.Validate(); err != nil {
		return err
	}
	for _, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("scan extension %q must start with a dot", ext)
		}
	}
	return nil
}
