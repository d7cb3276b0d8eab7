// Package main provides the BCID server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Identifier IdentifierConfig `yaml:"identifier"`
	EZID       EZIDConfig       `yaml:"ezid"`
	Verbose    bool             `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Address        string `yaml:"address"`         // API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address (default: :9090)
}

// StorageConfig contains database settings.
type StorageConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	AccessTokenTTL string `yaml:"access_token_ttl"` // e.g. "15m"
	LoginRateLimit int    `yaml:"login_rate_limit"` // login attempts per minute per IP
}

// IdentifierConfig controls how minted identifiers are rendered.
type IdentifierConfig struct {
	Prefix       string `yaml:"prefix"`        // identifier prefix, e.g. "ark:/21547/"
	ResolverBase string `yaml:"resolver_base"` // public resolver base URL
}

// EZIDConfig contains settings for the external registration service.
type EZIDConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Username  string `yaml:"username"`
	Timeout   string `yaml:"timeout"`    // per-registration timeout, e.g. "30s"
	QueueSize int    `yaml:"queue_size"` // outbound event queue capacity
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9090"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/bcid.db"
	}
	if c.Auth.AccessTokenTTL == "" {
		c.Auth.AccessTokenTTL = "15m"
	}
	if c.Auth.LoginRateLimit == 0 {
		c.Auth.LoginRateLimit = 10
	}
	if c.Identifier.Prefix == "" {
		c.Identifier.Prefix = "ark:/21547/"
	}
	if c.Identifier.ResolverBase == "" {
		c.Identifier.ResolverBase = "https://n2t.net/"
	}
	if c.EZID.BaseURL == "" {
		c.EZID.BaseURL = "https://ezid.cdlib.org"
	}
	if c.EZID.Timeout == "" {
		c.EZID.Timeout = "30s"
	}
	if c.EZID.QueueSize == 0 {
		c.EZID.QueueSize = 256
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if _, err := time.ParseDuration(c.Auth.AccessTokenTTL); err != nil {
		return fmt.Errorf("auth.access_token_ttl: %w", err)
	}
	if c.Auth.LoginRateLimit < 1 {
		return fmt.Errorf("auth.login_rate_limit must be positive")
	}
	if _, err := time.ParseDuration(c.EZID.Timeout); err != nil {
		return fmt.Errorf("ezid.timeout: %w", err)
	}
	if c.EZID.Enabled && c.EZID.Username == "" {
		return fmt.Errorf("ezid.username is required when ezid is enabled")
	}
	return nil
}

// AccessTokenTTL returns the parsed token lifetime. Validate must have
// succeeded first.
func (c *Config) AccessTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.AccessTokenTTL)
	return d
}

// EZIDTimeout returns the parsed registration timeout. Validate must have
// succeeded first.
func (c *Config) EZIDTimeout() time.Duration {
	d, _ := time.ParseDuration(c.EZID.Timeout)
	return d
}
