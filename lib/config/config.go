// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the Vaultic
// client core.
//
// Configuration is loaded from a single YAML file passed explicitly by
// the host application (or the --config flag of vaulticd). There are
// no fallbacks or automatic discovery — deterministic, auditable
// configuration with no hidden overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Vaultic-LLC/Vaultic-sub003/lib/vcrypto"
)

// Config is the master configuration for the client core.
type Config struct {
	// Service configures the two encrypted channels.
	Service ServiceConfig `yaml:"service"`

	// Storage configures local persistence.
	Storage StorageConfig `yaml:"storage"`

	// Device is the metadata sent in the bootstrap inner body. The
	// host application collects it; this core only transmits it.
	Device DeviceConfig `yaml:"device"`
}

// ServiceConfig configures the transport channels.
type ServiceConfig struct {
	// BootstrapURL is the base URL of the unauthenticated bootstrap
	// (STS) service.
	BootstrapURL string `yaml:"bootstrap_url"`

	// APIURL is the base URL of the session-authenticated API
	// service.
	APIURL string `yaml:"api_url"`

	// ServerPublicKey is the service's long-lived age public key
	// (age1... format). All outbound envelopes are encrypted to it.
	ServerPublicKey string `yaml:"server_public_key"`

	// RequestsPerSecond bounds the client-side request rate across
	// both channels. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	// DatabasePath is the SQLite file holding encrypted store blobs,
	// change tracking, and the log sink. The parent directory must
	// exist.
	DatabasePath string `yaml:"database_path"`

	// SchemaPath is the JSONC file declaring the field-tree schemas.
	SchemaPath string `yaml:"schema_path"`
}

// DeviceConfig is the device metadata attached to bootstrap requests.
type DeviceConfig struct {
	MacAddress string `yaml:"mac_address"`
	DeviceName string `yaml:"device_name"`
	Model      string `yaml:"model"`
	Version    string `yaml:"version"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every required field is present and well
// formed.
func (c *Config) Validate() error {
	if c.Service.BootstrapURL == "" {
		return fmt.Errorf("service.bootstrap_url is required")
	}
	if c.Service.APIURL == "" {
		return fmt.Errorf("service.api_url is required")
	}
	if c.Service.ServerPublicKey == "" {
		return fmt.Errorf("service.server_public_key is required")
	}
	if err := vcrypto.ValidatePublicKey(c.Service.ServerPublicKey); err != nil {
		return fmt.Errorf("service.server_public_key: %w", err)
	}
	if c.Service.RequestsPerSecond < 0 {
		return fmt.Errorf("service.requests_per_second must not be negative")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Storage.SchemaPath == "" {
		return fmt.Errorf("storage.schema_path is required")
	}
	return nil
}
