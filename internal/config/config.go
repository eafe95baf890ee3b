// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// ligant client.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file location (in order of precedence):
//   - LIGANT_CONFIG (explicit path)
//   - ~/.ligant/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ligant-ai/ligant-client/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete client configuration.
type Config struct {
	Version string `toml:"version"`

	// Server connection settings
	Server ServerConfig `toml:"server"`

	// Auth settings
	Auth AuthConfig `toml:"auth"`

	// Artifact fetch settings
	Artifacts ArtifactsConfig `toml:"artifacts"`

	// Local store settings
	Store StoreConfig `toml:"store"`
}

// ServerConfig contains backend connection configuration.
type ServerConfig struct {
	// BaseURL is the backend base URL, e.g. "http://127.0.0.1:8000"
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the request timeout for non-streaming calls
	TimeoutSecs int `toml:"timeout_secs"`
}

// AuthConfig contains bearer token configuration.
type AuthConfig struct {
	// Token is the session bearer token. Usually supplied via
	// LIGANT_API_TOKEN rather than written to disk.
	Token string `toml:"token"`
}

// ArtifactsConfig tunes the structure artifact fetch path.
type ArtifactsConfig struct {
	// RatePerSec caps artifact content fetches per second
	RatePerSec float64 `toml:"rate_per_sec"`
	// Burst is the fetch limiter burst size
	Burst int `toml:"burst"`
}

// StoreConfig contains the local sqlite store configuration.
type StoreConfig struct {
	// Enabled controls whether local persistence is active
	Enabled bool `toml:"enabled"`
	// Path is the sqlite database path (empty = default ~/.ligant/ligant.db)
	Path string `toml:"path"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			BaseURL:     "http://127.0.0.1:8000",
			TimeoutSecs: 30,
		},

		Auth: AuthConfig{
			Token: "",
		},

		Artifacts: ArtifactsConfig{
			RatePerSec: 10,
			Burst:      5,
		},

		Store: StoreConfig{
			Enabled: true,
			Path:    "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ligant configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ligant"), nil
}

// ConfigPath returns the path to the TOML config file, honoring the
// LIGANT_CONFIG override.
func ConfigPath() (string, error) {
	if explicit := os.Getenv("LIGANT_CONFIG"); explicit != "" {
		return explicit, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultStorePath returns the default sqlite database path.
func DefaultStorePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ligant.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// the session token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file, falling back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := loadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func loadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file. The write is atomic so
// a concurrent reload through the watcher never sees a half-written file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# ligant configuration file")
	fmt.Fprintln(&buf, "# Generated by ligant - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.base_url",
			Message: "must not be empty",
		})
	} else {
		parsed, err := url.Parse(c.Server.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Server.BaseURL),
			})
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "server.base_url",
				Message: fmt.Sprintf("scheme must be http or https, got '%s'", parsed.Scheme),
			})
		}
	}

	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: fmt.Sprintf("must be 1-600 seconds, got %d", c.Server.TimeoutSecs),
		})
	}

	if c.Artifacts.RatePerSec <= 0 {
		errs = append(errs, ValidationError{
			Field:   "artifacts.rate_per_sec",
			Message: "must be positive",
		})
	}
	if c.Artifacts.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "artifacts.burst",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Artifacts.Burst),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaults.Server.BaseURL
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Artifacts.RatePerSec == 0 {
		c.Artifacts.RatePerSec = defaults.Artifacts.RatePerSec
	}
	if c.Artifacts.Burst == 0 {
		c.Artifacts.Burst = defaults.Artifacts.Burst
	}
	if c.Store.Path == "" {
		if path, err := DefaultStorePath(); err == nil {
			c.Store.Path = path
		}
	}

	// Trailing slashes break path joining against the API routes.
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LIGANT_SERVER_URL: overrides server.base_url
//   - LIGANT_API_TOKEN: overrides auth.token
//   - LIGANT_TIMEOUT_SECS: overrides server.timeout_secs
//   - LIGANT_STORE_PATH: overrides store.path
//   - LIGANT_NO_STORE: set to "1" or "true" to disable the local store
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("LIGANT_SERVER_URL"); serverURL != "" {
		c.Server.BaseURL = serverURL
	}

	if token := os.Getenv("LIGANT_API_TOKEN"); token != "" {
		c.Auth.Token = token
	}

	if timeout := os.Getenv("LIGANT_TIMEOUT_SECS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			c.Server.TimeoutSecs = secs
		}
	}

	if path := os.Getenv("LIGANT_STORE_PATH"); path != "" {
		c.Store.Path = path
	}

	if noStore := os.Getenv("LIGANT_NO_STORE"); noStore != "" {
		if noStore == "1" || strings.ToLower(noStore) == "true" {
			c.Store.Enabled = false
		}
	}
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
// SECURITY: Redacts the session token to prevent accidental exposure in
// logs or debug output.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Auth.Token != "" {
		safe.Auth.Token = "[REDACTED]"
	}
	var sb strings.Builder
	encoder := toml.NewEncoder(&sb)
	if err := encoder.Encode(safe); err != nil {
		return fmt.Sprintf("config (unencodable: %v)", err)
	}
	return sb.String()
}
