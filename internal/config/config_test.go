// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server.BaseURL)
	assert.Equal(t, 30, cfg.Server.TimeoutSecs)
	assert.Equal(t, 10.0, cfg.Artifacts.RatePerSec)
	assert.Equal(t, 5, cfg.Artifacts.Burst)
	assert.True(t, cfg.Store.Enabled)
	assert.Empty(t, cfg.Auth.Token)
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
version = "1.0.0"

[server]
base_url = "https://ligant.example.com"
timeout_secs = 60

[auth]
token = "tok-123"

[artifacts]
rate_per_sec = 2.0
burst = 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://ligant.example.com", cfg.Server.BaseURL)
	assert.Equal(t, 60, cfg.Server.TimeoutSecs)
	assert.Equal(t, "tok-123", cfg.Auth.Token)
	assert.Equal(t, 2.0, cfg.Artifacts.RatePerSec)
	assert.Equal(t, 1, cfg.Artifacts.Burst)
}

func TestLoadFromPathPartialFileGetsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"http://localhost:9000\"\n"), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.Server.BaseURL)
	assert.Equal(t, 30, cfg.Server.TimeoutSecs)
	assert.Equal(t, 10.0, cfg.Artifacts.RatePerSec)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIGANT_SERVER_URL", "https://override.example.com")
	t.Setenv("LIGANT_API_TOKEN", "env-token")
	t.Setenv("LIGANT_TIMEOUT_SECS", "45")
	t.Setenv("LIGANT_NO_STORE", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "https://override.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "env-token", cfg.Auth.Token)
	assert.Equal(t, 45, cfg.Server.TimeoutSecs)
	assert.False(t, cfg.Store.Enabled)
}

func TestEnvOverrideBadTimeoutIgnored(t *testing.T) {
	t.Setenv("LIGANT_TIMEOUT_SECS", "not-a-number")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, 30, cfg.Server.TimeoutSecs)
}

func TestSetDefaultsTrimsTrailingSlash(t *testing.T) {
	cfg := Default()
	cfg.Server.BaseURL = "http://localhost:8000/"
	cfg.SetDefaults()
	assert.Equal(t, "http://localhost:8000", cfg.Server.BaseURL)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{
			name:   "empty base URL",
			mutate: func(cfg *Config) { cfg.Server.BaseURL = "" },
			field:  "server.base_url",
		},
		{
			name:   "URL without scheme",
			mutate: func(cfg *Config) { cfg.Server.BaseURL = "localhost:8000" },
			field:  "server.base_url",
		},
		{
			name:   "unsupported scheme",
			mutate: func(cfg *Config) { cfg.Server.BaseURL = "ftp://example.com" },
			field:  "server.base_url",
		},
		{
			name:   "timeout too small",
			mutate: func(cfg *Config) { cfg.Server.TimeoutSecs = 0 },
			field:  "server.timeout_secs",
		},
		{
			name:   "timeout too large",
			mutate: func(cfg *Config) { cfg.Server.TimeoutSecs = 601 },
			field:  "server.timeout_secs",
		},
		{
			name:   "negative artifact rate",
			mutate: func(cfg *Config) { cfg.Artifacts.RatePerSec = -1 },
			field:  "artifacts.rate_per_sec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Server.BaseURL = "https://saved.example.com"
	cfg.Auth.Token = "saved-token"
	require.NoError(t, SaveTOML(cfg, path))

	// Saved files are private to the owning user.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.Server.BaseURL)
	assert.Equal(t, "saved-token", loaded.Auth.Token)
}

func TestStringRedactsToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Token = "super-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "[REDACTED]")
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"http://localhost:8000\"\n"), 0600))

	var mu sync.Mutex
	var reloaded *Config

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		reloaded = cfg
		mu.Unlock()
	})
	require.NoError(t, err)
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"http://localhost:9999\"\n"), 0600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "http://localhost:9999", reloaded.Server.BaseURL)
}

func TestWatcherKeepsOldConfigOnBadReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"http://localhost:8000\"\n"), 0600))

	var mu sync.Mutex
	var reloads int
	var errs int

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		reloads++
		mu.Unlock()
	})
	require.NoError(t, err)
	w.OnError(func(err error) {
		mu.Lock()
		errs++
		mu.Unlock()
	})
	require.NoError(t, w.Watch())
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("[server]\nbase_url = \"not a url"), 0600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errs > 0
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, reloads)
}
