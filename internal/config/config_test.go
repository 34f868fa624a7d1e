// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rdbgerrors "github.com/tombee/rdbg/pkg/errors"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	for _, key := range []string{
		"RDBG_AGENT_URL", "RDBG_EVENTS_URL", "RDBG_API_KEY", "RDBG_RATE_LIMIT",
		"RDBG_STORAGE_BACKEND", "RDBG_STORAGE_PATH", "RDBG_WORKSPACE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/debugger", cfg.Agent.URL)
	assert.Equal(t, "debugger:events:", cfg.Session.EventsPrefix)
	assert.Equal(t, "debugger:disconnected:", cfg.Session.DisconnectPrefix)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(dir, "state", "rdbg", "rdbg.db"), cfg.Storage.Path)
	assert.Equal(t, []string{"**/src/main/java", "**/src/test/java"}, cfg.Workspace.SourcePatterns)
	assert.Equal(t, "ws://localhost:8000/api/debugger/ws", cfg.EventsURL())
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "rdbg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  url: https://agent.internal/api/debugger
  api_key: from-file
  rate_limit: 10
session:
  slot_key: team.session
storage:
  backend: memory
workspace:
  root: /work/app
  allow_external: true
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Agent.APIKey)
	assert.Equal(t, 10.0, cfg.Agent.RateLimit)
	assert.Equal(t, 5, cfg.Agent.Burst)
	assert.Equal(t, "team.session", cfg.Session.SlotKey)
	assert.Equal(t, "debugger:events:", cfg.Session.EventsPrefix)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "/work/app", cfg.Workspace.Root)
	assert.True(t, cfg.Workspace.AllowExternal)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "wss://agent.internal/api/debugger/ws", cfg.EventsURL())
}

func TestLoadDefaultPathFile(t *testing.T) {
	isolate(t)
	path, err := ConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  api_key: xdg\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "xdg", cfg.Agent.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RDBG_AGENT_URL", "unix:///run/agent.sock")
	t.Setenv("RDBG_EVENTS_URL", "ws://bus:9000/ws")
	t.Setenv("RDBG_API_KEY", "env-key")
	t.Setenv("RDBG_STORAGE_BACKEND", "keyring")
	t.Setenv("RDBG_STORAGE_PATH", "/tmp/x.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "unix:///run/agent.sock", cfg.Agent.URL)
	assert.Equal(t, "ws://bus:9000/ws", cfg.EventsURL())
	assert.Equal(t, "env-key", cfg.Agent.APIKey)
	assert.Equal(t, "keyring", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	var cfgErr *rdbgerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config_file", cfgErr.Key)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantKey string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad agent url", func(c *Config) { c.Agent.URL = "localhost" }, "agent.url"},
		{"http events url", func(c *Config) { c.Agent.EventsURL = "http://bus/ws" }, "agent.events_url"},
		{"negative rate", func(c *Config) { c.Agent.RateLimit = -1 }, "agent.rate_limit"},
		{"zero burst", func(c *Config) { c.Agent.Burst = 0 }, "agent.burst"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *rdbgerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestEventsURLUnix(t *testing.T) {
	cfg := Default()
	cfg.Agent.URL = "unix:///run/agent.sock"
	assert.Empty(t, cfg.EventsURL())
}
