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

// Package config loads rdbg configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	rdbgerrors "github.com/tombee/rdbg/pkg/errors"
)

// Config is the full rdbg configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent" json:"agent"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Workspace WorkspaceConfig `yaml:"workspace" json:"workspace"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// AgentConfig locates the debug agent.
type AgentConfig struct {
	// URL is the REST base, e.g. http://localhost:8000/api/debugger or
	// unix:///run/agent.sock.
	URL string `yaml:"url" json:"url"`

	// EventsURL is the WebSocket message bus. When empty it is derived
	// from URL.
	EventsURL string `yaml:"events_url" json:"events_url"`

	// APIKey authenticates both the REST client and the message bus.
	APIKey string `yaml:"api_key" json:"api_key"`

	// RateLimit caps commands per second. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// SessionConfig names the channel topics and the persisted slot.
type SessionConfig struct {
	EventsPrefix     string `yaml:"events_prefix" json:"events_prefix"`
	DisconnectPrefix string `yaml:"disconnect_prefix" json:"disconnect_prefix"`
	SlotKey          string `yaml:"slot_key" json:"slot_key"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is sqlite, memory or keyring.
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path" json:"path"`
}

// WorkspaceConfig describes the project being debugged.
type WorkspaceConfig struct {
	Root           string   `yaml:"root" json:"root"`
	SourcePatterns []string `yaml:"source_patterns" json:"source_patterns"`
	AllowExternal  bool     `yaml:"allow_external" json:"allow_external"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			URL:   "http://localhost:8000/api/debugger",
			Burst: 5,
		},
		Session: SessionConfig{
			EventsPrefix:     "debugger:events:",
			DisconnectPrefix: "debugger:disconnected:",
			SlotKey:          "debugger.session",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    defaultStoragePath(),
		},
		Workspace: WorkspaceConfig{
			SourcePatterns: []string{"**/src/main/java", "**/src/test/java"},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configPath (if non-empty), fills defaults, then applies
// environment overrides. A missing file at the default location is not an
// error; a missing explicit path is.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &rdbgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	} else if path, err := ConfigPath(); err == nil {
		if err := cfg.loadFromFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, &rdbgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values so that minimal files work.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Agent.URL == "" {
		c.Agent.URL = d.Agent.URL
	}
	if c.Agent.Burst == 0 {
		c.Agent.Burst = d.Agent.Burst
	}
	if c.Session.EventsPrefix == "" {
		c.Session.EventsPrefix = d.Session.EventsPrefix
	}
	if c.Session.DisconnectPrefix == "" {
		c.Session.DisconnectPrefix = d.Session.DisconnectPrefix
	}
	if c.Session.SlotKey == "" {
		c.Session.SlotKey = d.Session.SlotKey
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if len(c.Workspace.SourcePatterns) == 0 {
		c.Workspace.SourcePatterns = d.Workspace.SourcePatterns
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("RDBG_AGENT_URL"); val != "" {
		c.Agent.URL = val
	}
	if val := os.Getenv("RDBG_EVENTS_URL"); val != "" {
		c.Agent.EventsURL = val
	}
	if val := os.Getenv("RDBG_API_KEY"); val != "" {
		c.Agent.APIKey = val
	}
	if val := os.Getenv("RDBG_RATE_LIMIT"); val != "" {
		if rps, err := strconv.ParseFloat(val, 64); err == nil {
			c.Agent.RateLimit = rps
		}
	}
	if val := os.Getenv("RDBG_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = val
	}
	if val := os.Getenv("RDBG_STORAGE_PATH"); val != "" {
		c.Storage.Path = val
	}
	if val := os.Getenv("RDBG_WORKSPACE"); val != "" {
		c.Workspace.Root = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.Agent.URL); err != nil || u.Scheme == "" {
		return &rdbgerrors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("invalid agent URL %q", c.Agent.URL), Cause: err}
	}
	if c.Agent.EventsURL != "" {
		u, err := url.Parse(c.Agent.EventsURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return &rdbgerrors.ConfigError{Key: "agent.events_url", Reason: fmt.Sprintf("events URL %q must use ws or wss", c.Agent.EventsURL), Cause: err}
		}
	}
	if c.Agent.RateLimit < 0 {
		return &rdbgerrors.ConfigError{Key: "agent.rate_limit", Reason: fmt.Sprintf("must not be negative, got %v", c.Agent.RateLimit)}
	}
	if c.Agent.Burst < 1 {
		return &rdbgerrors.ConfigError{Key: "agent.burst", Reason: fmt.Sprintf("must be at least 1, got %d", c.Agent.Burst)}
	}

	switch c.Storage.Backend {
	case "sqlite", "memory", "keyring":
	default:
		return &rdbgerrors.ConfigError{Key: "storage.backend", Reason: fmt.Sprintf("must be one of [sqlite, memory, keyring], got %q", c.Storage.Backend)}
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return &rdbgerrors.ConfigError{Key: "log.level", Reason: fmt.Sprintf("must be one of [trace, debug, info, warn, error], got %q", c.Log.Level)}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return &rdbgerrors.ConfigError{Key: "log.format", Reason: fmt.Sprintf("must be one of [json, text], got %q", c.Log.Format)}
	}
	return nil
}

// EventsURL returns the message bus URL, deriving it from the agent URL
// when not set: http(s)://host/base becomes ws(s)://host/base/ws.
func (c *Config) EventsURL() string {
	if c.Agent.EventsURL != "" {
		return c.Agent.EventsURL
	}
	u, err := url.Parse(c.Agent.URL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String()
}
