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
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/commands/shared"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"short", "****"},
		{"12345678", "****"},
		{"abcd1234efgh5678", "abcd********5678"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, maskAPIKey(tt.key))
		})
	}
}

func setupConfigEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	for _, name := range []string{"RDBG_AGENT_URL", "RDBG_EVENTS_URL", "RDBG_API_KEY", "RDBG_RATE_LIMIT",
		"RDBG_STORAGE_BACKEND", "RDBG_STORAGE_PATH", "RDBG_WORKSPACE", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(name, "")
	}
	shared.SetConfigPathForTest("")
	shared.SetAgentURLForTest("")
	shared.SetJSONForTest(false)
	return dir
}

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShowMasksKey(t *testing.T) {
	setupConfigEnv(t)
	t.Setenv("RDBG_API_KEY", "abcd1234efgh5678")

	out, err := runConfig(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "api_key: abcd********5678")
	assert.NotContains(t, out, "1234efgh")
	assert.Contains(t, out, "url: http://localhost:8000/api/debugger")
}

func TestConfigShowJSON(t *testing.T) {
	setupConfigEnv(t)
	shared.SetJSONForTest(true)
	defer shared.SetJSONForTest(false)

	out, err := runConfig(t, "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"command": "config show"`)
	assert.Contains(t, out, `"backend": "sqlite"`)
}

func TestConfigPath(t *testing.T) {
	dir := setupConfigEnv(t)

	out, err := runConfig(t, "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rdbg", "config.yaml"), strings.TrimSpace(out))

	shared.SetConfigPathForTest("/etc/rdbg.yaml")
	defer shared.SetConfigPathForTest("")
	out, err = runConfig(t, "path")
	require.NoError(t, err)
	assert.Equal(t, "/etc/rdbg.yaml", strings.TrimSpace(out))
}

func TestConfigValidate(t *testing.T) {
	setupConfigEnv(t)

	out, err := runConfig(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	t.Setenv("RDBG_STORAGE_BACKEND", "postgres")
	_, err = runConfig(t, "validate")
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, shared.ExitCode(err))
}
