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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long: `View rdbg configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  validate - Check the configuration and exit non-zero if invalid`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults, the config file and
environment overrides are applied.

The API key is masked. Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := shared.LoadConfig(); err != nil {
				return shared.NewConfigError("invalid configuration", err)
			}
			if shared.GetJSON() {
				return shared.EmitJSONTo(cmd.OutOrStdout(), shared.NewJSONResponse("config validate"))
			}
			if !shared.GetQuiet() {
				fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("configuration is valid"))
			}
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return shared.NewConfigError("failed to load config", err)
	}

	masked := *cfg
	masked.Agent.APIKey = maskAPIKey(cfg.Agent.APIKey)

	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), struct {
			shared.JSONResponse
			Config *config.Config `json:"config"`
		}{shared.NewJSONResponse("config show"), &masked})
	}

	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(&masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath := shared.GetConfigPath()
	if cfgPath == "" {
		var err error
		cfgPath, err = config.ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

// maskAPIKey masks an API key for display
func maskAPIKey(key string) string {
	if key == "" {
		return ""
	}

	// Show first 4 and last 4 characters
	if len(key) <= 8 {
		return "****"
	}

	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
