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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/rdbg/internal/commands/shared"
)

// CommandMetadata describes a command in JSON help output.
type CommandMetadata struct {
	Name        string         `json:"name"`
	Group       string         `json:"group,omitempty"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Flags       []FlagMetadata `json:"flags,omitempty"`
	Examples    string         `json:"examples,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
}

// FlagMetadata describes a flag in JSON help output.
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// HelpResponse is the JSON response for help command
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Command     *CommandMetadata  `json:"command,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
}

// NewHelpCommand creates a help command that honours --json.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.
Use --json to get machine-readable output for editor integrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if !shared.GetJSON() {
					return rootCmd.Help()
				}
				resp := HelpResponse{
					JSONResponse: shared.NewJSONResponse("help"),
					GlobalFlags:  flagMetadata(rootCmd.PersistentFlags()),
				}
				for _, c := range rootCmd.Commands() {
					if !c.Hidden {
						resp.Commands = append(resp.Commands, commandMetadata(c))
					}
				}
				return shared.EmitJSONTo(cmd.OutOrStdout(), resp)
			}

			target, _, err := rootCmd.Find(args)
			if err != nil || target == rootCmd {
				return shared.NewUsageError(fmt.Sprintf("command %q not found", args[0]), err)
			}
			if !shared.GetJSON() {
				return target.Help()
			}
			metadata := commandMetadata(target)
			return shared.EmitJSONTo(cmd.OutOrStdout(), HelpResponse{
				JSONResponse: shared.NewJSONResponse("help " + target.Name()),
				Command:      &metadata,
				GlobalFlags:  flagMetadata(rootCmd.PersistentFlags()),
			})
		},
	}
}

func commandMetadata(cmd *cobra.Command) CommandMetadata {
	metadata := CommandMetadata{
		Name:     cmd.Name(),
		Group:    cmd.GroupID,
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Aliases:  cmd.Aliases,
		Flags:    flagMetadata(cmd.LocalFlags()),
	}
	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			metadata.Subcommands = append(metadata.Subcommands, sub.Name())
		}
	}
	return metadata
}

func flagMetadata(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden {
			return
		}
		flags = append(flags, FlagMetadata{
			Name:      flag.Name,
			Shorthand: flag.Shorthand,
			Usage:     flag.Usage,
			Default:   flag.DefValue,
		})
	})
	return flags
}
