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
	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/breakpoint"
	"github.com/tombee/rdbg/internal/commands/completion"
	configcmd "github.com/tombee/rdbg/internal/commands/config"
	"github.com/tombee/rdbg/internal/commands/control"
	"github.com/tombee/rdbg/internal/commands/inspect"
	"github.com/tombee/rdbg/internal/commands/session"
	"github.com/tombee/rdbg/internal/commands/shared"
	versioncmd "github.com/tombee/rdbg/internal/commands/version"
)

// Command group IDs.
const (
	groupSession = "session"
	groupControl = "control"
	groupInspect = "inspect"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for rdbg
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rdbg",
		Short: "rdbg - remote JVM debugger client",
		Long: `rdbg drives a remote debug agent that is attached to a JVM: attach to a
debuggee, set breakpoints, step, and inspect variables.

The session survives between invocations. Run 'rdbg attach host:port' for
an interactive shell, or 'rdbg attach host:port --no-shell' followed by
one-shot commands such as 'rdbg step over' and 'rdbg vars'.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, config, agent := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/rdbg/config.yaml)")
	cmd.PersistentFlags().StringVar(agent, "agent", "", "Debug agent URL (http://, https:// or unix://)")

	cmd.AddGroup(
		&cobra.Group{ID: groupSession, Title: "Session:"},
		&cobra.Group{ID: groupControl, Title: "Execution:"},
		&cobra.Group{ID: groupInspect, Title: "Inspection:"},
	)

	return cmd
}

// AddCommands registers every rdbg command on root.
func AddCommands(root *cobra.Command) {
	add := func(group string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = group
			root.AddCommand(c)
		}
	}

	add(groupSession,
		session.NewAttachCommand(),
		session.NewDetachCommand(),
		session.NewStatusCommand(),
		session.NewRecoverCommand(),
	)
	add(groupControl,
		control.NewStepCommand(),
		control.NewResumeCommand(),
		breakpoint.NewCommand(),
	)
	add(groupInspect,
		inspect.NewEvalCommand(),
		inspect.NewSetCommand(),
		inspect.NewVarsCommand(),
	)

	root.AddCommand(configcmd.NewConfigCommand())
	root.AddCommand(completion.NewCommand())
	root.AddCommand(versioncmd.NewVersionCommand())
	root.SetHelpCommand(NewHelpCommand(root))
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}
