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

// Package breakpoint implements the break command group.
//
// Breakpoints are durable: they are kept in the local store whether or not
// a session is attached, and the whole list is sent on attach.
package breakpoint

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/completion"
	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/console"
	"github.com/tombee/rdbg/internal/debugger"
	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// BreakpointInfo is one breakpoint in JSON output. Line is 1-based.
type BreakpointInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Line   int    `json:"line"`
	Active bool   `json:"active"`
}

// ListResponse is the JSON form of every break subcommand.
type ListResponse struct {
	shared.JSONResponse
	Attached    bool             `json:"attached"`
	Breakpoints []BreakpointInfo `json:"breakpoints"`
}

// NewCommand creates the break command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "break",
		Aliases: []string{"breakpoint", "bp"},
		Short:   "Manage breakpoints",
		Long: `Manage breakpoints. A location is <source>:<line> where source is a
file path (absolute, or relative to the workspace or a source root) or a
fully qualified class name, and line is 1-based.

When no session is attached changes are recorded locally and installed on
the next attach.`,
	}

	cmd.AddCommand(
		newAddCommand(),
		newDeleteCommand(),
		newClearCommand(),
		newListCommand(),
	)
	return cmd
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "add <location>",
		Short:   "Add a breakpoint",
		Example: "  rdbg break add src/main/java/com/acme/App.java:42\n  rdbg break add com.acme.App:42",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChange(cmd, "add", args[0], (*debugger.Session).AddBreakpoint)
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <location>",
		Aliases: []string{"rm"},
		Short:   "Delete a breakpoint",
		Args:    cobra.ExactArgs(1),

		ValidArgsFunction: completion.CompleteBreakpoints,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChange(cmd, "delete", args[0], (*debugger.Session).DeleteBreakpoint)
		},
	}
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all breakpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Session.DeleteAllBreakpoints(cmd.Context()); err != nil {
				return shared.NewCommandError("clear failed", err)
			}
			return printList(cmd, "clear", app)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List breakpoints",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := shared.OpenApp(cmd.Context(), shared.AppOptions{})
			if err != nil {
				return err
			}
			defer app.Close()
			return printList(cmd, "list", app)
		},
	}
}

type changeFunc func(*debugger.Session, context.Context, debugger.File, int) error

func runChange(cmd *cobra.Command, name, location string, change changeFunc) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	f, line, err := app.Workspace.Locate(location)
	if err != nil {
		return shared.NewUsageError("invalid location", err)
	}

	err = change(app.Session, cmd.Context(), f, line)
	switch {
	case pkgerrors.IsNotAttached(err):
		if !shared.GetQuiet() && !shared.GetJSON() {
			fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderWarn("not attached; change recorded locally"))
		}
	case err != nil:
		return shared.NewCommandError(name+" failed", err)
	}

	if shared.GetJSON() {
		return printList(cmd, name, app)
	}
	return nil
}

// openApp recovers the persisted session, if any, so changes reach the
// agent when attached.
func openApp(cmd *cobra.Command) (*shared.App, error) {
	app, err := shared.OpenApp(cmd.Context(), shared.AppOptions{Out: shared.ObserverOutput(cmd)})
	if err != nil {
		return nil, err
	}
	if _, err := app.Recover(cmd.Context()); err != nil {
		app.Close()
		return nil, err
	}
	app.Observe()
	return app, nil
}

func printList(cmd *cobra.Command, name string, app *shared.App) error {
	bps, err := app.Session.Breakpoints(cmd.Context())
	if err != nil {
		return shared.NewCommandError("listing breakpoints", err)
	}

	if shared.GetJSON() {
		resp := ListResponse{
			JSONResponse: shared.NewJSONResponse(name),
			Attached:     app.Session.IsConnected(),
			Breakpoints:  make([]BreakpointInfo, 0, len(bps)),
		}
		for _, bp := range bps {
			resp.Breakpoints = append(resp.Breakpoints, BreakpointInfo{
				Name:   bp.ResolvedName,
				Path:   bp.File.Path,
				Line:   bp.Line + 1,
				Active: bp.Active,
			})
		}
		return shared.EmitJSONTo(cmd.OutOrStdout(), resp)
	}
	if shared.GetQuiet() && name != "list" {
		return nil
	}
	out := cmd.OutOrStdout()
	console.PrintBreakpoints(out, bps, console.ColorEnabled(out))
	return nil
}
