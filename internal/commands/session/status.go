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

package session

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/debugger"
)

// StatusResponse is the JSON form of status, attach and recover.
type StatusResponse struct {
	shared.JSONResponse
	Attached    bool   `json:"attached"`
	Agent       string `json:"agent"`
	SessionID   string `json:"session_id,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	VM          string `json:"vm,omitempty"`
	Breakpoints int    `json:"breakpoints"`
	Active      int    `json:"active_breakpoints"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted debug session",
		Long: `Status checks whether the persisted session is still known to the
agent and prints its target, VM and breakpoint counts. A session the agent
has forgotten is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, "status")
		},
	}
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Re-attach to the persisted debug session",
		Long: `Recover re-attaches to the session saved by a previous attach if the
agent still has it, and reports the result. It is what every one-shot
command does first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, "recover")
		},
	}
}

func runStatus(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	app, err := shared.OpenApp(ctx, shared.AppOptions{Out: shared.ObserverOutput(cmd)})
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Recover(ctx); err != nil {
		return shared.NewCommandError("checking session", err)
	}

	resp := newStatusResponse(ctx, name, app)
	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), resp)
	}
	printStatus(cmd.OutOrStdout(), resp)
	return nil
}

func newStatusResponse(ctx context.Context, command string, app *shared.App) StatusResponse {
	resp := StatusResponse{
		JSONResponse: shared.NewJSONResponse(command),
		Agent:        app.Config.Agent.URL,
	}
	if h, ok := debugger.Active(app.Session.Handle()); ok && app.Session.IsConnected() {
		resp.Attached = true
		resp.SessionID = h.ID
		resp.Host = h.Host
		resp.Port = h.Port
		resp.VM = app.Session.VMInfo()
	}
	if bps, err := app.Session.Breakpoints(ctx); err == nil {
		resp.Breakpoints = len(bps)
		for _, bp := range bps {
			if bp.Active {
				resp.Active++
			}
		}
	}
	return resp
}

func printStatus(w io.Writer, resp StatusResponse) {
	if !resp.Attached {
		fmt.Fprintln(w, shared.RenderWarn("not attached"))
	} else {
		fmt.Fprintln(w, shared.RenderOK(fmt.Sprintf("attached to %s:%d", resp.Host, resp.Port)))
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("session:"), resp.SessionID)
		if resp.VM != "" {
			fmt.Fprintf(w, "  %s      %s\n", shared.RenderLabel("vm:"), resp.VM)
		}
	}
	fmt.Fprintf(w, "  %s   %s\n", shared.RenderLabel("agent:"), resp.Agent)
	fmt.Fprintf(w, "  %s %d (%d active)\n", shared.RenderLabel("breakpoints:"), resp.Breakpoints, resp.Active)
}
