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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/shared"
)

// NewDetachCommand creates the detach command.
func NewDetachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detach",
		Short: "End the persisted debug session",
		Long: `Detach tells the agent to disconnect from the debuggee and clears the
persisted session. Breakpoints are kept and sent on the next attach.`,
		Args: cobra.NoArgs,
		RunE: runDetach,
	}
}

func runDetach(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := shared.OpenApp(ctx, shared.AppOptions{Out: shared.ObserverOutput(cmd)})
	if err != nil {
		return err
	}
	defer app.Close()

	attached, err := app.Recover(ctx)
	if err != nil {
		return shared.NewCommandError("checking session", err)
	}
	if !attached {
		if shared.GetJSON() {
			return shared.EmitJSONTo(cmd.OutOrStdout(), newStatusResponse(ctx, "detach", app))
		}
		if !shared.GetQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderWarn("not attached"))
		}
		return nil
	}

	app.Observe()
	if err := app.Session.Disconnect(ctx); err != nil {
		return shared.NewCommandError("detach failed", err)
	}
	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), newStatusResponse(ctx, "detach", app))
	}
	return nil
}
