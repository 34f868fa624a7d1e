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

// Package control implements the execution control commands: step and
// resume.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/debugger"
)

const pollInterval = 100 * time.Millisecond

// LocationResponse is the JSON form of step and resume.
type LocationResponse struct {
	shared.JSONResponse
	Suspended bool   `json:"suspended"`
	Class     string `json:"class,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// NewStepCommand creates the step command group.
func NewStepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Step the suspended thread",
		Long: `Step the suspended thread of the attached debuggee. After the step the
agent is polled for up to --wait for the new execution point.`,
	}

	cmd.AddCommand(
		newStepSubcommand("into", "Step into the next call", (*debugger.Session).StepInto),
		newStepSubcommand("over", "Step over the current line", (*debugger.Session).StepOver),
		newStepSubcommand("out", "Step out of the current method", (*debugger.Session).StepOut),
	)
	return cmd
}

// NewResumeCommand creates the resume command.
func NewResumeCommand() *cobra.Command {
	cmd := newStepSubcommand("resume", "Resume until the next breakpoint", (*debugger.Session).Resume)
	cmd.Aliases = []string{"continue"}
	return cmd
}

type stepFunc func(*debugger.Session, context.Context) error

func newStepSubcommand(name, short string, step stepFunc) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(cmd, name, step, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "How long to poll for the new execution point (0 to skip)")
	return cmd
}

func runStep(cmd *cobra.Command, name string, step stepFunc, wait time.Duration) error {
	ctx := cmd.Context()
	app, err := shared.OpenAttached(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := step(app.Session, ctx); err != nil {
		return shared.NewCommandError(name+" failed", err)
	}

	loc, suspended, err := awaitExecutionPoint(ctx, app.Session, wait)
	if err != nil {
		return shared.NewCommandError("polling events", err)
	}

	if shared.GetJSON() {
		resp := LocationResponse{JSONResponse: shared.NewJSONResponse(name), Suspended: suspended}
		if suspended {
			resp.Class = loc.ClassName
			resp.Line = loc.LineNumber
		}
		return shared.EmitJSONTo(cmd.OutOrStdout(), resp)
	}
	if !suspended && !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderLabel("running"))
	}
	return nil
}

// awaitExecutionPoint polls the agent until a step or breakpoint event
// sets the execution point, wait elapses, or the session ends.
func awaitExecutionPoint(ctx context.Context, s *debugger.Session, wait time.Duration) (debugger.Location, bool, error) {
	if wait <= 0 {
		loc, ok := s.ExecutionPoint()
		return loc, ok, nil
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.PollEvents(ctx); err != nil {
			if ctx.Err() != nil {
				return debugger.Location{}, false, nil
			}
			return debugger.Location{}, false, err
		}
		if loc, ok := s.ExecutionPoint(); ok {
			return loc, true, nil
		}
		if !s.IsConnected() {
			return debugger.Location{}, false, nil
		}

		select {
		case <-ctx.Done():
			return debugger.Location{}, false, nil
		case <-ticker.C:
		}
	}
}
