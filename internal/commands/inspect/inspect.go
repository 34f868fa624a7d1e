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

// Package inspect implements the commands that read and change the state of
// the suspended frame: eval, set and vars.
package inspect

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/console"
	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/jq"
)

// EvalResponse is the JSON form of eval.
type EvalResponse struct {
	shared.JSONResponse
	Expression string `json:"expression"`
	Result     string `json:"result"`
}

// VarsResponse is the JSON form of vars and set.
type VarsResponse struct {
	shared.JSONResponse
	Frame   *debugger.StackFrame `json:"frame,omitempty"`
	Results []any                `json:"results,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression in the current frame",
		Example: `  rdbg eval 'order.getTotal()'
  rdbg eval 'items.size() > 3'`,
		Args: cobra.MinimumNArgs(1),
		RunE: runEval,
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	expr := strings.Join(args, " ")
	app, err := shared.OpenAttached(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Session.EvaluateExpression(cmd.Context(), expr)
	if err != nil {
		return shared.NewCommandError("evaluation failed", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), EvalResponse{
			JSONResponse: shared.NewJSONResponse("eval"),
			Expression:   expr,
			Result:       result,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// NewSetCommand creates the set command.
func NewSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <variable-path> <expression>",
		Short: "Assign a new value to a variable",
		Long: `Set assigns the value of expression to the variable at variable-path,
a dot separated path from the top of the current frame, then prints the
refreshed frame.`,
		Example: `  rdbg set count 0
  rdbg set order.customer.name '"ada"'`,
		Args: cobra.MinimumNArgs(2),
		RunE: runSet,
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	path := debugger.VariablePath{Path: strings.Split(args[0], ".")}
	value := strings.Join(args[1:], " ")

	app, err := shared.OpenAttached(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Session.ChangeVariableValue(cmd.Context(), path, value); err != nil {
		return shared.NewCommandError("set failed", err)
	}
	return printFrame(cmd, "set", app.Session.StackFrame())
}

// NewVarsCommand creates the vars command.
func NewVarsCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Show the fields and locals of the current frame",
		Long: `Vars fetches the current stack frame from the agent. With --jq the
frame is passed through a jq filter; the frame has "fields" and
"localVariables" arrays of {name, value, type, variables}.`,
		Example: `  rdbg vars
  rdbg vars --jq '.localVariables[] | select(.type == "int") | .name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVars(cmd, filter)
		},
	}
	cmd.Flags().StringVar(&filter, "jq", "", "jq filter applied to the frame")
	return cmd
}

func runVars(cmd *cobra.Command, filter string) error {
	var code *jq.Filter
	if filter != "" {
		var err error
		if code, err = jq.Compile(filter); err != nil {
			return shared.NewUsageError("invalid --jq filter", err)
		}
	}

	app, err := shared.OpenAttached(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	frame, err := app.Session.RefreshStackFrame(cmd.Context())
	if err != nil {
		return shared.NewCommandError("fetching frame", err)
	}
	if code == nil {
		return printFrame(cmd, "vars", frame)
	}

	results, err := code.Run(cmd.Context(), frame)
	if err != nil {
		return shared.NewCommandError("jq filter failed", err)
	}
	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), VarsResponse{
			JSONResponse: shared.NewJSONResponse("vars"),
			Results:      results,
		})
	}
	lines, err := jq.Format(results)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func printFrame(cmd *cobra.Command, name string, frame debugger.StackFrame) error {
	if shared.GetJSON() {
		return shared.EmitJSONTo(cmd.OutOrStdout(), VarsResponse{
			JSONResponse: shared.NewJSONResponse(name),
			Frame:        &frame,
		})
	}
	if shared.GetQuiet() {
		return nil
	}
	out := cmd.OutOrStdout()
	color := console.ColorEnabled(out)
	fmt.Fprintln(out, shared.Header.Render("fields"))
	console.PrintVariables(out, frame.Fields, color)
	fmt.Fprintln(out, shared.Header.Render("locals"))
	console.PrintVariables(out, frame.Locals, color)
	return nil
}
