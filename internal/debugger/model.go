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

package debugger

import (
	"fmt"
	"strings"
)

// BreakpointKind distinguishes user breakpoints from other gutter markers.
type BreakpointKind string

const (
	// KindBreakpoint is a user-set breakpoint.
	KindBreakpoint BreakpointKind = "BREAKPOINT"
	// KindCurrent marks the current execution line.
	KindCurrent BreakpointKind = "CURRENT"
)

// File is a workspace source file.
type File struct {
	Path      string `json:"path"`
	MediaType string `json:"mediaType,omitempty"`
}

// Breakpoint is the durable client-side record of a breakpoint.
// Line is 0-based. Path and Line identify the breakpoint; ResolvedName is
// for display.
type Breakpoint struct {
	Kind         BreakpointKind `json:"kind"`
	Line         int            `json:"line"`
	ResolvedName string         `json:"resolvedName,omitempty"`
	File         File           `json:"file"`
	Message      string         `json:"message,omitempty"`
	Active       bool           `json:"active"`
}

// Key returns the identity of the breakpoint.
func (b Breakpoint) Key() string {
	return BreakpointKey(b.File.Path, b.Line)
}

// BreakpointKey formats the identity of a breakpoint at path and 0-based line.
func BreakpointKey(path string, line int) string {
	return fmt.Sprintf("%s:%d", path, line)
}

// Location is a point in the debuggee. LineNumber is 1-based.
type Location struct {
	ClassName  string `json:"className"`
	LineNumber int    `json:"lineNumber"`
}

// String returns "class:line".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.ClassName, l.LineNumber)
}

// WireBreakpoint is a breakpoint as the agent sees it: a 1-based location.
type WireBreakpoint struct {
	Location  Location `json:"location"`
	Enabled   bool     `json:"enabled"`
	Condition string   `json:"condition,omitempty"`
}

// VariablePath addresses a variable from the top of the current frame.
type VariablePath struct {
	Path []string `json:"path"`
}

// String joins the segments with ".".
func (p VariablePath) String() string {
	return strings.Join(p.Path, ".")
}

// Variable is a named value in a stack frame.
type Variable struct {
	Name             string       `json:"name"`
	Value            string       `json:"value"`
	Type             string       `json:"type"`
	Primitive        bool         `json:"primitive"`
	ExistInformation bool         `json:"existInformation"`
	VariablePath     VariablePath `json:"variablePath"`
	Variables        []Variable   `json:"variables,omitempty"`
}

// StackFrame is the agent's dump of the current frame.
type StackFrame struct {
	Fields []Variable `json:"fields"`
	Locals []Variable `json:"localVariables"`
}

// Variables returns fields followed by locals.
func (f StackFrame) Variables() []Variable {
	out := make([]Variable, 0, len(f.Fields)+len(f.Locals))
	out = append(out, f.Fields...)
	return append(out, f.Locals...)
}

// Value is the expanded value of a variable.
type Value struct {
	Value     string     `json:"value"`
	Variables []Variable `json:"variables,omitempty"`
}

// UpdateVariableRequest asks the agent to assign a new value.
type UpdateVariableRequest struct {
	VariablePath VariablePath `json:"variablePath"`
	Expression   string       `json:"expression"`
}

// ConnectRequest asks the agent to attach to a debuggee.
type ConnectRequest struct {
	Host        string           `json:"host"`
	Port        int              `json:"port"`
	Breakpoints []WireBreakpoint `json:"breakpoints,omitempty"`
}
