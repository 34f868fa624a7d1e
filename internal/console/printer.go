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

package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/workspace"
)

// sourceContext is the number of lines shown on each side of the
// execution line.
const sourceContext = 3

// Printer writes session transitions and editor effects to a terminal. It
// implements debugger.Observer, debugger.ActivationObserver and
// workspace.Sink.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	p   palette

	// ShowSource prints the lines around the execution point.
	ShowSource bool
}

var (
	_ debugger.Observer           = (*Printer)(nil)
	_ debugger.ActivationObserver = (*Printer)(nil)
	_ workspace.Sink              = (*Printer)(nil)
)

// NewPrinter creates a printer. Color is used when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, p: palette{color: ColorEnabled(out)}, ShowSource: true}
}

func (pr *Printer) printf(format string, args ...any) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	fmt.Fprintf(pr.out, format, args...)
}

func (pr *Printer) OnConnected(host string, port int) {
	pr.printf("%s connected to %s:%d\n", pr.p.ok("✓"), host, port)
}

func (pr *Printer) OnConnectError(host string, port int) {
	pr.printf("%s could not connect to %s:%d\n", pr.p.err("✗"), host, port)
}

func (pr *Printer) OnDisconnected(host string, port int) {
	pr.printf("%s disconnected from %s:%d\n", pr.p.warn("•"), host, port)
}

func (pr *Printer) OnBreakpointAdded()      { pr.printf("%s breakpoint added\n", pr.p.muted("•")) }
func (pr *Printer) OnBreakpointDeleted()    { pr.printf("%s breakpoint deleted\n", pr.p.muted("•")) }
func (pr *Printer) OnDeleteAllBreakpoints() { pr.printf("%s all breakpoints deleted\n", pr.p.muted("•")) }
func (pr *Printer) OnStepInto()             { pr.printf("%s\n", pr.p.muted("step into")) }
func (pr *Printer) OnStepOver()             { pr.printf("%s\n", pr.p.muted("step over")) }
func (pr *Printer) OnStepOut()              { pr.printf("%s\n", pr.p.muted("step out")) }
func (pr *Printer) OnResume()               { pr.printf("%s\n", pr.p.muted("resumed")) }

// OnBreakpointActivated reports a deferred breakpoint becoming active.
func (pr *Printer) OnBreakpointActivated(path string, line int) {
	pr.printf("%s breakpoint active at %s:%d\n", pr.p.ok("✓"), path, line+1)
}

// FileOpened is called when the workspace brings a file to front.
func (pr *Printer) FileOpened(path string, loc debugger.Location) {
	pr.printf("%s %s %s\n", pr.p.info("→"), pr.p.name(loc.String()), pr.p.muted(path))
}

// ExecutionLine prints the source around the 0-based line.
func (pr *Printer) ExecutionLine(path string, line int) {
	if !pr.ShowSource || !strings.HasPrefix(path, "/") {
		return
	}
	lines, err := workspace.ReadLines(path, line-sourceContext, line+sourceContext+1)
	if err != nil || len(lines) == 0 {
		return
	}

	first := max(line-sourceContext, 0)
	var b strings.Builder
	for i, text := range lines {
		n := first + i
		gutter := fmt.Sprintf("%5d  ", n+1)
		if n == line {
			b.WriteString(pr.p.current("→" + gutter[1:] + text))
		} else {
			b.WriteString(pr.p.muted(gutter) + text)
		}
		b.WriteByte('\n')
	}
	pr.printf("%s", b.String())
}

func (pr *Printer) ExecutionLineCleared() {}

// DebugPanelShown marks a suspension at a breakpoint.
func (pr *Printer) DebugPanelShown() {
	pr.printf("%s\n", pr.p.warn("● suspended at breakpoint"))
}

// PrintVariables renders a variable tree, indenting nested values.
func PrintVariables(w io.Writer, vars []debugger.Variable, color bool) {
	p := palette{color: color}
	printVariables(w, p, vars, 0)
}

func printVariables(w io.Writer, p palette, vars []debugger.Variable, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, v := range vars {
		typ := ""
		if v.Type != "" {
			typ = " " + p.muted("("+v.Type+")")
		}
		fmt.Fprintf(w, "%s%s = %s%s\n", indent, p.name(v.Name), v.Value, typ)
		printVariables(w, p, v.Variables, depth+1)
	}
}

// PrintBreakpoints renders the breakpoint list.
func PrintBreakpoints(w io.Writer, bps []debugger.Breakpoint, color bool) {
	p := palette{color: color}
	if len(bps) == 0 {
		fmt.Fprintln(w, p.muted("no breakpoints"))
		return
	}
	for i, bp := range bps {
		state := p.muted("deferred")
		if bp.Active {
			state = p.ok("active")
		}
		fmt.Fprintf(w, "%3d  %s:%d  %s  %s\n", i+1, bp.ResolvedName, bp.Line+1, state, p.muted(bp.File.Path))
	}
}
