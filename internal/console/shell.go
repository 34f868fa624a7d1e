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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/jq"
	"github.com/tombee/rdbg/internal/workspace"
	"github.com/tombee/rdbg/pkg/errors"
)

// Command names accepted by the shell, after alias resolution.
const (
	CmdStepInto = "into"
	CmdStepOver = "over"
	CmdStepOut  = "out"
	CmdResume   = "resume"
	CmdBreak    = "break"
	CmdDelete   = "delete"
	CmdClear    = "clear"
	CmdList     = "breakpoints"
	CmdPrint    = "print"
	CmdSet      = "set"
	CmdVars     = "vars"
	CmdExpand   = "expand"
	CmdWhere    = "where"
	CmdPoll     = "poll"
	CmdStatus   = "status"
	CmdDetach   = "detach"
	CmdQuit     = "quit"
	CmdHelp     = "help"
)

var aliases = map[string]string{
	"s": CmdStepInto, "step": CmdStepInto, "into": CmdStepInto,
	"n": CmdStepOver, "next": CmdStepOver, "over": CmdStepOver,
	"o": CmdStepOut, "out": CmdStepOut, "finish": CmdStepOut,
	"c": CmdResume, "continue": CmdResume, "resume": CmdResume,
	"b": CmdBreak, "break": CmdBreak,
	"d": CmdDelete, "delete": CmdDelete,
	"clear": CmdClear,
	"bl": CmdList, "breakpoints": CmdList,
	"p": CmdPrint, "print": CmdPrint, "eval": CmdPrint,
	"set": CmdSet,
	"v": CmdVars, "vars": CmdVars, "locals": CmdVars,
	"x": CmdExpand, "expand": CmdExpand,
	"w": CmdWhere, "where": CmdWhere,
	"poll": CmdPoll,
	"status": CmdStatus,
	"detach": CmdDetach,
	"q": CmdQuit, "quit": CmdQuit, "exit": CmdQuit,
	"h": CmdHelp, "help": CmdHelp, "?": CmdHelp,
}

// Command is a parsed shell line.
type Command struct {
	Name string
	Args []string
	// Rest is the unsplit text after the command word.
	Rest string
}

// ParseCommand parses one input line.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("empty command")
	}
	word, rest, _ := strings.Cut(line, " ")
	name, ok := aliases[strings.ToLower(word)]
	if !ok {
		return Command{}, fmt.Errorf("unknown command: %s (type 'help' for commands)", word)
	}
	rest = strings.TrimSpace(rest)
	cmd := Command{Name: name, Args: strings.Fields(rest), Rest: rest}

	switch name {
	case CmdBreak, CmdDelete:
		if len(cmd.Args) != 1 {
			return Command{}, fmt.Errorf("%s requires <file>:<line>", name)
		}
	case CmdPrint:
		if rest == "" {
			return Command{}, fmt.Errorf("print requires an expression")
		}
	case CmdSet:
		if len(cmd.Args) < 2 {
			return Command{}, fmt.Errorf("set requires <variable-path> <expression>")
		}
	case CmdExpand:
		if len(cmd.Args) != 1 {
			return Command{}, fmt.Errorf("expand requires a variable name")
		}
	}
	return cmd, nil
}

// Shell is a line-oriented debugger prompt bound to one session.
type Shell struct {
	session   *debugger.Session
	workspace *workspace.Workspace
	in        io.Reader
	out       io.Writer
	color     bool
}

// NewShell creates a shell. ws may be nil, in which case break and delete
// only accept absolute paths.
func NewShell(session *debugger.Session, ws *workspace.Workspace, in io.Reader, out io.Writer) *Shell {
	return &Shell{session: session, workspace: ws, in: in, out: out, color: ColorEnabled(out)}
}

// Run reads commands until quit, detach, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		fmt.Fprint(s.out, "rdbg> ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				if err := <-scanErr; err != nil {
					return fmt.Errorf("input error: %w", err)
				}
				return nil
			}
			line = l
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}

		quit, err := s.Execute(ctx, cmd)
		if err != nil {
			s.printError(err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Shell) printError(err error) {
	msg, suggestion := errors.UserMessage(err)
	p := palette{color: s.color}
	fmt.Fprintf(s.out, "%s %s\n", p.err("Error:"), msg)
	if suggestion != "" {
		fmt.Fprintf(s.out, "  %s\n", p.muted(suggestion))
	}
}

// Execute runs one command. quit is true when the shell should exit.
func (s *Shell) Execute(ctx context.Context, cmd Command) (quit bool, err error) {
	switch cmd.Name {
	case CmdStepInto:
		return false, s.session.StepInto(ctx)
	case CmdStepOver:
		return false, s.session.StepOver(ctx)
	case CmdStepOut:
		return false, s.session.StepOut(ctx)
	case CmdResume:
		return false, s.session.Resume(ctx)

	case CmdBreak, CmdDelete:
		f, line, err := s.locate(cmd.Args[0])
		if err != nil {
			return false, err
		}
		if cmd.Name == CmdBreak {
			err = s.session.AddBreakpoint(ctx, f, line)
		} else {
			err = s.session.DeleteBreakpoint(ctx, f, line)
		}
		if errors.IsNotAttached(err) {
			fmt.Fprintln(s.out, "not attached; change recorded locally")
			return false, nil
		}
		return false, err

	case CmdClear:
		return false, s.session.DeleteAllBreakpoints(ctx)

	case CmdList:
		bps, err := s.session.Breakpoints(ctx)
		if err != nil {
			return false, err
		}
		PrintBreakpoints(s.out, bps, s.color)
		return false, nil

	case CmdPrint:
		result, err := s.session.EvaluateExpression(ctx, cmd.Rest)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, result)
		return false, nil

	case CmdSet:
		path := cmd.Args[0]
		value := strings.TrimSpace(strings.TrimPrefix(cmd.Rest, path))
		return false, s.session.ChangeVariableValue(ctx, debugger.VariablePath{Path: strings.Split(path, ".")}, value)

	case CmdVars:
		return false, s.vars(ctx, cmd.Rest)

	case CmdExpand:
		return false, s.expand(ctx, cmd.Args[0])

	case CmdWhere:
		loc, ok := s.session.ExecutionPoint()
		if !ok {
			fmt.Fprintln(s.out, "not suspended")
			return false, nil
		}
		fmt.Fprintln(s.out, loc.String())
		return false, nil

	case CmdPoll:
		list, err := s.session.PollEvents(ctx)
		if err != nil {
			return false, err
		}
		if len(list.Events) == 0 {
			fmt.Fprintln(s.out, "no pending events")
		}
		return false, nil

	case CmdStatus:
		s.status()
		return false, nil

	case CmdDetach:
		return true, s.session.Disconnect(ctx)

	case CmdQuit:
		return true, nil

	case CmdHelp:
		s.showHelp()
		return false, nil
	}
	return false, fmt.Errorf("unhandled command %q", cmd.Name)
}

func (s *Shell) locate(arg string) (debugger.File, int, error) {
	if s.workspace != nil {
		return s.workspace.Locate(arg)
	}
	i := strings.LastIndexByte(arg, ':')
	var line int
	if i <= 0 || !strings.HasPrefix(arg, "/") {
		return debugger.File{}, 0, &errors.ValidationError{Field: "location", Message: "expected </absolute/path>:<line>"}
	}
	if _, err := fmt.Sscanf(arg[i+1:], "%d", &line); err != nil || line < 1 {
		return debugger.File{}, 0, &errors.ValidationError{Field: "line", Message: "line must be a positive number"}
	}
	return debugger.File{Path: arg[:i]}, line - 1, nil
}

func (s *Shell) vars(ctx context.Context, filter string) error {
	frame, err := s.session.RefreshStackFrame(ctx)
	if err != nil {
		return err
	}
	if filter != "" {
		results, err := jq.Apply(ctx, filter, frame)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintln(s.out, r)
		}
		return nil
	}

	p := palette{color: s.color}
	fmt.Fprintln(s.out, p.info("fields"))
	PrintVariables(s.out, frame.Fields, s.color)
	fmt.Fprintln(s.out, p.info("locals"))
	PrintVariables(s.out, frame.Locals, s.color)
	return nil
}

func (s *Shell) expand(ctx context.Context, name string) error {
	for _, v := range s.session.StackFrame().Variables() {
		if v.Name != name {
			continue
		}
		value, err := s.session.GetValue(ctx, v)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s = %s\n", name, value.Value)
		PrintVariables(s.out, value.Variables, s.color)
		return nil
	}
	return &errors.NotFoundError{Resource: "variable", ID: name}
}

func (s *Shell) status() {
	p := palette{color: s.color}
	h, ok := debugger.Active(s.session.Handle())
	if !ok {
		fmt.Fprintf(s.out, "%s\n", p.muted(s.session.State().String()))
		return
	}
	fmt.Fprintf(s.out, "%s %s:%d  session %s\n", p.ok(s.session.State().String()), h.Host, h.Port, h.ID)
	if info := s.session.VMInfo(); strings.TrimSpace(info) != "" {
		fmt.Fprintf(s.out, "  vm: %s\n", info)
	}
}

func (s *Shell) showHelp() {
	fmt.Fprint(s.out, `
Debugger Commands:
  step, s               Step into the next call
  next, n               Step over the current line
  out, o                Step out of the current method
  continue, c           Resume until the next breakpoint
  break, b <file>:<n>   Add a breakpoint (file path or class name)
  delete, d <file>:<n>  Delete a breakpoint
  clear                 Delete all breakpoints
  breakpoints, bl       List breakpoints
  print, p <expr>       Evaluate an expression in the current frame
  set <path> <expr>     Assign a new value to a variable
  vars, v [jq filter]   Show fields and locals of the current frame
  expand, x <name>      Expand a variable one level
  where, w              Show the current execution point
  poll                  Fetch pending events from the agent
  status                Show the connection state
  detach                Disconnect from the VM and exit
  quit, q               Exit, leaving the session attached
  help, h, ?            Show this help message

`)
}
