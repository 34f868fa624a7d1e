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
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/internal/storage"
)

// stubTransport answers every command successfully and records its name.
type stubTransport struct {
	mu    sync.Mutex
	calls []string
	frame debugger.StackFrame
}

func (t *stubTransport) record(name string) {
	t.mu.Lock()
	t.calls = append(t.calls, name)
	t.mu.Unlock()
}

func (t *stubTransport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *stubTransport) Connect(_ context.Context, req debugger.ConnectRequest) (debugger.ActiveHandle, error) {
	t.record("connect")
	return debugger.ActiveHandle{ID: "s-1", Host: req.Host, Port: req.Port, VMName: "OpenJDK", VMVersion: "21"}, nil
}
func (t *stubTransport) Disconnect(context.Context, string) error { t.record("disconnect"); return nil }
func (t *stubTransport) CheckEvents(context.Context, string) (debugger.EventList, error) {
	t.record("events")
	return debugger.EventList{}, nil
}
func (t *stubTransport) AddBreakpoint(context.Context, string, debugger.WireBreakpoint) error {
	t.record("add")
	return nil
}
func (t *stubTransport) DeleteBreakpoint(context.Context, string, debugger.WireBreakpoint) error {
	t.record("delete")
	return nil
}
func (t *stubTransport) DeleteAllBreakpoints(context.Context, string) error {
	t.record("delete_all")
	return nil
}
func (t *stubTransport) StepInto(context.Context, string) error { t.record("into"); return nil }
func (t *stubTransport) StepOver(context.Context, string) error { t.record("over"); return nil }
func (t *stubTransport) StepOut(context.Context, string) error  { t.record("out"); return nil }
func (t *stubTransport) Resume(context.Context, string) error   { t.record("resume"); return nil }
func (t *stubTransport) EvaluateExpression(_ context.Context, _ string, expr string) (string, error) {
	t.record("eval")
	return "result of " + expr, nil
}
func (t *stubTransport) SetValue(context.Context, string, debugger.UpdateVariableRequest) error {
	t.record("set")
	return nil
}
func (t *stubTransport) StackFrameDump(context.Context, string) (debugger.StackFrame, error) {
	t.record("dump")
	return t.frame, nil
}
func (t *stubTransport) GetValue(_ context.Context, _ string, v debugger.Variable) (debugger.Value, error) {
	t.record("value")
	return debugger.Value{Value: v.Value, Variables: []debugger.Variable{{Name: "size", Value: "2"}}}, nil
}

func newShell(t *testing.T, input string) (*Shell, *stubTransport, *bytes.Buffer) {
	t.Helper()
	transport := &stubTransport{frame: debugger.StackFrame{
		Fields: []debugger.Variable{{Name: "count", Value: "3", Type: "int"}},
		Locals: []debugger.Variable{{Name: "items", Value: "ArrayList(2)", Type: "java.util.List"}},
	}}
	store := storage.NewMemoryStore()
	s, err := debugger.New(debugger.Config{
		Transport:   transport,
		Store:       store,
		Breakpoints: store,
		Logger:      log.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var out bytes.Buffer
	return NewShell(s, nil, strings.NewReader(input), &out), transport, &out
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"s", CmdStepInto, false},
		{"next", CmdStepOver, false},
		{"finish", CmdStepOut, false},
		{"C", CmdResume, false},
		{"b App.java:3", CmdBreak, false},
		{"b", "", true},
		{"p a + b", CmdPrint, false},
		{"print", "", true},
		{"set x 1", CmdSet, false},
		{"set x", "", true},
		{"vars .fields", CmdVars, false},
		{"x items", CmdExpand, false},
		{"q", CmdQuit, false},
		{"bogus", "", true},
		{"   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, err := ParseCommand(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Name)
		})
	}
}

func TestParseCommandKeepsExpressionText(t *testing.T) {
	cmd, err := ParseCommand("p  list.get(0) + 1 ")
	require.NoError(t, err)
	assert.Equal(t, "list.get(0) + 1", cmd.Rest)
}

func TestShellRunsCommands(t *testing.T) {
	sh, transport, out := newShell(t, "n\ns\no\nc\np a + b\nset x.y 42\nq\nresume\n")
	require.NoError(t, sh.session.Connect(context.Background(), "vm", 5005))

	require.NoError(t, sh.Run(context.Background()))

	assert.Equal(t, []string{"connect", "over", "into", "out", "resume", "eval", "set", "dump"}, transport.Calls())
	assert.Contains(t, out.String(), "result of a + b")
}

func TestShellNotAttached(t *testing.T) {
	sh, transport, out := newShell(t, "n\nb /src/App.java:3\n")

	require.NoError(t, sh.Run(context.Background()))

	assert.Empty(t, transport.Calls())
	assert.Contains(t, out.String(), "Error:")
	assert.Contains(t, out.String(), "not attached; change recorded locally")

	bps, err := sh.session.Breakpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, bps, 1)
	assert.Equal(t, 2, bps[0].Line)
	assert.False(t, bps[0].Active)
}

func TestShellVars(t *testing.T) {
	sh, _, out := newShell(t, "")
	require.NoError(t, sh.session.Connect(context.Background(), "vm", 5005))

	_, err := sh.Execute(context.Background(), Command{Name: CmdVars})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "count = 3 (int)")
	assert.Contains(t, out.String(), "items = ArrayList(2) (java.util.List)")

	out.Reset()
	_, err = sh.Execute(context.Background(), Command{Name: CmdVars, Rest: ".fields[].name"})
	require.NoError(t, err)
	assert.Equal(t, "count\n", out.String())
}

func TestShellExpand(t *testing.T) {
	sh, _, out := newShell(t, "")
	require.NoError(t, sh.session.Connect(context.Background(), "vm", 5005))
	_, err := sh.session.RefreshStackFrame(context.Background())
	require.NoError(t, err)

	_, err = sh.Execute(context.Background(), Command{Name: CmdExpand, Args: []string{"items"}})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "items = ArrayList(2)")
	assert.Contains(t, out.String(), "  size = 2")

	_, err = sh.Execute(context.Background(), Command{Name: CmdExpand, Args: []string{"missing"}})
	assert.Error(t, err)
}

func TestShellDetach(t *testing.T) {
	sh, transport, _ := newShell(t, "detach\nn\n")
	require.NoError(t, sh.session.Connect(context.Background(), "vm", 5005))

	require.NoError(t, sh.Run(context.Background()))
	sh.session.Close()

	assert.False(t, sh.session.IsConnected())
	assert.Contains(t, transport.Calls(), "disconnect")
	assert.NotContains(t, transport.Calls(), "over")
}

func TestShellStatus(t *testing.T) {
	sh, _, out := newShell(t, "")
	_, err := sh.Execute(context.Background(), Command{Name: CmdStatus})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "disconnected")

	out.Reset()
	require.NoError(t, sh.session.Connect(context.Background(), "vm", 5005))
	_, err = sh.Execute(context.Background(), Command{Name: CmdStatus})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "vm:5005")
	assert.Contains(t, out.String(), "OpenJDK 21")
}
