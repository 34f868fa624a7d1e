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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
)

func TestPrinterObserverOutput(t *testing.T) {
	var buf bytes.Buffer
	pr := NewPrinter(&buf)

	pr.OnConnected("vm", 5005)
	pr.OnBreakpointActivated("/src/App.java", 9)
	pr.OnDisconnected("vm", 5005)

	out := buf.String()
	assert.Contains(t, out, "connected to vm:5005")
	assert.Contains(t, out, "breakpoint active at /src/App.java:10")
	assert.Contains(t, out, "disconnected from vm:5005")
	assert.NotContains(t, out, "\x1b[", "no escape codes for a non-terminal writer")
}

func TestPrinterExecutionLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "App.java")
	src := "line1\nline2\nline3\nline4\nline5\nline6\nline7\nline8\nline9\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	var buf bytes.Buffer
	pr := NewPrinter(&buf)
	pr.ExecutionLine(path, 4)

	out := buf.String()
	assert.Contains(t, out, "→   5  line5")
	assert.Contains(t, out, "    2  line2")
	assert.Contains(t, out, "    8  line8")
	assert.NotContains(t, out, "line1")
	assert.NotContains(t, out, "line9")
}

func TestPrinterExecutionLineWithoutSource(t *testing.T) {
	var buf bytes.Buffer
	pr := NewPrinter(&buf)
	pr.ShowSource = false
	pr.ExecutionLine("/does/not/matter.java", 3)
	pr.ShowSource = true
	pr.ExecutionLine("com/example/App.java", 3)
	assert.Empty(t, buf.String())
}

func TestPrintVariablesNested(t *testing.T) {
	var buf bytes.Buffer
	PrintVariables(&buf, []debugger.Variable{{
		Name:  "user",
		Value: "User@12",
		Type:  "com.example.User",
		Variables: []debugger.Variable{
			{Name: "name", Value: `"ada"`, Type: "String"},
		},
	}}, false)

	assert.Equal(t, "user = User@12 (com.example.User)\n  name = \"ada\" (String)\n", buf.String())
}

func TestPrintBreakpoints(t *testing.T) {
	var buf bytes.Buffer
	PrintBreakpoints(&buf, nil, false)
	assert.Equal(t, "no breakpoints\n", buf.String())

	buf.Reset()
	PrintBreakpoints(&buf, []debugger.Breakpoint{
		{ResolvedName: "com.example.App", Line: 9, Active: true, File: debugger.File{Path: "/src/com/example/App.java"}},
		{ResolvedName: "com.example.Util", Line: 0, File: debugger.File{Path: "/src/com/example/Util.java"}},
	}, false)

	out := buf.String()
	assert.Contains(t, out, "  1  com.example.App:10  active  /src/com/example/App.java")
	assert.Contains(t, out, "  2  com.example.Util:1  deferred  /src/com/example/Util.java")
}
