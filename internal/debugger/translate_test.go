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

package debugger_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
	rdbgerrors "github.com/tombee/rdbg/pkg/errors"
)

func TestCandidatePaths(t *testing.T) {
	tests := []struct {
		name      string
		className string
		roots     []string
		want      []string
	}{
		{
			name:      "single root",
			className: "com.acme.App",
			roots:     []string{"/src/"},
			want:      []string{"/src/com/acme/App.java", "com.acme.App"},
		},
		{
			name:      "root without trailing slash",
			className: "com.acme.App",
			roots:     []string{"/proj/src/main/java", "/proj/src/test/java/"},
			want: []string{
				"/proj/src/main/java/com/acme/App.java",
				"/proj/src/test/java/com/acme/App.java",
				"com.acme.App",
			},
		},
		{
			name:      "no roots",
			className: "Main",
			want:      []string{"Main"},
		},
		{
			name:      "nested class maps to outer file",
			className: "com.acme.App$Worker",
			roots:     []string{"/src/"},
			want:      []string{"/src/com/acme/App.java", "com.acme.App$Worker"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, debugger.CandidatePaths(tt.className, tt.roots))
		})
	}
}

func events(evs ...debugger.Event) debugger.EventList {
	return debugger.EventList{Events: evs}
}

func TestBreakpointHit_OpensSourceAndFetchesFrame(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	loc := debugger.Location{ClassName: "com.acme.App", LineNumber: 42}

	h.channel.publish(t, "debugger:events:s-1", events(debugger.BreakpointHitEvent{
		Breakpoint: debugger.WireBreakpoint{Location: loc, Enabled: true},
	}))

	assert.Equal(t, 1, h.workspace.panelShown)
	require.Len(t, h.workspace.opened, 1)
	assert.Equal(t, []string{"/src/com/acme/App.java", "com.acme.App"}, h.workspace.opened[0])
	assert.Equal(t, []int{41}, h.workspace.lines)
	assert.Equal(t, 1, h.transport.count("stack_frame"))

	got, ok := h.session.ExecutionPoint()
	require.True(t, ok)
	assert.Equal(t, loc, got)

	vars := h.session.StackFrame().Variables()
	require.Len(t, vars, 2)
	assert.Equal(t, "count", vars[0].Name)
	assert.Equal(t, "args", vars[1].Name)
}

func TestStep_ActiveFileNotReopened(t *testing.T) {
	h := newHarness(t)
	h.workspace.active = "/src/com/acme/App.java"
	h.connect(t)

	h.channel.publish(t, "debugger:events:s-1", events(debugger.StepEvent{
		Location: debugger.Location{ClassName: "com.acme.App", LineNumber: 7},
	}))

	assert.Empty(t, h.workspace.opened)
	assert.Equal(t, []int{6}, h.workspace.lines)
	assert.Equal(t, 0, h.workspace.panelShown)
	assert.Equal(t, 1, h.transport.count("stack_frame"))
}

func TestStep_InvalidLineLeavesMarker(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	loc := debugger.Location{ClassName: "com.acme.App", LineNumber: 0}

	h.channel.publish(t, "debugger:events:s-1", events(debugger.StepEvent{Location: loc}))

	assert.Empty(t, h.workspace.lines)
	assert.Equal(t, 1, h.transport.count("stack_frame"))
	got, ok := h.session.ExecutionPoint()
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestStep_ResolutionFailureStillFetchesFrame(t *testing.T) {
	h := newHarness(t)
	h.workspace.openErr = true
	h.connect(t)
	loc := debugger.Location{ClassName: "java.util.ArrayList", LineNumber: 100}

	h.channel.publish(t, "debugger:events:s-1", events(debugger.StepEvent{Location: loc}))

	assert.Empty(t, h.workspace.lines)
	assert.Equal(t, 1, h.transport.count("stack_frame"))
	got, ok := h.session.ExecutionPoint()
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestActivation_EndsBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.bps.Add(ctx, debugger.Breakpoint{Line: 9, File: appJava}))
	h.connect(t)

	loc1 := debugger.Location{ClassName: "com.acme.App", LineNumber: 3}
	loc2 := debugger.Location{ClassName: "com.acme.App", LineNumber: 30}
	h.channel.publish(t, "debugger:events:s-1", events(
		debugger.StepEvent{Location: loc1},
		debugger.BreakpointActivatedEvent{Breakpoint: debugger.WireBreakpoint{
			Location: debugger.Location{ClassName: "com.acme.App", LineNumber: 10},
		}},
		debugger.StepEvent{Location: loc2},
	))

	got, ok := h.session.ExecutionPoint()
	require.True(t, ok)
	assert.Equal(t, loc1, got)
	assert.Equal(t, 1, h.transport.count("stack_frame"))
	assert.Equal(t, []string{"/src/com/acme/App.java:9", "com.acme.App:9"}, h.observer.activations)

	bps, _ := h.bps.List(ctx)
	require.Len(t, bps, 1)
	assert.True(t, bps[0].Active)
}

func TestUnknownEvent_Skipped(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	payload := json.RawMessage(`{"events":[{"type":9},{"type":2,"location":{"className":"com.acme.App","lineNumber":5}}]}`)
	for _, hd := range h.channel.handlers("debugger:events:s-1") {
		hd.HandleMessage(payload)
	}

	assert.Equal(t, 1, h.transport.count("stack_frame"))
	got, ok := h.session.ExecutionPoint()
	require.True(t, ok)
	assert.Equal(t, 5, got.LineNumber)
}

func TestMalformedEventMessage_Dropped(t *testing.T) {
	h := newHarness(t)
	h.connect(t)

	for _, hd := range h.channel.handlers("debugger:events:s-1") {
		hd.HandleMessage(json.RawMessage(`{"events":`))
	}

	assert.Zero(t, h.transport.count("stack_frame"))
	assert.True(t, h.session.IsConnected())
}

func TestStaleSessionEvents_Dropped(t *testing.T) {
	h := newHarness(t)
	h.connect(t)
	stale := h.channel.handlers("debugger:events:s-1")
	require.Len(t, stale, 1)

	require.NoError(t, h.session.Disconnect(context.Background()))
	stale[0].HandleMessage(json.RawMessage(`{"events":[{"type":2,"location":{"className":"A","lineNumber":1}}]}`))

	assert.Zero(t, h.transport.count("stack_frame"))
}

func TestPollEvents(t *testing.T) {
	h := newHarness(t)

	_, err := h.session.PollEvents(context.Background())
	require.ErrorIs(t, err, rdbgerrors.ErrNotAttached)

	h.connect(t)
	h.transport.checkEvents = events(debugger.StepEvent{Location: debugger.Location{ClassName: "com.acme.App", LineNumber: 8}})

	list, err := h.session.PollEvents(context.Background())

	require.NoError(t, err)
	assert.Len(t, list.Events, 1)
	assert.Equal(t, 1, h.transport.count("stack_frame"))
}
