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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
)

func TestDecodeEventList(t *testing.T) {
	raw := `{"events":[
		{"type":2,"location":{"className":"com.acme.App","lineNumber":12}},
		{"type":1,"breakPoint":{"location":{"className":"com.acme.App","lineNumber":42},"enabled":true}},
		{"type":3,"breakPoint":{"location":{"className":"com.acme.Util","lineNumber":7},"enabled":true}},
		{"type":7},
		{"type":2}
	]}`

	list, err := debugger.DecodeEventList([]byte(raw))
	require.NoError(t, err)
	require.Len(t, list.Events, 5)

	assert.Equal(t, debugger.StepEvent{Location: debugger.Location{ClassName: "com.acme.App", LineNumber: 12}}, list.Events[0])
	hit, ok := list.Events[1].(debugger.BreakpointHitEvent)
	require.True(t, ok)
	assert.Equal(t, 42, hit.Breakpoint.Location.LineNumber)
	assert.IsType(t, debugger.BreakpointActivatedEvent{}, list.Events[2])
	assert.Equal(t, debugger.UnknownEvent{Code: 7}, list.Events[3])
	assert.Equal(t, debugger.UnknownEvent{Code: 2}, list.Events[4])
}

func TestDecodeEventList_Malformed(t *testing.T) {
	_, err := debugger.DecodeEventList([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestEventList_MarshalRoundTrip(t *testing.T) {
	in := debugger.EventList{Events: []debugger.Event{
		debugger.StepEvent{Location: debugger.Location{ClassName: "A", LineNumber: 1}},
		debugger.BreakpointHitEvent{Breakpoint: debugger.WireBreakpoint{Location: debugger.Location{ClassName: "B", LineNumber: 2}}},
	}}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out debugger.EventList
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "step", debugger.EventStep.String())
	assert.Equal(t, "breakpoint_hit", debugger.EventBreakpointHit.String())
	assert.Equal(t, "breakpoint_activated", debugger.EventBreakpointActivated.String())
	assert.Equal(t, "unknown", debugger.EventType(99).String())
}
