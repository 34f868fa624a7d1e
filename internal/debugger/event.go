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
	"encoding/json"
	"fmt"
)

// EventType is the agent's numeric event code.
type EventType int

const (
	EventBreakpointHit       EventType = 1
	EventStep                EventType = 2
	EventBreakpointActivated EventType = 3
)

// String returns a short name for logs and metric labels.
func (t EventType) String() string {
	switch t {
	case EventBreakpointHit:
		return "breakpoint_hit"
	case EventStep:
		return "step"
	case EventBreakpointActivated:
		return "breakpoint_activated"
	default:
		return "unknown"
	}
}

// Event is one element of an EventList. The concrete types are StepEvent,
// BreakpointHitEvent, BreakpointActivatedEvent and UnknownEvent.
type Event interface {
	Type() EventType
}

// StepEvent reports that a step command finished.
type StepEvent struct {
	Location Location
}

// Type implements Event.
func (StepEvent) Type() EventType { return EventStep }

// BreakpointHitEvent reports that execution stopped on a breakpoint.
type BreakpointHitEvent struct {
	Breakpoint WireBreakpoint
}

// Type implements Event.
func (BreakpointHitEvent) Type() EventType { return EventBreakpointHit }

// BreakpointActivatedEvent reports that a deferred breakpoint was installed
// once its class loaded.
type BreakpointActivatedEvent struct {
	Breakpoint WireBreakpoint
}

// Type implements Event.
func (BreakpointActivatedEvent) Type() EventType { return EventBreakpointActivated }

// UnknownEvent carries a type code this client does not understand.
type UnknownEvent struct {
	Code int
}

// Type implements Event.
func (e UnknownEvent) Type() EventType { return EventType(e.Code) }

// EventList is an ordered batch of events.
type EventList struct {
	Events []Event
}

type wireEvent struct {
	Type       int             `json:"type"`
	Location   *Location       `json:"location,omitempty"`
	Breakpoint *WireBreakpoint `json:"breakPoint,omitempty"`
}

type wireEventList struct {
	Events []wireEvent `json:"events"`
}

// UnmarshalJSON decodes {"events":[...]}. Elements with an unrecognised
// type, or missing their payload, become UnknownEvent.
func (l *EventList) UnmarshalJSON(data []byte) error {
	var w wireEventList
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	l.Events = make([]Event, 0, len(w.Events))
	for _, we := range w.Events {
		l.Events = append(l.Events, decodeEvent(we))
	}
	return nil
}

func decodeEvent(we wireEvent) Event {
	switch EventType(we.Type) {
	case EventStep:
		if we.Location != nil {
			return StepEvent{Location: *we.Location}
		}
	case EventBreakpointHit:
		if we.Breakpoint != nil {
			return BreakpointHitEvent{Breakpoint: *we.Breakpoint}
		}
	case EventBreakpointActivated:
		if we.Breakpoint != nil {
			return BreakpointActivatedEvent{Breakpoint: *we.Breakpoint}
		}
	}
	return UnknownEvent{Code: we.Type}
}

// MarshalJSON encodes the list in the agent's wire form.
func (l EventList) MarshalJSON() ([]byte, error) {
	w := wireEventList{Events: make([]wireEvent, 0, len(l.Events))}
	for _, e := range l.Events {
		switch ev := e.(type) {
		case StepEvent:
			loc := ev.Location
			w.Events = append(w.Events, wireEvent{Type: int(EventStep), Location: &loc})
		case BreakpointHitEvent:
			bp := ev.Breakpoint
			w.Events = append(w.Events, wireEvent{Type: int(EventBreakpointHit), Breakpoint: &bp})
		case BreakpointActivatedEvent:
			bp := ev.Breakpoint
			w.Events = append(w.Events, wireEvent{Type: int(EventBreakpointActivated), Breakpoint: &bp})
		case UnknownEvent:
			w.Events = append(w.Events, wireEvent{Type: ev.Code})
		default:
			return nil, fmt.Errorf("unsupported event %T", e)
		}
	}
	return json.Marshal(w)
}

// DecodeEventList decodes a raw event channel message.
func DecodeEventList(data []byte) (EventList, error) {
	var l EventList
	if err := json.Unmarshal(data, &l); err != nil {
		return EventList{}, fmt.Errorf("decoding event list: %w", err)
	}
	return l, nil
}
