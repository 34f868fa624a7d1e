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
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// eventsHandler receives the events topic of one session.
type eventsHandler struct {
	s  *Session
	id string
}

func (h *eventsHandler) HandleMessage(payload json.RawMessage) {
	list, err := DecodeEventList(payload)
	if err != nil {
		h.s.logger.Warn("dropping malformed event message", log.SessionIDKey, h.id, log.Error(err))
		return
	}
	h.s.processEvents(context.Background(), h.id, list)
}

func (h *eventsHandler) HandleError(err error) {
	if errors.IsSessionNotFound(err) {
		h.s.forceDisconnect(h.id, "events_channel")
		return
	}
	h.s.logger.Warn("events channel error", log.SessionIDKey, h.id, log.Error(err))
}

// disconnectHandler receives the disconnect topic of one session. Any
// message on it means the agent closed the session.
type disconnectHandler struct {
	s  *Session
	id string
}

func (h *disconnectHandler) HandleMessage(json.RawMessage) {
	h.s.forceDisconnect(h.id, "remote_close")
}

func (h *disconnectHandler) HandleError(err error) {
	h.s.logger.Warn("disconnect channel error", log.SessionIDKey, h.id, log.Error(err))
}

// PollEvents asks the agent for pending events and processes them as if
// they had arrived on the events topic. It is the only event source for a
// Session without an EventChannel.
func (s *Session) PollEvents(ctx context.Context) (EventList, error) {
	h, ok := s.activeHandle()
	if !ok {
		return EventList{}, s.notAttached("check_events")
	}

	spanCtx, span := s.startCommand(ctx, "check_events", h)
	list, err := s.transport.CheckEvents(spanCtx, h.ID)
	if err != nil {
		s.commandFailed(h, "check_events", span, err)
		span.End()
		return EventList{}, err
	}
	recordCommand("check_events", outcomeSuccess)
	span.End()

	s.processEvents(ctx, h.ID, list)
	return list, nil
}

// processEvents handles one batch in order. A batch for a session that is
// no longer current is dropped. An activation event ends the batch.
func (s *Session) processEvents(ctx context.Context, id string, list EventList) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	h, ok := s.isCurrent(id)
	if !ok {
		s.logger.Debug("dropping events for stale session", log.SessionIDKey, id)
		return
	}

	for _, ev := range list.Events {
		recordEvent(ev.Type())
		switch e := ev.(type) {
		case StepEvent:
			s.moveTo(ctx, h, e.Location)
		case BreakpointHitEvent:
			s.workspace.ShowDebugPanel()
			s.moveTo(ctx, h, e.Breakpoint.Location)
		case BreakpointActivatedEvent:
			s.activate(ctx, e.Breakpoint)
			return
		default:
			s.logger.Warn("unknown debugger event", log.EventTypeKey, int(ev.Type()), log.SessionIDKey, id)
		}
	}
}

// moveTo records loc as the execution point, brings its source to front,
// sets the marker and refreshes the stack frame.
func (s *Session) moveTo(ctx context.Context, h ActiveHandle, loc Location) {
	s.mu.Lock()
	s.location = &loc
	s.mu.Unlock()

	candidates := CandidatePaths(loc.ClassName, s.workspace.SourceRoots())

	visible := slices.Contains(candidates, s.workspace.ActiveFile())
	if !visible {
		if _, err := s.workspace.OpenFile(ctx, loc, candidates); err != nil {
			s.logger.Warn("cannot open source for location", "location", loc.String(), log.Error(err))
		} else {
			visible = true
		}
	}
	switch {
	case loc.LineNumber < 1:
		s.logger.Warn("event location has no valid line", "location", loc.String(), log.SessionIDKey, h.ID)
	case visible:
		s.workspace.SetExecutionLine(loc.LineNumber - 1)
	}

	if _, err := s.fetchStackFrame(ctx, h); err != nil {
		s.logger.Debug("stack frame unavailable after event", log.SessionIDKey, h.ID, log.Error(err))
	}
}

// activate marks every candidate breakpoint for the class as active.
func (s *Session) activate(ctx context.Context, bp WireBreakpoint) {
	line := bp.Location.LineNumber - 1
	for _, p := range CandidatePaths(bp.Location.ClassName, s.workspace.SourceRoots()) {
		if err := s.breakpoints.SetActive(ctx, p, line); err != nil {
			s.logger.Warn("failed to mark breakpoint active", "path", p, "line", line, log.Error(err))
		}
		s.observers.breakpointActivated(p, line)
	}
}

// CandidatePaths returns the source paths that may hold className: one per
// source root, followed by the raw class name. Nested class suffixes
// ("Outer$Inner") map to the outer class file.
func CandidatePaths(className string, roots []string) []string {
	outer := className
	if i := strings.IndexByte(outer, '$'); i >= 0 {
		outer = outer[:i]
	}
	suffix := strings.ReplaceAll(outer, ".", "/") + ".java"

	out := make([]string, 0, len(roots)+1)
	for _, root := range roots {
		if !strings.HasSuffix(root, "/") {
			root += "/"
		}
		out = append(out, root+suffix)
	}
	return append(out, className)
}
