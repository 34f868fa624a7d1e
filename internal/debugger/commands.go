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

	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// AddBreakpoint sets a breakpoint at the 0-based line of f. When no session
// is attached the breakpoint is recorded as inactive, observers are still
// notified, and ErrNotAttached is returned.
func (s *Session) AddBreakpoint(ctx context.Context, f File, line int) error {
	if line < 0 {
		return &errors.ValidationError{Field: "line", Message: "must not be negative"}
	}
	bp := Breakpoint{
		Kind:         KindBreakpoint,
		Line:         line,
		File:         f,
		ResolvedName: s.resolvers.Resolve(f),
	}

	h, ok := s.activeHandle()
	if !ok {
		if err := s.breakpoints.Add(ctx, bp); err != nil {
			return errors.Wrap(err, "recording deferred breakpoint")
		}
		s.observers.breakpointAdded()
		return s.notAttached("add_breakpoint")
	}

	ctx, span := s.startCommand(ctx, "add_breakpoint", h)
	defer span.End()

	if err := s.transport.AddBreakpoint(ctx, h.ID, s.toWire(f, line)); err != nil {
		s.commandFailed(h, "add_breakpoint", span, err)
		return err
	}
	recordCommand("add_breakpoint", outcomeSuccess)

	bp.Active = true
	if err := s.breakpoints.Add(ctx, bp); err != nil {
		return errors.Wrap(err, "recording breakpoint")
	}
	s.observers.breakpointAdded()
	return nil
}

// DeleteBreakpoint removes the breakpoint at the 0-based line of f. When no
// session is attached it is removed locally, observers are notified, and
// ErrNotAttached is returned.
func (s *Session) DeleteBreakpoint(ctx context.Context, f File, line int) error {
	h, ok := s.activeHandle()
	if !ok {
		if err := s.breakpoints.Delete(ctx, f.Path, line); err != nil {
			return errors.Wrap(err, "removing breakpoint")
		}
		s.observers.breakpointDeleted()
		return s.notAttached("delete_breakpoint")
	}

	ctx, span := s.startCommand(ctx, "delete_breakpoint", h)
	defer span.End()

	if err := s.transport.DeleteBreakpoint(ctx, h.ID, s.toWire(f, line)); err != nil {
		s.commandFailed(h, "delete_breakpoint", span, err)
		return err
	}
	recordCommand("delete_breakpoint", outcomeSuccess)

	if err := s.breakpoints.Delete(ctx, f.Path, line); err != nil {
		return errors.Wrap(err, "removing breakpoint")
	}
	s.observers.breakpointDeleted()
	return nil
}

// DeleteAllBreakpoints clears every breakpoint. When no session is attached
// only the local list is cleared, and no error is returned.
func (s *Session) DeleteAllBreakpoints(ctx context.Context) error {
	h, ok := s.activeHandle()
	if !ok {
		if err := s.breakpoints.Clear(ctx); err != nil {
			return errors.Wrap(err, "clearing breakpoints")
		}
		s.observers.allBreakpointsDeleted()
		return nil
	}

	ctx, span := s.startCommand(ctx, "delete_all_breakpoints", h)
	defer span.End()

	if err := s.transport.DeleteAllBreakpoints(ctx, h.ID); err != nil {
		s.commandFailed(h, "delete_all_breakpoints", span, err)
		return err
	}
	recordCommand("delete_all_breakpoints", outcomeSuccess)

	if err := s.breakpoints.Clear(ctx); err != nil {
		return errors.Wrap(err, "clearing breakpoints")
	}
	s.observers.allBreakpointsDeleted()
	return nil
}

// Breakpoints returns the durable breakpoint list with display names
// resolved against the current resolvers.
func (s *Session) Breakpoints(ctx context.Context) ([]Breakpoint, error) {
	bps, err := s.breakpoints.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bps {
		bps[i].ResolvedName = s.resolvers.Resolve(bps[i].File)
	}
	return bps, nil
}

// StepInto steps into the next call.
func (s *Session) StepInto(ctx context.Context) error {
	return s.step(ctx, "step_into", s.transport.StepInto, func(o Observer) { o.OnStepInto() })
}

// StepOver steps over the next line.
func (s *Session) StepOver(ctx context.Context) error {
	return s.step(ctx, "step_over", s.transport.StepOver, func(o Observer) { o.OnStepOver() })
}

// StepOut runs until the current method returns.
func (s *Session) StepOut(ctx context.Context) error {
	return s.step(ctx, "step_out", s.transport.StepOut, func(o Observer) { o.OnStepOut() })
}

// Resume continues execution.
func (s *Session) Resume(ctx context.Context) error {
	return s.step(ctx, "resume", s.transport.Resume, func(o Observer) { o.OnResume() })
}

func (s *Session) step(ctx context.Context, command string, call func(context.Context, string) error, notify func(Observer)) error {
	h, ok := s.activeHandle()
	if !ok {
		return s.notAttached(command)
	}

	ctx, span := s.startCommand(ctx, command, h)
	defer span.End()

	s.mu.Lock()
	s.location = nil
	s.mu.Unlock()
	s.workspace.ClearExecutionLine()

	if err := call(ctx, h.ID); err != nil {
		s.commandFailed(h, command, span, err)
		return err
	}
	recordCommand(command, outcomeSuccess)
	s.observers.notify(command, notify)
	return nil
}

// EvaluateExpression evaluates expr in the current frame.
func (s *Session) EvaluateExpression(ctx context.Context, expr string) (string, error) {
	h, ok := s.activeHandle()
	if !ok {
		return "", s.notAttached("evaluate")
	}

	ctx, span := s.startCommand(ctx, "evaluate", h)
	defer span.End()

	result, err := s.transport.EvaluateExpression(ctx, h.ID, expr)
	if err != nil {
		s.commandFailed(h, "evaluate", span, err)
		return "", err
	}
	recordCommand("evaluate", outcomeSuccess)
	return result, nil
}

// ChangeVariableValue assigns value to the variable at path. On success the
// stack frame is refreshed exactly once.
func (s *Session) ChangeVariableValue(ctx context.Context, path VariablePath, value string) error {
	h, ok := s.activeHandle()
	if !ok {
		return s.notAttached("set_value")
	}

	ctx, span := s.startCommand(ctx, "set_value", h)
	defer span.End()

	req := UpdateVariableRequest{VariablePath: path, Expression: value}
	if err := s.transport.SetValue(ctx, h.ID, req); err != nil {
		s.commandFailed(h, "set_value", span, err)
		return err
	}
	recordCommand("set_value", outcomeSuccess)

	if _, err := s.fetchStackFrame(ctx, h); err != nil {
		s.logger.Warn("failed to refresh stack frame", log.SessionIDKey, h.ID, log.Error(err))
	}
	return nil
}

// GetValue expands v, returning its children.
func (s *Session) GetValue(ctx context.Context, v Variable) (Value, error) {
	h, ok := s.activeHandle()
	if !ok {
		return Value{}, s.notAttached("get_value")
	}

	ctx, span := s.startCommand(ctx, "get_value", h)
	defer span.End()

	val, err := s.transport.GetValue(ctx, h.ID, v)
	if err != nil {
		s.commandFailed(h, "get_value", span, err)
		return Value{}, err
	}
	recordCommand("get_value", outcomeSuccess)
	return val, nil
}

// RefreshStackFrame fetches the current frame and publishes it to
// StackFrameObservers.
func (s *Session) RefreshStackFrame(ctx context.Context) (StackFrame, error) {
	h, ok := s.activeHandle()
	if !ok {
		return StackFrame{}, s.notAttached("stack_frame")
	}
	return s.fetchStackFrame(ctx, h)
}

func (s *Session) fetchStackFrame(ctx context.Context, h ActiveHandle) (StackFrame, error) {
	ctx, span := s.startCommand(ctx, "stack_frame", h)
	defer span.End()

	frame, err := s.transport.StackFrameDump(ctx, h.ID)
	if err != nil {
		s.commandFailed(h, "stack_frame", span, err)
		return StackFrame{}, err
	}
	recordCommand("stack_frame", outcomeSuccess)

	s.mu.Lock()
	if current, ok := Active(s.handle); ok && current.ID == h.ID {
		s.frame = frame
	}
	s.mu.Unlock()

	s.observers.stackFrame(frame)
	return frame, nil
}
