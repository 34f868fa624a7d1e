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

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

var _ debugger.CommandTransport = (*Client)(nil)

func sessionPath(prefix, id string) string {
	return prefix + "/" + url.PathEscape(id)
}

// Connect attaches the agent to the VM at req.Host:req.Port.
func (c *Client) Connect(ctx context.Context, req debugger.ConnectRequest) (debugger.ActiveHandle, error) {
	var info debugger.ActiveHandle
	q := url.Values{}
	q.Set("host", req.Host)
	q.Set("port", strconv.Itoa(req.Port))

	bps := req.Breakpoints
	if bps == nil {
		bps = []debugger.WireBreakpoint{}
	}
	err := c.do(ctx, call{
		command: "connect",
		method:  http.MethodPost,
		path:    "/connect",
		query:   q,
		body:    bps,
		out:     &info,
	})
	if err != nil {
		return debugger.ActiveHandle{}, err
	}
	if info.ID == "" {
		return debugger.ActiveHandle{}, &errors.TransportError{Op: "connect", Message: "agent returned a session without an id"}
	}
	return info, nil
}

// Disconnect detaches the agent from the session.
func (c *Client) Disconnect(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "disconnect", sessionID: id, method: http.MethodGet, path: sessionPath("/disconnect", id)})
}

// CheckEvents drains the events queued for the session.
func (c *Client) CheckEvents(ctx context.Context, id string) (debugger.EventList, error) {
	var events debugger.EventList
	err := c.do(ctx, call{command: "events", sessionID: id, method: http.MethodGet, path: sessionPath("/events", id), out: &events})
	return events, err
}

// AddBreakpoint installs bp in the session.
func (c *Client) AddBreakpoint(ctx context.Context, id string, bp debugger.WireBreakpoint) error {
	return c.do(ctx, call{command: "breakpoint_add", sessionID: id, method: http.MethodPost, path: sessionPath("/breakpoints/add", id), body: bp})
}

// DeleteBreakpoint removes bp from the session.
func (c *Client) DeleteBreakpoint(ctx context.Context, id string, bp debugger.WireBreakpoint) error {
	return c.do(ctx, call{command: "breakpoint_delete", sessionID: id, method: http.MethodPost, path: sessionPath("/breakpoints/delete", id), body: bp})
}

// DeleteAllBreakpoints removes every breakpoint from the session.
func (c *Client) DeleteAllBreakpoints(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "breakpoint_delete_all", sessionID: id, method: http.MethodGet, path: sessionPath("/breakpoints/delete_all", id)})
}

func (c *Client) StepInto(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "step_into", sessionID: id, method: http.MethodGet, path: sessionPath("/step/into", id)})
}

func (c *Client) StepOver(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "step_over", sessionID: id, method: http.MethodGet, path: sessionPath("/step/over", id)})
}

func (c *Client) StepOut(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "step_out", sessionID: id, method: http.MethodGet, path: sessionPath("/step/out", id)})
}

func (c *Client) Resume(ctx context.Context, id string) error {
	return c.do(ctx, call{command: "resume", sessionID: id, method: http.MethodGet, path: sessionPath("/resume", id)})
}

// EvaluateExpression evaluates expression in the suspended frame and
// returns the agent's textual result.
func (c *Client) EvaluateExpression(ctx context.Context, id, expression string) (string, error) {
	var result string
	q := url.Values{}
	q.Set("expression", expression)
	err := c.do(ctx, call{command: "expression", sessionID: id, method: http.MethodGet, path: sessionPath("/expression", id), query: q, out: &result})
	return result, err
}

// SetValue assigns req.Expression to the variable at req.VariablePath.
func (c *Client) SetValue(ctx context.Context, id string, req debugger.UpdateVariableRequest) error {
	return c.do(ctx, call{command: "value_set", sessionID: id, method: http.MethodPost, path: sessionPath("/value/set", id), body: req})
}

// StackFrameDump returns the current stack frame.
func (c *Client) StackFrameDump(ctx context.Context, id string) (debugger.StackFrame, error) {
	var frame debugger.StackFrame
	err := c.do(ctx, call{command: "dump", sessionID: id, method: http.MethodGet, path: sessionPath("/dump", id), out: &frame})
	return frame, err
}

// GetValue expands v one level.
func (c *Client) GetValue(ctx context.Context, id string, v debugger.Variable) (debugger.Value, error) {
	var value debugger.Value
	err := c.do(ctx, call{command: "value_get", sessionID: id, method: http.MethodPost, path: sessionPath("/value/get", id), body: v, out: &value})
	return value, err
}
