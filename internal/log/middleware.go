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

package log

import (
	"context"
	"log/slog"
	"time"
)

// CommandCall describes an outbound agent command for logging purposes.
type CommandCall struct {
	// Command is the agent command (e.g., "connect", "step_over").
	Command string

	// CorrelationID ties the request to agent-side logs.
	CorrelationID string

	// SessionID is the debug session the command targets, if any.
	SessionID string

	// Remote is the agent address.
	Remote string
}

// CommandResult describes the outcome of a CommandCall.
type CommandResult struct {
	Success    bool
	Error      string
	DurationMs int64
}

func (c *CommandCall) attrs() []any {
	attrs := []any{
		CommandKey, c.Command,
		"remote", c.Remote,
	}
	if c.CorrelationID != "" {
		attrs = append(attrs, "correlation_id", c.CorrelationID)
	}
	if c.SessionID != "" {
		attrs = append(attrs, SessionIDKey, c.SessionID)
	}
	return attrs
}

// LogCommandCall logs an outbound command before it is sent.
func LogCommandCall(logger *slog.Logger, call *CommandCall) {
	logger.Debug("agent command sent", call.attrs()...)
}

// LogCommandResult logs the outcome of a command. Failures are logged at warn.
func LogCommandResult(logger *slog.Logger, call *CommandCall, res *CommandResult) {
	attrs := append(call.attrs(), "success", res.Success, DurationKey, res.DurationMs)
	if res.Error != "" {
		attrs = append(attrs, "error", res.Error)
	}

	level := slog.LevelDebug
	message := "agent command completed"
	if !res.Success {
		level = slog.LevelWarn
		message = "agent command failed"
	}
	logger.Log(context.Background(), level, message, attrs...)
}

// CommandMiddleware wraps outbound command calls with request/response logging.
type CommandMiddleware struct {
	logger *slog.Logger
}

// NewCommandMiddleware creates a new command logging middleware.
func NewCommandMiddleware(logger *slog.Logger) *CommandMiddleware {
	if logger == nil {
		logger = Discard()
	}
	return &CommandMiddleware{logger: logger}
}

// Do runs fn, logging the call before and its outcome after.
func (m *CommandMiddleware) Do(call *CommandCall, fn func() error) error {
	start := time.Now()
	LogCommandCall(m.logger, call)

	err := fn()

	res := &CommandResult{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	LogCommandResult(m.logger, call, res)
	return err
}
