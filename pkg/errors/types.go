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

package errors

import (
	"fmt"
	"strings"
)

// ErrNotAttached is returned by session commands that need a live debug
// session when none is attached. No network call is made.
var ErrNotAttached = &NotAttachedError{}

// TransportError represents a command or channel call that did not complete.
// Use this for connection failures, unexpected status codes and malformed
// agent responses.
type TransportError struct {
	// Op is the command that failed (e.g., "connect", "step_into")
	Op string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Message is the agent-supplied error message, if any
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TransportError) ErrorType() string { return "transport" }

// IsRetryable implements ErrorClassifier. Only server-side failures and
// failures without a status are worth another attempt.
func (e *TransportError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// SessionNotFoundError means the agent no longer knows the session id.
// The client treats it as a remote close.
type SessionNotFoundError struct {
	// SessionID is the id the agent rejected
	SessionID string

	// Message is the agent-supplied error message
	Message string
}

// Error implements the error interface.
func (e *SessionNotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("debug session %s not found: %s", e.SessionID, e.Message)
	}
	return fmt.Sprintf("debug session %s not found", e.SessionID)
}

// ErrorType implements ErrorClassifier.
func (e *SessionNotFoundError) ErrorType() string { return "session_not_found" }

// IsRetryable implements ErrorClassifier.
func (e *SessionNotFoundError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *SessionNotFoundError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *SessionNotFoundError) UserMessage() string {
	return "The debug session has ended on the remote side."
}

// Suggestion implements UserVisibleError.
func (e *SessionNotFoundError) Suggestion() string {
	return "Attach again with 'rdbg attach <host>:<port>'."
}

// NotAttachedError is a local precondition failure: the command needs an
// attached session.
type NotAttachedError struct {
	// Op is the command that was rejected
	Op string
}

// Error implements the error interface.
func (e *NotAttachedError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: not attached to a debug session", e.Op)
	}
	return "not attached to a debug session"
}

// Is matches any NotAttachedError so callers can compare against
// ErrNotAttached regardless of Op.
func (e *NotAttachedError) Is(target error) bool {
	_, ok := target.(*NotAttachedError)
	return ok
}

// ErrorType implements ErrorClassifier.
func (e *NotAttachedError) ErrorType() string { return "not_attached" }

// IsRetryable implements ErrorClassifier.
func (e *NotAttachedError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *NotAttachedError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *NotAttachedError) UserMessage() string {
	return "No debug session is attached."
}

// Suggestion implements UserVisibleError.
func (e *NotAttachedError) Suggestion() string {
	return "Attach first with 'rdbg attach <host>:<port>'."
}

// AlreadyAttachedError rejects a connect while a session is attached. The
// existing session must be detached first so the agent releases it.
type AlreadyAttachedError struct {
	Host string
	Port int

	// SessionID is the attached session
	SessionID string
}

// Error implements the error interface.
func (e *AlreadyAttachedError) Error() string {
	return fmt.Sprintf("already attached to %s:%d (session %s)", e.Host, e.Port, e.SessionID)
}

// ErrorType implements ErrorClassifier.
func (e *AlreadyAttachedError) ErrorType() string { return "already_attached" }

// IsRetryable implements ErrorClassifier.
func (e *AlreadyAttachedError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *AlreadyAttachedError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *AlreadyAttachedError) UserMessage() string {
	return fmt.Sprintf("A debug session is already attached to %s:%d.", e.Host, e.Port)
}

// Suggestion implements UserVisibleError.
func (e *AlreadyAttachedError) Suggestion() string {
	return "Detach first with 'rdbg detach'."
}

// ResolutionError means none of the candidate source paths for a location
// could be opened. It is never fatal to event processing.
type ResolutionError struct {
	// ClassName is the fully qualified class of the location
	ClassName string

	// Candidates are the paths that were tried, in order
	Candidates []string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no source found for %s (tried %s)", e.ClassName, strings.Join(e.Candidates, ", "))
}

// ErrorType implements ErrorClassifier.
func (e *ResolutionError) ErrorType() string { return "resolution" }

// IsRetryable implements ErrorClassifier.
func (e *ResolutionError) IsRetryable() bool { return false }

// ValidationError represents user input validation failures.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a missing local resource, such as a breakpoint
// that is not in the store.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "breakpoint", "source")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "agent.url")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
