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

package shared

import (
	"errors"
	"fmt"
	"io"

	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// Exit codes for rdbg commands
const (
	ExitSuccess         = 0
	ExitCommandFailed   = 1
	ExitNotAttached     = 2
	ExitSessionNotFound = 3
	ExitAgentError      = 4
	ExitInvalidArgument = 64 // EX_USAGE from sysexits.h
	ExitConfigError     = 78 // EX_CONFIG from sysexits.h
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewCommandError creates an error for a debugger command that failed.
// The exit code is derived from cause.
func NewCommandError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    exitCodeFor(cause),
		Message: msg,
		Cause:   cause,
	}
}

// NewUsageError creates an error for malformed arguments.
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidArgument,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for configuration that cannot be loaded.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

func exitCodeFor(err error) int {
	var (
		cfgErr *pkgerrors.ConfigError
		valErr *pkgerrors.ValidationError
		resErr *pkgerrors.ResolutionError
		nfErr  *pkgerrors.NotFoundError
		trErr  *pkgerrors.TransportError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case pkgerrors.IsNotAttached(err):
		return ExitNotAttached
	case pkgerrors.IsSessionNotFound(err):
		return ExitSessionNotFound
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &valErr), errors.As(err, &resErr), errors.As(err, &nfErr),
		pkgerrors.IsAlreadyAttached(err):
		return ExitInvalidArgument
	case errors.As(err, &trErr):
		return ExitAgentError
	default:
		return ExitCommandFailed
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitCodeFor(err)
}

// PrintError writes err and any suggestion to w and returns the exit code.
func PrintError(w io.Writer, err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Cause != nil {
		msg, _ := pkgerrors.UserMessage(exitErr.Cause)
		fmt.Fprintf(w, "%s %s: %s\n", RenderError("Error:"), exitErr.Message, msg)
	} else {
		msg, _ := pkgerrors.UserMessage(err)
		fmt.Fprintln(w, RenderError("Error:"), msg)
	}
	printUserVisibleSuggestion(w, err)
	return ExitCode(err)
}

// printUserVisibleSuggestion walks the error chain for a UserVisibleError
// and prints its suggestion.
func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr pkgerrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
