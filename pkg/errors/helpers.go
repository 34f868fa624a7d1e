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
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// IsSessionNotFound reports whether err means the agent dropped the session.
func IsSessionNotFound(err error) bool {
	var snf *SessionNotFoundError
	return errors.As(err, &snf)
}

// IsNotAttached reports whether err is a local not-attached precondition failure.
func IsNotAttached(err error) bool {
	return errors.Is(err, ErrNotAttached)
}

// IsAlreadyAttached reports whether err rejected a connect because a session
// is attached.
func IsAlreadyAttached(err error) bool {
	var aa *AlreadyAttachedError
	return errors.As(err, &aa)
}

// IsRetryable reports whether any classified error in err's tree is retryable.
// Unclassified errors are not.
func IsRetryable(err error) bool {
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.IsRetryable()
	}
	return false
}

// UserMessage returns the friendliest message available for err and an
// optional suggestion.
func UserMessage(err error) (string, string) {
	var uv UserVisibleError
	if errors.As(err, &uv) && uv.IsUserVisible() {
		return uv.UserMessage(), uv.Suggestion()
	}
	return err.Error(), ""
}
