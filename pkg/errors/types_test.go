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

package errors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	rdbgerrors "github.com/tombee/rdbg/pkg/errors"
)

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *rdbgerrors.TransportError
		wantMsg string
	}{
		{
			name:    "status and message",
			err:     &rdbgerrors.TransportError{Op: "step_into", StatusCode: 502, Message: "bad gateway"},
			wantMsg: "step_into failed [HTTP 502]: bad gateway",
		},
		{
			name:    "cause only",
			err:     &rdbgerrors.TransportError{Op: "connect", Cause: errors.New("connection refused")},
			wantMsg: "connect failed: connection refused",
		},
		{
			name:    "bare",
			err:     &rdbgerrors.TransportError{Op: "resume"},
			wantMsg: "resume failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestTransportError_Retryable(t *testing.T) {
	assert.True(t, (&rdbgerrors.TransportError{Op: "x"}).IsRetryable())
	assert.True(t, (&rdbgerrors.TransportError{Op: "x", StatusCode: 503}).IsRetryable())
	assert.False(t, (&rdbgerrors.TransportError{Op: "x", StatusCode: 400}).IsRetryable())
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("eof")
	err := fmt.Errorf("outer: %w", &rdbgerrors.TransportError{Op: "dump", Cause: cause})
	assert.ErrorIs(t, err, cause)

	var te *rdbgerrors.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, "dump", te.Op)
}

func TestNotAttachedError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("add breakpoint: %w", &rdbgerrors.NotAttachedError{Op: "add_breakpoint"})
	assert.ErrorIs(t, err, rdbgerrors.ErrNotAttached)
	assert.True(t, rdbgerrors.IsNotAttached(err))
	assert.Equal(t, "add_breakpoint: not attached to a debug session", errors.Unwrap(err).Error())
}

func TestSessionNotFoundError(t *testing.T) {
	err := rdbgerrors.Wrap(&rdbgerrors.SessionNotFoundError{SessionID: "s1"}, "checking events")
	assert.True(t, rdbgerrors.IsSessionNotFound(err))
	assert.False(t, rdbgerrors.IsSessionNotFound(errors.New("plain")))
	assert.Equal(t, "checking events: debug session s1 not found", err.Error())
}

func TestResolutionError_Error(t *testing.T) {
	err := &rdbgerrors.ResolutionError{
		ClassName:  "com.acme.App",
		Candidates: []string{"/src/com/acme/App.java", "com.acme.App"},
	}
	assert.Equal(t, "no source found for com.acme.App (tried /src/com/acme/App.java, com.acme.App)", err.Error())
	assert.Equal(t, "resolution", err.ErrorType())
}

func TestConfigError(t *testing.T) {
	cause := errors.New("yaml: line 3")
	err := &rdbgerrors.ConfigError{Key: "agent.url", Reason: "invalid", Cause: cause}
	assert.Equal(t, "config error at agent.url: invalid", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "config error: missing", (&rdbgerrors.ConfigError{Reason: "missing"}).Error())
}

func TestValidationAndNotFound(t *testing.T) {
	assert.Equal(t, "validation failed on line: must be positive",
		(&rdbgerrors.ValidationError{Field: "line", Message: "must be positive"}).Error())
	assert.Equal(t, "breakpoint not found: App.java:3",
		(&rdbgerrors.NotFoundError{Resource: "breakpoint", ID: "App.java:3"}).Error())
}
