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

	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// Error codes for structured JSON output
const (
	// Argument errors (E001-E099)
	ErrorCodeInvalidArgument = "E001" // Malformed argument
	ErrorCodeUnresolved      = "E002" // Source or class could not be resolved

	// Session errors (E100-E199)
	ErrorCodeNotAttached     = "E101" // No session attached
	ErrorCodeSessionNotFound = "E102" // Agent no longer knows the session
	ErrorCodeAlreadyAttached = "E103" // A session is already attached

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E201" // Invalid configuration

	// Agent errors (E400-E499)
	ErrorCodeAgent    = "E401" // Agent returned an error or was unreachable
	ErrorCodeInternal = "E402" // Internal error
)

// ErrorCode maps err to its JSON error code.
func ErrorCode(err error) string {
	var resErr *pkgerrors.ResolutionError
	var nfErr *pkgerrors.NotFoundError
	if errors.As(err, &resErr) || errors.As(err, &nfErr) {
		return ErrorCodeUnresolved
	}
	if pkgerrors.IsAlreadyAttached(err) {
		return ErrorCodeAlreadyAttached
	}

	switch ExitCode(err) {
	case ExitNotAttached:
		return ErrorCodeNotAttached
	case ExitSessionNotFound:
		return ErrorCodeSessionNotFound
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	case ExitInvalidArgument:
		return ErrorCodeInvalidArgument
	case ExitAgentError:
		return ErrorCodeAgent
	default:
		return ErrorCodeInternal
	}
}
