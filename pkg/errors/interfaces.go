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

// UserVisibleError is implemented by errors the CLI prints as-is: a short
// message plus, when one exists, the command that would fix it.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string

	// Suggestion is empty when there is nothing useful to suggest.
	Suggestion() string
}

// ErrorClassifier lets callers branch on an error's category without
// matching concrete types. ErrorType values are snake_case, for example
// "transport" or "session_not_found".
type ErrorClassifier interface {
	error
	ErrorType() string

	// IsRetryable reports whether repeating the same request could succeed.
	// The session core never retries; the flag is informational.
	IsRetryable() bool
}
