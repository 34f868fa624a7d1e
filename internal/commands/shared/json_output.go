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
	"encoding/json"
	"io"
	"os"

	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// JSONResponse is the base envelope for all JSON output.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// JSONError is one error in a failed JSON response.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// NewJSONResponse creates a successful envelope for command.
func NewJSONResponse(command string) JSONResponse {
	return JSONResponse{Version: "1.0", Command: command, Success: true}
}

// EmitJSON writes response to stdout as indented JSON.
func EmitJSON(response any) error {
	return EmitJSONTo(os.Stdout, response)
}

// EmitJSONTo writes response to w as indented JSON.
func EmitJSONTo(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// EmitJSONError writes a failed envelope describing err to w.
func EmitJSONError(w io.Writer, command string, err error) error {
	type errorResponse struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}

	msg, suggestion := pkgerrors.UserMessage(err)
	resp := errorResponse{
		JSONResponse: JSONResponse{Version: "1.0", Command: command},
		Errors: []JSONError{{
			Code:       ErrorCode(err),
			Message:    msg,
			Suggestion: suggestion,
		}},
	}
	return EmitJSONTo(w, resp)
}
