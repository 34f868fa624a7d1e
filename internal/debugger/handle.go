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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SessionHandle identifies the remote session the client is attached to.
// It is either EmptyHandle or ActiveHandle. Handles are immutable; the
// Session replaces them wholesale.
type SessionHandle interface {
	sessionHandle()
}

// EmptyHandle means no session.
type EmptyHandle struct{}

func (EmptyHandle) sessionHandle() {}

// ActiveHandle describes a live agent session.
type ActiveHandle struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	VMName    string `json:"vmName,omitempty"`
	VMVersion string `json:"vmVersion,omitempty"`
}

func (ActiveHandle) sessionHandle() {}

// VMInfo returns "<vm name> <vm version>", or "" when neither is known.
func (h ActiveHandle) VMInfo() string {
	return strings.TrimSpace(h.VMName + " " + h.VMVersion)
}

// Active returns the ActiveHandle inside h, if any.
func Active(h SessionHandle) (ActiveHandle, bool) {
	switch v := h.(type) {
	case ActiveHandle:
		return v, true
	case *ActiveHandle:
		if v != nil {
			return *v, true
		}
	}
	return ActiveHandle{}, false
}

// EncodeHandle serializes h for a SessionStore. The empty handle encodes to
// an empty byte slice.
func EncodeHandle(h SessionHandle) ([]byte, error) {
	active, ok := Active(h)
	if !ok {
		return nil, nil
	}
	return json.Marshal(active)
}

// DecodeHandle is the inverse of EncodeHandle. Empty input yields
// EmptyHandle with no error. Malformed input, or input without a session
// id, yields EmptyHandle and an error describing the problem so the caller
// can log it.
func DecodeHandle(data []byte) (SessionHandle, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return EmptyHandle{}, nil
	}

	var h ActiveHandle
	if err := json.Unmarshal(data, &h); err != nil {
		return EmptyHandle{}, fmt.Errorf("decoding session handle: %w", err)
	}
	if h.ID == "" {
		return EmptyHandle{}, fmt.Errorf("decoding session handle: missing id")
	}
	return h, nil
}
