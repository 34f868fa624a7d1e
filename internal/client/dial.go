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
	"fmt"
	"net/url"
	"strings"

	"github.com/tombee/rdbg/pkg/errors"
)

// DefaultAgentURL is used when no agent address is configured.
const DefaultAgentURL = "http://localhost:8000/api/debugger"

// unixBase is the placeholder host used for requests sent over a socket.
const unixBase = "http://agent"

// ParseAgentURL turns a configured agent address into the base URL for
// requests and the transport that reaches it.
//
// Supported forms:
//   - http://host:port/base
//   - https://host:port/base
//   - unix:///path/to/socket
//   - unix:///path/to/socket?base=/api/debugger
//
// An empty address selects DefaultAgentURL.
func ParseAgentURL(addr string) (string, *Transport, error) {
	if addr == "" {
		addr = DefaultAgentURL
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", nil, &errors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("invalid agent URL %q", addr), Cause: err}
	}

	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return "", nil, &errors.ConfigError{Key: "agent.url", Reason: "unix agent URL has no socket path"}
		}
		base := strings.TrimSuffix(u.Query().Get("base"), "/")
		if base != "" && !strings.HasPrefix(base, "/") {
			base = "/" + base
		}
		return unixBase + base, NewUnixTransport(u.Path), nil
	case "http":
		if u.Host == "" {
			return "", nil, &errors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("agent URL %q has no host", addr)}
		}
		return strings.TrimSuffix(addr, "/"), &Transport{}, nil
	case "https":
		if u.Host == "" {
			return "", nil, &errors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("agent URL %q has no host", addr)}
		}
		return strings.TrimSuffix(addr, "/"), NewTLSTransport("", nil), nil
	default:
		return "", nil, &errors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("unsupported agent URL scheme %q", u.Scheme)}
	}
}

// Dial parses addr and returns a client for it. Options are applied after
// the transport, so WithHTTPClient overrides it.
func Dial(addr string, opts ...Option) (*Client, error) {
	base, transport, err := ParseAgentURL(addr)
	if err != nil {
		return nil, err
	}
	return New(base, append([]Option{WithTransport(transport)}, opts...)...)
}
