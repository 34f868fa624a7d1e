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

/*
Package client provides an HTTP client for the debug agent's REST API.

A Client implements debugger.CommandTransport. Every command is a single
request; the client never retries.

# Basic Usage

	c, err := client.New("http://localhost:8000/api/debugger",
	    client.WithAPIKey(token),
	    client.WithRateLimit(20, 5),
	)
	if err != nil {
	    return err
	}

	handle, err := c.Connect(ctx, debugger.ConnectRequest{Host: "10.0.0.5", Port: 5005})

# Agent Addresses

ParseAgentURL accepts:

	http://host:port/base
	https://host:port/base
	unix:///path/to/agent.sock

# Errors

A 404, or a 500 whose message contains "not found", on a command that
targets a session is reported as *errors.SessionNotFoundError. Every other
failure is a *errors.TransportError carrying the status and the agent's
message.
*/
package client
