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
Package rpc implements the client side of the debug agent's event channel.

The agent exposes a WebSocket endpoint carrying a small publish/subscribe
protocol. A Bus implements debugger.EventChannel on top of it.

# Protocol

Every frame is a JSON Message:

	// Subscribe (client to agent), answered by an ack or an error
	{"type": "subscribe", "correlationId": "6f1c...", "channel": "debugger:events:42"}
	{"type": "ack", "correlationId": "6f1c...", "channel": "debugger:events:42"}

	// Publish (agent to client)
	{"type": "publish", "channel": "debugger:events:42", "body": {"events": [...]}}

	// Channel failure (agent to client)
	{"type": "error", "channel": "debugger:events:42",
	 "error": {"code": "not_found", "status": 500, "message": "debugger 42 not found"}}

Unsubscribe requests are sent without waiting for the ack.

# Errors

Channel errors whose code is "not_found", or which carry status 500 and a
message containing "not found", reach handlers as
*errors.SessionNotFoundError. Any other failure, including loss of the
connection, reaches handlers as *errors.TransportError.

# Authentication

When an auth token is configured it is sent in the X-Auth-Token header of
the upgrade request.
*/
package rpc
