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

// Package debugger implements the client side of a remote debug session.
//
// A Session attaches to a debuggee through a debug agent, keeps the agent's
// session handle persisted so a restarted client can pick the session back
// up, and translates the agent's event stream into observer notifications.
//
// The Session talks to the outside world only through small contracts:
//
//   - CommandTransport issues request/response commands to the agent.
//   - EventChannel delivers asynchronous per-topic messages from the agent.
//   - SessionStore persists the current SessionHandle in a single slot.
//   - BreakpointStore owns the durable breakpoint list.
//   - Workspace opens source files and moves the execution marker.
//   - Resolver turns a source file into the name the agent understands.
//
// Observers are registered on an ObserverRegistry and called synchronously,
// in registration order, with no Session lock held. A panicking observer is
// recovered and logged without affecting the others.
//
// Commands block until the agent answers. Callers that want fire-and-forget
// behaviour run them on their own goroutine.
package debugger
