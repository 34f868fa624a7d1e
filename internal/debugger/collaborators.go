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
	"context"
	"encoding/json"
	"path"
	"strings"
)

// SessionStore persists the current handle in a single fixed slot.
// Load returns EmptyHandle when the slot is absent or unreadable.
type SessionStore interface {
	Load(ctx context.Context) (SessionHandle, error)
	Save(ctx context.Context, h SessionHandle) error
}

// MessageHandler receives messages for a subscribed topic. Messages for one
// topic are delivered one at a time in arrival order.
type MessageHandler interface {
	HandleMessage(payload json.RawMessage)
	HandleError(err error)
}

// Subscription is a live topic subscription.
type Subscription interface {
	Topic() string
}

// EventChannel is a publish/subscribe transport keyed by topic.
type EventChannel interface {
	// Subscribe registers h for topic and returns once the subscription is
	// acknowledged.
	Subscribe(ctx context.Context, topic string, h MessageHandler) (Subscription, error)

	// Unsubscribe removes h from topic. It never fails for a handler that
	// is not subscribed.
	Unsubscribe(ctx context.Context, topic string, h MessageHandler) error

	// IsSubscribed reports whether h is currently subscribed to topic.
	IsSubscribed(h MessageHandler, topic string) bool
}

// CommandTransport issues request/response commands to the debug agent.
// Implementations report an unknown session as *errors.SessionNotFoundError
// and every other failure as *errors.TransportError.
type CommandTransport interface {
	Connect(ctx context.Context, req ConnectRequest) (ActiveHandle, error)
	Disconnect(ctx context.Context, id string) error
	CheckEvents(ctx context.Context, id string) (EventList, error)
	AddBreakpoint(ctx context.Context, id string, bp WireBreakpoint) error
	DeleteBreakpoint(ctx context.Context, id string, bp WireBreakpoint) error
	DeleteAllBreakpoints(ctx context.Context, id string) error
	StepInto(ctx context.Context, id string) error
	StepOver(ctx context.Context, id string) error
	StepOut(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	EvaluateExpression(ctx context.Context, id, expression string) (string, error)
	SetValue(ctx context.Context, id string, req UpdateVariableRequest) error
	StackFrameDump(ctx context.Context, id string) (StackFrame, error)
	GetValue(ctx context.Context, id string, v Variable) (Value, error)
}

// BreakpointStore owns the durable breakpoint list. Lines are 0-based.
// Implementations handle their own locking.
type BreakpointStore interface {
	List(ctx context.Context) ([]Breakpoint, error)
	Add(ctx context.Context, bp Breakpoint) error
	Delete(ctx context.Context, path string, line int) error
	Clear(ctx context.Context) error
	SetActive(ctx context.Context, path string, line int) error
}

// Resolver maps a source file to the name the agent understands, such as a
// fully qualified class name.
type Resolver interface {
	Resolve(f File) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(f File) (string, bool)

// Resolve implements Resolver.
func (fn ResolverFunc) Resolve(f File) (string, bool) { return fn(f) }

// ResolverRegistry selects a Resolver by media type, falling back to the
// file extension.
type ResolverRegistry struct {
	byType map[string]Resolver
}

// NewResolverRegistry creates an empty registry.
func NewResolverRegistry() *ResolverRegistry {
	return &ResolverRegistry{byType: make(map[string]Resolver)}
}

// Register associates r with a media type (e.g. "text/x-java") or an
// extension (e.g. ".java").
func (reg *ResolverRegistry) Register(typ string, r Resolver) {
	reg.byType[strings.ToLower(typ)] = r
}

// Lookup returns the resolver for f.
func (reg *ResolverRegistry) Lookup(f File) (Resolver, bool) {
	if reg == nil {
		return nil, false
	}
	if f.MediaType != "" {
		if r, ok := reg.byType[strings.ToLower(f.MediaType)]; ok {
			return r, true
		}
	}
	if ext := path.Ext(f.Path); ext != "" {
		if r, ok := reg.byType[strings.ToLower(ext)]; ok {
			return r, true
		}
	}
	return nil, false
}

// Resolve returns the agent-facing name for f, or f.Path when no resolver
// applies.
func (reg *ResolverRegistry) Resolve(f File) string {
	if r, ok := reg.Lookup(f); ok {
		if name, ok := r.Resolve(f); ok && name != "" {
			return name
		}
	}
	return f.Path
}

// Workspace is the editor surface the session drives. Lines are 0-based.
type Workspace interface {
	// SourceRoots returns the source folders used to build candidate paths.
	SourceRoots() []string

	// ActiveFile returns the path of the file currently in front, if any.
	ActiveFile() string

	// OpenFile opens the first usable candidate and returns its path.
	// It returns *errors.ResolutionError when none can be opened.
	OpenFile(ctx context.Context, loc Location, candidates []string) (string, error)

	// SetExecutionLine moves the current-line marker in the active file.
	SetExecutionLine(line int)

	// ClearExecutionLine removes the current-line marker.
	ClearExecutionLine()

	// ShowDebugPanel brings the debugger view to front.
	ShowDebugPanel()
}

// NopWorkspace is a Workspace with no editor behind it.
type NopWorkspace struct{}

func (NopWorkspace) SourceRoots() []string { return nil }
func (NopWorkspace) ActiveFile() string    { return "" }
func (NopWorkspace) OpenFile(_ context.Context, _ Location, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0], nil
}
func (NopWorkspace) SetExecutionLine(int) {}
func (NopWorkspace) ClearExecutionLine()  {}
func (NopWorkspace) ShowDebugPanel()      {}
