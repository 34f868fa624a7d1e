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
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// Default topic prefixes. The session id is appended.
const (
	DefaultEventsTopicPrefix     = "debugger:events:"
	DefaultDisconnectTopicPrefix = "debugger:disconnected:"
)

const tracerName = "github.com/tombee/rdbg/internal/debugger"

// Config holds the collaborators of a Session.
type Config struct {
	// Transport issues agent commands. Required.
	Transport CommandTransport

	// Store persists the session handle. Required.
	Store SessionStore

	// Breakpoints owns the breakpoint list. Required.
	Breakpoints BreakpointStore

	// Channel delivers agent events. When nil the session never subscribes
	// and events are only seen through PollEvents.
	Channel EventChannel

	// Workspace is the editor surface. Defaults to NopWorkspace.
	Workspace Workspace

	// Resolvers maps files to agent names. Defaults to an empty registry,
	// which sends raw paths.
	Resolvers *ResolverRegistry

	// EventsTopicPrefix defaults to DefaultEventsTopicPrefix.
	EventsTopicPrefix string

	// DisconnectTopicPrefix defaults to DefaultDisconnectTopicPrefix.
	DisconnectTopicPrefix string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Session is a client-side debug session. It is safe for concurrent use.
type Session struct {
	transport   CommandTransport
	store       SessionStore
	breakpoints BreakpointStore
	channel     EventChannel
	workspace   Workspace
	resolvers   *ResolverRegistry

	eventsPrefix     string
	disconnectPrefix string

	logger    *slog.Logger
	tracer    trace.Tracer
	observers *ObserverRegistry

	// lifecycleMu serializes attach and teardown.
	lifecycleMu sync.Mutex

	// batchMu serializes event batches.
	batchMu sync.Mutex

	mu         sync.RWMutex
	state      State
	handle     SessionHandle
	connecting int
	subs       *subscriptions
	location   *Location
	frame      StackFrame

	background sync.WaitGroup
}

// subscriptions are the handlers registered for one handle.
type subscriptions struct {
	eventsTopic     string
	disconnectTopic string
	events          *eventsHandler
	disconnect      *disconnectHandler
}

// New creates a disconnected Session.
func New(cfg Config) (*Session, error) {
	if cfg.Transport == nil {
		return nil, &errors.ValidationError{Field: "Transport", Message: "a command transport is required"}
	}
	if cfg.Store == nil {
		return nil, &errors.ValidationError{Field: "Store", Message: "a session store is required"}
	}
	if cfg.Breakpoints == nil {
		return nil, &errors.ValidationError{Field: "Breakpoints", Message: "a breakpoint store is required"}
	}

	s := &Session{
		transport:        cfg.Transport,
		store:            cfg.Store,
		breakpoints:      cfg.Breakpoints,
		channel:          cfg.Channel,
		workspace:        cfg.Workspace,
		resolvers:        cfg.Resolvers,
		eventsPrefix:     cfg.EventsTopicPrefix,
		disconnectPrefix: cfg.DisconnectTopicPrefix,
		logger:           cfg.Logger,
		tracer:           otel.Tracer(tracerName),
		state:            StateDisconnected,
		handle:           EmptyHandle{},
	}
	if s.workspace == nil {
		s.workspace = NopWorkspace{}
	}
	if s.resolvers == nil {
		s.resolvers = NewResolverRegistry()
	}
	if s.eventsPrefix == "" {
		s.eventsPrefix = DefaultEventsTopicPrefix
	}
	if s.disconnectPrefix == "" {
		s.disconnectPrefix = DefaultDisconnectTopicPrefix
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = log.WithComponent(s.logger, "debugger")
	s.observers = NewObserverRegistry(s.logger)

	return s, nil
}

// Observers returns the registry notified of session transitions.
func (s *Session) Observers() *ObserverRegistry {
	return s.observers
}

// AddObserver is shorthand for s.Observers().Add(o).
func (s *Session) AddObserver(o Observer) *Registration {
	return s.observers.Add(o)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Handle returns the current session handle.
func (s *Session) Handle() SessionHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// IsConnected reports whether a session is attached.
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// VMInfo returns "<vm name> <vm version>" for the attached debuggee, or ""
// when not attached.
func (s *Session) VMInfo() string {
	if h, ok := s.activeHandle(); ok {
		return h.VMInfo()
	}
	return ""
}

// ExecutionPoint returns the location of the last step or breakpoint hit.
func (s *Session) ExecutionPoint() (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.location == nil {
		return Location{}, false
	}
	return *s.location, true
}

// StackFrame returns the last fetched stack frame.
func (s *Session) StackFrame() StackFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Close waits for background work, such as best-effort disconnect
// commands, to finish. It does not detach the session.
func (s *Session) Close() {
	s.background.Wait()
}

func (s *Session) activeHandle() (ActiveHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected {
		return ActiveHandle{}, false
	}
	return Active(s.handle)
}

func (s *Session) isCurrent(id string) (ActiveHandle, bool) {
	h, ok := s.activeHandle()
	if !ok || h.ID != id {
		return ActiveHandle{}, false
	}
	return h, true
}

// Connect attaches to the debuggee at host:port. The durable breakpoint
// list is sent with the request so deferred breakpoints are installed by
// the agent. When several connects overlap, the last one to complete wins
// and the sessions it supersedes are disconnected. Connect while attached
// fails with AlreadyAttachedError and sends nothing.
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	if h, ok := Active(s.handle); ok && s.state == StateConnected {
		s.mu.Unlock()
		recordCommand("connect", outcomeRejected)
		return &errors.AlreadyAttachedError{Host: h.Host, Port: h.Port, SessionID: h.ID}
	}
	s.connecting++
	if s.state == StateDisconnected {
		s.state = StateConnecting
	}
	s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "debugger.connect", trace.WithAttributes(
		attribute.String("debugger.host", host),
		attribute.Int("debugger.port", port),
	))
	defer span.End()

	req := ConnectRequest{Host: host, Port: port, Breakpoints: s.wireBreakpoints(ctx)}
	handle, err := s.transport.Connect(ctx, req)
	if err == nil && handle.ID == "" {
		err = &errors.TransportError{Op: "connect", Message: "agent returned no session id"}
	}
	if err != nil {
		s.lifecycleMu.Lock()
		s.mu.Lock()
		s.connecting--
		if s.state == StateConnecting && s.connecting == 0 {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		s.lifecycleMu.Unlock()

		recordCommand("connect", outcomeError)
		endSpan(span, err)
		s.logger.Warn("connect failed", log.HostKey, host, log.PortKey, port, log.Error(err))
		s.observers.connectError(host, port)
		return err
	}

	if handle.Host == "" {
		handle.Host = host
	}
	if handle.Port == 0 {
		handle.Port = port
	}

	recordCommand("connect", outcomeSuccess)
	span.SetAttributes(attribute.String("debugger.session_id", handle.ID))
	s.attach(ctx, handle, true, true)
	return nil
}

// attach installs h as the current handle, subscribes to its topics and
// notifies OnConnected.
func (s *Session) attach(ctx context.Context, h ActiveHandle, persist, fromConnect bool) {
	s.lifecycleMu.Lock()

	s.mu.Lock()
	prev := s.subs
	s.subs = nil
	superseded, hadActive := Active(s.handle)
	retire := hadActive && s.state == StateConnected && superseded.ID != h.ID
	s.handle = h
	s.mu.Unlock()

	if prev != nil {
		s.unsubscribe(ctx, prev)
	}

	if persist {
		if err := s.store.Save(ctx, h); err != nil {
			s.logger.Warn("failed to persist session handle", log.SessionIDKey, h.ID, log.Error(err))
		}
	}

	subs := s.subscribe(ctx, h)

	s.mu.Lock()
	s.subs = subs
	s.state = StateConnected
	s.location = nil
	s.frame = StackFrame{}
	if fromConnect {
		s.connecting--
	}
	s.mu.Unlock()
	s.lifecycleMu.Unlock()

	if retire {
		s.sendDisconnect(ctx, superseded.ID)
		log.WithSession(s.logger, superseded.ID, superseded.Host, superseded.Port).Info("debug session superseded")
		s.observers.disconnected(superseded.Host, superseded.Port)
	}

	recordConnected(true)
	log.WithSession(s.logger, h.ID, h.Host, h.Port).Info("debug session attached", "vm", h.VMInfo())
	s.observers.connected(h.Host, h.Port)
}

func (s *Session) subscribe(ctx context.Context, h ActiveHandle) *subscriptions {
	if s.channel == nil {
		return nil
	}

	subs := &subscriptions{
		eventsTopic:     s.eventsPrefix + h.ID,
		disconnectTopic: s.disconnectPrefix + h.ID,
		events:          &eventsHandler{s: s, id: h.ID},
		disconnect:      &disconnectHandler{s: s, id: h.ID},
	}

	if _, err := s.channel.Subscribe(ctx, subs.eventsTopic, subs.events); err != nil {
		s.logger.Error("failed to subscribe", log.TopicKey, subs.eventsTopic, log.Error(err))
	}
	if _, err := s.channel.Subscribe(ctx, subs.disconnectTopic, subs.disconnect); err != nil {
		s.logger.Error("failed to subscribe", log.TopicKey, subs.disconnectTopic, log.Error(err))
	}
	return subs
}

func (s *Session) unsubscribe(ctx context.Context, subs *subscriptions) {
	if s.channel == nil || subs == nil {
		return
	}
	if s.channel.IsSubscribed(subs.events, subs.eventsTopic) {
		if err := s.channel.Unsubscribe(ctx, subs.eventsTopic, subs.events); err != nil {
			s.logger.Warn("failed to unsubscribe", log.TopicKey, subs.eventsTopic, log.Error(err))
		}
	}
	if s.channel.IsSubscribed(subs.disconnect, subs.disconnectTopic) {
		if err := s.channel.Unsubscribe(ctx, subs.disconnectTopic, subs.disconnect); err != nil {
			s.logger.Warn("failed to unsubscribe", log.TopicKey, subs.disconnectTopic, log.Error(err))
		}
	}
}

// Disconnect detaches from the debuggee. Subscriptions are released first,
// then the disconnect command is sent in the background; its failure is
// only logged. Disconnect is a no-op when not attached.
func (s *Session) Disconnect(ctx context.Context) error {
	s.lifecycleMu.Lock()
	h, ok := s.teardownLocked(ctx)
	s.lifecycleMu.Unlock()
	if !ok {
		return nil
	}

	s.sendDisconnect(ctx, h.ID)

	log.WithSession(s.logger, h.ID, h.Host, h.Port).Info("debug session detached")
	s.observers.disconnected(h.Host, h.Port)
	return nil
}

// sendDisconnect issues the disconnect command for id in the background.
// Failure is only logged.
func (s *Session) sendDisconnect(ctx context.Context, id string) {
	rpcCtx := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.transport.Disconnect(rpcCtx, id); err != nil {
			recordCommand("disconnect", outcomeError)
			s.logger.Warn("disconnect command failed", log.SessionIDKey, id, log.Error(err))
			return
		}
		recordCommand("disconnect", outcomeSuccess)
	}()
}

// forceDisconnect tears down the session identified by id because the
// agent closed it. It notifies at most once per attached handle.
func (s *Session) forceDisconnect(id, reason string) {
	s.lifecycleMu.Lock()
	s.mu.RLock()
	current, ok := Active(s.handle)
	connected := s.state == StateConnected
	s.mu.RUnlock()
	if !ok || !connected || current.ID != id {
		s.lifecycleMu.Unlock()
		return
	}
	h, _ := s.teardownLocked(context.Background())
	s.lifecycleMu.Unlock()

	recordForcedDisconnect(reason)
	log.WithSession(s.logger, h.ID, h.Host, h.Port).Warn("debug session closed by agent", "reason", reason)
	s.observers.disconnected(h.Host, h.Port)
}

// teardownLocked releases subscriptions and clears the handle. The caller
// holds lifecycleMu. It returns the handle that was active, if any.
func (s *Session) teardownLocked(ctx context.Context) (ActiveHandle, bool) {
	s.mu.Lock()
	h, ok := Active(s.handle)
	if !ok || s.state != StateConnected {
		s.mu.Unlock()
		return ActiveHandle{}, false
	}
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	s.unsubscribe(ctx, subs)

	s.mu.Lock()
	s.handle = EmptyHandle{}
	if s.connecting > 0 {
		s.state = StateConnecting
	} else {
		s.state = StateDisconnected
	}
	s.location = nil
	s.frame = StackFrame{}
	s.mu.Unlock()

	if err := s.store.Save(ctx, EmptyHandle{}); err != nil {
		s.logger.Warn("failed to clear persisted session handle", log.Error(err))
	}
	s.workspace.ClearExecutionLine()
	recordConnected(false)
	return h, true
}

// Recover resumes a session persisted by an earlier process. It returns
// true when a session was recovered. A persisted handle that fails the
// liveness probe is cleared without notifying observers. Calling Recover
// while already attached to the persisted session is a no-op.
func (s *Session) Recover(ctx context.Context) (bool, error) {
	loaded, err := s.store.Load(ctx)
	if err != nil {
		return false, errors.Wrap(err, "loading persisted session")
	}
	h, ok := Active(loaded)
	if !ok {
		return false, nil
	}
	if current, ok := s.activeHandle(); ok && current.ID == h.ID {
		return true, nil
	}

	ctx, span := s.tracer.Start(ctx, "debugger.recover", trace.WithAttributes(
		attribute.String("debugger.session_id", h.ID),
	))
	defer span.End()

	if _, err := s.transport.CheckEvents(ctx, h.ID); err != nil {
		recordCommand("check_events", outcomeError)
		endSpan(span, err)
		s.logger.Debug("persisted session is gone", log.SessionIDKey, h.ID, log.Error(err))
		if _, attached := s.activeHandle(); !attached {
			if err := s.store.Save(ctx, EmptyHandle{}); err != nil {
				s.logger.Warn("failed to clear persisted session handle", log.Error(err))
			}
		}
		return false, nil
	}
	recordCommand("check_events", outcomeSuccess)

	s.attach(ctx, h, false, false)
	return true, nil
}

// commandFailed records a failed command and forces a disconnect when the
// agent no longer knows the session.
func (s *Session) commandFailed(h ActiveHandle, command string, span trace.Span, err error) {
	recordCommand(command, outcomeError)
	endSpan(span, err)
	s.logger.Warn("debugger command failed", log.CommandKey, command, log.SessionIDKey, h.ID, log.Error(err))
	if errors.IsSessionNotFound(err) {
		s.forceDisconnect(h.ID, "session_not_found")
	}
}

func (s *Session) notAttached(command string) error {
	recordCommand(command, outcomeNotAttached)
	return &errors.NotAttachedError{Op: command}
}

func (s *Session) startCommand(ctx context.Context, command string, h ActiveHandle) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "debugger."+command, trace.WithAttributes(
		attribute.String("debugger.session_id", h.ID),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// wireBreakpoints converts the durable list for a connect request.
func (s *Session) wireBreakpoints(ctx context.Context) []WireBreakpoint {
	bps, err := s.breakpoints.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list breakpoints for connect", log.Error(err))
		return nil
	}
	out := make([]WireBreakpoint, 0, len(bps))
	for _, bp := range bps {
		if bp.Kind != "" && bp.Kind != KindBreakpoint {
			continue
		}
		out = append(out, s.toWire(bp.File, bp.Line))
	}
	return out
}

func (s *Session) toWire(f File, line int) WireBreakpoint {
	return WireBreakpoint{
		Location: Location{ClassName: s.resolvers.Resolve(f), LineNumber: line + 1},
		Enabled:  true,
	}
}

func (s *Session) String() string {
	h, ok := Active(s.Handle())
	if !ok {
		return fmt.Sprintf("session(%s)", s.State())
	}
	return fmt.Sprintf("session(%s %s %s:%d)", s.State(), h.ID, h.Host, h.Port)
}
