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

package debugger_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records calls and returns canned results. Any *Err field
// makes the matching command fail.
type fakeTransport struct {
	mu sync.Mutex

	connectFn   func(ctx context.Context, req debugger.ConnectRequest) (debugger.ActiveHandle, error)
	connectErr  error
	handle      debugger.ActiveHandle
	checkErr    error
	checkEvents debugger.EventList
	stepErr     error
	bpErr       error
	setErr      error
	dumpErr     error
	evalResult  string
	evalErr     error
	frame       debugger.StackFrame
	value       debugger.Value
	disconnErr  error

	calls       []string
	connects    []debugger.ConnectRequest
	added       []debugger.WireBreakpoint
	deleted     []debugger.WireBreakpoint
	sets        []debugger.UpdateVariableRequest
	disconnects []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handle: debugger.ActiveHandle{ID: "s-1", Host: "10.0.0.5", Port: 5005, VMName: "OpenJDK", VMVersion: "21"},
		frame: debugger.StackFrame{
			Fields: []debugger.Variable{{Name: "count", Value: "1", Type: "int", Primitive: true}},
			Locals: []debugger.Variable{{Name: "args", Value: "[]", Type: "String[]"}},
		},
	}
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeTransport) Connect(ctx context.Context, req debugger.ConnectRequest) (debugger.ActiveHandle, error) {
	f.record("connect")
	f.mu.Lock()
	f.connects = append(f.connects, req)
	fn := f.connectFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	if f.connectErr != nil {
		return debugger.ActiveHandle{}, f.connectErr
	}
	return f.handle, nil
}

func (f *fakeTransport) Disconnect(_ context.Context, id string) error {
	f.record("disconnect")
	f.mu.Lock()
	f.disconnects = append(f.disconnects, id)
	f.mu.Unlock()
	return f.disconnErr
}

func (f *fakeTransport) CheckEvents(context.Context, string) (debugger.EventList, error) {
	f.record("check_events")
	if f.checkErr != nil {
		return debugger.EventList{}, f.checkErr
	}
	return f.checkEvents, nil
}

func (f *fakeTransport) AddBreakpoint(_ context.Context, _ string, bp debugger.WireBreakpoint) error {
	f.record("add_breakpoint")
	if f.bpErr != nil {
		return f.bpErr
	}
	f.mu.Lock()
	f.added = append(f.added, bp)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) DeleteBreakpoint(_ context.Context, _ string, bp debugger.WireBreakpoint) error {
	f.record("delete_breakpoint")
	if f.bpErr != nil {
		return f.bpErr
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, bp)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) DeleteAllBreakpoints(context.Context, string) error {
	f.record("delete_all_breakpoints")
	return f.bpErr
}

func (f *fakeTransport) StepInto(context.Context, string) error {
	f.record("step_into")
	return f.stepErr
}

func (f *fakeTransport) StepOver(context.Context, string) error {
	f.record("step_over")
	return f.stepErr
}

func (f *fakeTransport) StepOut(context.Context, string) error {
	f.record("step_out")
	return f.stepErr
}

func (f *fakeTransport) Resume(context.Context, string) error {
	f.record("resume")
	return f.stepErr
}

func (f *fakeTransport) EvaluateExpression(_ context.Context, _ string, expr string) (string, error) {
	f.record("evaluate")
	if f.evalErr != nil {
		return "", f.evalErr
	}
	if f.evalResult != "" {
		return f.evalResult, nil
	}
	return "=" + expr, nil
}

func (f *fakeTransport) SetValue(_ context.Context, _ string, req debugger.UpdateVariableRequest) error {
	f.record("set_value")
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	f.sets = append(f.sets, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) StackFrameDump(context.Context, string) (debugger.StackFrame, error) {
	f.record("stack_frame")
	if f.dumpErr != nil {
		return debugger.StackFrame{}, f.dumpErr
	}
	return f.frame, nil
}

func (f *fakeTransport) GetValue(context.Context, string, debugger.Variable) (debugger.Value, error) {
	f.record("get_value")
	return f.value, nil
}

// fakeSessionStore keeps the handle in memory.
type fakeSessionStore struct {
	mu      sync.Mutex
	handle  debugger.SessionHandle
	saves   int
	loadErr error
}

func (s *fakeSessionStore) Load(context.Context) (debugger.SessionHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return debugger.EmptyHandle{}, s.loadErr
	}
	if s.handle == nil {
		return debugger.EmptyHandle{}, nil
	}
	return s.handle, nil
}

func (s *fakeSessionStore) Save(_ context.Context, h debugger.SessionHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
	s.saves++
	return nil
}

func (s *fakeSessionStore) current() debugger.SessionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return debugger.EmptyHandle{}
	}
	return s.handle
}

// fakeBreakpoints is an ordered in-memory BreakpointStore.
type fakeBreakpoints struct {
	mu  sync.Mutex
	bps []debugger.Breakpoint
}

func (b *fakeBreakpoints) List(context.Context) ([]debugger.Breakpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]debugger.Breakpoint(nil), b.bps...), nil
}

func (b *fakeBreakpoints) Add(_ context.Context, bp debugger.Breakpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.bps {
		if existing.Key() == bp.Key() {
			b.bps[i] = bp
			return nil
		}
	}
	b.bps = append(b.bps, bp)
	return nil
}

func (b *fakeBreakpoints) Delete(_ context.Context, path string, line int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := debugger.BreakpointKey(path, line)
	for i, existing := range b.bps {
		if existing.Key() == key {
			b.bps = append(b.bps[:i], b.bps[i+1:]...)
			return nil
		}
	}
	return nil
}

func (b *fakeBreakpoints) Clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bps = nil
	return nil
}

func (b *fakeBreakpoints) SetActive(_ context.Context, path string, line int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := debugger.BreakpointKey(path, line)
	for i := range b.bps {
		if b.bps[i].Key() == key {
			b.bps[i].Active = true
		}
	}
	return nil
}

// fakeChannel delivers published messages synchronously.
type fakeChannel struct {
	mu           sync.Mutex
	subs         map[string][]debugger.MessageHandler
	unsubscribed []string
}

type fakeSubscription string

func (s fakeSubscription) Topic() string { return string(s) }

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subs: make(map[string][]debugger.MessageHandler)}
}

func (c *fakeChannel) Subscribe(_ context.Context, topic string, h debugger.MessageHandler) (debugger.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = append(c.subs[topic], h)
	return fakeSubscription(topic), nil
}

func (c *fakeChannel) Unsubscribe(_ context.Context, topic string, h debugger.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := c.subs[topic]
	for i, existing := range hs {
		if existing == h {
			c.subs[topic] = append(hs[:i], hs[i+1:]...)
			c.unsubscribed = append(c.unsubscribed, topic)
			break
		}
	}
	if len(c.subs[topic]) == 0 {
		delete(c.subs, topic)
	}
	return nil
}

func (c *fakeChannel) IsSubscribed(h debugger.MessageHandler, topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.subs[topic] {
		if existing == h {
			return true
		}
	}
	return false
}

func (c *fakeChannel) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for t := range c.subs {
		out = append(out, t)
	}
	return out
}

func (c *fakeChannel) handlers(topic string) []debugger.MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]debugger.MessageHandler(nil), c.subs[topic]...)
}

func (c *fakeChannel) publish(t *testing.T, topic string, v any) {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	for _, h := range c.handlers(topic) {
		h.HandleMessage(payload)
	}
}

func (c *fakeChannel) fail(topic string, err error) {
	for _, h := range c.handlers(topic) {
		h.HandleError(err)
	}
}

// fakeWorkspace records editor calls.
type fakeWorkspace struct {
	mu         sync.Mutex
	roots      []string
	active     string
	openErr    bool
	opened     [][]string
	lines      []int
	clears     int
	panelShown int
}

func (w *fakeWorkspace) SourceRoots() []string { return w.roots }

func (w *fakeWorkspace) ActiveFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *fakeWorkspace) OpenFile(_ context.Context, loc debugger.Location, candidates []string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, candidates)
	if w.openErr {
		return "", &errors.ResolutionError{ClassName: loc.ClassName, Candidates: candidates}
	}
	w.active = candidates[0]
	return candidates[0], nil
}

func (w *fakeWorkspace) SetExecutionLine(line int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
}

func (w *fakeWorkspace) ClearExecutionLine() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clears++
}

func (w *fakeWorkspace) ShowDebugPanel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.panelShown++
}

// recorder is an Observer that records every callback.
type recorder struct {
	mu          sync.Mutex
	calls       []string
	activations []string
	frames      []debugger.StackFrame
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (r *recorder) OnConnected(host string, port int) {
	r.add(fmt.Sprintf("connected %s:%d", host, port))
}
func (r *recorder) OnConnectError(host string, port int) {
	r.add(fmt.Sprintf("connect_error %s:%d", host, port))
}
func (r *recorder) OnDisconnected(host string, port int) {
	r.add(fmt.Sprintf("disconnected %s:%d", host, port))
}
func (r *recorder) OnBreakpointAdded()      { r.add("breakpoint_added") }
func (r *recorder) OnBreakpointDeleted()    { r.add("breakpoint_deleted") }
func (r *recorder) OnDeleteAllBreakpoints() { r.add("delete_all_breakpoints") }
func (r *recorder) OnStepInto()             { r.add("step_into") }
func (r *recorder) OnStepOver()             { r.add("step_over") }
func (r *recorder) OnStepOut()              { r.add("step_out") }
func (r *recorder) OnResume()               { r.add("resume") }

func (r *recorder) OnBreakpointActivated(path string, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations = append(r.activations, fmt.Sprintf("%s:%d", path, line))
}

func (r *recorder) OnStackFrame(frame debugger.StackFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

type harness struct {
	session   *debugger.Session
	transport *fakeTransport
	store     *fakeSessionStore
	bps       *fakeBreakpoints
	channel   *fakeChannel
	workspace *fakeWorkspace
	observer  *recorder
	resolvers *debugger.ResolverRegistry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		store:     &fakeSessionStore{},
		bps:       &fakeBreakpoints{},
		channel:   newFakeChannel(),
		workspace: &fakeWorkspace{roots: []string{"/src/"}},
		observer:  &recorder{},
		resolvers: debugger.NewResolverRegistry(),
	}
	h.resolvers.Register(".java", debugger.ResolverFunc(func(f debugger.File) (string, bool) {
		if f.Path == "/src/com/acme/App.java" {
			return "com.acme.App", true
		}
		return "", false
	}))

	s, err := debugger.New(debugger.Config{
		Transport:   h.transport,
		Store:       h.store,
		Breakpoints: h.bps,
		Channel:     h.channel,
		Workspace:   h.workspace,
		Resolvers:   h.resolvers,
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	s.AddObserver(h.observer)
	h.session = s
	t.Cleanup(s.Close)
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Connect(context.Background(), "10.0.0.5", 5005))
	require.True(t, h.session.IsConnected())
}
