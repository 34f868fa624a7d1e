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
	"fmt"
	"log/slog"
	"sync"
)

// Observer receives session notifications. Callbacks run synchronously on
// the goroutine that caused the transition, with no Session lock held, so
// they may call back into the Session. Embed NopObserver to implement only
// the callbacks of interest.
type Observer interface {
	OnConnected(host string, port int)
	OnConnectError(host string, port int)
	OnDisconnected(host string, port int)
	OnBreakpointAdded()
	OnBreakpointDeleted()
	OnDeleteAllBreakpoints()
	OnStepInto()
	OnStepOver()
	OnStepOut()
	OnResume()
}

// ActivationObserver is implemented by observers that track deferred
// breakpoints becoming active. Line is 0-based.
type ActivationObserver interface {
	OnBreakpointActivated(path string, line int)
}

// StackFrameObserver is implemented by observers that display variables.
type StackFrameObserver interface {
	OnStackFrame(frame StackFrame)
}

// NopObserver implements Observer with no-ops.
type NopObserver struct{}

func (NopObserver) OnConnected(string, int)    {}
func (NopObserver) OnConnectError(string, int) {}
func (NopObserver) OnDisconnected(string, int) {}
func (NopObserver) OnBreakpointAdded()         {}
func (NopObserver) OnBreakpointDeleted()       {}
func (NopObserver) OnDeleteAllBreakpoints()    {}
func (NopObserver) OnStepInto()                {}
func (NopObserver) OnStepOver()                {}
func (NopObserver) OnStepOut()                 {}
func (NopObserver) OnResume()                  {}

// ObserverRegistry is an ordered set of observers.
type ObserverRegistry struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []observerEntry
	logger  *slog.Logger
}

type observerEntry struct {
	id  uint64
	obs Observer
}

// Registration removes an observer from its registry.
type Registration struct {
	once   sync.Once
	remove func()
}

// Remove unregisters the observer. Calling it more than once is a no-op.
func (r *Registration) Remove() {
	if r == nil {
		return
	}
	r.once.Do(r.remove)
}

// NewObserverRegistry creates an empty registry that logs recovered panics
// to logger.
func NewObserverRegistry(logger *slog.Logger) *ObserverRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObserverRegistry{logger: logger}
}

// Add appends o. Observers are notified in the order they were added.
func (r *ObserverRegistry) Add(o Observer) *Registration {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, observerEntry{id: id, obs: o})
	r.mu.Unlock()

	return &Registration{remove: func() { r.remove(id) }}
}

func (r *ObserverRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered observers.
func (r *ObserverRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *ObserverRegistry) snapshot() []Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Observer, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.obs
	}
	return out
}

// notify calls fn for every observer registered at the time of the call.
// Observers added or removed during delivery take effect on the next call.
func (r *ObserverRegistry) notify(callback string, fn func(Observer)) {
	for _, o := range r.snapshot() {
		r.safeCall(callback, o, fn)
	}
}

func (r *ObserverRegistry) safeCall(callback string, o Observer, fn func(Observer)) {
	defer func() {
		if rec := recover(); rec != nil {
			recordObserverPanic(callback)
			r.logger.Error("observer panicked",
				"callback", callback,
				"observer", fmt.Sprintf("%T", o),
				"panic", rec)
		}
	}()
	fn(o)
}

func (r *ObserverRegistry) connected(host string, port int) {
	r.notify("connected", func(o Observer) { o.OnConnected(host, port) })
}

func (r *ObserverRegistry) connectError(host string, port int) {
	r.notify("connect_error", func(o Observer) { o.OnConnectError(host, port) })
}

func (r *ObserverRegistry) disconnected(host string, port int) {
	r.notify("disconnected", func(o Observer) { o.OnDisconnected(host, port) })
}

func (r *ObserverRegistry) breakpointAdded() {
	r.notify("breakpoint_added", func(o Observer) { o.OnBreakpointAdded() })
}

func (r *ObserverRegistry) breakpointDeleted() {
	r.notify("breakpoint_deleted", func(o Observer) { o.OnBreakpointDeleted() })
}

func (r *ObserverRegistry) allBreakpointsDeleted() {
	r.notify("delete_all_breakpoints", func(o Observer) { o.OnDeleteAllBreakpoints() })
}

func (r *ObserverRegistry) breakpointActivated(path string, line int) {
	r.notify("breakpoint_activated", func(o Observer) {
		if ao, ok := o.(ActivationObserver); ok {
			ao.OnBreakpointActivated(path, line)
		}
	})
}

func (r *ObserverRegistry) stackFrame(frame StackFrame) {
	r.notify("stack_frame", func(o Observer) {
		if so, ok := o.(StackFrameObserver); ok {
			so.OnStackFrame(frame)
		}
	})
}
