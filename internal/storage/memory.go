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

package storage

import (
	"context"
	"sync"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

// MemoryStore keeps the session slot and breakpoints in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	handle      debugger.SessionHandle
	breakpoints []debugger.Breakpoint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handle: debugger.EmptyHandle{}}
}

func (m *MemoryStore) Load(_ context.Context) (debugger.SessionHandle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle, nil
}

func (m *MemoryStore) Save(_ context.Context, h debugger.SessionHandle) error {
	if h == nil {
		h = debugger.EmptyHandle{}
	}
	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]debugger.Breakpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]debugger.Breakpoint, len(m.breakpoints))
	copy(out, m.breakpoints)
	return out, nil
}

func (m *MemoryStore) Add(_ context.Context, bp debugger.Breakpoint) error {
	if bp.File.Path == "" {
		return &errors.ValidationError{Field: "file", Message: "breakpoint file path is required"}
	}
	if bp.Kind == "" {
		bp.Kind = debugger.KindBreakpoint
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(bp.File.Path, bp.Line); i >= 0 {
		m.breakpoints[i] = bp
		return nil
	}
	m.breakpoints = append(m.breakpoints, bp)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string, line int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(path, line); i >= 0 {
		m.breakpoints = append(m.breakpoints[:i], m.breakpoints[i+1:]...)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.breakpoints = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetActive(_ context.Context, path string, line int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(path, line); i >= 0 {
		m.breakpoints[i].Active = true
	}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) indexLocked(path string, line int) int {
	for i, bp := range m.breakpoints {
		if bp.File.Path == path && bp.Line == line {
			return i
		}
	}
	return -1
}
