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
	"fmt"
	"io"
	"log/slog"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

// DefaultSlotKey is the key under which the session handle is stored.
const DefaultSlotKey = "debugger.session"

// Backend names accepted by Open.
const (
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
	BackendKeyring = "keyring"
)

// Store satisfies both persistence contracts of the debugger session.
type Store interface {
	debugger.SessionStore
	debugger.BreakpointStore
	io.Closer
}

// Config selects and configures a backend.
type Config struct {
	// Backend is one of BackendSQLite, BackendMemory or BackendKeyring.
	Backend string

	// Path is the SQLite database file. The keyring backend keeps
	// breakpoints here too.
	Path string

	// SlotKey overrides DefaultSlotKey.
	SlotKey string

	Logger *slog.Logger
}

// Open creates the store named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case "", BackendSQLite:
		return NewSQLiteStore(SQLiteConfig{Path: cfg.Path, SlotKey: cfg.SlotKey, Logger: cfg.Logger})
	case BackendKeyring:
		db, err := NewSQLiteStore(SQLiteConfig{Path: cfg.Path, SlotKey: cfg.SlotKey, Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		return &splitStore{
			SessionStore:    NewKeyringSessionStore(KeyringConfig{Account: cfg.SlotKey, Logger: cfg.Logger}),
			BreakpointStore: db,
			closer:          db,
		}, nil
	default:
		return nil, &errors.ConfigError{
			Key:    "storage.backend",
			Reason: fmt.Sprintf("unknown storage backend %q (want sqlite, memory or keyring)", cfg.Backend),
		}
	}
}

// splitStore keeps the session slot and the breakpoint list in different
// backends.
type splitStore struct {
	debugger.SessionStore
	debugger.BreakpointStore
	closer io.Closer
}

func (s *splitStore) Close() error {
	return s.closer.Close()
}

func slotKey(key string) string {
	if key == "" {
		return DefaultSlotKey
	}
	return key
}
