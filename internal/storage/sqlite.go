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
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// SQLiteStore implements SessionStore and BreakpointStore on a local
// SQLite database.
//
// Database location defaults to $XDG_STATE_HOME/rdbg/rdbg.db.
type SQLiteStore struct {
	db      *sql.DB
	slotKey string
	logger  *slog.Logger
}

// SQLiteConfig contains configuration for SQLite storage.
type SQLiteConfig struct {
	// Path is the filesystem path to the database file.
	Path string

	// SlotKey is the kv key holding the session handle.
	SlotKey string

	Logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path and
// runs migrations.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, &errors.ConfigError{Key: "storage.path", Reason: "database path is required"}
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	connStr := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &SQLiteStore{
		db:      db,
		slotKey: slotKey(cfg.SlotKey),
		logger:  log.WithComponent(logger, "sqlite-store"),
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS breakpoints (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			line INTEGER NOT NULL,
			kind TEXT NOT NULL,
			media_type TEXT NOT NULL DEFAULT '',
			resolved_name TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(path, line)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the session slot. A missing or unreadable slot yields
// EmptyHandle.
func (s *SQLiteStore) Load(ctx context.Context) (debugger.SessionHandle, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, s.slotKey).Scan(&data)
	if err == sql.ErrNoRows {
		return debugger.EmptyHandle{}, nil
	}
	if err != nil {
		return debugger.EmptyHandle{}, fmt.Errorf("failed to load session: %w", err)
	}

	h, err := debugger.DecodeHandle(data)
	if err != nil {
		s.logger.Warn("discarding unreadable session slot", slog.String("key", s.slotKey), log.Error(err))
		return debugger.EmptyHandle{}, nil
	}
	return h, nil
}

// Save writes h to the session slot. Saving EmptyHandle clears it.
func (s *SQLiteStore) Save(ctx context.Context, h debugger.SessionHandle) error {
	data, err := debugger.EncodeHandle(h)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if data == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, s.slotKey); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	}

	query := `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, s.slotKey, data, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// List returns breakpoints in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]debugger.Breakpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, line, kind, media_type, resolved_name, message, active
		 FROM breakpoints ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list breakpoints: %w", err)
	}
	defer rows.Close()

	var bps []debugger.Breakpoint
	for rows.Next() {
		var bp debugger.Breakpoint
		var kind string
		var active int
		if err := rows.Scan(&bp.File.Path, &bp.Line, &kind, &bp.File.MediaType, &bp.ResolvedName, &bp.Message, &active); err != nil {
			return nil, fmt.Errorf("failed to scan breakpoint: %w", err)
		}
		bp.Kind = debugger.BreakpointKind(kind)
		bp.Active = active != 0
		bps = append(bps, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list breakpoints: %w", err)
	}
	return bps, nil
}

// Add inserts bp, replacing any breakpoint on the same path and line.
func (s *SQLiteStore) Add(ctx context.Context, bp debugger.Breakpoint) error {
	if bp.File.Path == "" {
		return &errors.ValidationError{Field: "file", Message: "breakpoint file path is required"}
	}
	if bp.Kind == "" {
		bp.Kind = debugger.KindBreakpoint
	}

	query := `INSERT INTO breakpoints (path, line, kind, media_type, resolved_name, message, active)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(path, line) DO UPDATE SET
	            kind = excluded.kind,
	            media_type = excluded.media_type,
	            resolved_name = excluded.resolved_name,
	            message = excluded.message,
	            active = excluded.active`
	_, err := s.db.ExecContext(ctx, query,
		bp.File.Path, bp.Line, string(bp.Kind), bp.File.MediaType, bp.ResolvedName, bp.Message, boolInt(bp.Active))
	if err != nil {
		return fmt.Errorf("failed to add breakpoint: %w", err)
	}
	return nil
}

// Delete removes the breakpoint at path and line. Deleting a missing
// breakpoint is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, path string, line int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM breakpoints WHERE path = ? AND line = ?`, path, line); err != nil {
		return fmt.Errorf("failed to delete breakpoint: %w", err)
	}
	return nil
}

// Clear removes every breakpoint.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM breakpoints`); err != nil {
		return fmt.Errorf("failed to clear breakpoints: %w", err)
	}
	return nil
}

// SetActive marks the breakpoint at path and line as installed.
func (s *SQLiteStore) SetActive(ctx context.Context, path string, line int) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE breakpoints SET active = 1 WHERE path = ? AND line = ?`, path, line); err != nil {
		return fmt.Errorf("failed to activate breakpoint: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
