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

package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// DefaultSourcePatterns locate Java source roots in Maven and Gradle
// projects.
var DefaultSourcePatterns = []string{"**/src/main/java", "**/src/test/java"}

// skipDirs are never descended into during discovery.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"target":       true,
	"build":        true,
	".gradle":      true,
	".idea":        true,
}

// Sink receives editor effects.
type Sink interface {
	FileOpened(path string, loc debugger.Location)
	ExecutionLine(path string, line int)
	ExecutionLineCleared()
	DebugPanelShown()
}

// NopSink discards every effect.
type NopSink struct{}

func (NopSink) FileOpened(string, debugger.Location) {}
func (NopSink) ExecutionLine(string, int)            {}
func (NopSink) ExecutionLineCleared()                {}
func (NopSink) DebugPanelShown()                     {}

// Config configures a filesystem workspace.
type Config struct {
	// Root is the project directory. Defaults to the working directory.
	Root string

	// SourcePatterns are doublestar patterns, relative to Root, matching
	// source root directories. Defaults to DefaultSourcePatterns.
	SourcePatterns []string

	// AllowExternal accepts a bare class name as the opened file when no
	// candidate exists on disk, for classes that live in dependencies.
	AllowExternal bool

	Sink   Sink
	Logger *slog.Logger
}

// Workspace implements debugger.Workspace over a project directory.
type Workspace struct {
	root          string
	roots         []string
	allowExternal bool
	sink          Sink
	logger        *slog.Logger

	mu     sync.Mutex
	active string
	line   int
}

var _ debugger.Workspace = (*Workspace)(nil)

// New discovers source roots under cfg.Root.
func New(cfg Config) (*Workspace, error) {
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, &errors.ConfigError{Key: "workspace.root", Reason: fmt.Sprintf("%s is not a directory", root), Cause: err}
	}

	patterns := cfg.SourcePatterns
	if len(patterns) == 0 {
		patterns = DefaultSourcePatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &errors.ConfigError{Key: "workspace.source_patterns", Reason: fmt.Sprintf("invalid pattern %q", p)}
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink{}
	}

	w := &Workspace{
		root:          root,
		allowExternal: cfg.AllowExternal,
		sink:          sink,
		logger:        log.WithComponent(logger, "workspace"),
		line:          -1,
	}

	w.roots, err = discoverRoots(root, patterns)
	if err != nil {
		return nil, err
	}
	if len(w.roots) == 0 {
		w.roots = []string{asRoot(root)}
	}
	w.logger.Debug("source roots discovered", "root", root, "count", len(w.roots))

	return w, nil
}

// discoverRoots walks root once and returns every directory matching any
// pattern, as absolute slash paths ending in "/".
func discoverRoots(root string, patterns []string) ([]string, error) {
	var roots []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				roots = append(roots, asRoot(p))
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering source roots: %w", err)
	}
	slices.Sort(roots)
	return roots, nil
}

func asRoot(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Root returns the project directory.
func (w *Workspace) Root() string { return w.root }

// SourceRoots returns the discovered source roots.
func (w *Workspace) SourceRoots() []string {
	return slices.Clone(w.roots)
}

// ActiveFile returns the most recently opened file.
func (w *Workspace) ActiveFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// ExecutionLine returns the active file and marker line. ok is false when
// no marker is set.
func (w *Workspace) ExecutionLine() (path string, line int, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active, w.line, w.line >= 0
}

// OpenFile makes the first candidate that exists on disk the active file.
// With AllowExternal set, a candidate that is a bare class name is
// accepted as-is.
func (w *Workspace) OpenFile(_ context.Context, loc debugger.Location, candidates []string) (string, error) {
	opened := ""
	for _, c := range candidates {
		if !strings.HasPrefix(c, "/") {
			continue
		}
		if info, err := os.Stat(filepath.FromSlash(c)); err == nil && info.Mode().IsRegular() {
			opened = c
			break
		}
	}
	if opened == "" && w.allowExternal {
		for _, c := range candidates {
			if c != "" && !strings.HasPrefix(c, "/") {
				opened = c
				break
			}
		}
	}
	if opened == "" {
		return "", &errors.ResolutionError{ClassName: loc.ClassName, Candidates: candidates}
	}

	w.mu.Lock()
	if w.active != opened {
		w.line = -1
	}
	w.active = opened
	w.mu.Unlock()

	w.sink.FileOpened(opened, loc)
	return opened, nil
}

// SetExecutionLine moves the marker in the active file. Lines are 0-based.
func (w *Workspace) SetExecutionLine(line int) {
	w.mu.Lock()
	w.line = line
	active := w.active
	w.mu.Unlock()
	w.sink.ExecutionLine(active, line)
}

// ClearExecutionLine removes the marker.
func (w *Workspace) ClearExecutionLine() {
	w.mu.Lock()
	had := w.line >= 0
	w.line = -1
	w.mu.Unlock()
	if had {
		w.sink.ExecutionLineCleared()
	}
}

// ShowDebugPanel reports the request to the sink.
func (w *Workspace) ShowDebugPanel() {
	w.sink.DebugPanelShown()
}

// ReadLines returns lines [from, to) of path, clamped to the file. It is
// used to render source around the execution marker.
func ReadLines(path string, from, to int) ([]string, error) {
	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	from = max(from, 0)
	to = min(to, len(lines))
	if from >= to {
		return nil, nil
	}
	return lines[from:to], nil
}
