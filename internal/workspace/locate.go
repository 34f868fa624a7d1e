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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

// Locate parses a user breakpoint argument of the form <source>:<line>,
// where line is 1-based, and returns the file and 0-based line.
//
// The source is resolved in order:
//  1. an existing path, absolute or relative to the working directory
//  2. a path relative to the workspace root
//  3. a path relative to any source root
//  4. a class name (com.acme.App) resolved through the source roots
func (w *Workspace) Locate(arg string) (debugger.File, int, error) {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 || i == len(arg)-1 {
		return debugger.File{}, 0, &errors.ValidationError{Field: "location", Message: fmt.Sprintf("expected <file>:<line>, got %q", arg)}
	}
	source, lineStr := arg[:i], arg[i+1:]
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return debugger.File{}, 0, &errors.ValidationError{Field: "line", Message: fmt.Sprintf("line must be a positive number, got %q", lineStr)}
	}

	path, err := w.findSource(source)
	if err != nil {
		return debugger.File{}, 0, err
	}

	f := debugger.File{Path: path}
	if filepath.Ext(path) == ".java" {
		f.MediaType = JavaMediaType
	}
	return f, line - 1, nil
}

func (w *Workspace) findSource(source string) (string, error) {
	if isFile(source) {
		abs, err := filepath.Abs(source)
		if err != nil {
			return "", err
		}
		return filepath.ToSlash(abs), nil
	}

	tried := []string{source}
	if !filepath.IsAbs(source) {
		candidate := filepath.Join(w.root, source)
		tried = append(tried, candidate)
		if isFile(candidate) {
			return filepath.ToSlash(candidate), nil
		}

		rel := filepath.ToSlash(source)
		for _, root := range w.roots {
			candidate := root + rel
			tried = append(tried, candidate)
			if isFile(candidate) {
				return candidate, nil
			}
		}

		if !strings.ContainsAny(source, `/\`) && filepath.Ext(source) != ".java" {
			for _, candidate := range debugger.CandidatePaths(source, w.roots) {
				if strings.HasPrefix(candidate, "/") && isFile(candidate) {
					return candidate, nil
				}
			}
		}
	}

	return "", &errors.NotFoundError{Resource: "source file", ID: fmt.Sprintf("%s (tried %s)", source, strings.Join(tried, ", "))}
}

func isFile(p string) bool {
	info, err := os.Stat(filepath.FromSlash(p))
	return err == nil && info.Mode().IsRegular()
}
