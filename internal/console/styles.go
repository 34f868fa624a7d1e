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

// Package console renders debugger session activity on a terminal and
// provides the interactive shell used by "rdbg attach".
package console

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleCurrent = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	styleName    = lipgloss.NewStyle().Bold(true)
)

// palette applies styles only when color output is enabled.
type palette struct {
	color bool
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p palette) ok(text string) string      { return p.render(styleOK, text) }
func (p palette) warn(text string) string    { return p.render(styleWarn, text) }
func (p palette) err(text string) string     { return p.render(styleError, text) }
func (p palette) info(text string) string    { return p.render(styleInfo, text) }
func (p palette) muted(text string) string   { return p.render(styleMuted, text) }
func (p palette) current(text string) string { return p.render(styleCurrent, text) }
func (p palette) name(text string) string    { return p.render(styleName, text) }

// ColorEnabled reports whether w is a terminal that should receive color.
// NO_COLOR and TERM=dumb disable color.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "" || t == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
