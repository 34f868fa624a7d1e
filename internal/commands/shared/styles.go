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

package shared

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Header styles section titles in command output.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// RenderOK marks msg as a successful outcome.
func RenderOK(msg string) string {
	return okStyle.Render("✓") + " " + msg
}

// RenderWarn marks msg as a condition the user should notice, such as a
// change that was only recorded locally.
func RenderWarn(msg string) string {
	return warnStyle.Render("!") + " " + msg
}

func RenderError(prefix string) string {
	return errorStyle.Render(prefix)
}

func RenderLabel(label string) string {
	return labelStyle.Render(label)
}
