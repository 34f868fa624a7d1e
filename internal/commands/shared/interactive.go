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
	"io"
	"os"

	"golang.org/x/term"
)

// ciMarkers are environment variables set by common CI systems. An empty
// value in the map accepts any non-empty setting.
var ciMarkers = map[string]string{
	"CI":             "",
	"GITHUB_ACTIONS": "true",
	"GITLAB_CI":      "true",
	"CIRCLECI":       "true",
	"JENKINS_HOME":   "",
}

// IsInteractive reports whether in is a terminal a person is typing into.
// RDBG_NON_INTERACTIVE=true and CI environments force false.
func IsInteractive(in io.Reader) bool {
	if os.Getenv("RDBG_NON_INTERACTIVE") == "true" || underCI() {
		return false
	}
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func underCI() bool {
	for name, want := range ciMarkers {
		v := os.Getenv(name)
		if v == "" || v == "false" || v == "0" {
			continue
		}
		if want == "" || v == want {
			return true
		}
	}
	return false
}
