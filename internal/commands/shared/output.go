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

	"github.com/spf13/cobra"
)

// ObserverOutput is where session notifications go for cmd: stdout, or
// nowhere under --quiet and --json.
func ObserverOutput(cmd *cobra.Command) io.Writer {
	if GetQuiet() || GetJSON() {
		return io.Discard
	}
	return cmd.OutOrStdout()
}

// OpenAttached opens the app for a one-shot command and recovers the
// persisted session. The caller must Close the returned app.
func OpenAttached(cmd *cobra.Command) (*App, error) {
	app, err := OpenApp(cmd.Context(), AppOptions{Out: ObserverOutput(cmd)})
	if err != nil {
		return nil, err
	}
	if err := app.RequireAttached(cmd.Context()); err != nil {
		app.Close()
		return nil, err
	}
	app.Observe()
	return app, nil
}
