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

package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/internal/storage"
)

const storeTimeout = 500 * time.Millisecond

// CompleteBreakpoints completes recorded breakpoint locations as
// <path>:<line> with 1-based lines, described by their class name.
func CompleteBreakpoints(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		bps, err := listBreakpoints()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return breakpointCompletions(bps, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

func breakpointCompletions(bps []debugger.Breakpoint, prefix string) []string {
	out := make([]string, 0, len(bps))
	for _, bp := range bps {
		loc := fmt.Sprintf("%s:%d", bp.File.Path, bp.Line+1)
		if !strings.HasPrefix(loc, prefix) {
			continue
		}
		desc := bp.ResolvedName
		if !bp.Active {
			desc = strings.TrimSpace(desc + " (pending)")
		}
		if desc != "" {
			loc += "\t" + desc
		}
		out = append(out, loc)
	}
	return out
}

func listBreakpoints() ([]debugger.Breakpoint, error) {
	cfg, err := LoadConfigForCompletion()
	if err != nil || cfg == nil {
		return nil, err
	}

	store, err := storage.Open(storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		SlotKey: cfg.Session.SlotKey,
		Logger:  log.Discard(),
	})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return store.List(ctx)
}
