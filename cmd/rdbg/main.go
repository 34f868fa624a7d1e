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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tombee/rdbg/internal/cli"
	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/tracing"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(ctx, tracing.ConfigFromEnv("rdbg", version))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracing disabled: %v\n", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
	}

	rootCmd := cli.NewRootCommand()
	cli.AddCommands(rootCmd)

	executed, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return shared.ExitSuccess
	}
	if shared.GetJSON() && executed != nil {
		name := executed.CommandPath()
		if len(name) > len(rootCmd.Name())+1 {
			name = name[len(rootCmd.Name())+1:]
		}
		_ = shared.EmitJSONError(os.Stdout, name, err)
		return shared.ExitCode(err)
	}
	return shared.PrintError(os.Stderr, err)
}
