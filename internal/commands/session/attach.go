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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tombee/rdbg/internal/commands/shared"
	"github.com/tombee/rdbg/internal/console"
	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// NewAttachCommand creates the attach command.
func NewAttachCommand() *cobra.Command {
	var (
		noShell     bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "attach <host>:<port>",
		Short: "Attach to a remote JVM through the debug agent",
		Long: `Attach asks the debug agent to connect to the JVM listening for a
debugger at host:port. Breakpoints recorded while detached are sent along
and installed by the agent.

By default an interactive shell is started. Use --no-shell to attach and
exit; the session is persisted and picked up by later commands.`,
		Example: `  rdbg attach localhost:5005
  rdbg attach 10.0.0.5:5005 --no-shell
  rdbg attach app:5005 --metrics-addr :9464`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(cmd, args[0], noShell, metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&noShell, "no-shell", false, "Attach and exit without starting the shell")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the shell runs")

	return cmd
}

// ParseTarget splits "host:port".
func ParseTarget(target string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil || host == "" {
		return "", 0, &pkgerrors.ValidationError{Field: "target", Message: fmt.Sprintf("expected <host>:<port>, got %q", target)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, &pkgerrors.ValidationError{Field: "port", Message: fmt.Sprintf("invalid port %q", portStr)}
	}
	return host, port, nil
}

func runAttach(cmd *cobra.Command, target string, noShell bool, metricsAddr string) error {
	host, port, err := ParseTarget(target)
	if err != nil {
		return shared.NewUsageError("invalid target", err)
	}

	ctx := cmd.Context()
	app, err := shared.OpenApp(ctx, shared.AppOptions{
		Events: !noShell,
		Out:    shared.ObserverOutput(cmd),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	// A live persisted session would be orphaned on the agent if its slot
	// were overwritten, so it has to be detached first.
	if _, err := app.Recover(ctx); err != nil {
		return shared.NewCommandError("checking persisted session", err)
	}
	if h, ok := debugger.Active(app.Session.Handle()); ok && app.Session.IsConnected() {
		return shared.NewCommandError(fmt.Sprintf("attach to %s:%d refused", host, port),
			&pkgerrors.AlreadyAttachedError{Host: h.Host, Port: h.Port, SessionID: h.ID})
	}

	if metricsAddr != "" && !noShell {
		stop, err := serveMetrics(metricsAddr, app.Logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	app.Observe()

	var spinner *shared.Spinner
	if !shared.GetQuiet() && !shared.GetJSON() {
		spinner = shared.NewSpinnerTo(cmd.ErrOrStderr())
		spinner.Start(fmt.Sprintf("Attaching to %s:%d", host, port))
	}
	err = app.Session.Connect(ctx, host, port)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return shared.NewCommandError(fmt.Sprintf("attach to %s:%d failed", host, port), err)
	}

	if noShell {
		if shared.GetJSON() {
			return shared.EmitJSONTo(cmd.OutOrStdout(), newStatusResponse(ctx, "attach", app))
		}
		return nil
	}

	if shared.IsInteractive(cmd.InOrStdin()) {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderLabel("Type 'help' for commands, 'quit' to leave the session attached, 'detach' to end it."))
	}
	shell := console.NewShell(app.Session, app.Workspace, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveMetrics exposes the Prometheus registry on addr until stop is
// called.
func serveMetrics(addr string, logger *slog.Logger) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &pkgerrors.ConfigError{Key: "metrics-addr", Reason: fmt.Sprintf("cannot listen on %s", addr), Cause: err}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", log.Error(err))
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
