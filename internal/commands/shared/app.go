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
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tombee/rdbg/internal/client"
	"github.com/tombee/rdbg/internal/config"
	"github.com/tombee/rdbg/internal/console"
	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/internal/rpc"
	"github.com/tombee/rdbg/internal/storage"
	"github.com/tombee/rdbg/internal/workspace"
	pkgerrors "github.com/tombee/rdbg/pkg/errors"
)

// busDialTimeout bounds the event channel handshake.
const busDialTimeout = 5 * time.Second

// AppOptions controls how much of the stack OpenApp builds.
type AppOptions struct {
	// Events dials the agent's message bus so pushed events are handled.
	// One-shot commands leave it off and rely on polling.
	Events bool

	// Out receives observer output. Nil discards it.
	Out io.Writer
}

// App is a debug session wired to its configured collaborators.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.Store
	Client    *client.Client
	Bus       *rpc.Bus
	Workspace *workspace.Workspace
	Printer   *console.Printer
	Session   *debugger.Session
}

// LoadConfig loads the configuration named by --config and applies the
// --agent override.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if agent := GetAgentURL(); agent != "" {
		cfg.Agent.URL = agent
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// NewLogger builds the CLI logger from cfg, raising the level to debug
// when --verbose is set.
func NewLogger(cfg *config.Config) *slog.Logger {
	lc := &log.Config{
		Level:  cfg.Log.Level,
		Format: log.Format(cfg.Log.Format),
		Output: os.Stderr,
	}
	if GetVerbose() && log.ParseLevel(lc.Level) > slog.LevelDebug {
		lc.Level = "debug"
	}
	return log.New(lc)
}

// OpenApp loads configuration and builds a disconnected session.
func OpenApp(ctx context.Context, opts AppOptions) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg)

	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Store, err = storage.Open(storage.Config{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		SlotKey: cfg.Session.SlotKey,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	clientOpts := []client.Option{client.WithLogger(logger)}
	if cfg.Agent.APIKey != "" {
		clientOpts = append(clientOpts, client.WithAPIKey(cfg.Agent.APIKey))
	}
	if cfg.Agent.RateLimit > 0 {
		clientOpts = append(clientOpts, client.WithRateLimit(cfg.Agent.RateLimit, cfg.Agent.Burst))
	}
	app.Client, err = client.Dial(cfg.Agent.URL, clientOpts...)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	app.Printer = console.NewPrinter(out)

	app.Workspace, err = workspace.New(workspace.Config{
		Root:           cfg.Workspace.Root,
		SourcePatterns: cfg.Workspace.SourcePatterns,
		AllowExternal:  cfg.Workspace.AllowExternal,
		Sink:           app.Printer,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	sessionCfg := debugger.Config{
		Transport:             app.Client,
		Store:                 app.Store,
		Breakpoints:           app.Store,
		Workspace:             app.Workspace,
		Resolvers:             app.Workspace.Resolvers(),
		EventsTopicPrefix:     cfg.Session.EventsPrefix,
		DisconnectTopicPrefix: cfg.Session.DisconnectPrefix,
		Logger:                logger,
	}
	if opts.Events {
		if bus := app.dialBus(ctx); bus != nil {
			app.Bus = bus
			sessionCfg.Channel = bus
		}
	}

	app.Session, err = debugger.New(sessionCfg)
	if err != nil {
		return nil, err
	}
	ok = true
	return app, nil
}

// dialBus connects the event channel. Failure is logged and the session
// falls back to polling.
func (a *App) dialBus(ctx context.Context) *rpc.Bus {
	url := a.Config.EventsURL()
	if url == "" {
		a.Logger.Debug("no event channel for agent URL; events will be polled", "agent_url", a.Config.Agent.URL)
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, busDialTimeout)
	defer cancel()

	bus, err := rpc.Dial(dialCtx, rpc.BusConfig{
		URL:       url,
		AuthToken: a.Config.Agent.APIKey,
		Logger:    a.Logger,
	})
	if err != nil {
		a.Logger.Warn("event channel unavailable; events will be polled", "url", url, log.Error(err))
		return nil
	}
	return bus
}

// Observe starts printing session notifications. Commands call it after
// recovering so the implicit re-attach is not reported.
func (a *App) Observe() {
	a.Session.AddObserver(a.Printer)
}

// Recover re-attaches to the persisted session, if the agent still has it.
func (a *App) Recover(ctx context.Context) (bool, error) {
	return a.Session.Recover(ctx)
}

// Close waits for background session work and releases every resource.
func (a *App) Close() error {
	var errs []error
	if a.Session != nil {
		a.Session.Close()
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Client != nil {
		a.Client.Close()
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// RequireAttached recovers the persisted session and fails when none is
// live.
func (a *App) RequireAttached(ctx context.Context) error {
	attached, err := a.Recover(ctx)
	if err != nil {
		return err
	}
	if !attached {
		return pkgerrors.ErrNotAttached
	}
	return nil
}
