// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/matrix-console/lib/config"
	"github.com/bureau-foundation/matrix-console/lib/identity"
	"github.com/bureau-foundation/matrix-console/lib/netlog"
	"github.com/bureau-foundation/matrix-console/lib/netmetrics"
	"github.com/bureau-foundation/matrix-console/lib/notify"
	"github.com/bureau-foundation/matrix-console/lib/tui"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// ConsoleFlags are the flags shared by every command that talks to a
// homeserver. Embed it in a params struct:
//
//	type callParams struct {
//	    cli.ConsoleFlags
//	    Vars []string `flag:"var" desc:"template variable as key=value"`
//	}
//
//	// In Run:
//	return params.Run(ctx, streams, func(console *cli.Console) error {
//	    ...
//	})
type ConsoleFlags struct {
	ConfigPath     string `json:"-" flag:"config" desc:"console config file (default: $MATRIX_CONSOLE_CONFIG)"`
	IdentityName   string `json:"-" flag:"identity,i" desc:"identity to act as (default: default_identity from config)"`
	DryRun         bool   `json:"-" flag:"dry-run" desc:"record requests in the network log without sending them"`
	NetworkLog     string `json:"-" flag:"network-log" desc:"save the network log to this file on exit (.json or .cbor, optionally .zst)"`
	ShowNetworkLog bool   `json:"-" flag:"show-network-log" desc:"print the network log on exit"`
	Metrics        bool   `json:"-" flag:"metrics" desc:"print request metrics on exit"`
	Yes            bool   `json:"-" flag:"yes,y" desc:"approve destructive requests without asking"`
}

// LoadConfig loads the configuration named by --config or
// MATRIX_CONSOLE_CONFIG, falling back to the defaults when neither is
// set, and applies the flag overrides.
func (f *ConsoleFlags) LoadConfig() (*config.Config, error) {
	path := f.ConfigPath
	if path == "" {
		path = os.Getenv(config.EnvironmentVariable)
	}

	var cfg *config.Config
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, NotFound("config file %s does not exist", path)
			}
			return nil, Validation("%w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.IdentitiesFile = os.ExpandEnv(cfg.IdentitiesFile)
	}

	if f.DryRun {
		cfg.DryRun = true
	}
	if f.NetworkLog != "" {
		cfg.NetworkLog.Export = f.NetworkLog
	}
	if f.ShowNetworkLog {
		cfg.NetworkLog.Show = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, Validation("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Console is the wired request pipeline of one command invocation:
// identities, the notification bus with the network log and metrics
// attached, the dispatcher, and the invoker.
type Console struct {
	Config     *config.Config
	Identities identity.Store
	Bus        *notify.Bus[messaging.Notification]
	Dispatcher *messaging.Dispatcher
	Invoker    *messaging.Invoker
	Prompter   *Prompter
	Log        *netlog.Log
	Metrics    *netmetrics.Collector
	Logger     *slog.Logger
	Streams    Streams
	Renderer   *lipgloss.Renderer

	flags  ConsoleFlags
	detach []func()
}

// Open loads configuration and identities and wires the pipeline.
// Close must be called to detach observers and write the exit reports.
func (f *ConsoleFlags) Open(streams Streams) (*Console, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, err
	}
	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, Validation("%w", err)
	}
	logger := NewCommandLogger(streams.Err, level)

	store, err := identity.LoadFile(cfg.IdentitiesFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound("identities file %s does not exist (set identities_file in the console config)", cfg.IdentitiesFile)
		}
		return nil, Validation("%w", err)
	}

	bus := &notify.Bus[messaging.Notification]{}
	networkLog := netlog.New(netlog.Config{MaxRecords: cfg.NetworkLog.MaxRecords, Logger: logger})
	metrics := netmetrics.NewCollector()

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		Bus:        bus,
		DryRun:     cfg.DryRun,
		Logger:     logger,
	})

	renderer := tui.NewRenderer(streams.Err, IsTerminal(streams.Err))
	prompter := NewPrompter(streams, renderer, tui.DefaultTheme, f.Yes)

	invoker, err := messaging.NewInvoker(messaging.InvokerConfig{
		Dispatcher:     dispatcher,
		Confirmer:      prompter,
		Alerter:        prompter,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})
	if err != nil {
		return nil, Internal("%w", err)
	}

	return &Console{
		Config:     cfg,
		Identities: store,
		Bus:        bus,
		Dispatcher: dispatcher,
		Invoker:    invoker,
		Prompter:   prompter,
		Log:        networkLog,
		Metrics:    metrics,
		Logger:     logger,
		Streams:    streams,
		Renderer:   renderer,
		flags:      *f,
		detach:     []func(){networkLog.Attach(bus), metrics.Attach(bus)},
	}, nil
}

// Run opens a console, calls function, and closes the console. Errors
// from both are returned.
func (f *ConsoleFlags) Run(streams Streams, function func(*Console) error) (err error) {
	console, err := f.Open(streams)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, console.Close())
	}()
	return function(console)
}

// Identity returns the identity selected by --identity, the configured
// default, or the only identity in the store.
func (c *Console) Identity() (identity.Identity, error) {
	name := c.flags.IdentityName
	if name == "" {
		name = c.Config.DefaultIdentity
	}
	available := c.Identities.List()
	if name == "" {
		if len(available) == 1 {
			return available[0], nil
		}
		return identity.Identity{}, Validation("no identity selected: pass --identity or set default_identity (available: %s)",
			strings.Join(identityNames(available), ", "))
	}

	selected, err := c.Identities.Lookup(name)
	if err != nil {
		if suggestion := SuggestName(name, identityNames(available)); suggestion != "" {
			return identity.Identity{}, &ToolError{Category: CategoryNotFound, Err: fmt.Errorf("%w (did you mean %q?)", err, suggestion)}
		}
		return identity.Identity{}, &ToolError{Category: CategoryNotFound, Err: err}
	}
	return selected, nil
}

// Session returns a typed session acting as the selected identity.
func (c *Console) Session() (*messaging.Session, error) {
	who, err := c.Identity()
	if err != nil {
		return nil, err
	}
	return messaging.NewSession(c.Invoker, who), nil
}

// Close detaches the observers and writes what the configuration asks
// for on exit: the network log, its snapshot, and the metrics summary.
func (c *Console) Close() error {
	for _, detach := range c.detach {
		detach()
	}
	c.detach = nil

	var errs []error
	if c.Config.NetworkLog.Show {
		err := netlog.Render(c.Streams.Err, c.Log.Records(), netlog.RenderOptions{
			Renderer:   c.Renderer,
			Width:      TerminalWidth(c.Streams.Err),
			Truncated:  c.Log.Truncated(),
			ShowTiming: true,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("printing network log: %w", err))
		}
	}
	if path := c.Config.NetworkLog.Export; path != "" {
		if err := netlog.SaveFile(path, c.Log.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("saving network log: %w", err))
		} else {
			c.Logger.Info("network log saved", "path", path, "records", c.Log.Len())
		}
	}
	if c.flags.Metrics {
		if err := c.Metrics.WriteSummary(c.Streams.Err); err != nil {
			errs = append(errs, fmt.Errorf("printing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

func identityNames(identities []identity.Identity) []string {
	names := make([]string, len(identities))
	for i, entry := range identities {
		names[i] = entry.Name
	}
	return names
}
