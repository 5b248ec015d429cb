// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"strings"

	"dbscript/cli/internal/config"
	"dbscript/cli/internal/connection"
	"dbscript/cli/internal/keychain"
	"dbscript/cli/internal/logging"
	"dbscript/cli/internal/provider/postgres"
	"dbscript/cli/internal/provider/remote"
	"dbscript/cli/internal/provider/sqlite"
	"dbscript/cli/internal/scripting"

	"github.com/pterm/pterm"
)

// Completion handles. The remote providers take handles after handleRemote.
const (
	handlePostgres = 1
	handleSQLite   = 2
	handleRemote   = 3
)

// app wires configuration, connections and the scripting service for one command run.
type app struct {
	cfg    config.Config
	logger *pterm.Logger
	conns  *connection.Manager
	svc    *scripting.Service

	closers []func()
}

// newApp loads configuration and saved connections. Providers are registered
// separately so commands that only manage connections never open databases.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}

	var store connection.Store
	if km, kerr := keychain.GetManager(); kerr == nil {
		store = km
	} else {
		logger.Warn("Secure storage is not available; connections will not be saved", logger.Args("error", kerr.Error()))
	}

	conns := connection.NewManager(store)
	if err := conns.Load(); err != nil {
		logger.Warn("Some saved connections could not be loaded", logger.Args("error", logging.Mask(err.Error())))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		conns:  conns,
		svc:    scripting.NewService(conns, logger),
	}, nil
}

// registerProviders registers the built-in providers and one remote provider per
// configured scripting host. Completions go to sink, or to the service when nil.
func (a *app) registerProviders(ctx context.Context, sink scripting.CompletionSink) {
	if sink == nil {
		sink = a.svc
	}

	pg := postgres.New(handlePostgres, sink, a.conns)
	a.svc.RegisterProvider(postgres.ProviderID, pg)
	a.closers = append(a.closers, pg.Close)

	lite := sqlite.New(handleSQLite, sink, a.conns)
	a.svc.RegisterProvider(sqlite.ProviderID, lite)
	a.closers = append(a.closers, lite.Close)

	for i, rp := range a.cfg.RemoteProviders {
		conn, err := remote.Dial(rp.Address, rp.Insecure)
		if err != nil {
			a.logger.Warn("Skipping scripting host", a.logger.Args("provider", rp.ID, "address", rp.Address, "error", err.Error()))
			continue
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })

		var opts []remote.Option
		if strings.TrimSpace(rp.Token) != "" {
			opts = append(opts, remote.WithToken(rp.Token))
		}
		p := remote.New(handleRemote+i, sink, conn, opts...)
		a.svc.RegisterProvider(rp.ID, p)

		id := rp.ID
		go func() {
			if err := p.Listen(ctx); err != nil {
				a.logger.Debug("Completion stream closed", a.logger.Args("provider", id, "error", err.Error()))
			}
		}()
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
