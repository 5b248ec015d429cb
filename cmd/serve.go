// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"dbscript/cli/internal/provider"
	"dbscript/cli/internal/provider/remote"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

var (
	serveListen string
	serveToken  string
)

// serveCmd exposes the local providers as a scripting host for other dbscript installs.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve saved connections as a remote scripting host",
	Long: `The serve command runs a gRPC scripting host backed by the connections saved on
this machine. Clients add it to remote_providers in their config.json and route
connections to it with "dbscript connect <name> --provider <id>".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		host := remote.NewHost(a.svc, serveToken, a.logger)
		a.registerProviders(ctx, provider.Tee(a.svc, host))
		defer a.close()

		lis, err := net.Listen("tcp", serveListen)
		if err != nil {
			return err
		}
		srv := grpc.NewServer()
		host.Register(srv)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()

		a.logger.Info("Scripting host listening", a.logger.Args(
			"address", lis.Addr().String(),
			"providers", a.svc.Providers(),
			"auth", serveToken != "",
		))
		pterm.Info.Printfln("Serving %d connection(s) on %s", len(a.conns.List()), lis.Addr())

		select {
		case <-ctx.Done():
			// Completion streams stay open until clients leave, so no graceful drain.
			srv.Stop()
			return nil
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:7400", "Address to listen on")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Require this bearer token from clients")
}
