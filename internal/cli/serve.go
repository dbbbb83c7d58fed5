package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/transport/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Transport string
	Listen    string

	// ready, when set, receives the bound address once the listener is
	// up. Used by tests listening on port 0.
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose a transport over HTTP",
		Long: `Serve a configured transport over HTTP so peers can use it as a
"server" transport. Prometheus metrics are exported on /metrics.

Examples:
  objsync serve
  objsync serve --transport local --listen :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Transport, "transport", "t", "", "transport to serve (default the first configured)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	name := opts.Transport
	if name == "" {
		if len(cfg.Transports) == 0 {
			return NewExitError(ExitCommandError, "no transports configured")
		}
		name = cfg.Transports[0].Name
	}
	listen := cfg.Server.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := notifyContext(parent)
	defer stop()

	pool := newTransportPool(cfg, logger)
	defer pool.close()
	tr, err := pool.get(ctx, name)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           server.NewHandler(tr, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := ln.Addr().String()
	logger.Info("object server listening", "addr", addr, "transport", tr.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", tr.Name(), addr)
	if opts.ready != nil {
		opts.ready <- addr
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down object server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown", err)
	}
	return nil
}
