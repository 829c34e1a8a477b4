package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/tablekit/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rows over HTTP",
		Long: `Serve the configured rows over HTTP until interrupted.

Reads go through the query cache; updates and deletes are saved when the
rows come from a database. Prometheus metrics are served on /metrics.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	p, err := openPipeline(opts.RootOptions, cmd, f)
	if err != nil {
		return err
	}
	defer p.Close()

	addr := p.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	srv := server.New(p.client,
		server.WithMetrics(p.metrics, p.registry),
		server.WithLogger(p.logger),
		server.WithRateLimit(p.cfg.Server.RateLimit, p.cfg.Server.Burst),
	)

	p.logger.Info("serving rows",
		"addr", addr,
		"db", p.cfg.Dataset.DB,
		"dataset", p.cfg.Dataset.Path,
		"simulation", p.cfg.Simulation.Enabled,
	)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	p.logger.Info("server stopped")
	return nil
}
