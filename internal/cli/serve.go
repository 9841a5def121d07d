package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/api"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Serve the REST API under /api/v1 with Prometheus metrics at /metrics.

Non-blocking invocations are queued and executed in the background.
SIGINT or SIGTERM drains the queue and shuts the server down.

Examples:
  nimbus serve
  nimbus serve --listen :3233 --backend redis`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", rootOpts.Config.Listen, "listen address ($NIMBUS_LISTEN)")
	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveOn(ctx, opts, ln, cmd)
}

// serveOn runs the API on ln until ctx is done.
func serveOn(ctx context.Context, opts *ServeOptions, ln net.Listener, cmd *cobra.Command) error {
	rt, err := openRuntime(ctx, opts.RootOptions, cmd)
	if err != nil {
		ln.Close()
		return err
	}
	defer rt.Close()
	logger := rt.logger

	handler := api.NewHandler(rt.manager, rt.invoker, rt.store,
		api.WithNamespace(opts.Config.Namespace),
		api.WithMetrics(rt.metrics.Handler()),
		api.WithLogger(logger),
	)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The invoker loop outlives request contexts; Stop drains it.
	invokerDone := make(chan error, 1)
	go func() {
		invokerDone <- rt.invoker.Run(context.WithoutCancel(ctx))
	}()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", ln.Addr().String(), "backend", opts.Config.Backend)
		serverErrors <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown started")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			if err := srv.Close(); err != nil {
				logger.Error("error closing server", "error", err)
			}
		}
	}

	rt.invoker.Stop()
	if err := <-invokerDone; err != nil {
		logger.Error("invoker stopped with error", "error", err)
	}
	logger.Info("shutdown complete")
	return serveErr
}
