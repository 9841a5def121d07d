package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/nimbus/internal/adapters/memory"
	"github.com/roach88/nimbus/internal/adapters/redis"
	"github.com/roach88/nimbus/internal/config"
	"github.com/roach88/nimbus/internal/entity"
	"github.com/roach88/nimbus/internal/invoke"
	"github.com/roach88/nimbus/internal/metrics"
	"github.com/roach88/nimbus/internal/resolve"
	"github.com/roach88/nimbus/internal/store"
)

// backend is a store that can record activations.
type backend interface {
	entity.Store
	entity.ActivationStore
}

// runtime wires a backend to the resolver, manager and invoker.
type runtime struct {
	store    backend
	resolver *resolve.Resolver
	manager  *entity.Manager
	invoker  *invoke.Invoker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	close    func() error
}

// openRuntime opens the configured backend. Failures are command errors.
func openRuntime(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*runtime, error) {
	logger := opts.logger(cmd)

	st, closeFn, err := openBackend(ctx, opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open backend", err)
	}
	logger.Debug("backend ready", "backend", opts.Config.Backend)

	clock, err := resumeClock(ctx, st, opts.Config.Namespace)
	if err != nil {
		closeBackend(closeFn, logger)
		return nil, WrapExitError(ExitCommandError, "failed to read activations", err)
	}

	m := metrics.New()
	resolver := resolve.New(st, resolve.WithObserver(m), resolve.WithLogger(logger))
	return &runtime{
		store:    st,
		resolver: resolver,
		manager: entity.NewManager(st,
			entity.WithResolver(resolver),
			entity.WithObserver(m),
			entity.WithLogger(logger),
		),
		invoker: invoke.New(resolver, st,
			invoke.WithClock(clock),
			invoke.WithObserver(m),
			invoke.WithLogger(logger),
		),
		metrics: m,
		logger:  logger,
		close:   closeFn,
	}, nil
}

// Close releases the backend.
func (rt *runtime) Close() {
	closeBackend(rt.close, rt.logger)
}

func closeBackend(closeFn func() error, logger *slog.Logger) {
	if err := closeFn(); err != nil {
		logger.Error("error closing backend", "error", err)
	}
}

// resumeClock continues the sequence after the namespace's newest
// activation, so records from separate processes keep their order.
func resumeClock(ctx context.Context, st backend, namespace string) (*invoke.Clock, error) {
	latest, err := st.ListActivations(ctx, namespace, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return invoke.NewClock(), nil
	}
	return invoke.NewClockAt(latest[0].Seq), nil
}

func openBackend(ctx context.Context, cfg config.Config) (backend, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory:
		return memory.NewStore(), func() error { return nil }, nil

	case config.BackendRedis:
		st := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redis.WithPrefix(cfg.RedisPrefix))
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		if err := st.CheckSchema(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return st, st.Close, nil

	case config.BackendSQLite, "":
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite %s: %w", cfg.DBPath, err)
		}
		return st, st.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
