package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/cli"
	"github.com/aretw0/rxstore/internal/todo"
	httpAdapter "github.com/aretw0/rxstore/pkg/adapters/http"
	redisAdapter "github.com/aretw0/rxstore/pkg/adapters/redis"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	Addr         string
	Name         string
	Middlewares  []string
	CascadeLimit int
	Metrics      bool
	RedisAddr    string
	RedisChannel string
	LockTTL      time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts a todo store and exposes it over HTTP: POST /actions, GET /state,
GET /events (SSE) and GET /healthz. With --redis-addr, actions published on
--redis-channel are dispatched too and every state is persisted as a snapshot
from which the next start resumes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		logger, err := cli.NewLogger(level)
		if err != nil {
			return err
		}

		opts := serveOptions{}
		opts.Addr, _ = cmd.Flags().GetString("addr")
		opts.Name, _ = cmd.Flags().GetString("name")
		opts.Middlewares, _ = cmd.Flags().GetStringSlice("middleware")
		opts.CascadeLimit, _ = cmd.Flags().GetInt("cascade-limit")
		opts.Metrics, _ = cmd.Flags().GetBool("metrics")
		opts.RedisAddr, _ = cmd.Flags().GetString("redis-addr")
		opts.RedisChannel, _ = cmd.Flags().GetString("redis-channel")
		opts.LockTTL, _ = cmd.Flags().GetDuration("lock-ttl")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, opts, logger)
	},
}

func serve(ctx context.Context, opts serveOptions, logger *slog.Logger) error {
	registry := todo.Registry()
	dispatcher := rxstore.NewDispatcher[todo.State, todo.Action]()
	mws := []rxstore.Middleware[todo.State, todo.Action]{dispatcher.Middleware()}

	extra, err := cli.Middlewares(opts.Middlewares, logger)
	if err != nil {
		return err
	}
	mws = append(mws, extra...)

	hooks := []domain.Hooks{cli.DebugHooks(logger)}
	router := chi.NewRouter()
	if opts.Metrics {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector("rxstore")
		collector.MustRegister(reg)
		hooks = append(hooks, collector.Hooks())
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	initial := todo.Initial()
	if opts.RedisAddr != "" {
		client := backend.NewClient(&backend.Options{Addr: opts.RedisAddr})
		defer client.Close()

		if opts.LockTTL > 0 {
			lockCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			unlock, err := redisAdapter.NewLocker(client).Lock(lockCtx, opts.Name, opts.LockTTL)
			cancel()
			if err != nil {
				return fmt.Errorf("store %s is held by another instance: %w", opts.Name, err)
			}
			defer func() {
				if err := unlock(context.Background()); err != nil {
					logger.Warn("Failed to release lock", "err", err)
				}
			}()
		}

		snapshots := redisAdapter.NewSnapshotStore[todo.State](client, redisAdapter.WithLogger(logger))
		initial, err = snapshots.LoadOr(ctx, opts.Name, todo.Initial())
		if err != nil {
			return fmt.Errorf("failed to load snapshot: %w", err)
		}
		logger.Info("Resuming store", "store", opts.Name, "items", len(initial.Items))

		source := redisAdapter.NewSource[todo.State](client, opts.RedisChannel, registry, redisAdapter.WithLogger(logger))
		mws = append(mws, source.Middleware(), redisAdapter.Persist[todo.State, todo.Action](snapshots, opts.Name))
	}

	store := rxstore.New(todo.Reduce, initial, mws,
		rxstore.WithName(opts.Name),
		rxstore.WithLogger(logger),
		rxstore.WithHooks(domain.JoinHooks(hooks...)),
		rxstore.WithCascadeLimit(opts.CascadeLimit),
	)

	api := httpAdapter.NewServer(dispatcher, registry, httpAdapter.WithLogger(logger))
	api.Attach(store.Shared())
	defer api.Close()
	router.Mount("/", api.Handler())

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Starting rxstore server", "addr", srv.Addr, "store", opts.Name)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// SSE clients hold their connections until the store disconnects them.
		api.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		logger.Info("rxstore server stopped gracefully")
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("name", "todo", "Store name, used in logs, metrics and Redis keys")
	serveCmd.Flags().StringSlice("middleware", nil, "Middlewares to install (auto-delete, logger)")
	serveCmd.Flags().Int("cascade-limit", 0, "Maximum actions folded in one uninterrupted cascade (0 disables the guard)")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the action source and snapshots (disabled when empty)")
	serveCmd.Flags().String("redis-channel", "rxstore:actions", "Redis channel carrying action envelopes")
	serveCmd.Flags().Duration("lock-ttl", 0, "Hold an exclusive Redis lock on the store for this long (0 disables locking)")
}
