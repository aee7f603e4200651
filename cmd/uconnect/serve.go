package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uconnect/campus/internal/cache"
	"github.com/uconnect/campus/internal/config"
	"github.com/uconnect/campus/internal/database"
	"github.com/uconnect/campus/internal/friends"
	"github.com/uconnect/campus/internal/handlers"
	"github.com/uconnect/campus/internal/notify"
	"github.com/uconnect/campus/internal/realtime"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	*rootOptions
	seedPath string
	migrate  bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Long: `Run the HTTP API and the /ws realtime endpoint.

With STORAGE=memory all state lives in the process; use --seed to load users.

Example:
  uconnect serve
  STORAGE=memory uconnect serve --seed ./users.yaml`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger, opts)
		},
	}
	cmd.Flags().StringVar(&opts.seedPath, "seed", "", "YAML file of users to create at startup")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply the schema before serving (postgres only)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts *serveOptions) error {
	if err := initAuth(cfg, logger); err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	var (
		store friends.Store
		dir   friends.Directory
		seed  userSeeder
	)
	switch cfg.Storage {
	case "memory":
		mem := friends.NewMemoryStore()
		store, dir, seed = mem, mem, memorySeeder{mem}
		logger.Warn("using in-memory storage; state is lost on restart")
	default:
		pool, err := database.Connect(ctx, cfg.DSN())
		if err != nil {
			return err
		}
		defer pool.Close()
		if opts.migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
		}
		pg := database.NewStore(pool)
		store, dir, seed = pg, pg, pg
		logger.Info("connected to postgres")
	}

	if opts.seedPath != "" {
		n, err := seedUsers(ctx, seed, opts.seedPath)
		if err != nil {
			return err
		}
		logger.WithField("users", n).Info("seeded users")
	}

	hub := realtime.NewHub(logger)
	dispatcher := notify.NewDispatcher(hub, logger)
	svc := friends.NewService(store, dir, dispatcher, logger)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Redis.Enabled {
		rdb, err := cache.ConnectRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		relay := notify.NewRelay(cache.NewEventBus(rdb, cfg.Redis.Channel), dispatcher, logger)
		dispatcher.UseRelay(relay)
		g.Go(func() error { return relay.Run(ctx) })
		logger.WithField("channel", cfg.Redis.Channel).Info("event relay enabled")
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.NewRouter(logger, svc, hub, handlers.RouterOptions{
			RequestTimeout: cfg.RequestTimeout,
			WS: handlers.WSOptions{
				RequireAuth:    cfg.WebSocket.RequireAuth,
				OriginPatterns: cfg.WebSocket.OriginPatterns,
				SendBuffer:     cfg.WebSocket.SendBuffer,
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
