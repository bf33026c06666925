package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prasenjit/go-mockenv/internal/api"
	"github.com/prasenjit/go-mockenv/internal/catalog"
	"github.com/prasenjit/go-mockenv/internal/logging"
	"github.com/prasenjit/go-mockenv/internal/metrics"
	"github.com/prasenjit/go-mockenv/internal/mock"
	"github.com/prasenjit/go-mockenv/internal/ratelimit"
	"github.com/prasenjit/go-mockenv/internal/resolver"
	"github.com/prasenjit/go-mockenv/internal/stats"
	"github.com/prasenjit/go-mockenv/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the go-mockenv server",
	Long: `Starts the go-mockenv mock server.

The server will:
  - Import the catalog files listed in the configuration
  - Expose the Admin API at /_api/
  - Answer every other request from the configured mock routes

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

var portFlag int

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Override server port")
	serveCmd.Flags().Bool("tls", false, "Enable TLS (overrides config)")
	serveCmd.Flags().Bool("watch", false, "Re-import catalog files when they change")

	// Bind flags to viper
	viper.BindPFlag("server.tls.enabled", serveCmd.Flags().Lookup("tls"))
	viper.BindPFlag("catalog.watch", serveCmd.Flags().Lookup("watch"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Override port if flag was explicitly set
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Using storage",
		zap.String("type", cfg.Storage.Type),
		zap.String("path", cfg.Storage.Path))

	store, err := openStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Catalog.Files) > 0 {
		watcher := catalog.NewWatcher(store, cfg.Catalog.Files, logger)
		if err := watcher.LoadAll(); err != nil {
			logger.Warn("Catalog import incomplete", zap.Error(err))
		}
		if cfg.Catalog.Watch {
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	// Initialize statistics collector
	statsCollector := stats.NewCollector()

	// Initialize tracing service
	tracingService := tracing.NewService(cfg.Tracing.MaxTraces, cfg.Tracing.Retention)

	// Initialize resolution engine and the mock handler in front of it
	engine := resolver.NewEngine(resolver.StorageSource(store),
		resolver.WithLogger(logger.Named("resolver")),
		resolver.WithMaxDelay(cfg.Server.MaxDelay))
	mockHandler := mock.NewHandler(engine, statsCollector, tracingService, logger.Named("mock"))

	opts := api.Options{Logger: logger, TrustedProxies: cfg.Server.TrustedProxies}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		opts.RateLimiter = ratelimit.New(rl.RequestsPerSecond, rl.Burst, ratelimit.DefaultMaxClients)
	}
	if cfg.Metrics.Enabled {
		opts.MetricsPath = cfg.Metrics.Path
	}

	// Setup router
	router := api.NewRouter(store, statsCollector, tracingService, engine, mockHandler, opts)

	// Create HTTP server
	addr := cfg.Server.Address()
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting go-mockenv server",
			zap.String("addr", addr),
			zap.Bool("tls", cfg.Server.TLS.Enabled))

		var err error
		if cfg.Server.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", zap.Error(err))
		return err
	}

	logger.Info("Server stopped")
	return nil
}
