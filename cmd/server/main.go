package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/api"
	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/memory"
	"github.com/tufnapp/tufngate/backend/postgres"
	"github.com/tufnapp/tufngate/backend/sqlite"
	"github.com/tufnapp/tufngate/config"
	"github.com/tufnapp/tufngate/downloads"
	"github.com/tufnapp/tufngate/logging"
	"github.com/tufnapp/tufngate/metrics"
	"github.com/tufnapp/tufngate/pkg/tufngate"
	"github.com/tufnapp/tufngate/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tufngate:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	gateCfg := tufngate.NewConfig()
	if cfg.GateConfig != "" {
		if gateCfg, err = tufngate.LoadConfigFromFile(cfg.GateConfig); err != nil {
			return err
		}
	}

	windows, err := openWindowStore(ctx, cfg, gateCfg, logger)
	if err != nil {
		return err
	}
	if c, ok := windows.(io.Closer); ok {
		defer c.Close()
	}

	m := metrics.New()
	gate, err := tufngate.New(
		tufngate.WithConfig(gateCfg),
		tufngate.WithStore(windows),
		tufngate.WithLogger(logger.Named("gate")),
		tufngate.WithRecorder(m),
	)
	if err != nil {
		return err
	}
	gate.Start()
	defer gate.Close()

	router, err := api.NewRouter(api.Deps{
		Backend:      db,
		Gate:         gate,
		Catalog:      downloads.NewCatalog(cfg.DownloadsURL),
		Metrics:      m,
		Logger:       logger,
		MaxBodyBytes: cfg.MaxBodyBytes,
		APIKeys:      cfg.APIKeySet(),
		Dashboard:    http.HandlerFunc(dashboardHandler),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("database", cfg.DatabaseDriver),
			zap.Bool("redis", cfg.RedisAddr != ""),
			zap.Int("api_keys", len(cfg.APIKeys)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openBackend(ctx context.Context, cfg config.Server, logger *zap.Logger) (backend.Store, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("using postgres backend")
		return pg, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite backend", zap.String("path", cfg.SQLitePath))
		return db, nil
	default:
		logger.Warn("using in-memory backend, submissions are lost on restart")
		return memory.New(), nil
	}
}

func openWindowStore(ctx context.Context, cfg config.Server, gateCfg *tufngate.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("using in-memory rate windows, limits are per process")
		return store.NewMemoryStore(), nil
	}
	rs := store.NewRedisStore(store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      gateCfg.Retention,
	})
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return rs, nil
}
