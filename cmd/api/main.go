package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adminconsole/internal/data"
	"adminconsole/internal/jsonlog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

var (
	buildTime string
	version   string
)

type application struct {
	config      config
	logger      *jsonlog.Logger
	repository  data.Repository
	services    data.Services
	registry    *prometheus.Registry
	rateLimiter *rateLimiter
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.PrintFatal(err, map[string]string{"storage": cfg.storage.backend})
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("closing storage failed", "error", err)
		}
	}()

	app, err := newApplication(ctx, cfg, logger, repo)
	if err != nil {
		logger.PrintFatal(err, map[string]string{"storage": cfg.storage.backend})
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.port))
	if err != nil {
		logger.PrintFatal(err, map[string]string{"port": fmt.Sprint(cfg.port)})
	}

	logger.Info("starting server",
		"addr", ln.Addr().String(),
		"env", cfg.env,
		"storage", cfg.storage.backend,
		"version", version,
		"buildTime", buildTime)

	if err := app.serve(ctx, ln); err != nil {
		logger.Error("server stopped with error", "error", err, "addr", ln.Addr().String())
		os.Exit(1)
	}

	logger.Info("server stopped gracefully", "env", cfg.env)
}

func newLogger(cfg config) *jsonlog.Logger {
	level := jsonlog.LevelInfo
	if cfg.env == "development" {
		level = jsonlog.LevelDebug
	}
	if cfg.logLevel != "" {
		level = jsonlog.ParseLevel(cfg.logLevel)
	}
	return jsonlog.New(os.Stdout, level, cfg.env).With("service", "adminconsole")
}

// newApplication loads the entity tables and builds one service per entity
// over repo.
func newApplication(ctx context.Context, cfg config, logger *jsonlog.Logger, repo data.Repository) (*application, error) {
	entities, err := data.DefaultEntities()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services := data.NewServices(entities, repo, data.NewMetrics(registry))
	if err := services.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	return &application{
		config:      cfg,
		logger:      logger,
		repository:  repo,
		services:    services,
		registry:    registry,
		rateLimiter: initializeRateLimiter(cfg, logger),
	}, nil
}

// openRepository connects the configured backend and, when enabled, wraps it
// in the circuit breaker.
func openRepository(ctx context.Context, cfg config, logger *jsonlog.Logger) (data.Repository, error) {
	var repo data.Repository

	switch cfg.storage.backend {
	case "memory":
		repo = data.NewMemoryRepository()

	case "sqlite":
		sqlite, err := data.NewSQLiteRepository(cfg.storage.sqlitePath, cfg.storage.timeout)
		if err != nil {
			return nil, err
		}
		repo = sqlite

	case "postgres":
		pool, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg := data.NewPostgreSQLRepository(pool, cfg.storage.timeout)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		repo = pg

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.storage.backend)
	}

	logger.Info("storage opened", "backend", cfg.storage.backend)

	if !cfg.breaker.enabled {
		return repo, nil
	}

	breaker := data.DefaultCircuitBreakerConfig()
	breaker.FailureThreshold = cfg.breaker.threshold
	breaker.RecoveryTimeout = cfg.breaker.recovery
	breaker.Timeout = cfg.storage.timeout
	return data.NewCircuitBreakerRepository(repo, breaker, logger.With("component", "repository")), nil
}

func openDB(ctx context.Context, cfg config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.storage.dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.storage.maxConns)
	poolConfig.MaxConnIdleTime = cfg.storage.maxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then drains
// in-flight requests and stops the rate limiter janitor.
func (app *application) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     app.logger.StdLogger(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		app.logger.Info("shutdown initiated",
			"timeout", app.config.shutdown.timeout.String(),
			"addr", ln.Addr().String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.shutdown.timeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)

		app.rateLimiter.shutdown()
		app.rateLimiter.waitForShutdown()

		app.logger.Info("background tasks completed")
		return err
	})

	return g.Wait()
}
