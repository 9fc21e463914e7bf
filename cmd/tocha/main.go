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

	"go.uber.org/zap"

	"github.com/kailas-cloud/tocha/internal/config"
	"github.com/kailas-cloud/tocha/internal/db"
	dbPostgres "github.com/kailas-cloud/tocha/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/tocha/internal/db/redis"
	logpkg "github.com/kailas-cloud/tocha/internal/logger"
	"github.com/kailas-cloud/tocha/internal/metrics"
	chiTransport "github.com/kailas-cloud/tocha/internal/transport/chi"
	"github.com/kailas-cloud/tocha/internal/trigger"
	healthuc "github.com/kailas-cloud/tocha/internal/usecase/health"
	searchuc "github.com/kailas-cloud/tocha/internal/usecase/search"
	"github.com/kailas-cloud/tocha/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.String())
		return
	}

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tocha",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("requests_collection", cfg.Search.RequestsCollection),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logpkg.ContextWithLogger(ctx, logger)

	store, err := openStore(ctx, cfg.Database, cfg.Worker)
	if err != nil {
		logger.Fatal("Failed to open database store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Connected to database")

	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	searchSvc := searchuc.New(store, store, metrics.NewSearchObserver(cfg.Database.Driver), searchuc.Config{
		MaxResults:      cfg.Search.MaxResults,
		K1:              cfg.Search.K1,
		B:               cfg.Search.B,
		DefaultRefField: cfg.Search.RefField,
	})

	runner := trigger.New(store, searchSvc, trigger.Config{
		Location:    cfg.Search.RequestsCollection,
		Concurrency: cfg.Worker.Concurrency,
	})

	healthSvc := healthuc.New(store, runner)
	server := chiTransport.NewServer(healthSvc, cfg.Database.Driver, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	runnerDone := make(chan error, 1)
	go func() { runnerDone <- runner.Run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-runnerDone:
		// The subscription ended on its own; stop serving so the process restarts.
		logger.Error("Trigger runner stopped", zap.Error(err))
		runnerDone = nil
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}

	if runnerDone != nil {
		select {
		case err := <-runnerDone:
			if err != nil {
				logger.Error("Trigger runner error", zap.Error(err))
			}
		case <-shutdownCtx.Done():
			logger.Warn("Timed out waiting for in-flight search requests")
		}
	}

	logger.Info("Stopped gracefully")
}

// openStore builds the configured backend and waits until it answers.
func openStore(ctx context.Context, dbCfg config.DatabaseConfig, workerCfg config.WorkerConfig) (db.Store, error) {
	readiness := time.Duration(dbCfg.ReadinessTimeout) * time.Second

	switch dbCfg.Driver {
	case config.DriverPostgres:
		store, err := dbPostgres.NewStore(dbPostgres.Config{
			URL:             dbCfg.URL,
			MaxOpenConns:    dbCfg.MaxOpenConns,
			MaxIdleConns:    dbCfg.MaxIdleConns,
			ConnMaxLifetime: dbCfg.ConnMaxLifetime(),
			QueryTimeout:    dbCfg.QueryTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		if *dbCfg.InitSchema {
			if err := store.InitSchema(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("postgres schema: %w", err)
			}
		}
		return store, nil

	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:        dbCfg.Addrs,
			Username:     dbCfg.Username,
			Password:     dbCfg.Password,
			DB:           dbCfg.DB,
			KeyPrefix:    dbCfg.KeyPrefix,
			Group:        workerCfg.Group,
			Consumer:     workerCfg.Consumer,
			Block:        workerCfg.Block(),
			Batch:        int64(workerCfg.Batch),
			QueryTimeout: dbCfg.QueryTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", dbCfg.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s not ready: %w", dbCfg.Driver, err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", dbCfg.Driver)
	}
}
