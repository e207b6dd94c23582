// Command gofedauth-server serves the goFedAuth HTTP API.
//
// Users are stored in SQLite. Refresh tokens go to Redis when REDIS_ADDR is
// set and to the same SQLite database otherwise. Expired refresh tokens are
// swept once a day at SWEEP_HOUR.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goFedAuth "github.com/MrEthical07/goFedAuth"
	"github.com/MrEthical07/goFedAuth/httpapi"
	"github.com/MrEthical07/goFedAuth/maintenance"
	"github.com/MrEthical07/goFedAuth/metrics/export/prometheus"
	"github.com/MrEthical07/goFedAuth/storage/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *zap.Logger) error {
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer db.Close()

	builder := goFedAuth.New().
		WithConfig(engineCfg).
		WithUserRepository(db).
		WithLogger(logger).
		WithAuditSink(goFedAuth.NewZapSink(logger))

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
		logger.Info("refresh tokens stored in redis", zap.String("addr", cfg.RedisAddr))
	} else {
		builder = builder.WithRefreshStore(db)
		logger.Info("refresh tokens stored in sqlite", zap.String("path", cfg.SQLitePath))
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	sweeper, err := maintenance.New(engine, maintenance.Config{
		Hour:   cfg.SweepHour,
		Logger: logger.Named("sweeper"),
	})
	if err != nil {
		return err
	}
	if cfg.SweepOnStart {
		_, _ = sweeper.RunOnce(ctx)
	}
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			Logger:         logger.Named("http"),
			MetricsHandler: prometheus.New(engine).Handler(),
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
