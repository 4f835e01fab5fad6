// Package main runs the background payment callback worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fedsport/backend/config"
	"github.com/fedsport/backend/internal/checkout"
	"github.com/fedsport/backend/internal/payments/providers"
	"github.com/fedsport/backend/internal/realtime"
	"github.com/fedsport/backend/internal/store/postgres"
	"github.com/fedsport/backend/internal/worker"
	"github.com/fedsport/backend/pkg/database"
	"github.com/fedsport/backend/pkg/queue"
	"github.com/fedsport/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Store.Driver != config.StoreDriverPostgres || !cfg.Redis.Enabled {
		logger.Fatal("worker requires STORE_DRIVER=postgres and REDIS_ENABLED=true")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	gateway, err := providers.New(cfg.Payments)
	if err != nil {
		logger.Fatal("payment provider", zap.Error(err))
	}

	// Settled payments are published so every server instance can push them.
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	orch := checkout.NewOrchestrator(postgres.NewCheckoutRepository(pool), gateway, cfg.Payments, nil, logger)
	orch.SetNotifier(realtime.NewHub(logger, pubsub, nil))

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewCallbackProcessor(orch, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.String("queue", queue.QueuePaymentCallbacks))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
