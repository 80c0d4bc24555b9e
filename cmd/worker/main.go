package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"classportal/internal/config"
	"classportal/internal/logger"
	"classportal/internal/queue"
	"classportal/internal/storage"
	"classportal/internal/store"
)

// Worker releases blobs of deleted records and sweeps uploads nothing ever attached.
func main() {
	cfg := config.Load()
	logger.Init(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		logger.Fatal().Msg("the worker needs QUEUE_BACKEND=redis; the memory queue is drained by the api process")
	}

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn().Str("addr", cfg.RedisAddr).Msg("redis not reachable yet")
	}
	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)

	blob, err := storage.NewBlob(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage backend failed")
	}
	files := storage.NewService(storage.NewRepository(db.Client), blob, storage.Options{
		SigningKey:    cfg.JWTSigningKey,
		Issuer:        cfg.JWTIssuer,
		PublicBaseURL: cfg.PublicBaseURL,
		URLTTL:        cfg.UploadURLTTL,
		MaxBytes:      cfg.MaxUploadBytes,
	})

	go files.SweepEvery(ctx, cfg.SweepInterval, cfg.OrphanTTL)

	logger.Info().Str("storage", blob.Name()).Dur("sweep_interval", cfg.SweepInterval).Msg("worker started")
	if err := queue.Run(ctx, q, storage.Handlers(files)); err != nil {
		logger.Fatal().Err(err).Msg("queue consume failed")
	}
	logger.Info().Msg("worker stopped")
}
