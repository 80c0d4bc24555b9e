package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"classportal/internal/account"
	"classportal/internal/config"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/queue"
	"classportal/internal/storage"
	"classportal/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Env, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := commandLine{
		cfg:          cfg,
		out:          os.Stdout,
		in:           os.Stdin,
		openAccounts: openAccounts,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Error().Err(err).Msg("portalctl")
		}
		os.Exit(1)
	}
}

// openAccounts connects to the database for commands that bypass the api.
func openAccounts(ctx context.Context, cfg config.App) (*account.Service, func(), error) {
	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	broker := live.Broker(live.NewMemory())
	var redisClient *store.Redis
	if cfg.LiveBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		broker = live.NewRedis(redisClient.Client)
	}
	files := storage.NewService(storage.NewRepository(db.Client), storage.NewMemory(""), storage.Options{
		SigningKey: cfg.JWTSigningKey,
		Issuer:     cfg.JWTIssuer,
	})
	svc := account.NewService(account.NewRepository(db.Client), files, nil, broker, queue.NewInMemory(1))
	return svc, func() {
		if redisClient != nil {
			redisClient.Close()
		}
		db.Close()
	}, nil
}
