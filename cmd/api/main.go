package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"classportal/internal/account"
	"classportal/internal/api"
	"classportal/internal/chat"
	"classportal/internal/config"
	"classportal/internal/httpmiddleware"
	"classportal/internal/live"
	"classportal/internal/logger"
	"classportal/internal/portal"
	"classportal/internal/queue"
	"classportal/internal/storage"
	"classportal/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Env, cfg.LogLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	var redisClient *store.Redis
	if cfg.LiveBackend == "redis" || cfg.QueueBackend != "memory" || cfg.RateLimitBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
	}

	var broker live.Broker = live.NewMemory()
	if cfg.LiveBackend == "redis" {
		broker = live.NewRedis(redisClient.Client)
	}

	// With the memory queue the janitor runs in this process instead of cmd/worker.
	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	blob, err := storage.NewBlob(ctx, cfg)
	if err != nil {
		return err
	}
	files := storage.NewService(storage.NewRepository(db.Client), blob, storage.Options{
		SigningKey:    cfg.JWTSigningKey,
		Issuer:        cfg.JWTIssuer,
		PublicBaseURL: cfg.PublicBaseURL,
		URLTTL:        cfg.UploadURLTTL,
		MaxBytes:      cfg.MaxUploadBytes,
	})
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := queue.Run(ctx, q, storage.Handlers(files)); err != nil {
				logger.Error().Err(err).Msg("in-process janitor stopped")
			}
		}()
		go files.SweepEvery(ctx, cfg.SweepInterval, cfg.OrphanTTL)
	}

	users := account.NewRepository(db.Client)
	chats := chat.NewRepository(db.Client)

	var limiter httpmiddleware.Limiter
	switch {
	case cfg.RateLimitPerMin <= 0:
	case cfg.RateLimitBackend == "redis":
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin, time.Minute)
	default:
		l := httpmiddleware.NewIPRateLimiter(cfg.RateLimitPerMin)
		go l.Sweep(ctx, 10*time.Minute)
		limiter = l
	}

	r := api.NewRouter(api.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    redisClient,
		Portal:   portal.NewService(portal.NewRepository(db.Client), files, broker, q),
		Accounts: account.NewService(users, files, chats, broker, q),
		Chats:    chat.NewService(chats, users, files, broker),
		Storage:  files,
		Broker:   broker,
		Limiter:  limiter,
	})

	// Live views hold connections open, so only the header read is bounded.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Str("storage", blob.Name()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced shutdown")
	}
	logger.Info().Msg("server exited")
	return nil
}
