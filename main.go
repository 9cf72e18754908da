package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/blob"
	"taskmanager/config"
	"taskmanager/database"
	"taskmanager/handlers"
	"taskmanager/logging"
	"taskmanager/middleware"
	"taskmanager/store"
	"taskmanager/tokens"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.Open(cfg.DatabaseURL, cfg.DBLogLevel, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	blobs, err := blob.NewDisk(cfg.MediaRoot)
	if err != nil {
		logger.Fatal("failed to initialize media storage", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Revoked refresh tokens live in redis when configured so they
	// survive restarts and are shared between instances.
	var revoked tokens.Revoker = tokens.NewMemory()
	if cfg.RedisURL != "" {
		rdb, err := tokens.Dial(ctx, cfg.RedisURL, cfg.RevokedPrefix)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		revoked = rdb
	} else {
		logger.Warn("REDIS_URL not set, token revocation is kept in memory")
	}

	router := handlers.NewRouter(handlers.Deps{
		Store:          store.New(db),
		Blobs:          blobs,
		Tokens:         middleware.NewTokens(cfg.JWTSecret, cfg.AccessTTL.Std(), cfg.RefreshTTL.Std(), revoked),
		DB:             db,
		Log:            logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
		IdleTimeout:  cfg.IdleTimeout.Std(),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
