package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/tariffs/internal/config"
	"github.com/liamcoop/tariffs/internal/logger"
	"github.com/liamcoop/tariffs/internal/metrics"
	"github.com/liamcoop/tariffs/multitenantengine"
	"github.com/liamcoop/tariffs/tariff"
)

func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func main() {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		logger.Fatal("failed to initialise logger", "error", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal("invalid config", "error", err)
	}

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database unavailable", "error", err)
	}
	defer db.Close()

	m := metrics.NewManager()
	cacheConfig := tariff.CacheConfig{TTL: cfg.CacheTTL}

	managerOpts := []multitenantengine.Option{
		multitenantengine.WithEngineOptions(
			tariff.WithRecorder(m),
			tariff.WithPipeline(tariff.NewPipeline(
				tariff.WithObserver(tariff.Observers{tariff.LogObserver{}, m}),
			)),
		),
		multitenantengine.WithInMemoryCache(cacheConfig),
	}

	if cfg.RedisURL != "" {
		client, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis unavailable", "error", err)
		}
		defer client.Close()
		managerOpts = append(managerOpts, multitenantengine.WithRedisCache(client, cacheConfig))
		logger.Info("sharing active tariffs through redis", "ttl", cfg.CacheTTL)
	}

	serverOpts := []ServerOption{WithRequestTimeout(cfg.WriteTimeout)}
	if cfg.MetricsEnabled {
		serverOpts = append(serverOpts, WithMetrics(m))
	}

	server, err := NewServerWithDB(db, managerOpts, serverOpts...)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
