package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/academyhq/tournament-engine/internal/api"
	"github.com/academyhq/tournament-engine/internal/services"
	"github.com/academyhq/tournament-engine/pkg/config"
	"github.com/academyhq/tournament-engine/pkg/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.IsDevelopment() {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it the engine serves uncached.
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err == nil {
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			logrus.Warnf("Redis unavailable, running without cache: %v", err)
			client = nil
		}
		cancel()
		redisClient = client
	} else {
		logrus.Warnf("Invalid REDIS_URL, running without cache: %v", err)
	}
	cache := services.NewCacheService(redisClient)

	hub := services.NewWebSocketHub()
	go hub.Run()

	var sweeper *services.StatusSweeper
	if cfg.EnableStatusSweeper {
		sweeper = services.NewStatusSweeper(db.DB, cfg.StatusSweepSchedule, logrus.StandardLogger())
		if err := sweeper.Start(); err != nil {
			logrus.Fatalf("Failed to start status sweeper: %v", err)
		}
	}

	router := api.SetupRouter(api.Dependencies{
		DB:       db.DB,
		Config:   cfg,
		Cache:    cache,
		Hub:      hub,
		Notifier: services.NewNotifier(cfg),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logrus.Infof("Tournament engine listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Forced shutdown: %v", err)
	}
	logrus.Info("Server stopped")
}
