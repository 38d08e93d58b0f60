package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"marketplace-portal/internal/api/middleware"
	"marketplace-portal/internal/config"
	"marketplace-portal/internal/infrastructure/redis"
	"marketplace-portal/internal/infrastructure/sqlstore"
	"marketplace-portal/internal/infrastructure/websocket"
	"marketplace-portal/internal/realtime"
	"marketplace-portal/internal/services"
	"marketplace-portal/pkg/logger"
	"marketplace-portal/pkg/utils"
)

// The gateway only terminates websockets. Events reach it through the redis
// fan-out channel fed by portal-service instances.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting realtime gateway", "instance_id", cfg.Instance.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	verifier := realtime.ClaimFormatVerifier()
	if cfg.Storage.Driver != "memory" {
		dsn := cfg.MySQL.DSN
		if cfg.Storage.Driver == "postgres" {
			dsn = cfg.Postgres.DSN
		}
		db, err := utils.OpenDatabase(ctx, cfg.Storage.Driver, dsn, utils.PoolSettings{MaxOpenConns: 5, MaxIdleConns: 2})
		if err != nil {
			log.Error("Failed to open user directory", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		verifier = realtime.DirectoryVerifier(sqlstore.NewStore(db))
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	registry := realtime.NewRegistry(log)
	registry.Initialize()
	local := realtime.NewLocalDispatcher(registry, log)

	subscriber := redis.NewEventSubscriber(rdb, cfg.Redis.Channel, log)
	go func() {
		if err := subscriber.Run(bgCtx, local.Deliver); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event subscriber stopped", "error", err)
		}
	}()

	supervisor := services.NewLivenessSupervisor(registry, cfg.Realtime.SweepInterval, cfg.Realtime.StaleAfter, log)
	if err := supervisor.Start(bgCtx); err != nil {
		log.Error("Failed to start liveness supervisor", "error", err)
		os.Exit(1)
	}

	handshake := realtime.NewHandshake(registry, verifier, log)
	wsHandler := websocket.NewWebSocketHandler(registry, handshake, websocket.HandlerConfig{
		SendBuffer:   cfg.Realtime.SendBuffer,
		WriteTimeout: cfg.Realtime.WriteTimeout,
	}, log)

	// Setup routes
	router := mux.NewRouter()
	router.Use(middleware.CORS)

	router.Handle("/ws", wsHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "ok",
			"service":     "realtime-gateway",
			"connections": registry.Count(),
		})
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting realtime gateway", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down realtime gateway...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	supervisor.Stop()
	registry.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopBackground()

	log.Info("Realtime gateway stopped")
}
