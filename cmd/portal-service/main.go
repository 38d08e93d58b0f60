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

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"marketplace-portal/internal/api/handlers"
	"marketplace-portal/internal/config"
	"marketplace-portal/internal/domain"
	"marketplace-portal/internal/infrastructure/memory"
	"marketplace-portal/internal/infrastructure/redis"
	"marketplace-portal/internal/infrastructure/sqlstore"
	"marketplace-portal/internal/infrastructure/websocket"
	"marketplace-portal/internal/realtime"
	"marketplace-portal/internal/services"
	"marketplace-portal/pkg/logger"
	"marketplace-portal/pkg/utils"
)

type store interface {
	domain.AdRepository
	domain.BidRepository
	domain.NotificationRepository
	domain.ReviewRepository
	domain.UserDirectory
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store, realtime.IdentityVerifier, func(), error) {
	var dsn string
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), realtime.ClaimFormatVerifier(), func() {}, nil
	case "postgres":
		dsn = cfg.Postgres.DSN
	default:
		dsn = cfg.MySQL.DSN
	}

	db, err := utils.OpenDatabase(ctx, cfg.Storage.Driver, dsn, utils.PoolSettings{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("Connected to database", "driver", cfg.Storage.Driver)

	s := sqlstore.NewStore(db)
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", "error", err)
		}
	}
	return s, realtime.DirectoryVerifier(s), closeFn, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Starting portal service", "instance_id", cfg.Instance.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, verifier, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Connection registry and local delivery
	registry := realtime.NewRegistry(log)
	registry.Initialize()
	local := realtime.NewLocalDispatcher(registry, log)

	var dispatcher domain.Dispatcher = local
	if cfg.Realtime.Dispatcher == "redis" {
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
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		dispatcher = redis.NewFanoutDispatcher(rdb, cfg.Redis.Channel, cfg.Instance.ID, log)
		subscriber := redis.NewEventSubscriber(rdb, cfg.Redis.Channel, log)
		go func() {
			if err := subscriber.Run(bgCtx, local.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event subscriber stopped", "error", err)
			}
		}()
	}

	// Services
	notifier := services.NewNotificationService(st, dispatcher, log)
	marketplace := services.NewMarketplaceService(st, st, notifier, dispatcher, log)
	reviews := services.NewReviewService(st, st, st, notifier, log)

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

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-User-ID",
			"X-Admin-Token",
		},
		MaxAge: 86400,
	}))

	handlers.API(e, handlers.Dependencies{
		Marketplace:   marketplace,
		Notifications: notifier,
		Reviews:       reviews,
		Dispatcher:    dispatcher,
		Connections:   registry,
		Verifier:      verifier,
		AdminToken:    cfg.Admin.Token,
		WebSocket:     wsHandler,
		Log:           log,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down portal service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	supervisor.Stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	registry.Shutdown()
	stopBackground()

	log.Info("Portal service stopped")
}
