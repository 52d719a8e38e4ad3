// Package main runs the webinar livestream HTTP server with WebSocket feed and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/livestream/config"
	"github.com/aura-webinar/livestream/internal/landing"
	"github.com/aura-webinar/livestream/internal/livesession"
	"github.com/aura-webinar/livestream/internal/middleware"
	"github.com/aura-webinar/livestream/internal/realtime"
	"github.com/aura-webinar/livestream/internal/registry"
	"github.com/aura-webinar/livestream/internal/stream"
	"github.com/aura-webinar/livestream/internal/webinars"
	"github.com/aura-webinar/livestream/internal/wizard"
	"github.com/aura-webinar/livestream/pkg/database"
	"github.com/aura-webinar/livestream/pkg/redis"
	"github.com/aura-webinar/livestream/pkg/response"
	"github.com/aura-webinar/livestream/pkg/storage"
)

const wizardIdleTimeout = 24 * time.Hour

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, _ := cfg.Schedule.Location()

	ctx := context.Background()

	var rdb *redis.Client
	if cfg.Registry.Backend == config.RegistryRedis || os.Getenv("REDIS_ADDR") != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			if cfg.Registry.Backend == config.RegistryRedis {
				logger.Fatal("redis", zap.Error(err))
			}
			logger.Warn("redis unavailable, realtime feed is local to this instance", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	reg, closeRegistry, err := openRegistry(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("registry", zap.Error(err), zap.String("backend", cfg.Registry.Backend))
	}
	defer closeRegistry()
	logger.Info("registry ready", zap.String("backend", cfg.Registry.Backend))

	// Thumbnails are optional; without S3 the upload endpoints answer 503.
	var thumbnails webinars.ThumbnailStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ThumbnailsBucket:     cfg.AWS.ThumbnailsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			thumbnails = s3Client
		}
	}

	streamClient := stream.NewClient(cfg.Stream, logger)
	if err := streamClient.Issuer().Configured(); err != nil {
		logger.Warn("stream credentials missing; token, provisioning and live endpoints will fail", zap.Error(err))
	}

	// Background work (feed bridge, idle live-session reaper, wizard pruning) stops with workerCtx.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	hub := realtime.NewHub(logger, nil, nil)
	if rdb != nil {
		pubsub := realtime.NewRedisPubSub(rdb.Client, realtime.DefaultChannelPrefix, logger)
		if err := pubsub.Start(workerCtx); err != nil {
			logger.Warn("call feed bridge disabled, realtime feed is local to this instance", zap.Error(err))
		} else {
			hub = realtime.NewHub(logger, pubsub, pubsub)
		}
	}

	webinarSvc := webinars.NewService(reg, streamClient, loc, logger)
	sessions := livesession.NewManager(streamClient, reg, hub, livesession.Options{
		PollInterval: cfg.LiveSession.PollInterval(),
		IdleTimeout:  cfg.LiveSession.IdleTimeout(),
	}, logger)
	wizards := wizard.NewStore()

	tokenHandler := stream.NewHandler(streamClient.Issuer(), logger)
	webinarHandler := webinars.NewHandler(webinarSvc, logger)
	thumbnailHandler := webinars.NewThumbnailHandler(thumbnails, logger)
	wizardHandler := wizard.NewHandler(wizards, webinarSvc, logger)
	landingHandler := landing.NewHandler(landing.NewService(reg, loc), logger)
	sessionHandler := livesession.NewHandler(sessions, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health"))

	router.GET("/health", func(c *gin.Context) {
		if err := rdb.Health(c.Request.Context()); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Token endpoint keeps its bare JSON shape.
	router.POST("/api/stream-token", tokenHandler.IssueToken)

	router.GET("/webinars", webinarHandler.List)
	router.POST("/webinars", webinarHandler.Create)
	router.POST("/webinars/thumbnails", thumbnailHandler.Upload)
	router.POST("/webinars/thumbnails/presign", thumbnailHandler.Presign)
	router.GET("/webinars/:id", webinarHandler.GetByID)
	router.GET("/webinars/:id/landing", landingHandler.Get)
	router.GET("/webinars/:id/countdown", landingHandler.Countdown)
	router.POST("/webinars/:id/live/sessions", sessionHandler.Open)

	wz := router.Group("/wizards")
	{
		wz.POST("", wizardHandler.Open)
		wz.GET("/:id", wizardHandler.Get)
		wz.PATCH("/:id/draft", wizardHandler.UpdateDraft)
		wz.POST("/:id/next", wizardHandler.Next)
		wz.POST("/:id/back", wizardHandler.Back)
		wz.POST("/:id/submit", wizardHandler.Submit)
		wz.POST("/:id/cancel", wizardHandler.Cancel)
		wz.POST("/:id/restart", wizardHandler.Restart)
		wz.POST("/:id/finish", wizardHandler.Finish)
	}

	live := router.Group("/live/sessions")
	{
		live.GET("/:sid", sessionHandler.Get)
		live.POST("/:sid/refresh", sessionHandler.Refresh)
		live.POST("/:sid/go-live", sessionHandler.GoLive)
		live.POST("/:sid/stop-live", sessionHandler.StopLive)
		live.DELETE("/:sid", sessionHandler.Close)
	}

	router.GET("/ws", realtime.ServeWs(hub, sessions, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		sessions.Run(workerCtx)
	}()
	go pruneWizards(workerCtx, wizards, logger)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-reaperDone:
	case <-shutdownCtx.Done():
		logger.Warn("live sessions not fully closed before timeout")
	}
	logger.Info("server stopped")
}

// openRegistry builds the configured registry backend and returns its release func.
func openRegistry(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (registry.Repository, func(), error) {
	noop := func() {}
	switch cfg.Registry.Backend {
	case config.RegistryMemory:
		return registry.NewMemoryRepository(), noop, nil
	case config.RegistryRedis:
		if rdb == nil {
			return nil, noop, fmt.Errorf("redis backend selected but no client")
		}
		return registry.NewRedisRepository(rdb.Client, registry.DefaultRedisKey, logger), noop, nil
	case config.RegistrySQLite:
		repo, err := registry.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.RegistryPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return nil, noop, err
		}
		applied, err := database.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("names", applied))
		}
		return registry.NewPostgresRepository(pool), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
}

func pruneWizards(ctx context.Context, store *wizard.Store, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(wizardIdleTimeout); n > 0 {
				logger.Info("pruned idle wizards", zap.Int("count", n))
			}
		}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
