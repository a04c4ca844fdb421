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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/reportsummary/reportsummary/handlers"
	"github.com/reportsummary/reportsummary/internal/config"
	"github.com/reportsummary/reportsummary/internal/database"
	"github.com/reportsummary/reportsummary/internal/reports/handler"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/internal/reports/service"
	"github.com/reportsummary/reportsummary/internal/storage"
	"github.com/reportsummary/reportsummary/pkg/logger"
	"github.com/reportsummary/reportsummary/pkg/metrics"
	"github.com/reportsummary/reportsummary/pkg/middleware"
)

var startTime = time.Now()

// app carries the runtime dependencies shared by the routes.
type app struct {
	cfg      *config.Config
	repo     repository.Repository
	redis    *redis.Client
	archiver service.Archiver
}

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v rate_limit=%v", cfg.MongoDB.URI != "", cfg.Redis.Enabled(), cfg.MinIO.Enabled(), cfg.RateLimit.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg}

	// MongoDB is dialed lazily on first use; without a URI the in-memory store is used
	var gateway *database.Gateway
	if cfg.MongoDB.URI != "" {
		gateway = database.NewGateway(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
		a.repo = repository.NewMongoRepo(gateway)
	} else {
		logger.Warnf("MONGODB_URI is not set; using in-memory store")
		a.repo = repository.NewMemoryRepo()
	}

	if cfg.Redis.Enabled() {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
		} else {
			logger.Infof("Connected to Redis: %s", cfg.Redis.Addr())
		}
	}

	if cfg.MinIO.Enabled() {
		store, err := storage.NewMinIOStorage(ctx, &cfg.MinIO)
		if err != nil {
			logger.Warnf("webhook archiving disabled: %v", err)
		} else {
			a.archiver = store
			logger.Infof("Archiving webhook payloads to bucket %s", cfg.MinIO.Bucket)
		}
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(a)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("Starting report service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	if gateway != nil {
		if err := gateway.Close(shutdownCtx); err != nil {
			logger.Errorf("closing MongoDB: %v", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func newRouter(a *app) *gin.Engine {
	r := gin.New()

	// Lightweight CORS middleware: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-Id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery + request id
	r.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint: 200 only when the document store answers
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		if err := a.repo.Ping(c.Request.Context()); err != nil {
			logger.Warnf("readiness: store ping failed: %v", err)
			deps["storage"] = false
			ready = false
		} else {
			deps["storage"] = true
		}

		if a.cfg.RateLimit.Enabled && a.cfg.RateLimit.UseRedis {
			deps["redis"] = a.redis != nil && a.redis.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		}
		deps["archive"] = a.archiver != nil

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": fmt.Sprintf("%s", time.Since(startTime))})
	})

	handlers.RegisterSwagger(r)

	var opts []service.Option
	if a.archiver != nil {
		opts = append(opts, service.WithArchiver(a.archiver))
	}
	h := handler.NewSummaryHandler(service.NewEngine(a.repo), service.NewIngestor(a.repo, opts...), a.cfg.Server.WebhookMaxBody)

	var webhookMW []gin.HandlerFunc
	if rl := a.cfg.RateLimit; rl.Enabled {
		// use Redis-backed limiter when configured and Redis client is available
		if rl.UseRedis && a.redis != nil {
			webhookMW = append(webhookMW, middleware.RedisRateLimitMiddleware(a.redis, "webhook", rl.RPS, rl.Burst, rl.Window))
		} else {
			webhookMW = append(webhookMW, middleware.RateLimitMiddleware("webhook", rl.RPS, rl.Burst))
		}
	}
	h.Register(r, webhookMW...)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
