package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"parlor/internal/core/services"
	httphandlers "parlor/internal/handlers/http"
	"parlor/internal/infrastructure/middleware"
	"parlor/internal/infrastructure/monitoring"
	repositories "parlor/internal/infrastructure/repositories"
	"parlor/internal/infrastructure/signal"
	"parlor/pkg/config"
	"parlor/pkg/logger"
	"parlor/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/parlor/config.yaml",
		"config.yaml",
	}

	configPath := ""
	for _, path := range configPaths {
		if _, statErr := os.Stat(path); statErr == nil {
			configPath = path
			break
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("invalid configuration in %q: %v", configPath, err)
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	// Tracing (no-op provider when disabled)
	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "parlor-signal",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	roomRepo := repoFactory.CreateRoomRepository()
	directory := services.NewRoomDirectory(roomRepo, cfg.Signal.MaxRoomMembers, log)
	authService := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	metricsCollector := monitoring.NewPrometheusCollector()

	wsServer := signal.NewWebSocketServer(directory, authService, metricsCollector, signal.Options{
		RequireAuth:          cfg.Auth.Required,
		ConnectionsPerMinute: cfg.RateLimiting.WebSocket.ConnectionsPerMinute,
		MaxMessageSizeBytes:  cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		PingInterval:         cfg.Signal.PingInterval,
		PongTimeout:          cfg.Signal.PongTimeout,
	}, log)

	roomHandler := httphandlers.NewRoomHandler(directory, authService, cfg.Auth.Required)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	roomHandler.SetupRoutes(router)
	router.GET("/ws", gin.WrapF(wsServer.HandleWebSocket))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddCheck("repository", repoFactory.HealthCheck, 2*time.Second)

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Parlor signaling server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Parlor signaling server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("error shutting down tracer", "error", err)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}

	log.Info("Parlor signaling server stopped")
}
