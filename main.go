package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spayyavula/spark-ide-ai/config"
	"github.com/spayyavula/spark-ide-ai/functions"
	"github.com/spayyavula/spark-ide-ai/logging"
	"github.com/spayyavula/spark-ide-ai/server"
	"github.com/spayyavula/spark-ide-ai/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(logging.Options{Level: level, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := session.ConnectRegistry(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.SessionTimeout, logger)

	deps := functions.Dependencies{
		WeatherTimeout: cfg.WeatherTimeout,
		Logger:         logger,
	}
	if cfg.GeminiAPIKey != "" {
		weather, err := functions.NewGeminiWeather(ctx, cfg.GeminiAPIKey, cfg.WeatherModel)
		if err != nil {
			logger.Warn("⚠️ live weather disabled", slog.Any("err", err))
		} else {
			deps.Weather = weather
			logger.Info("🌤️ live weather enabled", slog.String("model", cfg.WeatherModel))
		}
	}

	// Create session manager
	sessionManager := session.NewManager(cfg, registry, functions.NewDispatcher(deps), logger)

	// Start cleanup routine
	go sessionManager.StartCleanupRoutine(ctx)

	srv := server.NewServerWebsocket(cfg, sessionManager, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("err", err))
		os.Exit(1)
	}
	<-stopped

	logger.Info("server stopped")
}
