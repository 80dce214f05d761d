package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smsinternational/golang_services/internal/platform/config"
	"github.com/smsinternational/golang_services/internal/platform/logger"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/bootstrap"
)

func main() {
	cfg, err := config.Load(bootstrap.ServiceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", bootstrap.ServiceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("SMS relay starting...", "port", cfg.ServerPort, "region", cfg.Region)

	relay, err := bootstrap.New(context.Background(), cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to assemble SMS relay", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           relay.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info(fmt.Sprintf("SMS relay listening on port %d", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
			os.Exit(1)
		}
	}()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan
	appLogger.Info("Shutdown signal received, shutting down HTTP server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	} else {
		appLogger.Info("HTTP server shut down gracefully.")
	}
	if err := relay.Shutdown(ctxShutdown); err != nil {
		appLogger.Error("SMS relay shutdown failed", "error", err)
	}
	appLogger.Info("SMS relay shut down.")
}
