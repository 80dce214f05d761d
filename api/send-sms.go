package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/smsinternational/golang_services/internal/platform/config"
	"github.com/smsinternational/golang_services/internal/platform/logger"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/bootstrap"
)

var (
	initOnce sync.Once
	relay    *bootstrap.App
	initErr  error
)

func setup() {
	cfg, err := config.Load(bootstrap.ServiceName)
	if err != nil {
		initErr = err
		return
	}
	relay, initErr = bootstrap.New(context.Background(), cfg, logger.New(cfg.LogLevel, cfg.LogFormat))
}

// Handler is the entry point for Vercel serverless functions.
// The relay is assembled once per instance and reused across invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(setup)
	if initErr != nil {
		slog.Error("SMS relay unavailable", "error", initErr)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Failed to send SMS",
			"details": initErr.Error(),
		})
		return
	}
	relay.Handler.ServeHTTP(w, r)
}
