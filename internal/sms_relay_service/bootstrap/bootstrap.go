// Package bootstrap assembles the relay from configuration. It is shared by the long-running
// server in cmd/sms_relay_service and the serverless entry point in api/.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/smsinternational/golang_services/internal/platform/config"
	"github.com/smsinternational/golang_services/internal/platform/tracing"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/app"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/provider"
	httptransport "github.com/smsinternational/golang_services/internal/sms_relay_service/transport/http"
)

// ServiceName identifies the relay in logs and traces.
const ServiceName = "sms_relay_service"

// App is a fully wired relay.
type App struct {
	Handler    http.Handler
	Dispatcher *app.Dispatcher

	poller  *app.StatusPoller
	tracing *tracing.Provider
}

// New builds providers, dispatcher, optional status poller and the HTTP router from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tp, err := tracing.NewProvider(ctx, cfg.OTLPEndpoint, ServiceName)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	tp.SetGlobal()

	decorator := provider.DefaultDecorator()
	if len(cfg.UserAgents) > 0 {
		decorator = provider.Chain(provider.RotateUserAgents(cfg.UserAgents), provider.RequestID())
	}
	providers, err := provider.NewAll(cfg.Providers, provider.Dependencies{
		HTTPClient: &http.Client{Timeout: cfg.ProviderTimeout},
		Logger:     logger,
		Decorator:  decorator,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("building providers: %w", err)
	}

	opts := []app.DispatcherOption{
		app.WithAttemptTimeout(cfg.ProviderTimeout),
		app.WithTracer(tp.TracerProvider.Tracer(ServiceName)),
	}
	var poller *app.StatusPoller
	if cfg.StatusPollEnabled {
		poller = app.NewStatusPoller(logger, cfg.StatusPollDelay, cfg.ProviderTimeout)
		opts = append(opts, app.WithStatusPoller(poller))
	}
	dispatcher := app.NewDispatcher(providers, logger, opts...)

	handler := httptransport.NewSendHandler(dispatcher, logger, httptransport.NewValidator(), cfg.Region)

	logger.Info("SMS relay assembled",
		"providers", dispatcher.ProviderNames(),
		"region", cfg.Region,
		"status_poll_enabled", cfg.StatusPollEnabled,
		"provider_timeout", cfg.ProviderTimeout)

	return &App{
		Handler:    httptransport.NewRouter(handler, logger),
		Dispatcher: dispatcher,
		poller:     poller,
		tracing:    tp,
	}, nil
}

// Shutdown cancels pending status reads and flushes traces.
func (a *App) Shutdown(ctx context.Context) error {
	if a.poller != nil {
		a.poller.Close()
	}
	var errs []error
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
