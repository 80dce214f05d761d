package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
)

// SendResponseDetails is what a provider reports back for one send call.
type SendResponseDetails struct {
	ProviderMessageID string
	IsSuccess         bool
	QuotaRemaining    *int
	ProviderStatus    string // e.g. "SENT_200", "FAILED_503", "REJECTED_200"
	ErrorMessage      string
}

// SMSSenderProvider is one entry of the fallback list.
// Send returns a non-nil error whenever the message was not accepted; the error wraps one of
// domain.ErrUpstreamUnreachable, domain.ErrUpstreamQuotaExceeded or domain.ErrUpstreamRejected.
type SMSSenderProvider interface {
	Send(ctx context.Context, req domain.SendRequest) (*SendResponseDetails, error)
	GetName() string
}

// StatusChecker is implemented by providers that can report delivery status for a sent message.
type StatusChecker interface {
	SupportsStatus() bool
	CheckStatus(ctx context.Context, externalID string) (string, error)
}

// Dependencies are shared by every provider built from configuration.
type Dependencies struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	Decorator  Decorator
}

// DefaultHTTPTimeout bounds a single outbound call when no client is supplied.
const DefaultHTTPTimeout = 10 * time.Second

// New builds a provider from its declarative configuration.
func New(cfg domain.ProviderConfig, deps Dependencies) (SMSSenderProvider, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	switch cfg.Kind {
	case domain.ProviderKindHTTP:
		predicate, ok := LookupPredicate(cfg.Success)
		if !ok {
			return nil, fmt.Errorf("provider %q: unknown success predicate %q", cfg.Name, cfg.Success)
		}
		return NewHTTPProvider(deps.Logger, cfg, predicate, deps.HTTPClient, deps.Decorator), nil
	case domain.ProviderKindTwilio:
		return NewTwilioProvider(deps.Logger, cfg, nil), nil
	default:
		return nil, fmt.Errorf("provider %q: unknown kind %q", cfg.Name, cfg.Kind)
	}
}

// NewAll builds the providers in configuration order.
func NewAll(cfgs []domain.ProviderConfig, deps Dependencies) ([]SMSSenderProvider, error) {
	providers := make([]SMSSenderProvider, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("provider %q configured twice", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}

		p, err := New(cfg, deps)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
