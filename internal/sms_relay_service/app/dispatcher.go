package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAttemptTimeout bounds one provider call.
const DefaultAttemptTimeout = 10 * time.Second

const tracerName = "github.com/smsinternational/golang_services/internal/sms_relay_service/app"

// Dispatcher tries providers in priority order and stops at the first one that accepts the message.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	providers      []provider.SMSSenderProvider
	attemptTimeout time.Duration
	poller         *StatusPoller
	tracer         trace.Tracer
	logger         *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAttemptTimeout overrides DefaultAttemptTimeout.
func WithAttemptTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.attemptTimeout = d
		}
	}
}

// WithStatusPoller enables a single delivery-status read after each successful send.
func WithStatusPoller(p *StatusPoller) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.poller = p
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(disp *Dispatcher) {
		if t != nil {
			disp.tracer = t
		}
	}
}

// NewDispatcher creates a Dispatcher over providers, which are tried in slice order.
func NewDispatcher(providers []provider.SMSSenderProvider, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		providers:      providers,
		attemptTimeout: DefaultAttemptTimeout,
		tracer:         otel.Tracer(tracerName),
		logger:         logger.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProviderNames lists the providers in priority order.
func (d *Dispatcher) ProviderNames() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.GetName())
	}
	return names
}

// Dispatch runs the fallback scan for req.
// A failed scan returns a SendResult carrying the last provider error together with an error wrapping
// domain.ErrAllProvidersExhausted, or domain.ErrUnexpected when ctx ended before the scan finished.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	timer := prometheus.NewTimer(dispatchDurationHist)
	defer timer.ObserveDuration()

	ctx, span := d.tracer.Start(ctx, "sms_relay.dispatch", trace.WithAttributes(
		attribute.Int("sms_relay.provider_count", len(d.providers)),
		attribute.Int("sms_relay.message_length", len(req.Message)),
	))
	defer span.End()

	logger := d.logger.With("recipient", req.MaskedPhone())

	if len(d.providers) == 0 {
		dispatchResultsCounter.WithLabelValues("exhausted").Inc()
		span.SetStatus(codes.Error, "no providers configured")
		return domain.SendResult{Error: "no providers configured"},
			fmt.Errorf("%w: no providers configured", domain.ErrAllProvidersExhausted)
	}

	var lastError string
	for i, p := range d.providers {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "Dispatch abandoned, request context ended", "error", err, "attempted", i)
			dispatchResultsCounter.WithLabelValues("cancelled").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return domain.SendResult{Error: lastError}, fmt.Errorf("%w: dispatch cancelled: %v", domain.ErrUnexpected, err)
		}

		attempt := d.attempt(ctx, i, p, req, logger)
		if attempt.Success {
			dispatchResultsCounter.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.String("sms_relay.provider", attempt.Provider))
			logger.InfoContext(ctx, "SMS sent", "provider", attempt.Provider, "external_id", attempt.ExternalID, "attempts", i+1)
			d.schedulePoll(p, attempt.ExternalID)
			return domain.SendResult{
				Success:        true,
				Provider:       attempt.Provider,
				ExternalID:     attempt.ExternalID,
				QuotaRemaining: attempt.QuotaRemaining,
			}, nil
		}
		lastError = fmt.Sprintf("%s: %s", attempt.Provider, failureText(attempt.Err))
	}

	logger.ErrorContext(ctx, "All providers exhausted", "last_error", lastError)
	dispatchResultsCounter.WithLabelValues("exhausted").Inc()
	span.SetStatus(codes.Error, "all providers exhausted")
	return domain.SendResult{Error: lastError}, fmt.Errorf("%w: %s", domain.ErrAllProvidersExhausted, lastError)
}

// attempt makes exactly one call to p under the per-attempt timeout.
func (d *Dispatcher) attempt(ctx context.Context, index int, p provider.SMSSenderProvider, req domain.SendRequest, logger *slog.Logger) domain.Attempt {
	name := p.GetName()
	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	attemptCtx, span := d.tracer.Start(attemptCtx, "sms_relay.attempt", trace.WithAttributes(
		attribute.String("sms_relay.provider", name),
		attribute.Int("sms_relay.priority", index),
	))
	defer span.End()

	logger.DebugContext(ctx, "Trying provider", "provider", name, "priority", index)
	details, err := p.Send(attemptCtx, req)
	if err == nil && (details == nil || !details.IsSuccess) {
		err = fmt.Errorf("%w: provider reported failure", domain.ErrUpstreamRejected)
	}

	outcome := outcomeLabel(err)
	dispatchAttemptsCounter.WithLabelValues(name, outcome).Inc()
	span.SetAttributes(attribute.String("sms_relay.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if errors.Is(err, domain.ErrUpstreamQuotaExceeded) {
			logger.WarnContext(ctx, "Provider quota exhausted, trying next provider", "provider", name, "error", err)
		} else {
			logger.WarnContext(ctx, "Provider attempt failed, trying next provider", "provider", name, "outcome", outcome, "error", err)
		}
		return domain.Attempt{Provider: name, Err: err}
	}

	return domain.Attempt{
		Provider:       name,
		Success:        true,
		ExternalID:     details.ProviderMessageID,
		QuotaRemaining: details.QuotaRemaining,
	}
}

func (d *Dispatcher) schedulePoll(p provider.SMSSenderProvider, externalID string) {
	if d.poller == nil || externalID == "" {
		return
	}
	checker, ok := p.(provider.StatusChecker)
	if !ok || !checker.SupportsStatus() {
		return
	}
	d.poller.Schedule(checker, p.GetName(), externalID)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUpstreamQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrUpstreamUnreachable):
		return "unreachable"
	default:
		return "rejected"
	}
}

// failureText strips the sentinel prefix so the client sees the provider's own words.
func failureText(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{domain.ErrUpstreamQuotaExceeded, domain.ErrUpstreamUnreachable, domain.ErrUpstreamRejected} {
		if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
