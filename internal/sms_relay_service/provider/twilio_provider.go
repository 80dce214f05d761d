package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioMessageAPI is the slice of the Twilio REST client used by TwilioProvider.
type TwilioMessageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	FetchMessage(Sid string, params *openapi.FetchMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioProvider sends through a credentialed Twilio account.
type TwilioProvider struct {
	logger *slog.Logger
	api    TwilioMessageAPI
	name   string
	from   string
}

// NewTwilioProvider creates a TwilioProvider. A nil api builds a REST client from cfg.
func NewTwilioProvider(logger *slog.Logger, cfg domain.ProviderConfig, api TwilioMessageAPI) *TwilioProvider {
	if api == nil {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.ResolvedCredential(),
		})
		api = client.Api
	}
	return &TwilioProvider{
		logger: logger.With("provider", cfg.Name),
		api:    api,
		name:   cfg.Name,
		from:   cfg.Extra["from"],
	}
}

type twilioCallResult struct {
	msg *openapi.ApiV2010Message
	err error
}

// call runs a blocking Twilio request and gives up when ctx is done.
func (p *TwilioProvider) call(ctx context.Context, fn func() (*openapi.ApiV2010Message, error)) (*openapi.ApiV2010Message, error) {
	ch := make(chan twilioCallResult, 1)
	go func() {
		msg, err := fn()
		ch <- twilioCallResult{msg: msg, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.msg, r.err
	}
}

// Send creates a message through the Twilio Messages API.
func (p *TwilioProvider) Send(ctx context.Context, req domain.SendRequest) (*SendResponseDetails, error) {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.name))
	defer timer.ObserveDuration()

	params := &openapi.CreateMessageParams{}
	params.SetTo(req.Phone)
	params.SetFrom(p.from)
	params.SetBody(req.Message)

	p.logger.DebugContext(ctx, "Sending message via Twilio", "recipient", req.MaskedPhone(), "message_length", len(req.Message))

	msg, err := p.call(ctx, func() (*openapi.ApiV2010Message, error) {
		return p.api.CreateMessage(params)
	})
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			providerResponsesCounter.WithLabelValues(p.name, fmt.Sprintf("%dxx", restErr.Status/100)).Inc()
			details := &SendResponseDetails{
				ProviderStatus: fmt.Sprintf("FAILED_%d", restErr.Status),
				ErrorMessage:   restErr.Message,
			}
			p.logger.WarnContext(ctx, "Twilio rejected message", "status", restErr.Status, "code", restErr.Code, "error_message", restErr.Message)
			if restErr.Status == http.StatusTooManyRequests || domain.IsQuotaMessage(restErr.Message) {
				return details, fmt.Errorf("%w: %s", domain.ErrUpstreamQuotaExceeded, restErr.Message)
			}
			return details, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, restErr.Message)
		}
		providerResponsesCounter.WithLabelValues(p.name, "transport_error").Inc()
		p.logger.WarnContext(ctx, "Twilio request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	providerResponsesCounter.WithLabelValues(p.name, "2xx").Inc()

	status := deref(msg.Status)
	if status == "failed" || status == "undelivered" {
		errMsg := deref(msg.ErrorMessage)
		if errMsg == "" {
			errMsg = "message " + status
		}
		p.logger.WarnContext(ctx, "Twilio reported failed message", "status", status, "error_message", errMsg)
		return &SendResponseDetails{
			ProviderMessageID: deref(msg.Sid),
			ProviderStatus:    "REJECTED_" + status,
			ErrorMessage:      errMsg,
		}, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, errMsg)
	}

	p.logger.InfoContext(ctx, "Twilio accepted message", "provider_message_id", deref(msg.Sid), "status", status)
	return &SendResponseDetails{
		ProviderMessageID: deref(msg.Sid),
		IsSuccess:         true,
		ProviderStatus:    "SENT_" + status,
	}, nil
}

// SupportsStatus is always true; every Twilio message can be fetched by SID.
func (p *TwilioProvider) SupportsStatus() bool {
	return true
}

// CheckStatus fetches the message by SID and returns its status.
func (p *TwilioProvider) CheckStatus(ctx context.Context, externalID string) (string, error) {
	if externalID == "" {
		return "", fmt.Errorf("provider %q: empty external id", p.name)
	}
	msg, err := p.call(ctx, func() (*openapi.ApiV2010Message, error) {
		return p.api.FetchMessage(externalID, &openapi.FetchMessageParams{})
	})
	if err != nil {
		return "", fmt.Errorf("fetching twilio message %s: %w", externalID, err)
	}
	return deref(msg.Status), nil
}

// GetName returns the configured provider name.
func (p *TwilioProvider) GetName() string {
	return p.name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
