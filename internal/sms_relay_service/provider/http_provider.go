package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
)

// maxResponseBody caps how much of a provider response is read.
const maxResponseBody = 64 << 10

// HTTPProvider talks to any provider whose API accepts a single POST with the phone number and
// message in named fields. Everything provider specific comes from domain.ProviderConfig.
type HTTPProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	cfg        domain.ProviderConfig
	credential string
	success    SuccessPredicate
	decorate   Decorator
}

// NewHTTPProvider creates an HTTPProvider. cfg is expected to be normalized.
func NewHTTPProvider(logger *slog.Logger, cfg domain.ProviderConfig, success SuccessPredicate, httpClient *http.Client, decorate Decorator) *HTTPProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if decorate == nil {
		decorate = DefaultDecorator()
	}
	return &HTTPProvider{
		logger:     logger.With("provider", cfg.Name),
		httpClient: httpClient,
		cfg:        cfg,
		credential: cfg.ResolvedCredential(),
		success:    success,
		decorate:   decorate,
	}
}

// Send posts the message to the provider endpoint and evaluates the configured success predicate.
func (p *HTTPProvider) Send(ctx context.Context, req domain.SendRequest) (*SendResponseDetails, error) {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(p.cfg.Name))
	defer timer.ObserveDuration()

	body, contentType, err := p.buildBody(req)
	if err != nil {
		return nil, fmt.Errorf("%w: building request body: %v", domain.ErrUpstreamRejected, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", domain.ErrUpstreamUnreachable, err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	p.decorate(httpReq.Header)

	p.logger.DebugContext(ctx, "Sending request to provider", "url", p.cfg.Endpoint, "recipient", req.MaskedPhone(), "message_length", len(req.Message))

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.WarnContext(ctx, "Provider request failed", "error", err)
		providerResponsesCounter.WithLabelValues(p.cfg.Name, "transport_error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	defer httpResp.Body.Close()
	providerResponsesCounter.WithLabelValues(p.cfg.Name, fmt.Sprintf("%dxx", httpResp.StatusCode/100)).Inc()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to read provider response body", "status_code", httpResp.StatusCode, "error", err)
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrUpstreamUnreachable, err)
	}
	p.logger.DebugContext(ctx, "Received provider response", "status_code", httpResp.StatusCode, "body", truncate(string(raw), 200))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode)
		details := &SendResponseDetails{
			ProviderStatus: fmt.Sprintf("FAILED_%d", httpResp.StatusCode),
			ErrorMessage:   errMsg,
		}
		p.logger.WarnContext(ctx, "Provider returned non-success status", "status_code", httpResp.StatusCode, "body", truncate(string(raw), 200))
		if httpResp.StatusCode == http.StatusTooManyRequests || domain.IsQuotaMessage(string(raw)) {
			return details, fmt.Errorf("%w: %s", domain.ErrUpstreamQuotaExceeded, errMsg)
		}
		return details, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, errMsg)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		p.logger.WarnContext(ctx, "Provider returned a non-JSON body", "status_code", httpResp.StatusCode, "error", err)
		return &SendResponseDetails{
			ProviderStatus: fmt.Sprintf("UNPARSED_%d", httpResp.StatusCode),
			ErrorMessage:   "invalid JSON response",
		}, fmt.Errorf("%w: invalid JSON response: %v", domain.ErrUpstreamRejected, err)
	}

	if p.success(parsed) {
		details := &SendResponseDetails{
			ProviderMessageID: externalID(parsed),
			IsSuccess:         true,
			QuotaRemaining:    quotaRemaining(parsed),
			ProviderStatus:    fmt.Sprintf("SENT_%d", httpResp.StatusCode),
		}
		p.logger.InfoContext(ctx, "Provider accepted message", "provider_message_id", details.ProviderMessageID)
		return details, nil
	}

	errMsg := errorText(parsed)
	if errMsg == "" {
		errMsg = "provider reported failure"
	}
	details := &SendResponseDetails{
		QuotaRemaining: quotaRemaining(parsed),
		ProviderStatus: fmt.Sprintf("REJECTED_%d", httpResp.StatusCode),
		ErrorMessage:   errMsg,
	}
	if domain.IsQuotaMessage(errMsg) {
		p.logger.WarnContext(ctx, "Provider quota exhausted", "error_message", errMsg)
		return details, fmt.Errorf("%w: %s", domain.ErrUpstreamQuotaExceeded, errMsg)
	}
	p.logger.WarnContext(ctx, "Provider rejected message", "error_message", errMsg)
	return details, fmt.Errorf("%w: %s", domain.ErrUpstreamRejected, errMsg)
}

func (p *HTTPProvider) buildBody(req domain.SendRequest) (io.Reader, string, error) {
	fields := make(map[string]string, len(p.cfg.Extra)+len(p.cfg.CredentialFields)+2)
	for k, v := range p.cfg.Extra {
		fields[k] = v
	}
	if p.credential != "" {
		for _, f := range p.cfg.CredentialFields {
			fields[f] = p.credential
		}
	}
	fields[p.cfg.PhoneField] = req.Phone
	fields[p.cfg.MessageField] = req.Message

	if p.cfg.Encoding == domain.EncodingJSON {
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
}

// SupportsStatus reports whether a status endpoint is configured.
func (p *HTTPProvider) SupportsStatus() bool {
	return p.cfg.StatusURL != ""
}

// CheckStatus performs one GET against the status endpoint and returns its status field.
func (p *HTTPProvider) CheckStatus(ctx context.Context, externalID string) (string, error) {
	if !p.SupportsStatus() {
		return "", fmt.Errorf("provider %q has no status endpoint", p.cfg.Name)
	}
	if externalID == "" {
		return "", fmt.Errorf("provider %q: empty external id", p.cfg.Name)
	}
	statusURL := strings.ReplaceAll(p.cfg.StatusURL, "{id}", url.PathEscape(externalID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Accept", "application/json")
	p.decorate(httpReq.Header)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUpstreamUnreachable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status endpoint HTTP %d", domain.ErrUpstreamRejected, httpResp.StatusCode)
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxResponseBody)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding status response: %w", err)
	}
	return parsed.Status, nil
}

// GetName returns the configured provider name.
func (p *HTTPProvider) GetName() string {
	return p.cfg.Name
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
