package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smsinternational/golang_services/internal/sms_relay_service/provider"
)

// Status poller defaults.
const (
	DefaultStatusPollDelay   = 5 * time.Second
	DefaultStatusPollTimeout = 10 * time.Second
)

// StatusPoller performs one delayed delivery-status read per successful send.
// Reads run in their own goroutines and never hold up the response to the client.
type StatusPoller struct {
	logger  *slog.Logger
	delay   time.Duration
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusPoller creates a StatusPoller. Non-positive durations fall back to the defaults.
func NewStatusPoller(logger *slog.Logger, delay, timeout time.Duration) *StatusPoller {
	if delay <= 0 {
		delay = DefaultStatusPollDelay
	}
	if timeout <= 0 {
		timeout = DefaultStatusPollTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StatusPoller{
		logger:  logger.With("component", "status_poller"),
		delay:   delay,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule starts the delayed read and returns immediately.
func (p *StatusPoller) Schedule(checker provider.StatusChecker, providerName, externalID string) {
	if p.ctx.Err() != nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(checker, providerName, externalID)
	}()
}

func (p *StatusPoller) poll(checker provider.StatusChecker, providerName, externalID string) {
	logger := p.logger.With("provider", providerName, "external_id", externalID)

	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
		logger.Debug("Status poll cancelled before it ran")
		return
	case <-timer.C:
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	status, err := checker.CheckStatus(ctx, externalID)
	if err != nil {
		statusPollsCounter.WithLabelValues(providerName, "error").Inc()
		logger.WarnContext(ctx, "Delivery status read failed", "error", err)
		return
	}
	if status == "" {
		status = "unknown"
	}
	statusPollsCounter.WithLabelValues(providerName, status).Inc()
	logger.InfoContext(ctx, "Delivery status", "status", status)
}

// Wait blocks until every scheduled read has finished.
func (p *StatusPoller) Wait() {
	p.wg.Wait()
}

// Close cancels pending reads and waits for running ones to return.
func (p *StatusPoller) Close() {
	p.cancel()
	p.wg.Wait()
}
