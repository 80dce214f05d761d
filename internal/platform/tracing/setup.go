// Package tracing configures the OpenTelemetry TracerProvider used for dispatch spans.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Provider wraps the SDK TracerProvider and its shutdown function.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	Shutdown       func(context.Context) error
}

// NewProvider creates a TracerProvider exporting spans over OTLP/gRPC to endpoint.
// endpoint may be host:port or a URL; only the host is used for the dial. An empty endpoint
// yields a provider that records nothing and a no-op Shutdown.
func NewProvider(ctx context.Context, endpoint, serviceName string) (*Provider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Provider{
			TracerProvider: sdktrace.NewTracerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	target, insecure, err := grpcTarget(endpoint)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	return &Provider{
		TracerProvider: tp,
		Shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("tracing: shutdown failed", "error", err)
				return err
			}
			return nil
		},
	}, nil
}

// SetGlobal installs the TracerProvider as the otel global.
func (p *Provider) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
}

func grpcTarget(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}
