package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sms_relay",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of HTTP requests to SMS providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider_name"},
	)

	providerResponsesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_relay",
			Name:      "provider_responses_total",
			Help:      "Provider responses by HTTP status class.",
		},
		[]string{"provider_name", "status_class"},
	)
)
