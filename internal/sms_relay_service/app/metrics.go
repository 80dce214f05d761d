package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchAttemptsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_relay",
			Name:      "dispatch_attempts_total",
			Help:      "Provider attempts made by the dispatcher.",
		},
		[]string{"provider_name", "outcome"}, // outcome: success, quota_exceeded, rejected, unreachable
	)

	dispatchResultsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_relay",
			Name:      "dispatch_results_total",
			Help:      "Final dispatch results.",
		},
		[]string{"result"}, // success, exhausted, cancelled
	)

	dispatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sms_relay",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of a full fallback scan.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	statusPollsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_relay",
			Name:      "status_polls_total",
			Help:      "Delivery status reads by provider and reported status.",
		},
		[]string{"provider_name", "status"},
	)
)
