// Package metrics exposes the bridge's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	perrors "github.com/walletbridge/walletbridge/pkg/errors"
)

var (
	// RequestsTotal counts bridge requests by method and outcome. Outcome
	// is "ok", "null" (unclassified method) or the error kind.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletbridge",
		Name:      "requests_total",
		Help:      "Bridge requests by method and outcome.",
	}, []string{"method", "outcome"})

	// SignerDuration observes custodial signer round-trip latency.
	SignerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "walletbridge",
		Name:      "signer_duration_seconds",
		Help:      "Custodial signer call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// UpstreamDuration observes chain node call latency.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "walletbridge",
		Name:      "upstream_duration_seconds",
		Help:      "Public node call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// EventsEmitted counts provider events delivered to listeners.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletbridge",
		Name:      "events_emitted_total",
		Help:      "Provider events emitted by kind.",
	}, []string{"event"})
)

// Outcome returns the label value for a request result: "ok", "null" for
// unclassified methods, the error kind for typed failures or "error".
func Outcome(err error, null bool) string {
	if err != nil {
		if perr, ok := perrors.AsProviderError(err); ok {
			return perr.Kind
		}
		return "error"
	}
	if null {
		return "null"
	}
	return "ok"
}
