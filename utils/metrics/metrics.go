package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Error kinds used for the errors_total label
const (
	ErrorKindInvalidRequest = "invalid_request"
	ErrorKindTimeout        = "timeout"
	ErrorKindCanceled       = "canceled"
	ErrorKindRoutingFailed  = "routing_failed"
	ErrorKindPoolSource     = "pool_source"
)

type RoutingMetrics struct {
	Requests          prometheus.Counter
	CacheHits         prometheus.Counter
	Errors            *prometheus.CounterVec
	GeneratorFailures *prometheus.CounterVec
	Candidates        *prometheus.CounterVec
	RoutesReturned    prometheus.Histogram
	Latency           prometheus.Histogram
	CacheEntries      prometheus.Gauge
}

// NewRoutingMetrics registers the routing metrics on reg. A nil registerer
// uses a fresh private registry.
func NewRoutingMetrics(namespace string, reg prometheus.Registerer) *RoutingMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &RoutingMetrics{
		Requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of routing requests",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of requests served from the route cache",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of failed routing requests by kind",
		}, []string{"kind"}),
		GeneratorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_failures_total",
			Help:      "Total number of failed route generators by strategy",
		}, []string{"strategy"}),
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Total number of candidate routes generated by strategy",
		}, []string{"strategy"}),
		RoutesReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "routes_returned",
			Help:      "Number of routes returned per request",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Routing latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of cached route lists",
		}),
	}
}
