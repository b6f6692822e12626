package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRoutingMetrics("test_routing", reg)
	assert.NotNil(t, metrics)

	// Test counter operations
	metrics.Requests.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests))

	metrics.CacheHits.Add(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheHits))

	metrics.Errors.WithLabelValues(ErrorKindTimeout).Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Errors.WithLabelValues(ErrorKindTimeout)))

	metrics.GeneratorFailures.WithLabelValues("split").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.GeneratorFailures.WithLabelValues("split")))

	// Test histogram operations
	metrics.Latency.Observe(0.01)
	metrics.RoutesReturned.Observe(3)
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.Errors)+testutil.CollectAndCount(metrics.GeneratorFailures)+testutil.CollectAndCount(metrics.Latency))
}

func TestRoutingMetricsSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewRoutingMetrics("test_dup", nil)
		NewRoutingMetrics("test_dup", nil)
	})
}

func TestPerformanceTracker(t *testing.T) {
	tracker := NewPerformanceTracker(0)

	stats := tracker.Stats()
	assert.Equal(t, PerformanceStats{}, stats)

	tracker.Record(10*time.Millisecond, true, false)
	tracker.Record(30*time.Millisecond, true, true)
	tracker.Record(20*time.Millisecond, false, false)
	tracker.Record(20*time.Millisecond, true, true)

	stats = tracker.Stats()
	assert.Equal(t, 20*time.Millisecond, stats.AverageRoutingTime)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 0.25, stats.ErrorRate, 1e-9)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 1e-9)
	assert.Equal(t, uint64(4), stats.TotalRoutes)
}

func TestPerformanceTrackerBounded(t *testing.T) {
	tracker := NewPerformanceTracker(DefaultSampleSize)

	for i := 0; i < DefaultSampleSize; i++ {
		tracker.Record(time.Second, false, false)
	}
	for i := 0; i < DefaultSampleSize; i++ {
		tracker.Record(time.Millisecond, true, true)
	}

	stats := tracker.Stats()
	assert.Equal(t, DefaultSampleSize, tracker.Samples())
	assert.Equal(t, time.Millisecond, stats.AverageRoutingTime)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Equal(t, 1.0, stats.CacheHitRate)
	assert.Equal(t, uint64(2*DefaultSampleSize), stats.TotalRoutes)
}

func TestSummarize(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRoutingMetrics("swaprouter", reg)
	metrics.Requests.Add(3)
	metrics.Candidates.WithLabelValues("direct").Add(4)
	metrics.Latency.Observe(0.5)

	summary, err := Summarize(reg)
	require.NoError(t, err)

	assert.Equal(t, 3.0, summary["swaprouter_requests_total"])
	assert.Equal(t, 4.0, summary["swaprouter_candidates_total{strategy=direct}"])
	assert.Equal(t, 1.0, summary["swaprouter_latency_seconds_count"])
	assert.Equal(t, 0.5, summary["swaprouter_latency_seconds_sum"])

	keys := SortedKeys(summary)
	assert.Contains(t, keys, "swaprouter_requests_total")
	assert.IsIncreasing(t, keys)
}
