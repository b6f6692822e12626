package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRuntimeMonitorCollect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRuntimeMonitor("swaprouter", reg, zaptest.NewLogger(t))

	m.Collect()

	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.heapAlloc), 0.0)
	assert.Greater(t, testutil.ToFloat64(m.heapObjects), 0.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.gcPause), 0.0)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "swaprouter_runtime_goroutines")
	assert.Contains(t, names, "swaprouter_runtime_heap_usage_percent")
}

func TestRuntimeMonitorStartStop(t *testing.T) {
	m := NewRuntimeMonitor("swaprouter", prometheus.NewRegistry(), nil)

	m.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.goroutines) > 0
	}, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestRuntimeMonitorStopWithoutStart(t *testing.T) {
	m := NewRuntimeMonitor("swaprouter", prometheus.NewRegistry(), nil)
	m.Stop()
}
