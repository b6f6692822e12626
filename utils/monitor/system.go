package monitor

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultInterval is how often runtime metrics are sampled
const DefaultInterval = 5 * time.Second

// RuntimeMonitor samples Go runtime statistics of the router process into
// prometheus gauges
type RuntimeMonitor struct {
	logger      *zap.Logger
	goroutines  prometheus.Gauge
	heapObjects prometheus.Gauge
	heapAlloc   prometheus.Gauge
	heapUsage   prometheus.Gauge
	gcPause     prometheus.Gauge
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewRuntimeMonitor registers the runtime gauges on reg
func NewRuntimeMonitor(namespace string, reg prometheus.Registerer, logger *zap.Logger) *RuntimeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      name,
			Help:      help,
		})
	}

	return &RuntimeMonitor{
		logger:      logger,
		goroutines:  gauge("goroutines", "Current number of goroutines"),
		heapObjects: gauge("heap_objects", "Current number of heap objects"),
		heapAlloc:   gauge("heap_alloc_bytes", "Current heap allocation in bytes"),
		heapUsage:   gauge("heap_usage_percent", "Allocated bytes as a share of memory obtained from the OS"),
		gcPause:     gauge("gc_pause_seconds", "Duration of the most recent GC pause"),
	}
}

// Start samples every interval until ctx is done or Stop is called
func (m *RuntimeMonitor) Start(ctx context.Context, interval time.Duration) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.Collect()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Collect()
			}
		}
	}()
}

// Collect takes one sample
func (m *RuntimeMonitor) Collect() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.heapObjects.Set(float64(stats.HeapObjects))
	m.heapAlloc.Set(float64(stats.HeapAlloc))
	if stats.Sys > 0 {
		m.heapUsage.Set(float64(stats.Alloc) / float64(stats.Sys) * 100)
	}
	m.gcPause.Set(time.Duration(stats.PauseNs[(stats.NumGC+255)%256]).Seconds())

	m.logger.Debug("Runtime sampled",
		zap.Int("goroutines", runtime.NumGoroutine()),
		zap.Uint64("heapAlloc", stats.HeapAlloc))
}

// Stop ends sampling and waits for the sampler to exit
func (m *RuntimeMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
