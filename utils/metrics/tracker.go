package metrics

import (
	"sync"
	"time"
)

// DefaultSampleSize is the number of samples kept per metric
const DefaultSampleSize = 100

// PerformanceStats is a snapshot of recent engine performance
type PerformanceStats struct {
	AverageRoutingTime time.Duration `json:"averageRoutingTime"`
	SuccessRate        float64       `json:"successRate"`
	CacheHitRate       float64       `json:"cacheHitRate"`
	TotalRoutes        uint64        `json:"totalRoutes"`
	ErrorRate          float64       `json:"errorRate"`
}

// ring is a fixed-size sample buffer; the oldest sample is overwritten
type ring struct {
	samples []float64
	next    int
	full    bool
}

func newRing(size int) *ring {
	return &ring{samples: make([]float64, size)}
}

func (r *ring) add(v float64) {
	r.samples[r.next] = v
	r.next = (r.next + 1) % len(r.samples)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

func (r *ring) mean() float64 {
	n := r.len()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range r.samples[:n] {
		sum += v
	}
	return sum / float64(n)
}

// PerformanceTracker keeps bounded samples of routing time, outcome and
// cache hits
type PerformanceTracker struct {
	routingTime *ring
	success     *ring
	cacheHit    *ring
	total       uint64
	mu          sync.Mutex
}

func NewPerformanceTracker(size int) *PerformanceTracker {
	if size <= 0 {
		size = DefaultSampleSize
	}
	return &PerformanceTracker{
		routingTime: newRing(size),
		success:     newRing(size),
		cacheHit:    newRing(size),
	}
}

// Record adds one request outcome
func (t *PerformanceTracker) Record(elapsed time.Duration, success, cacheHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.routingTime.add(float64(elapsed))
	t.success.add(boolToFloat(success))
	t.cacheHit.add(boolToFloat(cacheHit))
}

func (t *PerformanceTracker) Stats() PerformanceStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := PerformanceStats{
		AverageRoutingTime: time.Duration(t.routingTime.mean()),
		CacheHitRate:       t.cacheHit.mean(),
		TotalRoutes:        t.total,
	}
	if t.success.len() > 0 {
		stats.SuccessRate = t.success.mean()
		stats.ErrorRate = 1 - stats.SuccessRate
	}
	return stats
}

// Samples returns the number of samples currently held per metric
func (t *PerformanceTracker) Samples() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.success.len()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
