package server

import (
	"context"
	"sync"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/health"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/metrics"
)

// healthHistory keeps a bounded, ring-buffered window of recent health
// snapshots so /api/health/chart.png can render a trend instead of a single
// point. Grounded on the teacher's in-memory cache eviction idiom
// (internal/services/jobmanager), generalized to a fixed-capacity ring.
type healthHistory struct {
	mu       sync.Mutex
	points   []metrics.HealthHistoryPoint
	capacity int
}

func newHealthHistory(capacity int) *healthHistory {
	if capacity <= 0 {
		capacity = 288 // 24h at one sample per 5 minutes
	}
	return &healthHistory{capacity: capacity}
}

func (h *healthHistory) record(p metrics.HealthHistoryPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, p)
	if len(h.points) > h.capacity {
		h.points = h.points[len(h.points)-h.capacity:]
	}
}

// Snapshot returns a copy of the current history window.
func (h *healthHistory) Snapshot() []metrics.HealthHistoryPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]metrics.HealthHistoryPoint, len(h.points))
	copy(out, h.points)
	return out
}

// sample appends the current aggregator snapshot's queue depth and failure
// rate to the history window. Reports without metrics (the status-store
// metrics query failed) are skipped since there is nothing meaningful to
// chart.
func (h *healthHistory) sample(ctx context.Context, aggregator *health.Aggregator, clock func() time.Time) {
	report := aggregator.Snapshot(ctx)
	if report.Metrics == nil {
		return
	}
	h.record(metrics.HealthHistoryPoint{
		Timestamp:   clock(),
		FailureRate: report.Metrics.FailureRate,
		QueueDepth:  report.Metrics.QueueDepth,
	})
}

// runSampler periodically samples aggregator into h until ctx is cancelled.
func (h *healthHistory) runSampler(ctx context.Context, aggregator *health.Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sample(ctx, aggregator, time.Now)
		}
	}
}
