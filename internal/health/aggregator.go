// Package health implements HealthAggregator: a point-in-time snapshot of
// the status store and queue into a tri-state HealthReport (spec §4.9).
// Grounded on the teacher's watchLoop periodic-scan idiom (internal/services/
// jobmanager/watcher.go), generalized from a repair-the-queue loop into a
// pure read-only aggregation with no side effects on the data it inspects.
package health

import (
	"context"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

const (
	queueDepthThreshold   = 1000
	failureRateDegraded   = 0.20
	failureRateUnhealthy  = 0.50
)

// Aggregator produces HealthReport snapshots from the JobQueue and
// JobStatusStore.
type Aggregator struct {
	queue    interfaces.JobQueue
	statuses interfaces.JobStatusStore
	clock    common.Clock
}

// New returns an Aggregator reading from queue and statuses.
func New(queue interfaces.JobQueue, statuses interfaces.JobStatusStore, clock common.Clock) *Aggregator {
	if clock == nil {
		clock = common.NewSystemClock()
	}
	return &Aggregator{queue: queue, statuses: statuses, clock: clock}
}

// Snapshot computes the current HealthReport, per spec §4.9's component
// rules: database/job_queue/job_processing, rolled up to the worst status.
func (a *Aggregator) Snapshot(ctx context.Context) *models.HealthReport {
	components := make(map[string]models.ComponentHealth)

	metrics, err := a.statuses.Metrics(ctx)
	components["database"] = databaseHealth(err)
	components["job_queue"] = a.jobQueueHealth()
	components["job_processing"] = jobProcessingHealth(metrics, err)

	overall := models.HealthHealthy
	for _, c := range components {
		overall = overall.Worse(c.Status)
	}

	return &models.HealthReport{
		Status:     overall,
		Timestamp:  a.clock.Now(),
		Components: components,
		Metrics:    metrics,
	}
}

func databaseHealth(metricsErr error) models.ComponentHealth {
	if metricsErr != nil {
		return models.ComponentHealth{
			Status:      models.HealthUnhealthy,
			Description: "status store metrics query failed",
			Details:     map[string]interface{}{"error": metricsErr.Error()},
		}
	}
	return models.ComponentHealth{
		Status:      models.HealthHealthy,
		Description: "status store reachable",
	}
}

func (a *Aggregator) jobQueueHealth() models.ComponentHealth {
	depth := a.queue.Count()
	status := models.HealthHealthy
	if depth > queueDepthThreshold {
		status = models.HealthDegraded
	}
	return models.ComponentHealth{
		Status:      status,
		Description: "queue depth within bounds",
		Details:     map[string]interface{}{"depth": depth},
	}
}

func jobProcessingHealth(metrics *models.JobMetrics, metricsErr error) models.ComponentHealth {
	if metricsErr != nil {
		return models.ComponentHealth{
			Status:      models.HealthUnhealthy,
			Description: "job metrics unavailable",
			Details:     map[string]interface{}{"error": metricsErr.Error()},
		}
	}

	failureRate := metrics.FailureRate
	status := models.HealthHealthy
	switch {
	case failureRate > failureRateUnhealthy:
		status = models.HealthUnhealthy
	case failureRate > failureRateDegraded:
		status = models.HealthDegraded
	}

	return models.ComponentHealth{
		Status:      status,
		Description: "job failure rate within bounds",
		Details:     map[string]interface{}{"failure_rate": failureRate},
	}
}
