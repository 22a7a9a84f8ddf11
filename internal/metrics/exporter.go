// Package metrics exports JobMetrics as Prometheus gauges and renders a PNG
// health-history chart. Grounded on the teacher's go-chart usage (internal/
// services/portfolio/chart.go); the Prometheus wiring itself is new surface
// this system needs that the teacher never required (it has no queue to
// instrument), built directly against prometheus/client_golang's collector
// API.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/health"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
)

// Exporter is a prometheus.Collector that reports the current JobMetrics
// snapshot, refreshed on every scrape by calling into the HealthAggregator.
type Exporter struct {
	aggregator *health.Aggregator

	queueDepth          *prometheus.Desc
	processingCount     *prometheus.Desc
	completedCount      *prometheus.Desc
	failedCount         *prometheus.Desc
	cancelledCount      *prometheus.Desc
	deadLetterCount     *prometheus.Desc
	totalJobs           *prometheus.Desc
	failureRate         *prometheus.Desc
	avgProcessingMs     *prometheus.Desc
	avgQueueWaitMs      *prometheus.Desc
	byTypeTotal         *prometheus.Desc
	byTypeFailureRate   *prometheus.Desc
	byTypeAvgDurationMs *prometheus.Desc
	overallHealth       *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter returns an Exporter that reads snapshots from aggregator.
func NewExporter(aggregator *health.Aggregator) *Exporter {
	return &Exporter{
		aggregator:          aggregator,
		queueDepth:          prometheus.NewDesc("copilot_job_queue_depth", "Number of jobs currently queued.", nil, nil),
		processingCount:     prometheus.NewDesc("copilot_job_processing_count", "Number of jobs currently processing.", nil, nil),
		completedCount:      prometheus.NewDesc("copilot_job_completed_total", "Total number of completed jobs.", nil, nil),
		failedCount:         prometheus.NewDesc("copilot_job_failed_total", "Total number of failed jobs.", nil, nil),
		cancelledCount:      prometheus.NewDesc("copilot_job_cancelled_total", "Total number of cancelled jobs.", nil, nil),
		deadLetterCount:     prometheus.NewDesc("copilot_job_dead_letter_total", "Total number of jobs moved to the dead letter state.", nil, nil),
		totalJobs:           prometheus.NewDesc("copilot_job_total", "Total number of jobs tracked.", nil, nil),
		failureRate:         prometheus.NewDesc("copilot_job_failure_rate", "Fraction of all tracked jobs that are in the Failed state.", nil, nil),
		avgProcessingMs:     prometheus.NewDesc("copilot_job_average_processing_duration_ms", "Average job processing duration in milliseconds.", nil, nil),
		avgQueueWaitMs:      prometheus.NewDesc("copilot_job_average_queue_wait_ms", "Average queue wait duration in milliseconds.", nil, nil),
		byTypeTotal:         prometheus.NewDesc("copilot_job_type_total", "Total number of jobs by type.", []string{"job_type"}, nil),
		byTypeFailureRate:   prometheus.NewDesc("copilot_job_type_failure_rate", "Failure rate by job type.", []string{"job_type"}, nil),
		byTypeAvgDurationMs: prometheus.NewDesc("copilot_job_type_average_duration_ms", "Average processing duration in milliseconds by job type.", []string{"job_type"}, nil),
		overallHealth:       prometheus.NewDesc("copilot_health_status", "Overall health status (0=Healthy, 1=Degraded, 2=Unhealthy).", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.queueDepth
	ch <- e.processingCount
	ch <- e.completedCount
	ch <- e.failedCount
	ch <- e.cancelledCount
	ch <- e.deadLetterCount
	ch <- e.totalJobs
	ch <- e.failureRate
	ch <- e.avgProcessingMs
	ch <- e.avgQueueWaitMs
	ch <- e.byTypeTotal
	ch <- e.byTypeFailureRate
	ch <- e.byTypeAvgDurationMs
	ch <- e.overallHealth
}

// Collect implements prometheus.Collector, taking a fresh HealthAggregator
// snapshot on every scrape.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	report := e.aggregator.Snapshot(context.Background())

	ch <- prometheus.MustNewConstMetric(e.overallHealth, prometheus.GaugeValue, healthRank(report.Status))

	m := report.Metrics
	if m == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(e.queueDepth, prometheus.GaugeValue, float64(m.QueueDepth))
	ch <- prometheus.MustNewConstMetric(e.processingCount, prometheus.GaugeValue, float64(m.ProcessingCount))
	ch <- prometheus.MustNewConstMetric(e.completedCount, prometheus.CounterValue, float64(m.CompletedCount))
	ch <- prometheus.MustNewConstMetric(e.failedCount, prometheus.CounterValue, float64(m.FailedCount))
	ch <- prometheus.MustNewConstMetric(e.cancelledCount, prometheus.CounterValue, float64(m.CancelledCount))
	ch <- prometheus.MustNewConstMetric(e.deadLetterCount, prometheus.CounterValue, float64(m.DeadLetterCount))
	ch <- prometheus.MustNewConstMetric(e.totalJobs, prometheus.CounterValue, float64(m.TotalJobs))
	ch <- prometheus.MustNewConstMetric(e.failureRate, prometheus.GaugeValue, m.FailureRate)
	ch <- prometheus.MustNewConstMetric(e.avgProcessingMs, prometheus.GaugeValue, m.AverageProcessingDurationMs)
	ch <- prometheus.MustNewConstMetric(e.avgQueueWaitMs, prometheus.GaugeValue, m.AverageQueueWaitMs)

	for jobType, byType := range m.MetricsByType {
		ch <- prometheus.MustNewConstMetric(e.byTypeTotal, prometheus.CounterValue, float64(byType.TotalCount), jobType)
		ch <- prometheus.MustNewConstMetric(e.byTypeFailureRate, prometheus.GaugeValue, byType.FailureRate, jobType)
		ch <- prometheus.MustNewConstMetric(e.byTypeAvgDurationMs, prometheus.GaugeValue, byType.AverageProcessingDurationMs, jobType)
	}
}

func healthRank(status models.HealthStatus) float64 {
	switch status {
	case models.HealthDegraded:
		return 1
	case models.HealthUnhealthy:
		return 2
	default:
		return 0
	}
}
