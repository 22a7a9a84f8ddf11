package metrics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// HealthHistoryPoint is one sample in a health-history time series, recorded
// by whatever caller polls HealthAggregator.Snapshot on an interval.
type HealthHistoryPoint struct {
	Timestamp   time.Time
	FailureRate float64
	QueueDepth  int64
}

// RenderHealthHistoryChart renders a PNG line chart of job failure rate over
// time, with queue depth as a secondary series. Adapted from the teacher's
// RenderGrowthChart (internal/services/portfolio/chart.go): same adaptive
// x-axis formatting and dual-series layout, generalized from a single
// portfolio-value series to failure-rate-plus-queue-depth.
func RenderHealthHistoryChart(points []HealthHistoryPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	failureRateY := make([]float64, len(points))
	queueDepthY := make([]float64, len(points))

	for i, p := range points {
		xValues[i] = p.Timestamp
		failureRateY[i] = p.FailureRate * 100
		queueDepthY[i] = float64(p.QueueDepth)
	}

	span := xValues[len(xValues)-1].Sub(xValues[0])
	xFormat := "Jan 02"
	if span < 2*time.Hour {
		xFormat = "15:04"
	} else if span < 60*24*time.Hour {
		xFormat = "02 Jan"
	}

	failureSeries := chart.TimeSeries{
		Name: "Failure Rate (%)",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("dc2626"), // red-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: failureRateY,
	}

	queueSeries := chart.TimeSeries{
		Name: "Queue Depth",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth:     2.0,
			StrokeDashArray: []float64{5.0, 5.0},
		},
		XValues: xValues,
		YValues: queueDepthY,
		YAxis:   chart.YAxisSecondary,
	}

	graph := chart.Chart{
		Title:  "Job Processing Health",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(xFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: "Failure Rate (%)",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Queue Depth",
		},
		Series: []chart.Series{failureSeries, queueSeries},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render health history chart: %w", err)
	}
	return buf.Bytes(), nil
}
