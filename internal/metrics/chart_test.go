package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHealthHistoryChart_ProducesPNGBytes(t *testing.T) {
	now := time.Now()
	points := []HealthHistoryPoint{
		{Timestamp: now, FailureRate: 0.05, QueueDepth: 10},
		{Timestamp: now.Add(time.Hour), FailureRate: 0.10, QueueDepth: 25},
		{Timestamp: now.Add(2 * time.Hour), FailureRate: 0.30, QueueDepth: 120},
	}

	png, err := RenderHealthHistoryChart(points)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG signature
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderHealthHistoryChart_RejectsFewerThanTwoPoints(t *testing.T) {
	_, err := RenderHealthHistoryChart([]HealthHistoryPoint{{Timestamp: time.Now()}})
	assert.Error(t, err)
}
