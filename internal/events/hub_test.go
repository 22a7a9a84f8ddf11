package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/processor"
)

func TestHub_PublishWithNoClients_DoesNotBlock(t *testing.T) {
	h := NewHub(common.NewSilentLogger())
	go h.Run()
	defer h.Stop()

	done := make(chan struct{})
	go func() {
		h.Publish(processor.JobLifecycleEvent{Type: "completed", Job: &models.Job{JobID: "j1"}, Timestamp: time.Now()})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no clients connected")
	}
}

func TestHub_ClientCount_StartsAtZero(t *testing.T) {
	h := NewHub(common.NewSilentLogger())
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_StopIsIdempotent(t *testing.T) {
	h := NewHub(common.NewSilentLogger())
	go h.Run()
	h.Stop()
	h.Stop()
}

func TestClient_Wants_NoFilterMatchesEverything(t *testing.T) {
	c := &client{}
	assert.True(t, c.wants(processor.JobLifecycleEvent{Job: &models.Job{Type: "GeneratePlan"}}))
	assert.True(t, c.wants(processor.JobLifecycleEvent{Job: &models.Job{Type: "ExecutePlan"}}))
}

func TestClient_Wants_FiltersByJobType(t *testing.T) {
	c := &client{jobTypes: parseJobTypes("GeneratePlan")}
	assert.True(t, c.wants(processor.JobLifecycleEvent{Job: &models.Job{Type: "GeneratePlan"}}))
	assert.False(t, c.wants(processor.JobLifecycleEvent{Job: &models.Job{Type: "ExecutePlan"}}))
}

func TestParseJobTypes_SplitsTrimsAndIgnoresBlank(t *testing.T) {
	assert.Nil(t, parseJobTypes(""))
	assert.Nil(t, parseJobTypes("  , ,"))
	set := parseJobTypes("GeneratePlan, ExecutePlan")
	assert.Equal(t, map[string]struct{}{"GeneratePlan": {}, "ExecutePlan": {}}, set)
}
