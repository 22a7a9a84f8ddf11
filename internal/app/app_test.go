package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/dedup"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/jobstatus"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/taskstore"
)

// clearAppEnv ensures no ambient COPILOT_*/redis env vars leak into a test
// from the host environment, so NewApp resolves to in-memory defaults.
func clearAppEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"COPILOT_CONFIG", "COPILOT_REDIS_ADDR", "COPILOT_ENV", "COPILOT_HOST", "COPILOT_PORT"} {
		t.Setenv(key, "")
	}
}

func TestNewApp_DefaultsToInMemoryStorageAndDedup(t *testing.T) {
	clearAppEnv(t)

	a, err := NewApp("")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.IsType(t, &jobstatus.Store{}, a.Statuses)
	assert.IsType(t, &taskstore.Store{}, a.TaskStore)
	assert.IsType(t, &dedup.Registry{}, a.Dedup)
	assert.Nil(t, a.surrealManager)
}

func TestNewApp_SkipsLLMHandlersWithoutApiKey(t *testing.T) {
	clearAppEnv(t)

	a, err := NewApp("")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Empty(t, a.Config.Planner.ApiKey)
	_, ok := a.Dispatcher.HandlerFor("GeneratePlan")
	assert.False(t, ok)
}

func TestNewApp_WiresWebhookDispatcherHealthAndMetrics(t *testing.T) {
	clearAppEnv(t)

	a, err := NewApp("")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Webhook)
	require.NotNil(t, a.Dispatcher)
	require.NotNil(t, a.Health)
	require.NotNil(t, a.Metrics)
}
