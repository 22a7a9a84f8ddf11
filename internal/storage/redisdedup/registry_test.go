package redisdedup

import (
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// requireRedis skips the test unless a reachable Redis instance is
// explicitly configured, matching the opt-in convention used for the
// Docker-gated container client tests.
func requireRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("COPILOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Redis integration tests disabled (set COPILOT_TEST_REDIS_ADDR to enable)")
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

func TestRegistry_RegisterAndLookup_Integration(t *testing.T) {
	client := requireRedis(t)
	defer client.Close()
	r := NewRegistry(client)

	require.NoError(t, r.Register("job-1", "task-abc"))
	require.Equal(t, "job-1", r.LookupInFlight("task-abc"))
}

func TestRegistry_Unregister_ClearsForwardMapping_Integration(t *testing.T) {
	client := requireRedis(t)
	defer client.Close()
	r := NewRegistry(client)

	require.NoError(t, r.Register("job-2", "task-def"))
	r.Unregister("job-2")
	require.Equal(t, "", r.LookupInFlight("task-def"))
}

func TestRegistry_Register_ReplacesPriorEntry_Integration(t *testing.T) {
	client := requireRedis(t)
	defer client.Close()
	r := NewRegistry(client)

	require.NoError(t, r.Register("job-3", "task-ghi"))
	require.NoError(t, r.Register("job-4", "task-ghi"))
	require.Equal(t, "job-4", r.LookupInFlight("task-ghi"))
}

func TestRegistry_LookupInFlight_EmptyKeyReturnsEmpty(t *testing.T) {
	r := NewRegistry(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	require.Equal(t, "", r.LookupInFlight(""))
}

func TestRegistry_Register_EmptyKeyErrors(t *testing.T) {
	r := NewRegistry(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	require.Error(t, r.Register("job-5", ""))
}
