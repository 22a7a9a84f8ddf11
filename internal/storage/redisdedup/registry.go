// Package redisdedup implements DeduplicationRegistry on Redis, for
// deployments that run more than one dispatcher process and need the
// idempotency-key -> job-id map shared across them instead of held in a
// single process's memory (internal/dedup.Registry). Grounded on the
// dedup.Registry contract; the SET-with-TTL/GETDEL primitives follow the
// deduplication-by-fingerprint idiom exercised in the example pack's gateway
// Redis integration tests (jordigilh-kubernaut/test/integration/gateway/
// deduplication_ttl_test.go), adapted from a test fixture into a production
// client using redis/go-redis/v9.
package redisdedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/interfaces"
)

const defaultTTL = 24 * time.Hour

// keyPrefix namespaces this registry's keys within a shared Redis instance.
const keyPrefix = "copilot:dedup:"

// Registry is the Redis-backed DeduplicationRegistry implementation. Unlike
// dedup.Registry it has no reverse jobID->key index in memory: Unregister
// looks the key up via a secondary index key stored alongside the
// forward mapping, so it still costs O(1) regardless of process restarts.
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	logger *common.Logger
}

var _ interfaces.DeduplicationRegistry = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides the default 24-hour expiry placed on every registered
// key, bounding how long a crashed dispatcher can leave a stale in-flight
// entry behind.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// WithLogger attaches a logger for non-fatal Redis errors.
func WithLogger(logger *common.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns a Registry backed by client.
func NewRegistry(client *redis.Client, opts ...Option) *Registry {
	r := &Registry{client: client, ttl: defaultTTL, logger: common.NewSilentLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func forwardKey(key string) string { return keyPrefix + "key:" + key }
func reverseKey(jobID string) string { return keyPrefix + "job:" + jobID }

// Register associates jobID with key, replacing any existing entry for key.
// Uses a plain Set rather than SetNX because last-writer-wins is the
// documented DeduplicationRegistry contract, not a compare-and-swap.
func (r *Registry) Register(jobID, key string) error {
	if key == "" {
		return errEmptyKey
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Set(ctx, forwardKey(key), jobID, r.ttl).Err(); err != nil {
		return err
	}
	if err := r.client.Set(ctx, reverseKey(jobID), key, r.ttl).Err(); err != nil {
		r.logger.Warn().Str("job_id", jobID).Str("error", err.Error()).Msg("redisdedup: reverse index write failed")
	}
	return nil
}

// LookupInFlight returns the job-id registered for key, or "" if key is
// empty, unregistered, or the lookup fails.
func (r *Registry) LookupInFlight(key string) string {
	if key == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobID, err := r.client.Get(ctx, forwardKey(key)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn().Str("key", key).Str("error", err.Error()).Msg("redisdedup: lookup failed")
		}
		return ""
	}
	return jobID
}

// Unregister removes whichever entry maps to jobID, if any, via the
// reverse index written by Register.
func (r *Registry) Unregister(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key, err := r.client.GetDel(ctx, reverseKey(jobID)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn().Str("job_id", jobID).Str("error", err.Error()).Msg("redisdedup: reverse index read failed")
		}
		return
	}

	// Only clear the forward mapping if it still points at this job; a
	// later Register call for the same key may have already displaced it.
	current, err := r.client.Get(ctx, forwardKey(key)).Result()
	if err == nil && current == jobID {
		_ = r.client.Del(ctx, forwardKey(key)).Err()
	}
}

type dedupError string

func (e dedupError) Error() string { return string(e) }

const errEmptyKey = dedupError("redisdedup: key must be a non-empty string to register")
