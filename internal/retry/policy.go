// Package retry implements RetryPolicyCalculator: pure functions over a
// RetryPolicy that compute backoff delay and retry eligibility. Grounded on
// the teacher's watchLoop exponential-backoff scan (internal/services/
// jobmanager/watcher.go) generalized from a single fixed strategy to the
// three pluggable BackoffStrategy variants spec §4.5 requires.
package retry

import (
	"math"
	"math/rand"
)

// BackoffStrategy selects how the base delay scales with attempt number.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// Policy is the pure-data retry configuration the calculator operates over.
type Policy struct {
	Enabled         bool
	MaxRetries      int
	BaseDelayMs     int64
	MaxDelayMs      int64
	BackoffStrategy BackoffStrategy
	MinJitterFactor float64
	MaxJitterFactor float64
}

// Calculator computes retry delay and eligibility. It is stateless; the
// source of randomness is injected so tests can make jitter deterministic.
type Calculator struct {
	rand *rand.Rand
}

// NewCalculator returns a Calculator using the package-level math/rand
// source. Use NewCalculatorWithSource for deterministic tests.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// NewCalculatorWithSource returns a Calculator sampling jitter from src.
func NewCalculatorWithSource(src rand.Source) *Calculator {
	return &Calculator{rand: rand.New(src)}
}

func (c *Calculator) float64() float64 {
	if c.rand != nil {
		return c.rand.Float64()
	}
	return rand.Float64()
}

// Delay computes the backoff delay in milliseconds for the given attempt
// (0-indexed retry count), per spec §4.5:
//
//	base := BaseDelayMs
//	factor := Constant -> 1; Linear -> attempt+1; Exponential -> 2^attempt
//	jitter := uniform in [min(Min,Max), max(Min,Max)] sampled with whichever
//	          endpoint is larger as the upper bound (this spec's chosen
//	          semantics when MinJitterFactor > MaxJitterFactor)
//	result := clamp(base * factor * (1 + jitter), upper = MaxDelayMs)
//
// There is no lower clamp: a negative BaseDelayMs yields a negative result,
// reported as-is (defensive, not sanitized here).
func (c *Calculator) Delay(policy Policy, attempt int) int64 {
	base := float64(policy.BaseDelayMs)
	factor := backoffFactor(policy.BackoffStrategy, attempt)

	lo, hi := policy.MinJitterFactor, policy.MaxJitterFactor
	if lo > hi {
		lo, hi = hi, lo
	}
	jitter := lo + c.float64()*(hi-lo)

	result := base * factor * (1 + jitter)
	if policy.MaxDelayMs > 0 && result > float64(policy.MaxDelayMs) {
		result = float64(policy.MaxDelayMs)
	}
	return int64(result)
}

// backoffFactor returns the strategy-specific multiplier for attempt, which
// may be negative: the function is defined over all integers (2^-1 = 0.5).
func backoffFactor(strategy BackoffStrategy, attempt int) float64 {
	switch strategy {
	case BackoffLinear:
		return float64(attempt + 1)
	case BackoffExponential:
		return math.Pow(2, float64(attempt))
	case BackoffConstant:
		fallthrough
	default:
		return 1
	}
}

// ShouldRetry reports whether a job with retryCount retries so far, a
// maxRetries ceiling, and a handler-supplied hint should be retried.
func ShouldRetry(policy Policy, retryCount, maxRetries int, hint bool) bool {
	if !policy.Enabled {
		return false
	}
	if maxRetries < 0 {
		return false
	}
	return retryCount < maxRetries && hint
}
