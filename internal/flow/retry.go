// Package flow implements the generic action executor and the
// specialized multi-step use-case flows layered over it.
package flow

import (
	"context"
	"math"
	"time"

	"github.com/modelguard/guardian/pkg/api"
)

type backoffCalculator func(baseDelayMs int64, retryCount int) int64

var backoffCalculators = map[string]backoffCalculator{
	api.BackoffTypeFixed: func(base int64, _ int) int64 {
		return base
	},
	api.BackoffTypeLinear: func(base int64, count int) int64 {
		return base * int64(count+1)
	},
	api.BackoffTypeExponential: func(base int64, count int) int64 {
		multiplier := math.Pow(2, float64(count))
		return int64(float64(base) * multiplier)
	},
}

// RetryPolicy applies a retry budget and backoff curve uniformly around
// adapter calls. Only transient failures consume the budget
type RetryPolicy struct {
	config api.RetryConfig
}

// NewRetryPolicy creates a policy from the given configuration
func NewRetryPolicy(config api.RetryConfig) *RetryPolicy {
	return &RetryPolicy{config: config}
}

// Allows reports whether another attempt fits the retry budget
func (p *RetryPolicy) Allows(retryCount int) bool {
	if p.config.MaxRetries < 0 {
		return true
	}
	return retryCount < p.config.MaxRetries
}

// Delay computes the backoff before the given retry, capped at the
// configured maximum
func (p *RetryPolicy) Delay(retryCount int) time.Duration {
	calculator, ok := backoffCalculators[p.config.BackoffType]
	if !ok {
		calculator = backoffCalculators[api.BackoffTypeFixed]
	}

	delayMs := calculator(p.config.InitBackoff, retryCount)
	if p.config.MaxBackoff > 0 && delayMs > p.config.MaxBackoff {
		delayMs = p.config.MaxBackoff
	}
	return time.Duration(delayMs) * time.Millisecond
}

// Wait sleeps for the computed backoff, abandoning early on
// cancellation
func (p *RetryPolicy) Wait(ctx context.Context, retryCount int) error {
	timer := time.NewTimer(p.Delay(retryCount))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
