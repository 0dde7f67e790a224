// Where: internal/awsapi/retry.go
// What: Bounded exponential backoff for throttled AWS calls.
// Why: Burst deploys trip ECS rate limits; everything else fails fast.
package awsapi

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the throttle retries applied to each individual
// AWS call. Retries never re-run a multi-step pipeline, only the one
// call that was throttled.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 200 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	return p
}

// callWithRetry runs op, retrying only throttle rejections within the
// policy budget. Any other failure is returned on the first attempt.
func callWithRetry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	policy = policy.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.BaseDelay
	bo.MaxInterval = policy.MaxDelay

	return backoff.Retry(ctx, func() (T, error) {
		out, err := op()
		if err != nil && !IsThrottle(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(policy.MaxAttempts)))
}
