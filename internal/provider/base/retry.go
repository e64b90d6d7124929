package base

import (
	"context"
	"errors"
	"time"

	"paybridge/internal/provider"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds every outbound call: a per-attempt timeout plus
// exponential backoff for a fixed number of retries.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		AttemptTimeout:  15 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0 // bounded by MaxRetries instead
	return backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// policy is exhausted. Only errors classified retryable by provider.IsRetryable
// are attempted again.
func Retry[T any](ctx context.Context, policy RetryPolicy, name provider.ProviderType, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		actx := ctx
		if policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
			defer cancel()
		}
		res, err := op(actx)
		if err != nil && !provider.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn().
			Str("provider", string(name)).
			Int("attempt", attempt).
			Str("code", provider.CodeOf(err)).
			Dur("retry_in", wait).
			Err(err).
			Msg("outbound call failed, retrying")
	}

	res, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		var pe *provider.ProviderError
		if !errors.As(err, &pe) {
			return res, provider.FromContext(name, err)
		}
	}
	return res, err
}
