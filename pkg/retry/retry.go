// Package retry runs external calls with a bounded number of attempts and
// exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"reels-generator/log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay is the wait after the given failed attempt, counted from 0.
func (p Policy) Delay(attempt int) time.Duration {
	b := p.backOff()
	d := time.Duration(0)
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
		if d == p.MaxDelay {
			break
		}
	}
	return d
}

// backOff doubles from BaseDelay up to MaxDelay with no jitter and no
// elapsed-time limit; MaxAttempts bounds the retries.
func (p Policy) backOff() backoff.BackOff {
	if p.BaseDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a Permanent error, ctx is done or
// MaxAttempts is reached. A Permanent error is returned unwrapped.
func Do(ctx context.Context, p Policy, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempts := p.attempts()
	b := backoff.WithContext(backoff.WithMaxRetries(p.backOff(), uint64(attempts-1)), ctx)

	var lastErr error
	calls := 0
	err := backoff.RetryNotify(func() error {
		calls++
		lastErr = fn(ctx)
		return lastErr
	}, b, func(err error, delay time.Duration) {
		log.GetLogger().Warn("call failed, retrying",
			zap.String("call", name),
			zap.Int("attempt", calls),
			zap.Int("max_attempts", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err))
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case IsPermanent(lastErr):
		return err
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, calls, err)
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
