package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrRetry marks an error as worth another try.
var ErrRetry = errors.New("retry")

// Retry marks the cause as worth another try.
func Retry(cause error) error {
	if cause == nil {
		return ErrRetry
	}
	return fmt.Errorf("%w: %w", ErrRetry, cause)
}

// ExhaustedError is returned by Blocking when every attempt has failed with ErrRetry.
type ExhaustedError struct {
	Attempts int

	// Last is the error of the last attempt.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Backoff tells how long to wait before the next try.
//
// # Args
//
// - attempt: how many tries have failed so far. It starts from 1.
type Backoff func(attempt int) time.Duration

// StaticBackoff waits for a fixed interval.
func StaticBackoff(interval time.Duration) Backoff {
	return func(int) time.Duration { return interval }
}

// ExponentialBackoff waits for `factor * 2^(attempt-1)`.
func ExponentialBackoff(factor time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return time.Duration(float64(factor) * math.Pow(2, float64(attempt-1)))
	}
}

// Sleeper blocks for d. If the context is done first, it should return ctx.Err().
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep waits for d or for the context to be done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds Blocking.
type Policy struct {
	// MaxAttempts is the number of tries in total, including the first one.
	// Values less than 1 mean 1.
	MaxAttempts int

	Backoff Backoff

	// Sleep is used to wait between tries. If nil, Sleep is used.
	Sleep Sleeper
}

// Blocking calls f until it returns nil or non-retry error, or attempts run out.
//
// # Args
//
// - ctx: context. It is passed to f and to the sleeper.
//
// - p: policy
//
// - f: function to be called. If f returns an error wrapping ErrRetry,
// Blocking calls f again after backoff.
//
// # Returns
//
// - T: last return value of f
//
// - error: error returned by f, or *ExhaustedError when all attempts failed with ErrRetry.
func Blocking[T any](ctx context.Context, p Policy, f func(context.Context) (T, error)) (T, error) {
	maxAttempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = StaticBackoff(0)
	}

	last := *new(T)
	for attempt := 1; ; attempt++ {
		var err error
		last, err = f(ctx)
		if err == nil {
			return last, nil
		}
		if !errors.Is(err, ErrRetry) {
			return last, err
		}
		if maxAttempts <= attempt {
			return last, &ExhaustedError{Attempts: attempt, Last: err}
		}
		if err := sleep(ctx, backoff(attempt)); err != nil {
			return last, err
		}
	}
}
