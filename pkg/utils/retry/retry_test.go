package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/superb-ai/spb-curate-go/pkg/cmp"
	"github.com/superb-ai/spb-curate-go/pkg/utils/retry"
)

func TestExponentialBackoff(t *testing.T) {
	b := retry.ExponentialBackoff(500 * time.Millisecond)
	expected := []time.Duration{
		500 * time.Millisecond, 1 * time.Second, 2 * time.Second, 4 * time.Second,
	}
	actual := []time.Duration{b(1), b(2), b(3), b(4)}
	if !cmp.SliceEq(actual, expected) {
		t.Errorf("actual = %v, expected = %v", actual, expected)
	}
}

type recorder struct {
	slept []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func TestBlocking(t *testing.T) {
	errNetwork := errors.New("network is down")

	type when struct {
		failures int
	}
	type then struct {
		calls     int
		slept     []time.Duration
		exhausted bool
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			rec := &recorder{}
			calls := 0
			policy := retry.Policy{
				MaxAttempts: 5,
				Backoff:     retry.ExponentialBackoff(500 * time.Millisecond),
				Sleep:       rec.sleep,
			}
			actual, err := retry.Blocking(
				context.Background(), policy,
				func(context.Context) (int, error) {
					calls += 1
					if calls <= when.failures {
						return calls, retry.Retry(errNetwork)
					}
					return calls, nil
				},
			)

			if calls != then.calls {
				t.Errorf("calls: actual = %d, expected = %d", calls, then.calls)
			}
			if actual != then.calls {
				t.Errorf("last value: actual = %d, expected = %d", actual, then.calls)
			}
			if !cmp.SliceEq(rec.slept, then.slept) {
				t.Errorf("slept: actual = %v, expected = %v", rec.slept, then.slept)
			}

			if !then.exhausted {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ex *retry.ExhaustedError
			if !errors.As(err, &ex) {
				t.Fatalf("error is not ExhaustedError: %v", err)
			}
			if ex.Attempts != then.calls {
				t.Errorf("attempts: actual = %d, expected = %d", ex.Attempts, then.calls)
			}
			if !errors.Is(err, errNetwork) {
				t.Errorf("cause is lost: %v", err)
			}
		}
	}

	t.Run("it returns at once when the first try succeeds", theory(
		when{failures: 0},
		then{calls: 1, slept: []time.Duration{}},
	))

	t.Run("it sleeps with exponential backoff between tries", theory(
		when{failures: 3},
		then{
			calls: 4,
			slept: []time.Duration{
				500 * time.Millisecond, 1 * time.Second, 2 * time.Second,
			},
		},
	))

	t.Run("it gives up after max attempts", theory(
		when{failures: 5},
		then{
			calls: 5,
			slept: []time.Duration{
				500 * time.Millisecond, 1 * time.Second, 2 * time.Second, 4 * time.Second,
			},
			exhausted: true,
		},
	))

	t.Run("it does not retry non-retry errors", func(t *testing.T) {
		rec := &recorder{}
		errFatal := errors.New("fatal")
		calls := 0
		_, err := retry.Blocking(
			context.Background(),
			retry.Policy{MaxAttempts: 5, Sleep: rec.sleep},
			func(context.Context) (struct{}, error) {
				calls += 1
				return struct{}{}, errFatal
			},
		)
		if !errors.Is(err, errFatal) || calls != 1 || len(rec.slept) != 0 {
			t.Errorf("err = %v, calls = %d, slept = %v", err, calls, rec.slept)
		}
	})

	t.Run("it stops when context is canceled while sleeping", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retry.Blocking(
			ctx,
			retry.Policy{MaxAttempts: 5, Backoff: retry.StaticBackoff(time.Hour)},
			func(context.Context) (int, error) { return 0, retry.Retry(nil) },
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
