package loop

import (
	"context"
	"fmt"
	"time"
)

type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after the interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err is returned from Start as is.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one step of the loop.
//
// It receives the value the previous step returned, and returns
// the value for the next step together with what to do next.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs the task in loop.
//
// The first step is task(ctx, init). Each step returns Continue(interval)
// to be called again after the interval, or Break(err) to stop.
// Zero value (Next{}) equals Continue(0).
//
// Example: poll a job until it finishes.
//
//	Start(ctx, job, func(ctx context.Context, job *Job) (*Job, Next) {
//		if job.Finished() {
//			return job, Break(nil)
//		}
//		if err := job.Refresh(ctx); err != nil {
//			return job, Break(err)
//		}
//		return job, Continue(2 * time.Second)
//	})
//
// # Args
//
// - ctx: when this context is done, the loop breaks with ctx.Err().
//
// - init: the value passed to the first step.
//
// - task: a step of the loop.
//
// # Returns
//
// - T: the value the task returned at last. It is returned even with an error.
//
// - error: error in Break(error), or ctx.Err().
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		v, n := task(ctx, value)
		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first. the timer is checked later.
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
