package context

import (
	"context"
	"testing"
	"time"
)

// WithTest bounds ctx by the deadline of t.
//
// Waiting on jobs ends a second before the test times out, so that a job
// which never completes fails the test instead of hanging it.
func WithTest(ctx context.Context, t *testing.T) context.Context {
	t.Helper()
	deadline, ok := t.Deadline()
	if !ok {
		return ctx
	}
	dctx, cancel := context.WithDeadline(ctx, deadline.Add(-time.Second))
	t.Cleanup(cancel)
	return dctx
}
