package curate_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/superb-ai/spb-curate-go/internal/testutils/fakeapi"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/superb-ai/spb-curate-go/pkg/logger"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

// sleepRecorder records waits between retries, without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *sleepRecorder) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.sleeps...)
}

// interceptor answers requests by intercept. When it returns neither response nor error,
// the request is sent to the base.
type interceptor struct {
	base      transport.Transport
	intercept func(req *transport.Request) (*transport.Response, error)
}

func (i *interceptor) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	resp, err := i.intercept(req)
	if resp != nil || err != nil {
		return resp, err
	}
	return i.base.Send(ctx, req)
}

type clientOption struct {
	settings  configs.Settings
	transport transport.Transport
	creds     *configs.Credentials
}

type testOption func(*clientOption) *clientOption

func withSettings(s configs.Settings) testOption {
	return func(co *clientOption) *clientOption {
		co.settings = s
		return co
	}
}

func withTransport(t transport.Transport) testOption {
	return func(co *clientOption) *clientOption {
		co.transport = t
		return co
	}
}

func withCredentials(c configs.Credentials) testOption {
	return func(co *clientOption) *clientOption {
		co.creds = &c
		return co
	}
}

func newClient(t *testing.T, server *fakeapi.Server, options ...testOption) (*curate.Client, *sleepRecorder) {
	t.Helper()
	co := &clientOption{}
	for _, opt := range options {
		co = opt(co)
	}
	creds := server.Credentials()
	if co.creds != nil {
		creds = *co.creds
	}
	sleeps := &sleepRecorder{}
	c := try.To(curate.New(curate.Config{
		Credentials: creds,
		Settings:    co.settings,
		Transport:   co.transport,
		Logger:      logger.Null(),
		Sleep:       sleeps.Sleep,
	})).OrFatal(t)
	return c, sleeps
}

// isPresigned tells the request is an upload to a presigned URL of the kind ("assets" or "params").
func isPresigned(req *transport.Request, kind string) bool {
	return req.Method == "PUT" && strings.Contains(req.URL, "/_presigned/"+kind+"/")
}

// dig reads a value in decoded JSON by keys and indexes.
func dig(v any, path ...any) any {
	for _, p := range path {
		switch k := p.(type) {
		case string:
			m, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = m[k]
		case int:
			l, ok := v.([]any)
			if !ok || len(l) <= k {
				return nil
			}
			v = l[k]
		}
	}
	return v
}

func fastWait() curate.BulkOption {
	return curate.WithWaitOptions(curate.WithPollInterval(time.Millisecond))
}
