package commandline

import (
	"context"
	"testing"
	"time"

	"github.com/superb-ai/spb-curate-go/internal/testutils/fakeapi"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/superb-ai/spb-curate-go/pkg/logger"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

// Client creates a client talking to the fake server, without waits between retries.
func Client(t *testing.T, server *fakeapi.Server) *curate.Client {
	t.Helper()
	return try.To(curate.New(curate.Config{
		Credentials: server.Credentials(),
		Logger:      logger.Null(),
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	})).OrFatal(t)
}
