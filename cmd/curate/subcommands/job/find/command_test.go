package find_test

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"testing"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/internal/commandline"
	job_find "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/job/find"
	"github.com/superb-ai/spb-curate-go/internal/testutils/fakeapi"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestFindJobCommand(t *testing.T) {
	type when struct {
		flags job_find.Flags
	}
	type then struct {
		err      error
		jobs     int
		fromDate string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := context.Background()
			server := fakeapi.New(t)
			client := commandline.Client(t, server)
			for range 3 {
				try.To(client.CreateJob(ctx, curate.JobDeleteImages, map[string]any{})).OrFatal(t)
			}
			stdout := new(strings.Builder)

			testee := job_find.Task()
			err := testee(
				ctx, log.New(new(strings.Builder), "", 0),
				*kenv.New(), client,
				commandline.MockCommandline[job_find.Flags]{
					Fullname_: "curate job find",
					Stdout_:   stdout,
					Flags_:    when.flags,
				},
				[]any{},
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			printed := try.To(object.Decode([]byte(stdout.String()))).OrFatal(t)
			if l, ok := printed.([]any); !ok || len(l) != then.jobs {
				t.Errorf("printed: %s", stdout.String())
			}
			q := server.RequestsTo(http.MethodGet, "/curate/batch/jobs/")[0].Query
			if q.Get("from_date") != then.fromDate {
				t.Errorf("from_date: %s", q.Get("from_date"))
			}
		}
	}

	t.Run("without flags, it shows all jobs", theory(
		when{},
		then{jobs: 3},
	))
	t.Run("with --limit, it shows at most the number", theory(
		when{flags: job_find.Flags{Limit: 2}},
		then{jobs: 2},
	))
	t.Run("with --since, it is passed in UTC", theory(
		when{flags: job_find.Flags{Since: "2024-01-02T09:00:00+09:00"}},
		then{jobs: 3, fromDate: "2024-01-02T00:00:00Z"},
	))
	t.Run("a malformed --since is a usage error", theory(
		when{flags: job_find.Flags{Since: "yesterday"}},
		then{err: flarc.ErrUsage},
	))
}
