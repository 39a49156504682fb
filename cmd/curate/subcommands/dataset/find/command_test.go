package find_test

import (
	"context"
	"log"
	"net/http"
	"strings"
	"testing"

	kenv "github.com/superb-ai/spb-curate-go/cmd/curate/env"
	dataset_find "github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/dataset/find"
	"github.com/superb-ai/spb-curate-go/cmd/curate/subcommands/internal/commandline"
	"github.com/superb-ai/spb-curate-go/internal/testutils/fakeapi"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

func TestFindDatasetCommand(t *testing.T) {
	type when struct {
		flag dataset_find.Flag
	}
	type then struct {
		query map[string][]string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			server := fakeapi.New(t)
			server.Handle(
				http.MethodGet, "/curate/dataset-query/datasets/",
				fakeapi.Reply(http.StatusOK, map[string]any{
					"count": 2,
					"results": []any{
						map[string]any{"id": "dataset-1", "name": "street-day"},
						map[string]any{"id": "dataset-2", "name": "street-night"},
					},
				}),
			)
			client := commandline.Client(t, server)
			stdout := new(strings.Builder)

			testee := dataset_find.Task()
			err := testee(
				context.Background(), log.New(new(strings.Builder), "", 0),
				*kenv.New(), client,
				commandline.MockCommandline[dataset_find.Flag]{
					Fullname_: "curate dataset find",
					Stdout_:   stdout,
					Flags_:    when.flag,
				},
				[]any{},
			)
			if err != nil {
				t.Fatal(err)
			}

			q := server.RequestsTo(http.MethodGet, "/curate/dataset-query/datasets/")[0].Query
			for k, v := range then.query {
				if strings.Join(q[k], ",") != strings.Join(v, ",") {
					t.Errorf("query %s: actual = %v, expected = %v", k, q[k], v)
				}
			}

			printed := try.To(object.Decode([]byte(stdout.String()))).OrFatal(t)
			items, ok := printed.([]any)
			if !ok || len(items) != 2 {
				t.Fatalf("printed: %s", stdout.String())
			}
		}
	}

	t.Run("without flags, it finds all datasets", theory(
		when{},
		then{query: map[string][]string{"name": nil, "name_contains": nil, "expand[]": nil, "page": {"1"}}},
	))

	t.Run("with --like and --counts, it filters and expands counts", theory(
		when{flag: dataset_find.Flag{Like: "street", Counts: true}},
		then{query: map[string][]string{
			"name_contains": {"street"}, "expand[]": {"image_count", "slice_count"},
		}},
	))
}
