package curate_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/superb-ai/spb-curate-go/internal/testutils/fakeapi"
	"github.com/superb-ai/spb-curate-go/pkg/curate"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

func fetchedSlice(t *testing.T, server *fakeapi.Server, c *curate.Client) *curate.Slice {
	t.Helper()
	server.Handle(
		http.MethodGet, "/curate/dataset-query/datasets/:dataset_id/slices/:id/",
		fakeapi.Reply(http.StatusOK, map[string]any{
			"id": "slice-1", "dataset_id": "dataset-1", "name": "train", "description": "",
		}),
	)
	return try.To(c.FetchSlice(context.Background(), "dataset-1", curate.SliceID("slice-1"))).OrFatal(t)
}

func TestFetchSlice(t *testing.T) {
	t.Run("a selector without id nor name is rejected", func(t *testing.T) {
		server := fakeapi.New(t)
		c, _ := newClient(t, server)

		_, err := c.FetchSlice(context.Background(), "dataset-1", curate.SliceSelector{})
		if !errors.Is(err, xe.ErrValidation) {
			t.Errorf("error: %v", err)
		}
		if len(server.Requests()) != 0 {
			t.Errorf("unexpected requests")
		}
	})

	t.Run("by name, it searches the name and takes the first", func(t *testing.T) {
		ctx := context.Background()
		server := fakeapi.New(t)
		server.Handle(
			http.MethodGet, "/curate/dataset-query/datasets/:dataset_id/slices/",
			fakeapi.Reply(http.StatusOK, map[string]any{
				"count": 1,
				"results": []any{map[string]any{
					"id": "slice-1", "dataset_id": "dataset-1", "name": "train", "image_count": 40,
				}},
			}),
		)
		c, _ := newClient(t, server)

		s := try.To(c.FetchSlice(ctx, "dataset-1", curate.SliceName("train"), curate.WithImageCount())).OrFatal(t)
		if s.ID() != "slice-1" || s.Name() != "train" {
			t.Errorf("slice: %s", s)
		}
		if n, ok := s.ImageCount(); !ok || n != 40 {
			t.Errorf("image count: %d %v", n, ok)
		}
		q := server.Requests()[0].Query
		if q.Get("name") != "train" || q.Get("expand[]") != "image_count" {
			t.Errorf("query: %v", q)
		}
	})

	t.Run("by name, no match is not found", func(t *testing.T) {
		server := fakeapi.New(t)
		server.Handle(
			http.MethodGet, "/curate/dataset-query/datasets/:dataset_id/slices/",
			fakeapi.Reply(http.StatusOK, map[string]any{"count": 0, "results": []any{}}),
		)
		c, _ := newClient(t, server)

		_, err := c.FetchSlice(context.Background(), "dataset-1", curate.SliceName("nothing"))
		if !errors.Is(err, xe.ErrNotFound) {
			t.Fatalf("error: %v", err)
		}
	})
}

func TestSlice_UpdateImages(t *testing.T) {
	t.Run("neither or both of refs and query are rejected", func(t *testing.T) {
		ctx := context.Background()
		server := fakeapi.New(t)
		c, _ := newClient(t, server)
		s := fetchedSlice(t, server, c)
		before := len(server.Requests())

		if _, err := s.AddImages(ctx, curate.ImageRefs{}, ""); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("neither: %v", err)
		}
		if _, err := s.RemoveImages(
			ctx, curate.ImageRefs{Keys: []string{"a.png"}}, "metadata.weather = 'rain'",
		); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("both: %v", err)
		}
		if _, err := s.AddImages(ctx, curate.ImageRefs{Images: []*curate.Image{nil}}, ""); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("nil image: %v", err)
		}
		if after := len(server.Requests()); after != before {
			t.Errorf("unexpected requests: %d", after-before)
		}
	})

	t.Run("images are added by a query", func(t *testing.T) {
		ctx := context.Background()
		server := fakeapi.New(t)
		c, _ := newClient(t, server)
		s := fetchedSlice(t, server, c)

		job := try.To(s.AddImages(ctx, curate.ImageRefs{}, "metadata.weather = 'rain'")).OrFatal(t)
		if job.JobType() != curate.JobUpdateSliceByQuery {
			t.Errorf("job type: %s", job.JobType())
		}
		param := server.Jobs()[0].Param
		if dig(param, "dataset_id") != "dataset-1" || dig(param, "slice_id") != "slice-1" || dig(param, "remove") != false {
			t.Errorf("param: %v", param)
		}
		filters, ok := dig(param, "image_filters").(map[string]any)
		if !ok || filters["query"] != "metadata.weather = 'rain'" {
			t.Errorf("image_filters: %v", dig(param, "image_filters"))
		}
		if v, ok := filters["slice"]; !ok || v != nil {
			t.Errorf("image_filters.slice should be null: %v", filters)
		}
		if len(server.RequestsTo(http.MethodPost, "/curate/batch/params/")) != 0 {
			t.Errorf("no parameter blob is needed for a query")
		}
	})

	t.Run("images are removed by ids and keys, through a parameter blob", func(t *testing.T) {
		ctx := context.Background()
		server := fakeapi.New(t)
		c, _ := newClient(t, server)
		s := fetchedSlice(t, server, c)

		job := try.To(s.RemoveImages(
			ctx, curate.ImageRefs{IDs: []string{"image-1"}, Keys: []string{"b.png"}}, "",
			curate.Asynchronous(false), fastWait(),
		)).OrFatal(t)
		if job.JobType() != curate.JobUpdateSlice || !job.Done() {
			t.Errorf("job: %s", job)
		}
		param := server.Jobs()[0].Param
		if dig(param, "remove") != true || dig(param, "slice_id") != "slice-1" {
			t.Errorf("param: %v", param)
		}
		blob := server.Blob(dig(param, "images", "param_id"))
		if dig(blob, 0, "id") != "image-1" || dig(blob, 1, "key") != "b.png" {
			t.Errorf("blob: %v", blob)
		}
	})
}

func TestSlice_Lifecycle(t *testing.T) {
	ctx := context.Background()
	server := fakeapi.New(t)
	server.Handle(
		http.MethodPost, "/curate/dataset-core/datasets/:dataset_id/slices/",
		fakeapi.Reply(http.StatusOK, map[string]any{
			"id": "slice-1", "dataset_id": "dataset-1", "name": "train", "description": "d",
		}),
	)
	server.Handle(
		http.MethodPatch, "/curate/dataset-core/datasets/:dataset_id/slices/:id/",
		fakeapi.Reply(http.StatusOK, map[string]any{
			"id": "slice-1", "dataset_id": "dataset-1", "name": "valid", "description": "d",
		}),
	)
	server.Handle(
		http.MethodDelete, "/curate/dataset-core/datasets/:dataset_id/slices/:id/",
		fakeapi.Reply(http.StatusOK, map[string]any{}),
	)
	server.Handle(
		http.MethodPost, "/curate/dataset-query/datasets/:dataset_id/images/_search",
		fakeapi.Reply(http.StatusOK, map[string]any{"results": []any{}, "last": nil}),
	)
	c, _ := newClient(t, server)

	s := try.To(c.CreateSlice(ctx, "dataset-1", "train", "d")).OrFatal(t)

	t.Run("images of the slice are searched with its name", func(t *testing.T) {
		try.To(s.FetchImages(ctx, curate.ImageFilter{Slice: "other", Query: "q"})).OrFatal(t)
		reqs := server.RequestsTo(http.MethodPost, "/curate/dataset-query/datasets/dataset-1/images/_search")
		body := reqs[len(reqs)-1].JSON()
		if dig(body, "slice") != "train" || dig(body, "query") != "q" {
			t.Errorf("body: %v", body)
		}
	})

	t.Run("Modify loads the response", func(t *testing.T) {
		if err := s.Modify(ctx, "valid", ""); err != nil {
			t.Fatal(err)
		}
		if s.Name() != "valid" || s.Description() != "d" {
			t.Errorf("slice: %s", s)
		}
	})

	t.Run("Delete clears the id", func(t *testing.T) {
		if err := s.Delete(ctx); err != nil {
			t.Fatal(err)
		}
		if s.ID() != "" {
			t.Errorf("id: %s", s.ID())
		}
	})
}
