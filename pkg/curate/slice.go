package curate

import (
	"context"
	"iter"
	"net/http"

	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

var SliceSchema = &object.Schema{Type: "slice"}

var sliceEndpoints = api.Endpoints{
	Paths: map[string]string{
		api.OpCreate:   "/curate/dataset-core/datasets/{dataset_id}/slices/",
		api.OpDelete:   "/curate/dataset-core/datasets/{dataset_id}/slices/{id}/",
		api.OpFetch:    "/curate/dataset-query/datasets/{dataset_id}/slices/{id}/",
		api.OpPaginate: "/curate/dataset-query/datasets/{dataset_id}/slices/",
		api.OpModify:   "/curate/dataset-core/datasets/{dataset_id}/slices/{id}/",
	},
	Methods: map[string]string{
		api.OpModify: http.MethodPatch,
	},
}

// Slice is a named subset of images in a dataset.
type Slice struct {
	*object.Object
	c *Client
}

func (s *Slice) DatasetID() string {
	return object.FieldOr(s.Object, "dataset_id", "")
}

func (s *Slice) Name() string {
	return object.FieldOr(s.Object, "name", "")
}

func (s *Slice) Description() string {
	return object.FieldOr(s.Object, "description", "")
}

// ImageCount returns the number of images, if the slice is fetched with it.
func (s *Slice) ImageCount() (int, bool) {
	n, err := object.Number(s.Object, "image_count")
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// SliceSelector tells which slice to fetch, by id or by name.
type SliceSelector struct {
	id   string
	name string
}

func SliceID(id string) SliceSelector {
	return SliceSelector{id: id}
}

func SliceName(name string) SliceSelector {
	return SliceSelector{name: name}
}

// SliceFilter selects slices of a dataset.
type SliceFilter struct {
	// Name selects the slice with exactly the name.
	Name string

	// NameContains selects slices whose name contains it.
	NameContains string

	IncludeImageCount bool
}

func (f SliceFilter) params(page int, limit int) *object.Entries {
	p := params("size", limit)
	if f.Name != "" {
		p.Set("name", f.Name)
	}
	if f.NameContains != "" {
		p.Set("name_contains", f.NameContains)
	}
	if f.IncludeImageCount {
		p.Set("expand", expand("image_count"))
	}
	if 0 < page {
		p.Set("page", page)
	}
	return p
}

// CreateSlice creates a slice in the dataset.
func (c *Client) CreateSlice(
	ctx context.Context, datasetID string, name string, description string,
) (*Slice, error) {
	return request[*Slice](
		ctx, c, sliceEndpoints, api.OpCreate,
		map[string]any{"dataset_id": datasetID},
		params("name", name, "description", description),
		SliceSchema,
	)
}

// FetchSlice fetches a slice by id or by name.
//
// WithImageCount includes the image count. A name which matches nothing is a not-found error.
func (c *Client) FetchSlice(
	ctx context.Context, datasetID string, sel SliceSelector, options ...FetchOption,
) (*Slice, error) {
	fo := fetchOptions(options)
	switch {
	case sel.id == "" && sel.name == "":
		return nil, xe.Validation("Must provide at least one of id or name.")
	case sel.id != "" && sel.name != "":
		return nil, xe.Validation("Must provide only one of id or name.")
	}

	if sel.name != "" {
		page, err := c.FetchSlicePage(
			ctx, datasetID,
			SliceFilter{Name: sel.name, IncludeImageCount: fo.imageCount},
			1, FetchPageLimit,
		)
		if err != nil {
			return nil, err
		}
		if len(page.Results) == 0 {
			return nil, xe.NotFound("Could not find the slice.")
		}
		return page.Results[0], nil
	}

	var p any
	if fo.imageCount {
		p = params("expand", expand("image_count"))
	}
	return request[*Slice](
		ctx, c, sliceEndpoints, api.OpFetch,
		map[string]any{"dataset_id": datasetID, "id": sel.id}, p, SliceSchema,
	)
}

// FetchSlicePage fetches a page of slices. Pages are numbered from 1.
func (c *Client) FetchSlicePage(
	ctx context.Context, datasetID string, filter SliceFilter, page int, limit int,
) (*Page[*Slice], error) {
	return fetchPage[*Slice](
		ctx, c, sliceEndpoints, map[string]any{"dataset_id": datasetID},
		filter.params(page, limit), SliceSchema,
	)
}

// Slices iterates slices matching the filter.
func (c *Client) Slices(ctx context.Context, datasetID string, filter SliceFilter) iter.Seq2[*Slice, error] {
	return byPageNumber(FetchPageLimit, func(page int) (*Page[*Slice], error) {
		return c.FetchSlicePage(ctx, datasetID, filter, page, FetchPageLimit)
	})
}

// FetchSlices fetches all slices matching the filter.
func (c *Client) FetchSlices(ctx context.Context, datasetID string, filter SliceFilter) ([]*Slice, error) {
	return Collect(c.Slices(ctx, datasetID, filter))
}

func (s *Slice) pathParams() map[string]any {
	return map[string]any{"dataset_id": s.DatasetID(), "id": s.ID()}
}

// AddImages adds images to the slice with an UPDATE_SLICE job,
// or with an UPDATE_SLICE_BY_QUERY job when query is given.
//
// Exactly one of refs and query should be given.
func (s *Slice) AddImages(
	ctx context.Context, refs ImageRefs, query string, options ...BulkOption,
) (*Job, error) {
	return s.updateImages(ctx, refs, query, false, options)
}

// RemoveImages removes images from the slice, as AddImages adds.
func (s *Slice) RemoveImages(
	ctx context.Context, refs ImageRefs, query string, options ...BulkOption,
) (*Job, error) {
	return s.updateImages(ctx, refs, query, true, options)
}

func (s *Slice) updateImages(
	ctx context.Context, refs ImageRefs, query string, remove bool, options []BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	switch {
	case refs.empty() && query == "":
		return nil, xe.Validation("Must provide at least one of query or images|image_ids|image_keys.")
	case !refs.empty() && query != "":
		return nil, xe.Validation("Must provide only one of query or images|image_ids|image_keys.")
	}
	var list []any
	if !refs.empty() {
		l, lerr := refs.list()
		if lerr != nil {
			return nil, lerr
		}
		list = l
	}

	var job *Job
	var err error
	if query != "" {
		job, err = s.c.CreateJob(ctx, JobUpdateSliceByQuery, params(
			"dataset_id", s.DatasetID(),
			"image_filters", params("slice", nil, "query", query),
			"slice_id", s.ID(),
			"remove", remove,
		))
	} else {
		ref, uerr := s.c.uploadParams(ctx, list)
		if uerr != nil {
			return nil, uerr
		}
		job, err = s.c.CreateJob(ctx, JobUpdateSlice, params(
			"dataset_id", s.DatasetID(),
			"images", ref,
			"slice_id", s.ID(),
			"remove", remove,
		))
	}
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

// Images iterates images in the slice matching the filter.
//
// filter.Slice is overwritten with the name of this slice.
func (s *Slice) Images(ctx context.Context, filter ImageFilter) iter.Seq2[*Image, error] {
	filter.Slice = s.Name()
	return s.c.Images(ctx, s.DatasetID(), filter)
}

// FetchImages fetches all images in the slice matching the filter.
func (s *Slice) FetchImages(ctx context.Context, filter ImageFilter) ([]*Image, error) {
	return Collect(s.Images(ctx, filter))
}

// Delete deletes the slice. Its id is cleared on success.
func (s *Slice) Delete(ctx context.Context) error {
	if _, err := s.c.call(ctx, sliceEndpoints, api.OpDelete, s.pathParams(), nil); err != nil {
		return err
	}
	s.Object.Delete(object.IDField)
	return nil
}

// Refresh reloads the slice. The image count is included if the slice has it.
func (s *Slice) Refresh(ctx context.Context) error {
	var p any
	if s.Has("image_count") {
		p = params("expand", expand("image_count"))
	}
	return reload(ctx, s.c, s.Object, sliceEndpoints, api.OpFetch, s.pathParams(), p)
}

// Modify changes the name and the description of the slice. Empty values are left as they are.
func (s *Slice) Modify(ctx context.Context, name string, description string) error {
	p := params()
	if name != "" {
		p.Set("name", name)
	}
	if description != "" {
		p.Set("description", description)
	}
	return reload(ctx, s.c, s.Object, sliceEndpoints, api.OpModify, s.pathParams(), p)
}
