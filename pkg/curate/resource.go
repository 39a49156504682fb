package curate

import (
	"context"
	"fmt"
	"iter"

	jsoniter "github.com/json-iterator/go"
	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Page is a page of a listing.
//
// Which of the cursor fields is set depends on how the listing paginates.
type Page[T any] struct {
	Results []T

	// Count is the total number of items in the listing, for page-number pagination.
	Count int

	// NextCursor is the cursor of the next page, for cursor pagination.
	NextCursor string

	// Last is the sort values of the last item, for search-after pagination.
	Last []any
}

// call requests the operation and returns the decoded body.
func (c *Client) call(
	ctx context.Context, e api.Endpoints, op string, pathParams map[string]any, params any,
) (any, error) {
	return c.requestor.Call(ctx, e, op, pathParams, params, nil)
}

// request calls the operation and materializes the response as the schema.
func request[T object.Typed](
	ctx context.Context, c *Client,
	e api.Endpoints, op string, pathParams map[string]any, params any,
	schema *object.Schema,
) (T, error) {
	body, err := c.call(ctx, e, op, pathParams, params)
	if err != nil {
		return *new(T), err
	}
	if body == nil {
		return *new(T), xe.API(fmt.Sprintf("empty response for %s %s", op, schema), 0, nil)
	}
	return object.MaterializeAs[T](c.registry, body, schema)
}

// reload calls the operation and replaces fields of o with the response.
//
// An empty response leaves o as it is.
func reload(
	ctx context.Context, c *Client, o *object.Object,
	e api.Endpoints, op string, pathParams map[string]any, params any,
) error {
	body, err := c.call(ctx, e, op, pathParams, params)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	return o.Load(body)
}

// fetchPage calls the paginate operation and reads the page.
func fetchPage[T object.Typed](
	ctx context.Context, c *Client,
	e api.Endpoints, pathParams map[string]any, params any,
	schema *object.Schema,
) (*Page[T], error) {
	body, err := c.call(ctx, e, api.OpPaginate, pathParams, params)
	if err != nil {
		return nil, err
	}
	return pageOf[T](c, body, schema)
}

func pageOf[T object.Typed](c *Client, body any, schema *object.Schema) (*Page[T], error) {
	page := &Page[T]{Results: []T{}}
	if body == nil {
		return page, nil
	}

	var entries *object.Entries
	switch b := body.(type) {
	case *object.Entries:
		entries = b
	case []any:
		// unpaginated listing
		entries = object.NewEntries()
		entries.Set("results", b)
	default:
		return nil, xe.API(fmt.Sprintf("unexpected response for a page of %s: %T", schema, body), 0, nil)
	}

	if r, ok := entries.Get("results"); ok && r != nil {
		items, ok := r.([]any)
		if !ok {
			return nil, xe.API(fmt.Sprintf("results of %s should be a list, but %T", schema, r), 0, nil)
		}
		for _, item := range items {
			t, err := object.MaterializeAs[T](c.registry, item, schema)
			if err != nil {
				return nil, err
			}
			page.Results = append(page.Results, t)
		}
	}
	if n, ok := entries.Get("count"); ok {
		if f, ok := object.ToFloat(n); ok {
			page.Count = int(f)
		}
	}
	if cur, ok := entries.Get("next_cursor"); ok {
		page.NextCursor, _ = cur.(string)
	}
	if last, ok := entries.Get("last"); ok {
		page.Last, _ = last.([]any)
	}
	return page, nil
}

// byPageNumber iterates items of pages numbered from 1,
// until page*limit reaches the count.
func byPageNumber[T any](
	limit int, fetch func(page int) (*Page[T], error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for n := 1; ; n++ {
			p, err := fetch(n)
			if err != nil {
				yield(*new(T), err)
				return
			}
			for _, t := range p.Results {
				if !yield(t, nil) {
					return
				}
			}
			if p.Count <= n*limit {
				return
			}
		}
	}
}

// bySearchAfter iterates items of pages chained by the sort values of the last item.
//
// It stops when a page is shorter than limit or has no last item.
func bySearchAfter[T any](
	limit int, fetch func(after any) (*Page[T], error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var after any
		for {
			p, err := fetch(after)
			if err != nil {
				yield(*new(T), err)
				return
			}
			for _, t := range p.Results {
				if !yield(t, nil) {
					return
				}
			}
			if len(p.Results) != limit || len(p.Last) == 0 {
				return
			}
			after = p.Last[0]
		}
	}
}

// byCursor iterates items of pages chained by next_cursor.
//
// It stops when a page is shorter than limit or has no next cursor.
func byCursor[T any](
	limit int, fetch func(cursor string) (*Page[T], error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		cursor := ""
		for {
			p, err := fetch(cursor)
			if err != nil {
				yield(*new(T), err)
				return
			}
			for _, t := range p.Results {
				if !yield(t, nil) {
					return
				}
			}
			if len(p.Results) != limit || p.NextCursor == "" {
				return
			}
			cursor = p.NextCursor
		}
	}
}

// Collect reads all items from the sequence.
//
// It stops at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	ret := []T{}
	for t, err := range seq {
		if err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}

// params builds ordered parameters from pairs of a key and a value.
func params(kvs ...any) *object.Entries {
	e := object.NewEntries()
	for i := 0; i+1 < len(kvs); i += 2 {
		e.Set(kvs[i].(string), kvs[i+1])
	}
	return e
}

// idsAndKeys lists image references as they are in parameter blobs.
//
// Images should be saved ones. Nil images, unsaved images and empty ids or keys are rejected.
func idsAndKeys(images []*Image, ids []string, keys []string) ([]any, error) {
	ret := make([]any, 0, len(images)+len(ids)+len(keys))
	for n, img := range images {
		if img == nil || img.ID() == "" {
			return nil, xe.Validation("images[%d] has no id.", n)
		}
		ret = append(ret, map[string]any{"id": img.ID()})
	}
	for n, id := range ids {
		if id == "" {
			return nil, xe.Validation("image_ids[%d] is empty.", n)
		}
		ret = append(ret, map[string]any{"id": id})
	}
	for n, k := range keys {
		if k == "" {
			return nil, xe.Validation("image_keys[%d] is empty.", n)
		}
		ret = append(ret, map[string]any{"key": k})
	}
	return ret, nil
}

func expand(fields ...string) []any {
	ret := make([]any, 0, len(fields))
	for _, f := range fields {
		ret = append(ret, f)
	}
	return ret
}

func stringList(s []string) []any {
	if s == nil {
		return nil
	}
	return expand(s...)
}

type bulkOption struct {
	async    bool
	wait     []WaitOption
	progress func(done, total int)
}

// BulkOption configures a bulk operation.
type BulkOption func(*bulkOption) *bulkOption

// Asynchronous tells whether a bulk operation returns as soon as its job is created.
//
// Default is true. With false, the job is waited with Job.Wait before returning.
func Asynchronous(async bool) BulkOption {
	return func(bo *bulkOption) *bulkOption {
		bo.async = async
		return bo
	}
}

// WithWaitOptions configures the wait of a synchronous bulk operation.
func WithWaitOptions(options ...WaitOption) BulkOption {
	return func(bo *bulkOption) *bulkOption {
		bo.wait = append(bo.wait, options...)
		return bo
	}
}

// WithProgress sets a function which is called each time an upload batch is done,
// with the number of uploaded assets and the total.
func WithProgress(f func(done, total int)) BulkOption {
	return func(bo *bulkOption) *bulkOption {
		bo.progress = f
		return bo
	}
}

func bulkOptions(options []BulkOption) *bulkOption {
	bo := &bulkOption{async: true}
	for _, opt := range options {
		bo = opt(bo)
	}
	return bo
}

// finish waits the job when the bulk operation is synchronous.
func (bo *bulkOption) finish(ctx context.Context, job *Job) (*Job, error) {
	if bo.async {
		return job, nil
	}
	if err := job.Wait(ctx, bo.wait...); err != nil {
		return job, err
	}
	return job, nil
}
