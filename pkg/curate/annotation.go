package curate

import (
	"context"
	"iter"
	"net/http"

	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/geometry"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

// AnnotationSchema is the schema of annotations.
//
// The kind of annotation_value is chosen by annotation_type.
var AnnotationSchema = &object.Schema{
	Type: "annotation",
	Discriminators: map[string]object.Discriminator{
		"annotation_value": geometry.Discriminator("annotation_type"),
	},
	Required: [][]string{
		{"image_id", "image_key"},
		{"annotation_class"},
		{"annotation_type"},
		{"annotation_value"},
		{"metadata"},
	},
}

var annotationEndpoints = api.Endpoints{
	Paths: map[string]string{
		api.OpDelete:   "/curate/dataset-core/datasets/{dataset_id}/annotations/{id}",
		api.OpFetch:    "/curate/dataset-query/datasets/{dataset_id}/images/{image_id}/annotations/{id}",
		api.OpModify:   "/curate/dataset-core/datasets/{dataset_id}/annotations/{id}/metadata",
		api.OpPaginate: "/curate/dataset-query/datasets/{dataset_id}/annotations/_search",
	},
	Methods: map[string]string{
		api.OpPaginate: http.MethodPost,
	},
}

// Annotation is an annotation on an image.
type Annotation struct {
	*object.Object
	c *Client
}

func (a *Annotation) DatasetID() string {
	return object.FieldOr(a.Object, "dataset_id", "")
}

func (a *Annotation) ImageID() string {
	return object.FieldOr(a.Object, "image_id", "")
}

func (a *Annotation) ImageKey() string {
	return object.FieldOr(a.Object, "image_key", "")
}

func (a *Annotation) Class() string {
	return object.FieldOr(a.Object, "annotation_class", "")
}

// AnnotationType is the type tag of the value, like "box" or "polygon".
func (a *Annotation) AnnotationType() string {
	return object.FieldOr(a.Object, "annotation_type", "")
}

// Value returns the annotation value. nil if absent.
func (a *Annotation) Value() geometry.AnnotationValue {
	v, _ := a.Lookup("annotation_value")
	av, _ := v.(geometry.AnnotationValue)
	return av
}

func (a *Annotation) Metadata() map[string]any {
	return metadataOf(a.Object)
}

// AnnotationParams are the fields of a new annotation.
type AnnotationParams struct {
	// ImageID or ImageKey tells which image the annotation is on. One of them is required.
	ImageID  string
	ImageKey string

	Class string

	// Value is the annotation value. Its kind decides the annotation type.
	Value geometry.AnnotationValue

	// Metadata of the annotation. Required; pass an empty map for none.
	Metadata map[string]any
}

// NewAnnotation builds an annotation to be imported.
func (c *Client) NewAnnotation(p AnnotationParams) (*Annotation, error) {
	fields := object.NewEntries()
	if p.ImageID != "" {
		fields.Set("image_id", p.ImageID)
	}
	if p.ImageKey != "" {
		fields.Set("image_key", p.ImageKey)
	}
	fields.Set("annotation_class", p.Class)
	if p.Value != nil {
		fields.Set("annotation_type", p.Value.AnnotationType())
		fields.Set("annotation_value", p.Value)
	}
	if p.Metadata != nil {
		fields.Set("metadata", p.Metadata)
	}
	t, err := c.registry.Construct(AnnotationSchema, fields)
	if err != nil {
		return nil, err
	}
	return t.(*Annotation), nil
}

// ParseAnnotations reads a JSON list of annotations in wire form.
//
// Each annotation_value is read as the kind its annotation_type tells.
func (c *Client) ParseAnnotations(data []byte) ([]*Annotation, error) {
	v, err := object.Decode(data)
	if err != nil {
		return nil, xe.Validation("annotations are not valid JSON: %s", err)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, xe.Validation("annotations should be a JSON list, but %T", v)
	}
	ret := make([]*Annotation, 0, len(items))
	for _, item := range items {
		t, err := c.registry.Construct(AnnotationSchema, item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, t.(*Annotation))
	}
	return ret, nil
}

// CreateAnnotationsBulk imports annotations into the dataset with an ANNOTATION_IMPORT job.
//
// The annotations are passed to the job as a parameter blob.
func (c *Client) CreateAnnotationsBulk(
	ctx context.Context, datasetID string, annotations []*Annotation, options ...BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	if datasetID == "" {
		return nil, xe.Validation("dataset_id is required.")
	}
	if len(annotations) == 0 {
		return nil, xe.Validation("There are no annotations to import.")
	}
	items := make([]any, 0, len(annotations))
	for n, a := range annotations {
		if a == nil {
			return nil, xe.Validation("annotations[%d] is nil", n)
		}
		items = append(items, a)
	}

	ref, err := c.uploadParams(ctx, items)
	if err != nil {
		return nil, err
	}
	job, err := c.CreateJob(
		ctx, JobAnnotationImport, params("dataset_id", datasetID, "annotations", ref),
	)
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

// FetchAnnotation fetches an annotation on the image.
func (c *Client) FetchAnnotation(
	ctx context.Context, datasetID string, imageID string, id string,
) (*Annotation, error) {
	return request[*Annotation](
		ctx, c, annotationEndpoints, api.OpFetch,
		map[string]any{"dataset_id": datasetID, "image_id": imageID, "id": id},
		nil, AnnotationSchema,
	)
}

// AnnotationFilter selects annotations of a dataset.
type AnnotationFilter struct {
	// Query is a search query on images.
	Query string

	// Slice is the name of a slice.
	Slice string

	// Classes selects annotations of any of the classes.
	Classes []string

	// Types selects annotations of any of the annotation types.
	Types []string
}

func (f AnnotationFilter) classesAndTypes(into *object.Entries) {
	if f.Classes != nil {
		into.Set("annotation_class_in", stringList(f.Classes))
	}
	if f.Types != nil {
		into.Set("annotation_type_in", stringList(f.Types))
	}
}

func (f AnnotationFilter) params(searchAfter any, limit int) *object.Entries {
	p := params("size", limit)
	if f.Query != "" {
		p.Set("query", f.Query)
	}
	if f.Slice != "" {
		p.Set("slice", f.Slice)
	}
	filters := params()
	f.classesAndTypes(filters)
	if filters.Len() != 0 {
		p.Set("annotation_filters", filters)
	}
	if searchAfter != nil && searchAfter != "" {
		p.Set("search_after", []any{searchAfter})
	}
	return p
}

// FetchAnnotationPage fetches a page of annotations.
//
// Pass Last[0] of the previous page as searchAfter to fetch the next page.
func (c *Client) FetchAnnotationPage(
	ctx context.Context, datasetID string, filter AnnotationFilter, searchAfter any, limit int,
) (*Page[*Annotation], error) {
	return fetchPage[*Annotation](
		ctx, c, annotationEndpoints, map[string]any{"dataset_id": datasetID},
		filter.params(searchAfter, limit), AnnotationSchema,
	)
}

// Annotations iterates annotations matching the filter.
func (c *Client) Annotations(
	ctx context.Context, datasetID string, filter AnnotationFilter,
) iter.Seq2[*Annotation, error] {
	return bySearchAfter(FetchPageLimit, func(after any) (*Page[*Annotation], error) {
		return c.FetchAnnotationPage(ctx, datasetID, filter, after, FetchPageLimit)
	})
}

// FetchAnnotations fetches all annotations matching the filter.
func (c *Client) FetchAnnotations(
	ctx context.Context, datasetID string, filter AnnotationFilter,
) ([]*Annotation, error) {
	return Collect(c.Annotations(ctx, datasetID, filter))
}

// DeleteAnnotationsBulk deletes annotations with a DELETE_ANNOTATIONS_BY_IDS job.
//
// Annotations are pointed by themselves or by ids. An annotation without id is a validation error.
func (c *Client) DeleteAnnotationsBulk(
	ctx context.Context, datasetID string, annotations []*Annotation, ids []string,
	options ...BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	if datasetID == "" {
		return nil, xe.Validation("dataset_id is required.")
	}
	if len(annotations) == 0 && len(ids) == 0 {
		return nil, xe.Validation("Must provide at least one of annotations or annotation_ids.")
	}
	all := make([]any, 0, len(annotations)+len(ids))
	for n, a := range annotations {
		if a == nil || a.ID() == "" {
			return nil, xe.Validation("annotations[%d] has no id.", n)
		}
		all = append(all, a.ID())
	}
	for _, id := range ids {
		all = append(all, id)
	}

	job, err := c.CreateJob(
		ctx, JobDeleteAnnotationsByIDs, params("dataset_id", datasetID, "annotation_ids", all),
	)
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

// DeleteAnnotationsByFilters deletes annotations matching the filter
// with a DELETE_ANNOTATIONS_BY_FILTERS job.
func (c *Client) DeleteAnnotationsByFilters(
	ctx context.Context, datasetID string, filter AnnotationFilter, options ...BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	if datasetID == "" {
		return nil, xe.Validation("dataset_id is required.")
	}
	filters := params()
	if filter.Query != "" {
		filters.Set("query", filter.Query)
	}
	if filter.Slice != "" {
		filters.Set("slice", filter.Slice)
	}
	filter.classesAndTypes(filters)

	job, err := c.CreateJob(
		ctx, JobDeleteAnnotationsByFilters,
		params("dataset_id", datasetID, "annotation_filters", filters),
	)
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

func (a *Annotation) pathParams() map[string]any {
	return map[string]any{
		"dataset_id": a.DatasetID(), "image_id": a.ImageID(), "id": a.ID(),
	}
}

// Delete deletes the annotation. Its id is cleared on success.
func (a *Annotation) Delete(ctx context.Context) error {
	if _, err := a.c.call(ctx, annotationEndpoints, api.OpDelete, a.pathParams(), nil); err != nil {
		return err
	}
	a.Object.Delete(object.IDField)
	return nil
}

// Refresh reloads the annotation.
func (a *Annotation) Refresh(ctx context.Context) error {
	return reload(ctx, a.c, a.Object, annotationEndpoints, api.OpFetch, a.pathParams(), nil)
}

// Modify replaces the metadata of the annotation.
func (a *Annotation) Modify(ctx context.Context, metadata map[string]any) error {
	p := params()
	if len(metadata) != 0 {
		p.Set("metadata", metadata)
	}
	return reload(ctx, a.c, a.Object, annotationEndpoints, api.OpModify, a.pathParams(), p)
}
