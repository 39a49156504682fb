package curate

import (
	"context"
	"iter"
	"net/http"
	"os"
	"regexp"
	"sync"

	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

const opBulkAssetUpload = "bulk_asset_upload"

var ImageSchema = &object.Schema{
	Type: "image",
	Fields: map[string]*object.Schema{
		"annotations": AnnotationSchema,
	},
	Required: [][]string{{"key"}, {"source"}, {"metadata"}},
}

var imageEndpoints = api.Endpoints{
	Paths: map[string]string{
		opBulkAssetUpload: "/curate/batch/assets/bulk/",
		api.OpDelete:      "/curate/dataset-core/datasets/{dataset_id}/images/{id}/",
		api.OpFetch:       "/curate/dataset-query/datasets/{dataset_id}/images/{id}/",
		api.OpPaginate:    "/curate/dataset-query/datasets/{dataset_id}/images/_search",
		api.OpModify:      "/curate/dataset-core/datasets/{dataset_id}/images/{id}/metadata",
	},
	Methods: map[string]string{
		opBulkAssetUpload: http.MethodPost,
		api.OpPaginate:    http.MethodPost,
	},
}

// Image is an image in a dataset.
type Image struct {
	*object.Object
	c *Client
}

func (i *Image) Key() string {
	return object.FieldOr(i.Object, "key", "")
}

func (i *Image) DatasetID() string {
	return object.FieldOr(i.Object, "dataset_id", "")
}

// Source returns the source of the image.
//
// It is *ImageSourceLocal or *ImageSourceURL for an image made by NewImage.
// For a fetched image, it is a generic object. nil if the image has no source.
func (i *Image) Source() object.Typed {
	v, _ := i.Lookup("source")
	t, _ := v.(object.Typed)
	return t
}

func (i *Image) Metadata() map[string]any {
	return metadataOf(i.Object)
}

// Annotations returns the annotations of the image.
// They are present only when the image is fetched with annotations included.
func (i *Image) Annotations() []*Annotation {
	v, _ := i.Lookup("annotations")
	l, _ := v.([]any)
	ret := make([]*Annotation, 0, len(l))
	for _, a := range l {
		if ann, ok := a.(*Annotation); ok {
			ret = append(ret, ann)
		}
	}
	return ret
}

func metadataOf(o *object.Object) map[string]any {
	v, _ := o.Lookup("metadata")
	if v == nil {
		return nil
	}
	m, _ := object.Flatten(v).(map[string]any)
	return m
}

// NewImage builds an image to be imported.
//
// # Args
//
// - key: unique key of the image in the dataset.
//
// - source: *ImageSourceLocal or *ImageSourceURL.
//
// - metadata: metadata of the image. Required; pass an empty map for none.
func (c *Client) NewImage(key string, source ImageSource, metadata map[string]any) (*Image, error) {
	fields := object.NewEntries()
	fields.Set("key", key)
	if source != nil {
		fields.Set("source", source)
	}
	if metadata != nil {
		fields.Set("metadata", metadata)
	}
	t, err := c.registry.Construct(ImageSchema, fields)
	if err != nil {
		return nil, err
	}
	return t.(*Image), nil
}

// CreateImagesBulk imports images into the dataset.
//
// Local assets are uploaded first, and the list of images is passed to
// an IMAGE_IMPORT job as a parameter blob.
//
// # Args
//
// - ctx: context
//
// - datasetID: dataset to import into.
//
// - images: images to be imported.
//
// - slice: name of the slice the images are added to. Empty for none.
//
// - options: Asynchronous(false) waits the job. WithProgress observes uploads.
//
// # Returns
//
// - *Job: the IMAGE_IMPORT job.
//
// - error
func (c *Client) CreateImagesBulk(
	ctx context.Context, datasetID string, images []*Image, slice string, options ...BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	if datasetID == "" {
		return nil, xe.Validation("dataset_id is required.")
	}
	if len(images) == 0 {
		return nil, xe.Validation("There are no images to import.")
	}

	sliceID := ""
	if slice != "" {
		s, err := c.FetchSlice(ctx, datasetID, SliceName(slice))
		if err != nil {
			return nil, err
		}
		sliceID = s.ID()
	}

	local := []*Image{}
	items := make([]any, 0, len(images))
	for n, img := range images {
		if img == nil {
			return nil, xe.Validation("images[%d] is nil", n)
		}
		if src, ok := img.Source().(*ImageSourceLocal); ok && src.needsUpload() {
			local = append(local, img)
		}
		items = append(items, img)
	}
	if len(local) != 0 {
		if err := c.uploadLocalImages(ctx, local, bo.progress); err != nil {
			return nil, err
		}
	}

	ref, err := c.uploadParams(ctx, items)
	if err != nil {
		return nil, err
	}
	param := params("dataset_id", datasetID, "images", ref)
	if sliceID != "" {
		param.Set("slice_id", sliceID)
	}
	job, err := c.CreateJob(ctx, JobImageImport, param)
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

// FetchImage fetches an image.
func (c *Client) FetchImage(
	ctx context.Context, datasetID string, id string, includeAnnotations bool,
) (*Image, error) {
	var p any
	if includeAnnotations {
		p = params("expand", expand("annotations"))
	}
	return request[*Image](
		ctx, c, imageEndpoints, api.OpFetch,
		map[string]any{"dataset_id": datasetID, "id": id}, p, ImageSchema,
	)
}

// ImageFilter selects images of a dataset.
type ImageFilter struct {
	// Key selects the image with the key.
	Key string

	// Query is a search query.
	Query string

	// Slice is the name of a slice.
	Slice string

	IncludeAnnotations bool
	IncludeImageURL    bool
}

func (f ImageFilter) params(searchAfter any, limit int) *object.Entries {
	p := params("size", limit)
	if f.Key != "" {
		p.Set("key", f.Key)
	}
	if f.Query != "" {
		p.Set("query", f.Query)
	}
	if f.Slice != "" {
		p.Set("slice", f.Slice)
	}
	ex := []string{}
	if f.IncludeAnnotations {
		ex = append(ex, "annotations")
	}
	if f.IncludeImageURL {
		ex = append(ex, "image_url")
	}
	if len(ex) != 0 {
		p.Set("expand", expand(ex...))
	}
	if searchAfter != nil && searchAfter != "" {
		p.Set("search_after", []any{searchAfter})
	}
	return p
}

// FetchImagePage fetches a page of images.
//
// Pass Last[0] of the previous page as searchAfter to fetch the next page.
// nil is for the first page.
func (c *Client) FetchImagePage(
	ctx context.Context, datasetID string, filter ImageFilter, searchAfter any, limit int,
) (*Page[*Image], error) {
	return fetchPage[*Image](
		ctx, c, imageEndpoints, map[string]any{"dataset_id": datasetID},
		filter.params(searchAfter, limit), ImageSchema,
	)
}

// Images iterates images matching the filter.
func (c *Client) Images(ctx context.Context, datasetID string, filter ImageFilter) iter.Seq2[*Image, error] {
	return bySearchAfter(FetchPageLimit, func(after any) (*Page[*Image], error) {
		return c.FetchImagePage(ctx, datasetID, filter, after, FetchPageLimit)
	})
}

// FetchImages fetches all images matching the filter.
func (c *Client) FetchImages(ctx context.Context, datasetID string, filter ImageFilter) ([]*Image, error) {
	return Collect(c.Images(ctx, datasetID, filter))
}

// ImageRefs points images by themselves, by ids or by keys.
type ImageRefs struct {
	Images []*Image
	IDs    []string
	Keys   []string
}

func (r ImageRefs) empty() bool {
	return len(r.Images) == 0 && len(r.IDs) == 0 && len(r.Keys) == 0
}

func (r ImageRefs) list() ([]any, error) {
	return idsAndKeys(r.Images, r.IDs, r.Keys)
}

// DeleteImagesBulk deletes images with a DELETE_IMAGES job.
func (c *Client) DeleteImagesBulk(
	ctx context.Context, datasetID string, refs ImageRefs, options ...BulkOption,
) (*Job, error) {
	bo := bulkOptions(options)
	if datasetID == "" {
		return nil, xe.Validation("dataset_id is required.")
	}
	if refs.empty() {
		return nil, xe.Validation("Must provide at least one of images, image_ids or image_keys.")
	}
	list, err := refs.list()
	if err != nil {
		return nil, err
	}
	ref, err := c.uploadParams(ctx, list)
	if err != nil {
		return nil, err
	}
	job, err := c.CreateJob(
		ctx, JobDeleteImages, params("dataset_id", datasetID, "images", ref),
	)
	if err != nil {
		return nil, err
	}
	return bo.finish(ctx, job)
}

func (i *Image) pathParams() map[string]any {
	return map[string]any{"dataset_id": i.DatasetID(), "id": i.ID()}
}

// Delete deletes the image. Its id is cleared on success.
func (i *Image) Delete(ctx context.Context) error {
	if _, err := i.c.call(ctx, imageEndpoints, api.OpDelete, i.pathParams(), nil); err != nil {
		return err
	}
	i.Object.Delete(object.IDField)
	return nil
}

// Refresh reloads the image. Annotations are included if the image has them.
func (i *Image) Refresh(ctx context.Context) error {
	var p any
	if i.Has("annotations") {
		p = params("expand", expand("annotations"))
	}
	return reload(ctx, i.c, i.Object, imageEndpoints, api.OpFetch, i.pathParams(), p)
}

// Modify replaces the metadata of the image.
func (i *Image) Modify(ctx context.Context, metadata map[string]any) error {
	p := params()
	if len(metadata) != 0 {
		p.Set("metadata", metadata)
	}
	return reload(ctx, i.c, i.Object, imageEndpoints, api.OpModify, i.pathParams(), p)
}

// ImageSource is where the content of an image comes from.
type ImageSource interface {
	object.Typed

	// SourceType is "LOCAL" or "URL".
	SourceType() string
}

const (
	SourceTypeLocal = "LOCAL"
	SourceTypeURL   = "URL"

	assetIDField = "asset_id"
)

var (
	_ ImageSource = &ImageSourceLocal{}
	_ ImageSource = &ImageSourceURL{}
)

// sources is the registry image sources live in. They have no schema.
var sources = sync.OnceValue(object.NewRegistry)

func newSource(kvs ...any) (*object.Object, error) {
	t, err := sources().Construct(nil, params(kvs...))
	if err != nil {
		return nil, err
	}
	return t.Base(), nil
}

// ImageSourceLocal is an image content on this machine, uploaded as an asset on import.
//
// On the wire, it is {"type": "LOCAL", "asset_id": "..."}.
// The content is read lazily and released after the upload.
type ImageSourceLocal struct {
	*object.Object

	mu    sync.Mutex
	asset []byte
	path  string
	size  int64
}

// NewImageSourceLocal makes a local source of the content.
func NewImageSourceLocal(asset []byte) (*ImageSourceLocal, error) {
	if len(asset) == 0 {
		return nil, xe.Validation("Local image file path or bytes not supplied.")
	}
	o, err := newSource("type", SourceTypeLocal)
	if err != nil {
		return nil, err
	}
	return &ImageSourceLocal{Object: o, asset: asset, size: int64(len(asset))}, nil
}

// NewImageSourceFile makes a local source of the file. The file is read on upload.
func NewImageSourceFile(path string) (*ImageSourceLocal, error) {
	if path == "" {
		return nil, xe.Validation("Local image file path not supplied.")
	}
	o, err := newSource("type", SourceTypeLocal)
	if err != nil {
		return nil, err
	}
	return &ImageSourceLocal{Object: o, path: path, size: -1}, nil
}

// NewImageSourceAsset makes a local source of an asset which is uploaded already.
func NewImageSourceAsset(assetID string) (*ImageSourceLocal, error) {
	if assetID == "" {
		return nil, xe.Validation("asset_id is required.")
	}
	o, err := newSource("type", SourceTypeLocal, assetIDField, assetID)
	if err != nil {
		return nil, err
	}
	return &ImageSourceLocal{Object: o, size: -1}, nil
}

func (s *ImageSourceLocal) SourceType() string { return SourceTypeLocal }

// AssetID is the id of the uploaded asset, or "" before upload.
func (s *ImageSourceLocal) AssetID() string {
	return object.FieldOr(s.Object, assetIDField, "")
}

// needsUpload tells the content is not uploaded yet. A source with asset_id is uploaded already.
func (s *ImageSourceLocal) needsUpload() bool {
	if s.AssetID() != "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asset != nil || s.path != ""
}

// Size returns the size of the content in bytes. It is measured once.
func (s *ImageSourceLocal) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if 0 <= s.size {
		return s.size, nil
	}
	if s.asset != nil {
		s.size = int64(len(s.asset))
		return s.size, nil
	}
	if s.path == "" {
		return 0, xe.Validation("Local image file path or bytes not supplied.")
	}
	stat, err := os.Stat(s.path)
	if err != nil {
		return 0, xe.WrapWithNote("measuring "+s.path, err)
	}
	s.size = stat.Size()
	return s.size, nil
}

// Load returns the content, reading the file if needed.
func (s *ImageSourceLocal) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asset != nil {
		return s.asset, nil
	}
	if s.path == "" {
		return nil, xe.Validation("Local image file path not supplied.")
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, xe.WrapWithNote("reading "+s.path, err)
	}
	return b, nil
}

// Unload releases the content held in memory.
//
// A source made from a file can be loaded again. One made from bytes cannot.
func (s *ImageSourceLocal) Unload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asset = nil
}

// ImageSourceURL is an image content the server fetches from a URL.
//
// On the wire, it is {"type": "URL", "url": "..."}.
type ImageSourceURL struct {
	*object.Object
}

var urlPattern = regexp.MustCompile(
	`(?i)^(?:http|ftp)s?://` +
		`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
		`localhost|` +
		`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`(?::\d+)?` +
		`(?:/?|[/?]\S+)$`,
)

// NewImageSourceURL makes a URL source. An invalid URL is a validation error.
func NewImageSourceURL(url string) (*ImageSourceURL, error) {
	if url == "" || !urlPattern.MatchString(url) {
		return nil, xe.Validation("The URL is invalid: %s", url)
	}
	o, err := newSource("type", SourceTypeURL, "url", url)
	if err != nil {
		return nil, err
	}
	return &ImageSourceURL{Object: o}, nil
}

func (s *ImageSourceURL) SourceType() string { return SourceTypeURL }

func (s *ImageSourceURL) URL() string {
	return object.FieldOr(s.Object, "url", "")
}
