package curate

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

// MaxImageKeyLength is the longest image key, in characters.
const MaxImageKeyLength = 255

// SupportedImageFormats are the file extensions (upper-cased, without dot)
// UploadImagesFromDirectory picks up.
var SupportedImageFormats = []string{"BMP", "JPG", "JPEG", "PNG", "MPO", "WEBP"}

var DatasetSchema = &object.Schema{Type: "dataset"}

var datasetEndpoints = api.Endpoints{
	Paths: map[string]string{
		api.OpCreate:   "/curate/dataset-core/datasets/",
		api.OpDelete:   "/curate/dataset-core/datasets/{id}/",
		api.OpFetch:    "/curate/dataset-query/datasets/{id}/",
		api.OpPaginate: "/curate/dataset-query/datasets/",
		api.OpModify:   "/curate/dataset-core/datasets/{id}",
	},
	Methods: map[string]string{
		api.OpModify: http.MethodPatch,
	},
}

// Dataset is a set of images and their annotations.
type Dataset struct {
	*object.Object
	c *Client
}

func (d *Dataset) Name() string {
	return object.FieldOr(d.Object, "name", "")
}

func (d *Dataset) Description() string {
	return object.FieldOr(d.Object, "description", "")
}

// ImageCount returns the number of images, if the dataset is fetched with it.
func (d *Dataset) ImageCount() (int, bool) {
	n, err := object.Number(d.Object, "image_count")
	if err != nil {
		return 0, false
	}
	return int(n), true
}

// SliceCount returns the number of slices, if the dataset is fetched with it.
func (d *Dataset) SliceCount() (int, bool) {
	n, err := object.Number(d.Object, "slice_count")
	if err != nil {
		return 0, false
	}
	return int(n), true
}

type fetchOption struct {
	imageCount bool
	sliceCount bool
}

// FetchOption asks the server to include counts in a fetched object.
type FetchOption func(*fetchOption) *fetchOption

// WithImageCount includes the number of images in a dataset or a slice.
func WithImageCount() FetchOption {
	return func(fo *fetchOption) *fetchOption {
		fo.imageCount = true
		return fo
	}
}

// WithSliceCount includes the number of slices in a dataset.
func WithSliceCount() FetchOption {
	return func(fo *fetchOption) *fetchOption {
		fo.sliceCount = true
		return fo
	}
}

func fetchOptions(options []FetchOption) *fetchOption {
	fo := &fetchOption{}
	for _, opt := range options {
		fo = opt(fo)
	}
	return fo
}

func (fo *fetchOption) expand() []any {
	ex := []string{}
	if fo.imageCount {
		ex = append(ex, "image_count")
	}
	if fo.sliceCount {
		ex = append(ex, "slice_count")
	}
	return expand(ex...)
}

// CreateDataset creates a dataset.
func (c *Client) CreateDataset(ctx context.Context, name string, description string) (*Dataset, error) {
	return request[*Dataset](
		ctx, c, datasetEndpoints, api.OpCreate, nil,
		params("name", name, "description", description),
		DatasetSchema,
	)
}

// FetchDataset fetches a dataset by its id.
func (c *Client) FetchDataset(ctx context.Context, id string, options ...FetchOption) (*Dataset, error) {
	var p any
	if ex := fetchOptions(options).expand(); len(ex) != 0 {
		p = params("expand", ex)
	}
	return request[*Dataset](
		ctx, c, datasetEndpoints, api.OpFetch, map[string]any{"id": id}, p, DatasetSchema,
	)
}

// FetchDatasetByName fetches the dataset with exactly the name.
//
// A name which matches nothing is a not-found error.
func (c *Client) FetchDatasetByName(ctx context.Context, name string, options ...FetchOption) (*Dataset, error) {
	if name == "" {
		return nil, xe.Validation("name is required.")
	}
	fo := fetchOptions(options)
	page, err := c.FetchDatasetPage(
		ctx,
		DatasetFilter{Name: name, IncludeImageCount: fo.imageCount, IncludeSliceCount: fo.sliceCount},
		1, FetchPageLimit,
	)
	if err != nil {
		return nil, err
	}
	if len(page.Results) == 0 {
		return nil, xe.NotFound("Could not find the dataset.")
	}
	return page.Results[0], nil
}

// DatasetFilter selects datasets.
type DatasetFilter struct {
	// Name selects the dataset with exactly the name.
	Name string

	// NameContains selects datasets whose name contains it.
	NameContains string

	IncludeImageCount bool
	IncludeSliceCount bool
}

func (f DatasetFilter) params(page int, limit int) *object.Entries {
	p := params("size", limit)
	if f.Name != "" {
		p.Set("name", f.Name)
	}
	if f.NameContains != "" {
		p.Set("name_contains", f.NameContains)
	}
	fo := &fetchOption{imageCount: f.IncludeImageCount, sliceCount: f.IncludeSliceCount}
	if ex := fo.expand(); len(ex) != 0 {
		p.Set("expand", ex)
	}
	if 0 < page {
		p.Set("page", page)
	}
	return p
}

// FetchDatasetPage fetches a page of datasets. Pages are numbered from 1.
func (c *Client) FetchDatasetPage(
	ctx context.Context, filter DatasetFilter, page int, limit int,
) (*Page[*Dataset], error) {
	return fetchPage[*Dataset](
		ctx, c, datasetEndpoints, nil, filter.params(page, limit), DatasetSchema,
	)
}

// Datasets iterates datasets matching the filter.
func (c *Client) Datasets(ctx context.Context, filter DatasetFilter) iter.Seq2[*Dataset, error] {
	return byPageNumber(FetchPageLimit, func(page int) (*Page[*Dataset], error) {
		return c.FetchDatasetPage(ctx, filter, page, FetchPageLimit)
	})
}

// FetchDatasets fetches all datasets matching the filter.
func (c *Client) FetchDatasets(ctx context.Context, filter DatasetFilter) ([]*Dataset, error) {
	return Collect(c.Datasets(ctx, filter))
}

func (d *Dataset) pathParams() map[string]any {
	return map[string]any{"id": d.ID()}
}

// Delete deletes the dataset. Its id is cleared on success.
//
// A dataset with images cannot be deleted (conflict error) unless force is true.
func (d *Dataset) Delete(ctx context.Context, force bool) error {
	_, err := d.c.call(ctx, datasetEndpoints, api.OpDelete, d.pathParams(), params("force", force))
	if err != nil {
		return err
	}
	d.Object.Delete(object.IDField)
	return nil
}

// Refresh reloads the dataset. Counts are included if the dataset has them.
func (d *Dataset) Refresh(ctx context.Context) error {
	fo := &fetchOption{imageCount: d.Has("image_count"), sliceCount: d.Has("slice_count")}
	var p any
	if ex := fo.expand(); len(ex) != 0 {
		p = params("expand", ex)
	}
	return reload(ctx, d.c, d.Object, datasetEndpoints, api.OpFetch, d.pathParams(), p)
}

// Modify changes the name and the description of the dataset. Empty values are left as they are.
func (d *Dataset) Modify(ctx context.Context, name string, description string) error {
	p := params()
	if name != "" {
		p.Set("name", name)
	}
	if description != "" {
		p.Set("description", description)
	}
	return reload(ctx, d.c, d.Object, datasetEndpoints, api.OpModify, d.pathParams(), p)
}

// AddImages imports images into the dataset. See Client.CreateImagesBulk.
func (d *Dataset) AddImages(
	ctx context.Context, images []*Image, slice string, options ...BulkOption,
) (*Job, error) {
	return d.c.CreateImagesBulk(ctx, d.ID(), images, slice, options...)
}

// UploadImagesFromDirectory imports image files in the directory.
//
// Files are picked up by their extension (SupportedImageFormats, case insensitive).
// The key of each image is its path relative to the directory, with "/" as separator.
//
// # Args
//
// - ctx: context
//
// - dir: the directory.
//
// - recursive: if true, subdirectories are walked too.
//
// - slice: name of the slice the images are added to. Empty for none.
//
// - options: BulkOption
//
// # Returns
//
// - *Job: the IMAGE_IMPORT job.
//
// - error: validation error when dir is not a directory, when it has no image files,
// or when a key is too long.
func (d *Dataset) UploadImagesFromDirectory(
	ctx context.Context, dir string, recursive bool, slice string, options ...BulkOption,
) (*Job, error) {
	files, err := findImageFiles(dir, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, xe.Validation("There are no image files in the given directory.")
	}

	images := make([]*Image, 0, len(files))
	for _, key := range files {
		src, err := NewImageSourceFile(filepath.Join(dir, filepath.FromSlash(key)))
		if err != nil {
			return nil, err
		}
		img, err := d.c.NewImage(key, src, map[string]any{})
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return d.AddImages(ctx, images, slice, options...)
}

// findImageFiles lists image files in dir, as slash separated paths relative to dir.
func findImageFiles(dir string, recursive bool) ([]string, error) {
	stat, err := os.Stat(dir)
	if err != nil || !stat.IsDir() {
		return nil, xe.Validation("%s is not a directory.", dir)
	}

	found := []string{}
	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
		if !slices.Contains(SupportedImageFormats, ext) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if MaxImageKeyLength < utf8.RuneCountInString(key) {
			return xe.Validation(
				"Automatically generated image key %s exceeds the %d characters limit.",
				key, MaxImageKeyLength,
			)
		}
		found = append(found, key)
		return nil
	})
	if err != nil {
		if errors.Is(err, xe.ErrValidation) {
			return nil, err
		}
		return nil, xe.WrapWithNote("walking "+dir, err)
	}
	return found, nil
}

// FetchImages fetches all images of the dataset matching the filter.
func (d *Dataset) FetchImages(ctx context.Context, filter ImageFilter) ([]*Image, error) {
	return d.c.FetchImages(ctx, d.ID(), filter)
}

// Images iterates images of the dataset matching the filter.
func (d *Dataset) Images(ctx context.Context, filter ImageFilter) iter.Seq2[*Image, error] {
	return d.c.Images(ctx, d.ID(), filter)
}

// DeleteImages deletes images of the dataset. See Client.DeleteImagesBulk.
func (d *Dataset) DeleteImages(ctx context.Context, refs ImageRefs, options ...BulkOption) (*Job, error) {
	return d.c.DeleteImagesBulk(ctx, d.ID(), refs, options...)
}

func (d *Dataset) CreateSlice(ctx context.Context, name string, description string) (*Slice, error) {
	return d.c.CreateSlice(ctx, d.ID(), name, description)
}

func (d *Dataset) FetchSlice(ctx context.Context, sel SliceSelector, options ...FetchOption) (*Slice, error) {
	return d.c.FetchSlice(ctx, d.ID(), sel, options...)
}

func (d *Dataset) FetchSlices(ctx context.Context, filter SliceFilter) ([]*Slice, error) {
	return d.c.FetchSlices(ctx, d.ID(), filter)
}

// AddAnnotations imports annotations into the dataset. See Client.CreateAnnotationsBulk.
func (d *Dataset) AddAnnotations(
	ctx context.Context, annotations []*Annotation, options ...BulkOption,
) (*Job, error) {
	return d.c.CreateAnnotationsBulk(ctx, d.ID(), annotations, options...)
}

func (d *Dataset) FetchAnnotations(ctx context.Context, filter AnnotationFilter) ([]*Annotation, error) {
	return d.c.FetchAnnotations(ctx, d.ID(), filter)
}

// DeleteAnnotations deletes annotations by themselves or by ids. See Client.DeleteAnnotationsBulk.
func (d *Dataset) DeleteAnnotations(
	ctx context.Context, annotations []*Annotation, ids []string, options ...BulkOption,
) (*Job, error) {
	return d.c.DeleteAnnotationsBulk(ctx, d.ID(), annotations, ids, options...)
}

// DeleteAnnotationsByFilters deletes annotations matching the filter.
func (d *Dataset) DeleteAnnotationsByFilters(
	ctx context.Context, filter AnnotationFilter, options ...BulkOption,
) (*Job, error) {
	return d.c.DeleteAnnotationsByFilters(ctx, d.ID(), filter, options...)
}

func (d *Dataset) FetchSearchFieldMappings(
	ctx context.Context, mappingType SearchFieldMappingType,
) ([]*SearchFieldMapping, error) {
	return d.c.FetchSearchFieldMappings(ctx, d.ID(), mappingType)
}
