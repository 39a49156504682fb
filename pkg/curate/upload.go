package curate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/labstack/gommon/log"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
	"github.com/superb-ai/spb-curate-go/pkg/utils/retry"
	"golang.org/x/sync/errgroup"
)

const (
	// UploadImageFileBytesMax is the largest image file which can be uploaded.
	UploadImageFileBytesMax = 20_000_000

	// MaxRetryCount is the number of tries in total to upload an asset.
	MaxRetryCount = 5

	// BackoffFactor is the wait before the second try. It doubles for each try after.
	BackoffFactor = 500 * time.Millisecond
)

// RetryStatuses are the statuses of an asset upload which are worth trying again.
var RetryStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// batch is a range [Start, End) of assets uploaded together.
type batch struct {
	Start, End int
}

// planBatches splits assets into upload batches, keeping their order.
//
// A batch is closed before an asset which would make it exceed maxBytes or maxObjects.
// An asset larger than maxBytes makes a batch by itself.
func planBatches(sizes []int64, maxBytes int64, maxObjects int) []batch {
	maxObjects = max(maxObjects, 1)

	ret := []batch{}
	start := 0
	var total int64
	for i, size := range sizes {
		if start < i && (maxBytes < total+size || maxObjects < i-start+1) {
			ret = append(ret, batch{Start: start, End: i})
			start = i
			total = 0
		}
		total += size
	}
	if start < len(sizes) {
		ret = append(ret, batch{Start: start, End: len(sizes)})
	}
	return ret
}

// uploadLocalImages uploads assets of local sources, and sets asset_id of each source.
//
// Batches are uploaded one after another. Assets in a batch are uploaded concurrently,
// and the first failure cancels the others in the batch.
//
// # Args
//
// - ctx: context
//
// - images: images with *ImageSourceLocal.
//
// - progress: called with the number of uploaded images and the total after each batch.
// It can be nil.
func (c *Client) uploadLocalImages(
	ctx context.Context, images []*Image, progress func(done, total int),
) error {
	sources := make([]*ImageSourceLocal, len(images))
	sizes := make([]int64, len(images))
	for i, img := range images {
		src, ok := img.Source().(*ImageSourceLocal)
		if !ok {
			return xe.Validation("the image with the key '%s' has no local source", img.Key())
		}
		size, err := src.Size()
		if err != nil {
			return err
		}
		if UploadImageFileBytesMax < size {
			return xe.Validation(
				"The image with the key '%s' has exceeded the file size limit of 20MB.", img.Key(),
			)
		}
		sources[i] = src
		sizes[i] = size
	}

	done := 0
	for _, b := range planBatches(sizes, c.settings.BulkBytesMax, c.settings.BulkObjectMax) {
		if err := c.uploadBatch(ctx, images[b.Start:b.End], sources[b.Start:b.End], sizes[b.Start:b.End]); err != nil {
			return err
		}
		done = b.End
		c.logger.Infoj(log.JSON{
			"message": fmt.Sprintf("Uploading local images: %d of %d", done, len(images)),
		})
		if progress != nil {
			progress(done, len(images))
		}
	}
	return nil
}

func (c *Client) uploadBatch(
	ctx context.Context, images []*Image, sources []*ImageSourceLocal, sizes []int64,
) error {
	fileSizes := make([]any, len(sizes))
	for i := range sizes {
		fileSizes[i] = sizes[i]
	}
	body, err := c.call(
		ctx, imageEndpoints, opBulkAssetUpload, nil, params("file_sizes", fileSizes),
	)
	if err != nil {
		return err
	}

	var results []any
	if e, ok := body.(*object.Entries); ok {
		r, _ := e.Get("results")
		results, _ = r.([]any)
	}
	if len(results) != len(images) {
		return xe.API(
			fmt.Sprintf(
				"presigned URLs are issued for %d assets, but %d are requested",
				len(results), len(images),
			),
			0, nil,
		)
	}

	eg, ectx := errgroup.WithContext(ctx)
	for i := range images {
		asset, ok := results[i].(*object.Entries)
		if !ok {
			return xe.API(fmt.Sprintf("unexpected asset in the response: %T", results[i]), 0, nil)
		}
		id, _ := asset.Get("id")
		u, _ := asset.Get("upload_url")
		uploadURL, _ := u.(string)
		if id == nil || id == "" || uploadURL == "" {
			return xe.API("an asset without id or upload_url is in the response", 0, nil)
		}

		key, src := images[i].Key(), sources[i]
		if err := src.Set(assetIDField, id); err != nil {
			return err
		}
		eg.Go(func() error {
			if err := c.uploadAsset(ectx, key, src, uploadURL); err != nil {
				return err
			}
			src.Unload()
			return nil
		})
	}
	return eg.Wait()
}

// uploadAsset PUTs the asset to the presigned URL, trying again on
// connection failures and on RetryStatuses.
func (c *Client) uploadAsset(
	ctx context.Context, key string, src *ImageSourceLocal, uploadURL string,
) error {
	data, err := src.Load()
	if err != nil {
		return err
	}

	policy := retry.Policy{
		MaxAttempts: MaxRetryCount,
		Backoff:     retry.ExponentialBackoff(BackoffFactor),
		Sleep:       c.sleep,
	}
	_, err = retry.Blocking(ctx, policy, func(ctx context.Context) (struct{}, error) {
		resp, err := c.transport.Send(ctx, &transport.Request{
			Method: http.MethodPut, URL: uploadURL, Body: data,
		})
		if err != nil {
			if xerr := new(xe.Error); errors.As(err, &xerr) && xerr.ShouldRetry {
				return struct{}{}, retry.Retry(err)
			}
			return struct{}{}, err
		}
		if resp.StatusCode == http.StatusOK {
			return struct{}{}, nil
		}
		failure := xe.API(
			fmt.Sprintf(
				"There was an error in uploading the local file of the image with the key '%s'.", key,
			),
			resp.StatusCode, resp.Body,
		)
		if slices.Contains(RetryStatuses, resp.StatusCode) {
			return struct{}{}, retry.Retry(failure)
		}
		return struct{}{}, failure
	})

	if ex := new(retry.ExhaustedError); errors.As(err, &ex) {
		c.logger.Infoj(log.JSON{
			"message": "gave up uploading an asset", "key": key, "attempts": ex.Attempts,
		})
		if errors.Is(ex.Last, xe.ErrAPIConnection) {
			return xe.Retryable(ex.Attempts, 0, ex.Last)
		}
		status := 0
		if xerr := new(xe.Error); errors.As(ex.Last, &xerr) {
			status = xerr.StatusCode
		}
		return xe.Retryable(ex.Attempts, status, nil)
	}
	return err
}
