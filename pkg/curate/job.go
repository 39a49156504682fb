package curate

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/superb-ai/spb-curate-go/pkg/api"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/loop"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
)

type JobType string

const (
	JobAnnotationImport           JobType = "ANNOTATION_IMPORT"
	JobDeleteImages               JobType = "DELETE_IMAGES"
	JobImageImport                JobType = "IMAGE_IMPORT"
	JobImportPredictions          JobType = "IMPORT_PREDICTIONS"
	JobUpdateSlice                JobType = "UPDATE_SLICE"
	JobUpdateSliceByQuery         JobType = "UPDATE_SLICE_BY_QUERY"
	JobDeleteAnnotationsByIDs     JobType = "DELETE_ANNOTATIONS_BY_IDS"
	JobDeleteAnnotationsByFilters JobType = "DELETE_ANNOTATIONS_BY_FILTERS"
)

func (t JobType) valid() bool {
	switch t {
	case JobAnnotationImport, JobDeleteImages, JobImageImport, JobImportPredictions,
		JobUpdateSlice, JobUpdateSliceByQuery,
		JobDeleteAnnotationsByIDs, JobDeleteAnnotationsByFilters:
		return true
	}
	return false
}

// job statuses which never change.
const (
	JobStatusComplete = "COMPLETE"
	JobStatusFailed   = "FAILED"
)

const (
	// DefaultPollInterval is the interval Job.Wait refreshes the job with.
	DefaultPollInterval = 2 * time.Second

	opBulkCreate       = "bulk_create"
	opBulkCreateUpload = "bulk_create_upload"
)

var JobSchema = &object.Schema{Type: "job"}

var jobEndpoints = api.Endpoints{
	Paths: map[string]string{
		opBulkCreate:       "/curate/batch/jobs/",
		opBulkCreateUpload: "/curate/batch/params/",
		api.OpFetch:        "/curate/batch/jobs/{id}/",
		api.OpPaginate:     "/curate/batch/jobs/",
	},
	Methods: map[string]string{
		opBulkCreate:       http.MethodPost,
		opBulkCreateUpload: http.MethodPost,
	},
}

// Job is an asynchronous batch job on the server.
type Job struct {
	*object.Object
	c *Client
}

func (j *Job) JobType() JobType {
	return JobType(object.FieldOr(j.Object, "job_type", ""))
}

func (j *Job) Status() string {
	return object.FieldOr(j.Object, "status", "")
}

// Param is the parameter the job was created with.
func (j *Job) Param() any {
	v, _ := j.Lookup("param")
	return v
}

func (j *Job) Progress() any {
	v, _ := j.Lookup("progress")
	return v
}

func (j *Job) Result() any {
	v, _ := j.Lookup("result")
	return v
}

// Done reports whether the job has completed or failed.
func (j *Job) Done() bool {
	s := j.Status()
	return s == JobStatusComplete || s == JobStatusFailed
}

// CreateJob submits a job.
//
// # Args
//
// - ctx: context
//
// - jobType: type of the job.
//
// - param: parameter of the job. It differs by the job type.
// Large lists should be uploaded as a parameter blob and referenced
// by {"param_id": ...}.
//
// # Returns
//
// - *Job: the created job.
//
// - error
func (c *Client) CreateJob(ctx context.Context, jobType JobType, param any) (*Job, error) {
	if !jobType.valid() {
		return nil, xe.Validation("Invalid job type %s.", jobType)
	}
	return request[*Job](
		ctx, c, jobEndpoints, opBulkCreate, nil,
		params("job_type", string(jobType), "param", param),
		JobSchema,
	)
}

// uploadParams uploads data as a parameter blob, and returns its reference.
//
// The blob is JSON of the deep form of data.
func (c *Client) uploadParams(ctx context.Context, data any) (map[string]any, error) {
	payload, err := jsonAPI.Marshal(object.Flatten(data))
	if err != nil {
		return nil, xe.WrapWithNote("encoding job parameters", err)
	}

	body, err := c.call(
		ctx, jobEndpoints, opBulkCreateUpload, nil, params("file_size", len(payload)),
	)
	if err != nil {
		return nil, err
	}
	blob, ok := body.(*object.Entries)
	if !ok {
		return nil, xe.API(fmt.Sprintf("unexpected response for a parameter upload: %T", body), 0, nil)
	}
	id, _ := blob.Get("id")
	uploadURL, _ := blob.Get("upload_url")
	u, ok := uploadURL.(string)
	if !ok || u == "" || id == nil || id == "" {
		return nil, xe.API("parameter upload is not accepted: no id or upload_url", 0, nil)
	}

	resp, err := c.transport.Send(ctx, &transport.Request{
		Method: http.MethodPut, URL: u, Body: payload,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xe.API(
			"There was an error in uploading the job parameters.", resp.StatusCode, resp.Body,
		)
	}
	c.logger.Debugj(log.JSON{"message": "job parameters uploaded", "param_id": id, "size": len(payload)})
	return map[string]any{"param_id": id}, nil
}

// FetchJob fetches a job by its id.
func (c *Client) FetchJob(ctx context.Context, id string) (*Job, error) {
	return request[*Job](
		ctx, c, jobEndpoints, api.OpFetch, map[string]any{"id": id}, nil, JobSchema,
	)
}

// JobFilter filters jobs.
type JobFilter struct {
	// FromDate selects jobs created on or after it. Zero means no filter.
	FromDate time.Time
}

func (f JobFilter) params(cursor string, limit int) *object.Entries {
	p := params("limit", limit)
	if !f.FromDate.IsZero() {
		p.Set("from_date", f.FromDate.UTC().Format(time.RFC3339))
	}
	if cursor != "" {
		p.Set("cursor", cursor)
	}
	return p
}

// FetchJobPage fetches a page of jobs.
//
// Pass NextCursor of the previous page as cursor to fetch the next page.
func (c *Client) FetchJobPage(
	ctx context.Context, filter JobFilter, cursor string, limit int,
) (*Page[*Job], error) {
	return fetchPage[*Job](ctx, c, jobEndpoints, nil, filter.params(cursor, limit), JobSchema)
}

// Jobs iterates jobs matching the filter.
func (c *Client) Jobs(ctx context.Context, filter JobFilter) iter.Seq2[*Job, error] {
	return byCursor(FetchPageLimit, func(cursor string) (*Page[*Job], error) {
		return c.FetchJobPage(ctx, filter, cursor, FetchPageLimit)
	})
}

// FetchJobs fetches all jobs matching the filter.
func (c *Client) FetchJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	return Collect(c.Jobs(ctx, filter))
}

// Refresh reloads the job from the server.
func (j *Job) Refresh(ctx context.Context) error {
	return reload(ctx, j.c, j.Object, jobEndpoints, api.OpFetch, map[string]any{"id": j.ID()}, nil)
}

type waitOption struct {
	timeout  time.Duration
	interval time.Duration
}

type WaitOption func(*waitOption) *waitOption

// WithWaitTimeout sets how long Wait waits at most.
//
// Default is the WaitTimeout setting of the client.
func WithWaitTimeout(d time.Duration) WaitOption {
	return func(wo *waitOption) *waitOption {
		wo.timeout = d
		return wo
	}
}

// WithPollInterval sets the interval of refreshing the job. Default is DefaultPollInterval.
func WithPollInterval(d time.Duration) WaitOption {
	return func(wo *waitOption) *waitOption {
		wo.interval = d
		return wo
	}
}

// Wait waits until the job completes or fails.
//
// Running out of time is not an error: Wait just returns,
// and the job keeps the status it was refreshed with at last.
//
// # Returns
//
// - error: error in refreshing the job, or ctx.Err() when ctx is done.
func (j *Job) Wait(ctx context.Context, options ...WaitOption) error {
	wo := &waitOption{timeout: j.c.settings.WaitTimeout, interval: DefaultPollInterval}
	for _, opt := range options {
		wo = opt(wo)
	}

	type state struct {
		remaining time.Duration
		refresh   bool
	}
	_, err := loop.Start(
		ctx, state{remaining: wo.timeout},
		func(ctx context.Context, s state) (state, loop.Next) {
			if s.refresh {
				if err := j.Refresh(ctx); err != nil {
					return s, loop.Break(err)
				}
			}
			if j.Done() {
				return s, loop.Break(nil)
			}
			wait := min(s.remaining, wo.interval)
			if wait <= 0 {
				j.c.logger.Infoj(log.JSON{
					"message": "gave up waiting for the job", "job_id": j.ID(), "status": j.Status(),
				})
				return s, loop.Break(nil)
			}
			return state{remaining: s.remaining - wo.interval, refresh: true}, loop.Continue(wait)
		},
	)
	return err
}
