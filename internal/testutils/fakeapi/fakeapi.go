// Package fakeapi is an in-process stand-in of the Curate API for tests.
//
// It serves the batch protocol (parameter blobs, presigned asset uploads and jobs)
// by itself, and lets tests register handlers for resource endpoints.
// Every request is recorded.
package fakeapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/superb-ai/spb-curate-go/pkg/configs"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	AccessKey = "fake-access-key"
	TeamName  = "fake-team"
)

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSON decodes the body. nil for an empty body.
func (r Request) JSON() any {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	var v any
	if err := jsonAPI.Unmarshal(r.Body, &v); err != nil {
		return nil
	}
	return v
}

// Job is a job created through the server.
type Job struct {
	ID      string
	JobType string
	Param   any

	// Polls is how many times the job is fetched.
	Polls int
}

type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu       sync.Mutex
	requests []Request
	seq      int
	blobs    map[string][]byte
	assets   map[string][]byte
	jobs     []*Job
	statuses []string
	failures []int
}

// New starts a server. It is closed when the test ends.
//
// Resource endpoints are not served until registered with Handle.
func New(t *testing.T) *Server {
	t.Helper()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)

	s := &Server{
		Echo:     e,
		blobs:    map[string][]byte{},
		assets:   map[string][]byte{},
		statuses: []string{"PENDING", "RUNNING", "COMPLETE"},
	}
	e.Use(s.record)

	batch := e.Group("/curate/batch", s.authenticate)
	batch.POST("/params/", s.createBlob)
	batch.POST("/assets/bulk/", s.createAssets)
	batch.POST("/jobs/", s.createJob)
	batch.GET("/jobs/", s.listJobs)
	batch.GET("/jobs/:id/", s.fetchJob)

	// presigned URLs need no credentials.
	e.PUT("/_presigned/params/:id", s.putBlob)
	e.PUT("/_presigned/assets/:id", s.putAsset)

	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// Credentials points a client to this server.
func (s *Server) Credentials() configs.Credentials {
	return configs.Credentials{AccessKey: AccessKey, TeamName: TeamName, APIBase: s.URL}
}

// Handle serves the endpoint with the handler. Credentials are checked first.
func (s *Server) Handle(method string, path string, h echo.HandlerFunc) {
	s.Echo.Add(method, path, h, s.authenticate)
}

// Reply is a handler responding the value as JSON with the status.
func Reply(status int, value any) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := jsonAPI.Marshal(value)
		if err != nil {
			return err
		}
		return c.Blob(status, echo.MIMEApplicationJSON, b)
	}
}

// Sequence is a handler which uses the handlers one by one for each request.
// The last one is used repeatedly.
func Sequence(handlers ...echo.HandlerFunc) echo.HandlerFunc {
	mu := new(sync.Mutex)
	n := 0
	return func(c echo.Context) error {
		mu.Lock()
		h := handlers[min(n, len(handlers)-1)]
		n += 1
		mu.Unlock()
		return h(c)
	}
}

// SetJobStatuses sets the statuses a new job goes through.
//
// A job is created with the first status, and each fetch moves it to the next.
// The last status stays. Default is PENDING, RUNNING then COMPLETE.
func (s *Server) SetJobStatuses(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = statuses
}

// FailAssetUploads makes the next uploads of assets respond with the statuses, one for each.
func (s *Server) FailAssetUploads(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// Requests returns requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns requests of the method to the path.
func (s *Server) RequestsTo(method string, path string) []Request {
	ret := []Request{}
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			ret = append(ret, r)
		}
	}
	return ret
}

// Jobs returns jobs created so far, in order.
func (s *Server) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Job, len(s.jobs))
	for i := range s.jobs {
		ret[i] = *s.jobs[i]
	}
	return ret
}

// Blob returns the decoded content of the uploaded parameter blob.
func (s *Server) Blob(paramID any) any {
	s.mu.Lock()
	b, ok := s.blobs[fmt.Sprint(paramID)]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	var v any
	if err := jsonAPI.Unmarshal(b, &v); err != nil {
		return nil
	}
	return v
}

// Assets returns contents of uploaded assets by their id.
func (s *Server) Assets() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make(map[string][]byte, len(s.assets))
	for k, v := range s.assets {
		if v != nil {
			ret[k] = v
		}
	}
	return ret
}

func (s *Server) nextID(prefix string) string {
	s.seq += 1
	return prefix + "-" + strconv.Itoa(s.seq)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Header: req.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		begin := time.Now()
		c.Logger().Infoj(log.JSON{"message": "request", "method": req.Method, "path": req.URL.String()})
		err = next(c)
		c.Logger().Infoj(log.JSON{
			"message": "response", "status": c.Response().Status,
			"elapsed": time.Since(begin).String(), "error": fmt.Sprint(err),
		})
		return err
	}
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header
		if h.Get("X-Api-Key") != AccessKey || h.Get("X-Tenant-Id") != TeamName {
			return Reply(http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials."})(c)
		}
		return next(c)
	}
}

// Body decodes the JSON object in the request body.
func Body(c echo.Context) (map[string]any, error) {
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := jsonAPI.Unmarshal(b, &m); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return m, nil
}

func (s *Server) createBlob(c echo.Context) error {
	m, err := Body(c)
	if err != nil {
		return err
	}
	if _, ok := m["file_size"].(float64); !ok {
		return Reply(http.StatusBadRequest, map[string]any{"detail": "file_size is required."})(c)
	}
	s.mu.Lock()
	id := s.nextID("param")
	s.blobs[id] = nil
	s.mu.Unlock()
	return Reply(http.StatusOK, map[string]any{
		"id": id, "upload_url": s.URL + "/_presigned/params/" + id,
	})(c)
}

func (s *Server) putBlob(c echo.Context) error {
	id := c.Param("id")
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return c.NoContent(http.StatusForbidden)
	}
	s.blobs[id] = b
	return c.NoContent(http.StatusOK)
}

func (s *Server) createAssets(c echo.Context) error {
	m, err := Body(c)
	if err != nil {
		return err
	}
	sizes, ok := m["file_sizes"].([]any)
	if !ok {
		return Reply(http.StatusBadRequest, map[string]any{"detail": "file_sizes is required."})(c)
	}

	s.mu.Lock()
	results := make([]any, 0, len(sizes))
	for range sizes {
		id := s.nextID("asset")
		s.assets[id] = nil
		results = append(results, map[string]any{
			"id": id, "upload_url": s.URL + "/_presigned/assets/" + id,
		})
	}
	s.mu.Unlock()
	return Reply(http.StatusOK, map[string]any{"results": results})(c)
}

func (s *Server) putAsset(c echo.Context) error {
	id := c.Param("id")
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) != 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		return c.NoContent(status)
	}
	if _, ok := s.assets[id]; !ok {
		return c.NoContent(http.StatusForbidden)
	}
	s.assets[id] = b
	return c.NoContent(http.StatusOK)
}

func (j *Job) wire(statuses []string) map[string]any {
	status := statuses[min(j.Polls, len(statuses)-1)]
	ret := map[string]any{
		"id": j.ID, "job_type": j.JobType, "param": j.Param, "status": status,
	}
	if status == "COMPLETE" {
		ret["progress"] = map[string]any{"completed": 1, "total": 1}
	}
	return ret
}

func (s *Server) createJob(c echo.Context) error {
	m, err := Body(c)
	if err != nil {
		return err
	}
	jobType, _ := m["job_type"].(string)
	if jobType == "" {
		return Reply(http.StatusBadRequest, map[string]any{"detail": "job_type is required."})(c)
	}
	if ref, ok := m["param"].(map[string]any); ok {
		for _, v := range ref {
			inner, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if pid, ok := inner["param_id"]; ok {
				s.mu.Lock()
				b, ok := s.blobs[fmt.Sprint(pid)]
				s.mu.Unlock()
				if !ok || b == nil {
					return Reply(http.StatusBadRequest, map[string]any{
						"detail": fmt.Sprintf("parameter %v is not uploaded.", pid),
					})(c)
				}
			}
		}
	}

	s.mu.Lock()
	j := &Job{ID: s.nextID("job"), JobType: jobType, Param: m["param"]}
	s.jobs = append(s.jobs, j)
	w := j.wire(s.statuses)
	s.mu.Unlock()
	return Reply(http.StatusOK, w)(c)
}

func (s *Server) fetchJob(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			j.Polls += 1
			return Reply(http.StatusOK, j.wire(s.statuses))(c)
		}
	}
	return Reply(http.StatusNotFound, map[string]any{"detail": "Not found."})(c)
}

// listJobs pages jobs with a cursor, which is the index of the first job in the page.
func (s *Server) listJobs(c echo.Context) error {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	from := 0
	if cur := c.QueryParam("cursor"); cur != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cur, "cursor-"))
		if err != nil {
			return Reply(http.StatusBadRequest, map[string]any{"detail": "bad cursor"})(c)
		}
		from = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	results := []any{}
	to := min(from+limit, len(s.jobs))
	for _, j := range s.jobs[min(from, to):to] {
		results = append(results, j.wire(s.statuses))
	}
	resp := map[string]any{"results": results, "count": len(s.jobs)}
	if to < len(s.jobs) {
		resp["next_cursor"] = "cursor-" + strconv.Itoa(to)
	}
	return Reply(http.StatusOK, resp)(c)
}
