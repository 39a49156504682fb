// Package api issues authenticated requests to the Curate API.
//
// It resolves endpoints, builds headers, encodes parameters, and maps
// non-2xx responses onto the error taxonomy of pkg/errors.
// Response bodies are decoded with their key order kept, and left for
// callers to materialize.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/gommon/log"
	"github.com/superb-ai/spb-curate-go/pkg/buildtime"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/logger"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/transport"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Credentials identify the caller to the API.
type Credentials struct {
	AccessKey string
	TeamName  string

	// APIBase is the scheme and host of the API, like "https://api.superb-ai.com".
	APIBase string
}

type Requestor struct {
	creds     Credentials
	transport transport.Transport
	logger    *log.Logger
}

type Option func(*Requestor) *Requestor

func WithLogger(l *log.Logger) Option {
	return func(r *Requestor) *Requestor {
		r.logger = l
		return r
	}
}

// New creates a requestor.
//
// When transport is nil, the shared one is used.
func New(creds Credentials, t transport.Transport, options ...Option) *Requestor {
	if t == nil {
		t = transport.Shared()
	}
	r := &Requestor{
		creds:     creds,
		transport: t,
		logger:    logger.Null(),
	}
	for _, opt := range options {
		r = opt(r)
	}
	return r
}

func (r *Requestor) Credentials() Credentials {
	return r.creds
}

// UserAgent is the User-Agent the client sends.
func UserAgent() string {
	return "SPB/v0 GoBindings/" + buildtime.VERSION()
}

func clientUserAgent() string {
	ua, err := jsonAPI.MarshalToString(map[string]string{
		"bindings_version": buildtime.VERSION(),
		"lang":             "go",
		"publisher":        "superb-ai",
		"lang_version":     runtime.Version(),
		"platform":         runtime.GOOS + "-" + runtime.GOARCH,
	})
	if err != nil {
		return "{}"
	}
	return ua
}

// Headers returns the headers sent with a request of the method.
//
// POST, PUT and PATCH also carry Content-Type and a fresh Idempotency-Key.
func (r *Requestor) Headers(method string) http.Header {
	token := base64.StdEncoding.EncodeToString(
		[]byte(r.creds.TeamName + ":" + r.creds.AccessKey),
	)
	h := http.Header{}
	h.Set("X-SPB-Client-User-Agent", clientUserAgent())
	h.Set("User-Agent", UserAgent())
	h.Set("X-Api-Key", r.creds.AccessKey)
	h.Set("X-Tenant-Id", r.creds.TeamName)
	h.Set("Authorization", "Basic "+token)

	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		h.Set("Content-Type", contentTypeJSON)
		h.Set("Idempotency-Key", uuid.NewString())
	}
	return h
}

// Call requests the operation of the endpoints.
//
// The path is resolved from pathParams before any I/O.
func (r *Requestor) Call(
	ctx context.Context, e Endpoints, op string, pathParams map[string]any, params any, header http.Header,
) (any, error) {
	path, err := e.Resolve(op, pathParams)
	if err != nil {
		return nil, err
	}
	method, err := e.Method(op)
	if err != nil {
		return nil, err
	}
	return r.Request(ctx, method, path, params, header)
}

// Request issues an API call.
//
// # Args
//
// - ctx: context
//
// - method: HTTP method. GET, DELETE, POST, PUT or PATCH.
//
// - path: path below the API base.
//
// - params: query parameters for GET and DELETE, body for others.
// map[string]any, *object.Entries, Typed or nil.
//
// - header: headers to be sent. They are merged over the default headers.
//
// # Returns
//
// - any: the decoded response body, with objects as *object.Entries. nil for empty body.
//
// - error: *errors.Error of the taxonomy.
func (r *Requestor) Request(
	ctx context.Context, method string, path string, params any, header http.Header,
) (any, error) {
	if r.creds.AccessKey == "" {
		return nil, xe.Authentication("No access key was provided.")
	}
	if r.creds.TeamName == "" {
		return nil, xe.Authentication("No team name was provided.")
	}
	if r.creds.APIBase == "" {
		return nil, xe.Authentication("No API base was provided.")
	}

	method = strings.ToUpper(method)
	url := strings.TrimSuffix(r.creds.APIBase, "/") + path

	h := r.Headers(method)
	for k, vs := range header {
		h.Del(k)
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	var body []byte
	switch method {
	case http.MethodGet, http.MethodDelete:
		if q := EncodeQuery(params); q != "" {
			if strings.Contains(url, "?") {
				url += "&" + q
			} else {
				url += "?" + q
			}
		}
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		switch ct := h.Get("Content-Type"); ct {
		case contentTypeJSON:
			b, err := encodeJSON(params)
			if err != nil {
				return nil, xe.WrapWithNote("encoding request body", err)
			}
			body = b
		case contentTypeForm:
			body = []byte(EncodeQuery(params))
		default:
			return nil, xe.Connection(fmt.Sprintf("Unrecognized header Content-Type %s.", ct), false, nil)
		}
	default:
		return nil, xe.Connection(fmt.Sprintf("Unrecognized HTTP method %s.", method), false, nil)
	}

	r.logger.Infoj(log.JSON{"message": "Superb AI API Request", "method": method, "path": url})
	r.logger.Debugj(log.JSON{"message": "request body", "body": string(body)})

	resp, err := r.transport.Send(ctx, &transport.Request{
		Method: method, URL: url, Header: h, Body: body,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Infoj(log.JSON{
		"message": "Superb AI API response", "path": url, "response_code": resp.StatusCode,
	})
	r.logger.Debugj(log.JSON{"message": "API response body", "body": string(resp.Body)})

	return r.interpret(resp)
}

func (r *Requestor) interpret(resp *transport.Response) (any, error) {
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		errType, message := parseErrorBody(resp.Body)
		r.logger.Infoj(log.JSON{
			"message":       "Superb AI API error response",
			"error_code":    resp.StatusCode,
			"error_type":    errType,
			"error_message": message,
		})
		return nil, xe.FromStatus(resp.StatusCode, errType, message, resp.Body)
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil
	}
	v, err := object.Decode(resp.Body)
	if err != nil {
		return nil, xe.API(
			fmt.Sprintf(
				"Invalid response body from API: %s (HTTP response code was %d)",
				resp.Body, resp.StatusCode,
			),
			resp.StatusCode, resp.Body,
		)
	}
	return v, nil
}

// parseErrorBody reads the error type and message from an error response.
//
// The message is "detail", or "detail.message" when detail is an object.
// A body which is not a JSON object is the message as is.
func parseErrorBody(body []byte) (errType string, message string) {
	v, err := object.Decode(body)
	if err != nil {
		return "", string(body)
	}
	e, ok := v.(*object.Entries)
	if !ok {
		if s, ok := v.(string); ok {
			return "", s
		}
		return "", string(body)
	}

	if t, ok := e.Get("type"); ok {
		errType, _ = t.(string)
	}
	detail, _ := e.Get("detail")
	switch d := detail.(type) {
	case string:
		message = d
	case *object.Entries:
		if m, ok := d.Get("message"); ok {
			message, _ = m.(string)
		}
	case nil:
	default:
		message = fmt.Sprint(d)
	}
	return errType, message
}
