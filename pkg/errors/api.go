package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an *Error.
type Kind string

const (
	// client-side misuse, detected before any request.
	KindValidation     Kind = "validation error"
	KindAuthentication Kind = "authentication error"
	KindBadRequest     Kind = "bad request"
	KindQuerySyntax    Kind = "query syntax error"
	KindNotFound       Kind = "not found"
	KindConflict       Kind = "conflict"
	KindTooManyRequest Kind = "too many requests"
	KindSystem         Kind = "system error"
	KindAPI            Kind = "api error"
	KindAPIConnection  Kind = "api connection error"

	// upload retry budget is exhausted.
	KindRetryable Kind = "retryable error"
)

// QuerySyntaxType is the error type the server reports along with 400
// when a search query cannot be parsed.
const QuerySyntaxType = "QUERY_SYNTAX"

// Error is the error type of every failure reported by the client.
//
// Test it with errors.Is against the sentinels below,
// or errors.As to read its details.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode is the HTTP status, if the error comes from a response.
	StatusCode int

	// Type is the error type the server reported, if any.
	Type string

	// Body is the raw response body, if any.
	Body []byte

	// ShouldRetry is meaningful for KindAPIConnection.
	//
	// It is true for timeouts and connection failures, false for TLS verification failures.
	ShouldRetry bool

	// Attempts is meaningful for KindRetryable.
	Attempts int

	Err error
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAuthentication  = &Error{Kind: KindAuthentication}
	ErrBadRequest      = &Error{Kind: KindBadRequest}
	ErrQuerySyntax     = &Error{Kind: KindQuerySyntax}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequest}
	ErrSystem          = &Error{Kind: KindSystem}
	ErrAPI             = &Error{Kind: KindAPI}
	ErrAPIConnection   = &Error{Kind: KindAPIConnection}
	ErrRetryable       = &Error{Kind: KindRetryable}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "<empty message>"
	}
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "%s: %s", e.Kind, msg)
	if e.StatusCode != 0 {
		fmt.Fprintf(sb, " (status: %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(sb, ": %s", e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
//
// A query syntax error is also a bad request.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindQuerySyntax && t.Kind == KindBadRequest
}

// Validation creates a validation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Authentication creates an authentication error which is detected locally.
func Authentication(message string) error {
	return &Error{Kind: KindAuthentication, Message: message}
}

// Connection creates an error for a failure below HTTP.
func Connection(message string, shouldRetry bool, cause error) error {
	return &Error{
		Kind:        KindAPIConnection,
		Message:     message,
		ShouldRetry: shouldRetry,
		Err:         cause,
	}
}

// Retryable creates an error telling that an upload failed
// even after `attempts` tries.
//
// statusCode is the last status observed, or 0 if the last try had no response.
func Retryable(attempts int, statusCode int, cause error) error {
	msg := fmt.Sprintf("failed to upload after %d attempts", attempts)
	if cause != nil {
		msg += " due to a network error"
	}
	return &Error{
		Kind:       KindRetryable,
		Message:    msg,
		StatusCode: statusCode,
		Attempts:   attempts,
		Err:        cause,
	}
}

// FromStatus maps a non-2xx response onto the error taxonomy.
//
// # Args
//
// - status: HTTP status code.
//
// - errType: error type in the response body. Empty if none.
//
// - message: human readable message in the response body.
//
// - body: raw response body.
func FromStatus(status int, errType string, message string, body []byte) *Error {
	kind := KindAPI
	switch status {
	case http.StatusBadRequest:
		kind = KindBadRequest
		if errType == QuerySyntaxType {
			kind = KindQuerySyntax
		}
	case http.StatusUnauthorized:
		kind = KindAuthentication
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusTooManyRequests:
		kind = KindTooManyRequest
	case http.StatusInternalServerError:
		kind = KindSystem
	}
	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		Type:       errType,
		Body:       body,
	}
}

// API creates an error for a response the client cannot make use of.
func API(message string, status int, body []byte) error {
	return &Error{Kind: KindAPI, Message: message, StatusCode: status, Body: body}
}

// NotFound creates a not-found error which is detected without a response,
// like a lookup by name which matches nothing.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}
