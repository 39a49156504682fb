package errors

import (
	"errors"
	"fmt"
	"strings"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

type Verbose interface {
	Verbose() string
}

// CUIError is an error to be shown to users of the command.
type CUIError interface {
	error
	Verbose
}

type cuierror struct {
	summary     string
	verbose     string
	printDetail func(summary string) (string, error)
	base        error
}

func (ce *cuierror) Unwrap() error {
	return ce.base
}

func (ce *cuierror) Error() string {
	if ce.printDetail == nil {
		return ce.summary
	}
	message, err := ce.printDetail(ce.summary)
	if err != nil {
		message = fmt.Sprintf(
			"%s\n(building detailed message causes error: %s)",
			ce.summary, err.Error(),
		)
	}
	return message
}

func (ce *cuierror) Verbose() string {
	message := []string{ce.Error()}
	if ce.verbose != "" {
		message = append(message, " ("+ce.verbose+") ")
	}

	switch base := ce.base.(type) {
	case nil:
	case Verbose:
		message = append(message, "caused by: ", base.Verbose())
	default:
		message = append(message, "caused by: ", base.Error())
	}
	return strings.Join(message, "\n")
}

type CuiErrorOption func(cerr *cuierror) *cuierror

func NewCuiError(
	summary string,
	options ...CuiErrorOption,
) CUIError {
	err := &cuierror{summary: summary}
	for _, o := range options {
		err = o(err)
	}
	return err
}

func WithVerbose(verbose string) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.verbose = verbose
		return cerr
	}
}

func WithDetail(printer func(summary string) (string, error)) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.printDetail = printer
		return cerr
	}
}

func WithCause(err error) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.base = err
		return cerr
	}
}

// Explain turns errors of the client into CUIError with a hint for users.
//
// nil and errors already explained are returned as they are.
func Explain(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(CUIError); ok {
		return err
	}

	xerr := new(xe.Error)
	if !errors.As(err, &xerr) {
		return err
	}

	hint := ""
	switch xerr.Kind {
	case xe.KindAuthentication:
		hint = "Check your access key and team name. `curate configure` saves them into a profile."
	case xe.KindNotFound:
		hint = "Check the name or the id. It may have been deleted."
	case xe.KindQuerySyntax:
		hint = "The search query cannot be parsed."
	case xe.KindConflict:
		hint = "The resource is in use, or already exists."
	case xe.KindTooManyRequest:
		hint = "Too many requests. Try again later."
	case xe.KindRetryable, xe.KindAPIConnection:
		hint = "Could not reach the server. Check your network and try again."
	default:
		return err
	}

	return NewCuiError(
		string(xerr.Kind),
		WithCause(err),
		WithVerbose(xerr.Message),
		WithDetail(func(summary string) (string, error) {
			return fmt.Sprintf("%s: %s\n%s", summary, xerr.Message, hint), nil
		}),
	)
}
