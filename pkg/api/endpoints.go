package api

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

// operations every resource may have.
const (
	OpFetch    = "fetch"
	OpCreate   = "create"
	OpModify   = "modify"
	OpDelete   = "delete"
	OpPaginate = "paginate"
)

var defaultMethods = map[string]string{
	OpFetch:    http.MethodGet,
	OpCreate:   http.MethodPost,
	OpModify:   http.MethodPut,
	OpDelete:   http.MethodDelete,
	OpPaginate: http.MethodGet,
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Endpoints is the set of endpoints of a resource.
type Endpoints struct {
	// Paths maps an operation to its path template,
	// like "/curate/dataset-core/datasets/{dataset_id}/images/{id}/".
	Paths map[string]string

	// Methods overrides the HTTP method of operations.
	Methods map[string]string
}

// Method returns the HTTP method of the operation.
//
// An override in Methods wins. Otherwise fetch is GET, create is POST,
// modify is PUT, delete is DELETE and paginate is GET.
func (e Endpoints) Method(op string) (string, error) {
	if m, ok := e.Methods[op]; ok {
		return m, nil
	}
	if m, ok := defaultMethods[op]; ok {
		return m, nil
	}
	return "", xe.Validation("no HTTP method is known for the operation %q", op)
}

// Resolve fills the path template of the operation with params.
//
// A placeholder whose parameter is missing, nil or "" is a validation error.
func (e Endpoints) Resolve(op string, params map[string]any) (string, error) {
	tmpl, ok := e.Paths[op]
	if !ok {
		return "", xe.Validation("the operation %q is not supported", op)
	}

	var missing []string
	path := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == nil || v == "" {
			missing = append(missing, name)
			return m
		}
		return url.PathEscape(pathValue(v))
	})
	if len(missing) != 0 {
		return "", xe.Validation(
			"%s is required to %s (%s)", strings.Join(missing, ", "), op, tmpl,
		)
	}
	return path, nil
}

func pathValue(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case fmt.Stringer:
		return vv.String()
	}
	return fmt.Sprint(v)
}
