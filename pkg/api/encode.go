package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/superb-ai/spb-curate-go/pkg/object"
)

// EncodeQuery encodes parameters into a query string, keeping their order.
//
//   - nil values are skipped.
//   - bools are "true" or "false".
//   - time.Time is Unix seconds.
//   - lists become repeated `key[]=value`.
func EncodeQuery(params any) string {
	entries, ok := object.AsEntries(params)
	if !ok {
		return ""
	}
	parts := []string{}
	add := func(k string, v any) {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(queryValue(v)))
	}
	for k, v := range entries.Iter() {
		switch vv := v.(type) {
		case nil:
			continue
		case *time.Time:
			if vv != nil {
				add(k, *vv)
			}
		case []any:
			for _, item := range vv {
				add(k+"[]", item)
			}
		case []string:
			for _, item := range vv {
				add(k+"[]", item)
			}
		default:
			add(k, v)
		}
	}
	return strings.Join(parts, "&")
}

func queryValue(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case time.Time:
		return strconv.FormatInt(vv.Unix(), 10)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func encodeJSON(params any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	return jsonAPI.Marshal(object.Flatten(params))
}
