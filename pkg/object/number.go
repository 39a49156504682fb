package object

import (
	"encoding/json"
	"fmt"
)

// Number reads a numeric field as float64.
//
// Any Go numeric type and json.Number are accepted, since objects keep
// numbers as they are given.
func Number(o *Object, field string) (float64, error) {
	v, err := o.Get(field)
	if err != nil {
		return 0, err
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s is %T, not a number", ErrMalformedAccess, o.schema, field, v)
	}
	return f, nil
}

// ToFloat converts a numeric value into float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
