package object

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

// Decode parses JSON, keeping the key order of objects.
//
// Objects become *Entries and arrays []any. Integers in the int64 range become int64,
// and other numbers float64.
func Decode(data []byte) (any, error) {
	iter := jsoniter.ParseBytes(jsonAPI, data)
	v := readValue(iter)
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, xe.Wrap(iter.Error)
	}
	if next := iter.WhatIsNext(); next != jsoniter.InvalidValue {
		return nil, xe.New("object: trailing data after JSON value")
	}
	return v, nil
}

func readValue(iter *jsoniter.Iterator) any {
	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		e := NewEntries()
		iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
			e.Set(field, readValue(it))
			return it.Error == nil
		})
		return e
	case jsoniter.ArrayValue:
		list := []any{}
		iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			list = append(list, readValue(it))
			return it.Error == nil
		})
		return list
	case jsoniter.StringValue:
		return iter.ReadString()
	case jsoniter.NumberValue:
		return readNumber(iter)
	case jsoniter.BoolValue:
		return iter.ReadBool()
	case jsoniter.NilValue:
		iter.ReadNil()
		return nil
	default:
		iter.ReportError("object.Decode", "unexpected token")
		return nil
	}
}

func readNumber(iter *jsoniter.Iterator) any {
	n := iter.ReadNumber()
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		iter.ReportError("object.Decode", err.Error())
		return nil
	}
	return f
}
