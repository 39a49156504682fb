package object

import (
	"errors"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/utils/maps"
)

var (
	// ErrFieldNotFound is returned when the field is absent.
	ErrFieldNotFound = errors.New("field not found")

	// ErrMalformedAccess is returned when the access itself is wrong:
	// an empty field name, or a typed access to a value of another type.
	ErrMalformedAccess = errors.New("malformed field access")
)

const (
	// TypeField is the field which tells the object type of a mapping on the wire.
	TypeField = "_object_type"

	IDField = "id"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Entries is an insertion-ordered mapping of raw fields.
type Entries = maps.OrderedMap[string, any]

// NewEntries returns empty Entries.
func NewEntries() *Entries {
	return maps.NewOrderedMap[string, any]()
}

// Typed is implemented by every materialized object:
// *Object itself and the kinds which embed it.
type Typed interface {
	Base() *Object
}

// Object is an ordered field mapping with a schema.
//
// The field set is exactly the keys present. A field is either present or absent.
type Object struct {
	schema *Schema
	reg    *Registry
	fields *Entries
}

var _ Typed = &Object{}

func (o *Object) Base() *Object {
	return o
}

// Schema returns the schema of the object. It is nil for a generic object.
func (o *Object) Schema() *Schema {
	return o.schema
}

func (o *Object) Registry() *Registry {
	return o.reg
}

// Type returns the object-type tag.
//
// For a generic object, it is the value of the `_object_type` field if any.
func (o *Object) Type() string {
	if o.schema != nil {
		return o.schema.Type
	}
	t, _ := Field[string](o, TypeField)
	return t
}

// ID returns the identity of the object, or "" if it is not persisted yet.
func (o *Object) ID() string {
	id, _ := Field[string](o, IDField)
	return id
}

// Get returns the value of the field or property.
//
// # Returns
//
// - any: the value. Nested objects are Typed.
//
// - error: ErrFieldNotFound when absent, ErrMalformedAccess for an empty name.
func (o *Object) Get(field string) (any, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty field name", ErrMalformedAccess)
	}
	if o.schema != nil {
		if p, ok := o.schema.Properties[field]; ok {
			return p(o), nil
		}
	}
	v, ok := o.fields.Get(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, o.schema, field)
	}
	return v, nil
}

// Lookup is Get without an error. Properties are not consulted.
func (o *Object) Lookup(field string) (any, bool) {
	return o.fields.Get(field)
}

func (o *Object) Has(field string) bool {
	return o.fields.Has(field)
}

// Set stores the value into the field, coercing it by the schema.
func (o *Object) Set(field string, value any) error {
	if field == "" {
		return fmt.Errorf("%w: empty field name", ErrMalformedAccess)
	}
	v, err := o.coerce(field, value, o.fields)
	if err != nil {
		return err
	}
	o.fields.Set(field, v)
	return nil
}

func (o *Object) Delete(field string) {
	o.fields.Delete(field)
}

func (o *Object) Keys() []string {
	return o.fields.Keys()
}

func (o *Object) Len() int {
	return o.fields.Len()
}

// ToFlatMap returns the fields as a map. Nested objects are left as they are.
func (o *Object) ToFlatMap() map[string]any {
	return o.fields.ToMap()
}

// Flatten returns the deep form of the object:
// a value made of scalars, []any and map[string]any only.
//
// When the schema has the raw property, it is the flattened raw form.
func (o *Object) Flatten() any {
	if raw, ok := o.raw(); ok {
		return Flatten(raw)
	}
	ret := make(map[string]any, o.fields.Len())
	for k, v := range o.fields.Iter() {
		ret[k] = Flatten(v)
	}
	return ret
}

func (o *Object) raw() (any, bool) {
	if o.schema == nil {
		return nil, false
	}
	p, ok := o.schema.Properties[RawProperty]
	if !ok {
		return nil, false
	}
	return p(o), true
}

// Load replaces all fields of the object.
//
// Existing fields are cleared first, then the given fields are stored with coercion.
// The identity of the object (the pointer) does not change.
//
// # Args
//
// - fields: map[string]any, *Entries or Typed.
func (o *Object) Load(fields any) error {
	entries, ok := AsEntries(fields)
	if !ok {
		return fmt.Errorf("%w: cannot load %T into an object", ErrMalformedAccess, fields)
	}
	coerced := NewEntries()
	for k, v := range entries.Iter() {
		cv, err := o.coerce(k, v, entries)
		if err != nil {
			return err
		}
		coerced.Set(k, cv)
	}
	o.fields = coerced
	return nil
}

func (o *Object) coerce(field string, value any, siblings *Entries) (any, error) {
	if value == nil {
		return nil, nil
	}
	if o.schema != nil {
		if s, ok := o.schema.Fields[field]; ok {
			return o.reg.Materialize(value, s)
		}
		if d, ok := o.schema.Discriminators[field]; ok {
			tag, _ := siblings.Get(d.Field)
			s, err := d.Resolve(tag)
			if err != nil {
				return nil, err
			}
			if err := matchVariant(d, tag, value, s); err != nil {
				return nil, err
			}
			return o.reg.Materialize(value, s)
		}
		for polymorphic, d := range o.schema.Discriminators {
			if d.Field != field {
				continue
			}
			current, ok := siblings.Get(polymorphic)
			if !ok {
				continue
			}
			if _, typed := current.(Typed); !typed {
				continue
			}
			s, err := d.Resolve(value)
			if err != nil {
				return nil, err
			}
			if err := matchVariant(d, value, current, s); err != nil {
				return nil, err
			}
		}
	}
	return o.reg.Materialize(value, nil)
}

// matchVariant checks a typed value is of the schema its tag resolves to.
func matchVariant(d Discriminator, tag any, value any, resolved *Schema) error {
	t, ok := value.(Typed)
	if !ok {
		return nil
	}
	if actual := t.Base().Schema(); actual != resolved {
		return xe.Validation("%s is %v, but the value is %s", d.Field, tag, actual)
	}
	return nil
}

// MarshalJSON writes the object in field order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if raw, ok := o.raw(); ok {
		return jsonAPI.Marshal(Flatten(raw))
	}

	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	first := true
	for k, v := range o.fields.Iter() {
		if !first {
			stream.WriteMore()
		}
		first = false
		stream.WriteObjectField(k)
		stream.WriteVal(v)
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func (o *Object) String() string {
	b, err := o.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<%s: %s>", o.schema, err)
	}
	return string(b)
}

// Field reads the field as T.
//
// A value of other type is ErrMalformedAccess.
func Field[T any](o *Object, field string) (T, error) {
	v, err := o.Get(field)
	if err != nil {
		return *new(T), err
	}
	t, ok := v.(T)
	if !ok {
		return *new(T), fmt.Errorf(
			"%w: %s.%s is %T, not %T", ErrMalformedAccess, o.schema, field, v, *new(T),
		)
	}
	return t, nil
}

// FieldOr reads the field as T, or returns def when absent or of other type.
func FieldOr[T any](o *Object, field string, def T) T {
	v, err := Field[T](o, field)
	if err != nil {
		return def
	}
	return v
}

// Flatten converts a value into scalars, []any and map[string]any.
//
// Typed objects are flattened by their own Flatten.
func Flatten(v any) any {
	switch vv := v.(type) {
	case Typed:
		return vv.Base().Flatten()
	case []any:
		ret := make([]any, len(vv))
		for i := range vv {
			ret[i] = Flatten(vv[i])
		}
		return ret
	case *Entries:
		ret := make(map[string]any, vv.Len())
		for k, v := range vv.Iter() {
			ret[k] = Flatten(v)
		}
		return ret
	case map[string]any:
		ret := make(map[string]any, len(vv))
		for k, v := range vv {
			ret[k] = Flatten(v)
		}
		return ret
	}
	return v
}

// AsEntries views a mapping-like value as Entries.
//
// For map[string]any, keys are ordered lexically.
// For Typed, it is a shallow copy of its fields.
func AsEntries(v any) (*Entries, bool) {
	switch vv := v.(type) {
	case *Entries:
		return vv, true
	case Typed:
		return vv.Base().fields.Clone(), true
	case map[string]any:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e := NewEntries()
		for _, k := range keys {
			e.Set(k, vv[k])
		}
		return e, true
	}
	return nil, false
}
