package object

import (
	"fmt"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

// Factory wraps a constructed object into its concrete kind.
type Factory func(*Object) Typed

type entry struct {
	schema  *Schema
	factory Factory
}

// Registry knows the kinds by their object-type tag.
//
// It is consulted when no static field type or discriminator applies,
// and it wraps every object constructed through it into its kind.
type Registry struct {
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a kind.
//
// # Args
//
// - schema: schema of the kind. Its Type is the key.
//
// - factory: wraps an object of the schema. If nil, the object is left as *Object.
//
// # Returns
//
// - error: when the schema has no Type, or the Type is taken by another schema.
func (r *Registry) Register(schema *Schema, factory Factory) error {
	if schema == nil || schema.Type == "" {
		return xe.New("object: registering a schema without type")
	}
	if e, ok := r.entries[schema.Type]; ok && e.schema != schema {
		return fmt.Errorf("object: type %q is already registered", schema.Type)
	}
	r.entries[schema.Type] = entry{schema: schema, factory: factory}
	return nil
}

// Lookup returns the schema registered for the tag.
func (r *Registry) Lookup(tag string) (*Schema, bool) {
	e, ok := r.entries[tag]
	if !ok {
		return nil, false
	}
	return e.schema, true
}

func (r *Registry) wrap(o *Object) Typed {
	if o.schema == nil {
		return o
	}
	e, ok := r.entries[o.schema.Type]
	if !ok || e.schema != o.schema || e.factory == nil {
		return o
	}
	return e.factory(o)
}

func (r *Registry) newObject(schema *Schema) *Object {
	return &Object{schema: schema, reg: r, fields: NewEntries()}
}

type constructOption struct {
	id string
}

type ConstructOption func(*constructOption) *constructOption

// WithID gives the identity to the object being constructed.
//
// An object with identity is treated as persisted: required fields are not checked.
func WithID(id string) ConstructOption {
	return func(co *constructOption) *constructOption {
		co.id = id
		return co
	}
}

// Construct builds an object of the schema from explicit fields.
//
// Fields are coerced in the way Load does.
// When the object has no identity, the schema's required fields are checked.
//
// # Args
//
// - schema: schema of the object. nil for a generic object.
//
// - fields: map[string]any, *Entries or Typed. nil means no fields.
//
// # Returns
//
// - Typed: the object, wrapped into its kind.
//
// - error: validation error or coercion error.
func (r *Registry) Construct(schema *Schema, fields any, options ...ConstructOption) (Typed, error) {
	opt := &constructOption{}
	for _, o := range options {
		opt = o(opt)
	}

	o := r.newObject(schema)
	if fields != nil {
		if err := o.Load(fields); err != nil {
			return nil, err
		}
	}
	if opt.id != "" {
		o.fields.Set(IDField, opt.id)
	}
	if o.ID() == "" {
		if err := schema.validate(o); err != nil {
			return nil, err
		}
	}
	return r.wrap(o), nil
}

// Materialize converts a raw value into typed objects, recursively.
//
//   - A list is materialized element by element with the same hint. Order is kept.
//   - A plain mapping is constructed as the hint schema. Without hint, the schema
//     registered for its `_object_type` is used, and a generic object otherwise.
//   - Typed objects and scalars are returned as they are.
//
// Materializing an already materialized value changes nothing.
func (r *Registry) Materialize(value any, hint *Schema) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case Typed:
		return v, nil
	case []any:
		ret := make([]any, len(v))
		for i := range v {
			m, err := r.Materialize(v[i], hint)
			if err != nil {
				return nil, err
			}
			ret[i] = m
		}
		return ret, nil
	}

	entries, ok := AsEntries(value)
	if !ok {
		return value, nil
	}

	schema := hint
	if schema == nil {
		if tag, ok := entries.Get(TypeField); ok {
			if t, ok := tag.(string); ok {
				schema, _ = r.Lookup(t)
			}
		}
	}
	if schema != nil && schema.FromRaw != nil {
		native, err := schema.FromRaw(entries)
		if err != nil {
			return nil, err
		}
		entries = native
	}

	o := r.newObject(schema)
	if err := o.Load(entries); err != nil {
		return nil, err
	}
	return r.wrap(o), nil
}

// MaterializeAs materializes the value as the schema and asserts it into T.
func MaterializeAs[T Typed](r *Registry, value any, schema *Schema) (T, error) {
	m, err := r.Materialize(value, schema)
	if err != nil {
		return *new(T), err
	}
	t, ok := m.(T)
	if !ok {
		return *new(T), fmt.Errorf("%w: materialized %T, not %T", ErrMalformedAccess, m, *new(T))
	}
	return t, nil
}
