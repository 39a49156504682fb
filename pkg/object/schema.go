package object

import (
	"fmt"
	"sort"
	"strings"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
)

// Property is a field computed from the other fields on access.
type Property func(*Object) any

// RawProperty is the name of the property which gives the canonical wire form of an object.
//
// When a schema declares it, Flatten of the object yields the property's value.
const RawProperty = "raw"

// Schema declares how an object of a kind is constructed.
type Schema struct {
	// Type is the object-type tag of the kind, like "dataset" or "box".
	Type string

	// Fields maps a field name to the schema its value is constructed as.
	Fields map[string]*Schema

	// Discriminators maps a polymorphic field name to the discriminator
	// which selects its schema from a sibling field.
	Discriminators map[string]Discriminator

	// Required lists groups of field names.
	//
	// A fresh object (one without id) needs at least one field of each group
	// to be present, non-nil and non-empty.
	Required [][]string

	// Properties are computed fields. They shadow stored fields of the same name.
	Properties map[string]Property

	// FromRaw rewrites a mapping in wire form into field form.
	//
	// It is applied when a plain mapping is materialized into this schema.
	FromRaw func(raw *Entries) (*Entries, error)
}

func (s *Schema) String() string {
	if s == nil {
		return "(generic)"
	}
	return s.Type
}

func (s *Schema) validate(o *Object) error {
	if s == nil {
		return nil
	}
	for _, group := range s.Required {
		satisfied := false
		for _, f := range group {
			if v, ok := o.fields.Get(f); ok && !isEmpty(v) {
				satisfied = true
				break
			}
		}
		if satisfied {
			continue
		}
		if len(group) == 1 {
			return xe.Validation("%s: %s is required", s.Type, group[0])
		}
		return xe.Validation(
			"%s: at least one of %s is required", s.Type, strings.Join(group, ", "),
		)
	}
	return nil
}

func isEmpty(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return vv == ""
	}
	return false
}

// Discriminator selects the schema of a polymorphic field
// by the value of its sibling field.
type Discriminator struct {
	// Field is the name of the sibling field holding the tag.
	Field string

	// Variants maps a tag to the schema.
	Variants map[string]*Schema
}

// Resolve returns the schema for the tag.
//
// An unknown tag is a validation error. There is no fallback.
func (d Discriminator) Resolve(tag any) (*Schema, error) {
	t, ok := tag.(string)
	if !ok || t == "" {
		return nil, xe.Validation("%s is required to resolve the value type", d.Field)
	}
	s, ok := d.Variants[t]
	if !ok {
		return nil, xe.Validation("unknown %s: %s", d.Field, t)
	}
	return s, nil
}

// Tags returns the tags the discriminator knows.
func (d Discriminator) Tags() []string {
	tags := make([]string, 0, len(d.Variants))
	for t := range d.Variants {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (d Discriminator) String() string {
	return fmt.Sprintf("Discriminator{%s: %v}", d.Field, d.Tags())
}
