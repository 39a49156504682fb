package object_test

import (
	"errors"
	"reflect"
	"testing"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
	"github.com/superb-ai/spb-curate-go/pkg/utils/try"
)

type circle struct{ *object.Object }
type square struct{ *object.Object }
type drawing struct{ *object.Object }
type label struct{ *object.Object }

var (
	circleSchema = &object.Schema{Type: "circle", Required: [][]string{{"r"}}}
	squareSchema = &object.Schema{
		Type: "square",
		// on the wire, a square is {"side": [length]}
		FromRaw: func(raw *object.Entries) (*object.Entries, error) {
			native := object.NewEntries()
			side, _ := raw.Get("side")
			l, ok := side.([]any)
			if !ok || len(l) != 1 {
				return nil, xe.Validation("broken square")
			}
			native.Set("length", l[0])
			return native, nil
		},
		Properties: map[string]object.Property{
			object.RawProperty: func(o *object.Object) any {
				l, _ := o.Lookup("length")
				return map[string]any{"side": []any{l}}
			},
		},
	}
	labelSchema   = &object.Schema{Type: "label"}
	drawingSchema = &object.Schema{
		Type:   "drawing",
		Fields: map[string]*object.Schema{"labels": labelSchema},
		Discriminators: map[string]object.Discriminator{
			"shape": {
				Field: "shape_type",
				Variants: map[string]*object.Schema{
					"circle": circleSchema,
					"square": squareSchema,
				},
			},
		},
		Required: [][]string{{"title"}, {"author_id", "author_name"}},
	}
)

func newRegistry(t *testing.T) *object.Registry {
	t.Helper()
	reg := object.NewRegistry()
	for _, r := range []struct {
		schema  *object.Schema
		factory object.Factory
	}{
		{circleSchema, func(o *object.Object) object.Typed { return &circle{o} }},
		{squareSchema, func(o *object.Object) object.Typed { return &square{o} }},
		{labelSchema, func(o *object.Object) object.Typed { return &label{o} }},
		{drawingSchema, func(o *object.Object) object.Typed { return &drawing{o} }},
	} {
		if err := reg.Register(r.schema, r.factory); err != nil {
			t.Fatal(err)
		}
	}
	return reg
}

func drawingPayload() map[string]any {
	return map[string]any{
		"_object_type": "drawing",
		"id":           "drawing-1",
		"title":        "sunset",
		"shape_type":   "square",
		"shape":        map[string]any{"side": []any{4.0}},
		"labels": []any{
			map[string]any{"name": "sky"},
			map[string]any{"name": "sea"},
		},
		"metadata": map[string]any{"iso": 100.0, "tags": []any{"a", "b"}},
		"note":     nil,
		"empty":    []any{},
	}
}

func TestMaterialize(t *testing.T) {
	t.Run("a mapping is typed by its object type tag", func(t *testing.T) {
		reg := newRegistry(t)
		got := try.To(reg.Materialize(drawingPayload(), nil)).OrFatal(t)

		d, ok := got.(*drawing)
		if !ok {
			t.Fatalf("unexpected type: %T", got)
		}
		if shape, _ := d.Lookup("shape"); reflect.TypeOf(shape) != reflect.TypeOf(&square{}) {
			t.Errorf("shape is %T", shape)
		}
		labels, _ := d.Lookup("labels")
		ls, ok := labels.([]any)
		if !ok || len(ls) != 2 {
			t.Fatalf("labels: %#v", labels)
		}
		for _, l := range ls {
			if _, ok := l.(*label); !ok {
				t.Errorf("label is %T", l)
			}
		}
		if first := ls[0].(*label); object.FieldOr(first.Object, "name", "") != "sky" {
			t.Errorf("labels are reordered: %v", ls)
		}
		if md, _ := d.Lookup("metadata"); reflect.TypeOf(md) != reflect.TypeOf(&object.Object{}) {
			t.Errorf("untyped mapping should be a generic object, but %T", md)
		}
		if note, ok := d.Lookup("note"); !ok || note != nil {
			t.Errorf("null should stay null: (%v, %v)", note, ok)
		}
		if empty, ok := d.Lookup("empty"); !ok || !reflect.DeepEqual(empty, []any{}) {
			t.Errorf("empty list should stay empty list: (%#v, %v)", empty, ok)
		}
	})

	t.Run("flattening gives back the payload", func(t *testing.T) {
		reg := newRegistry(t)
		payload := drawingPayload()
		got := try.To(reg.Materialize(payload, nil)).OrFatal(t)

		if flat := object.Flatten(got); !reflect.DeepEqual(flat, payload) {
			t.Errorf("round trip: (actual, expected) = (%#v, %#v)", flat, payload)
		}
	})

	t.Run("materializing twice changes nothing", func(t *testing.T) {
		reg := newRegistry(t)
		once := try.To(reg.Materialize(drawingPayload(), nil)).OrFatal(t)
		twice := try.To(reg.Materialize(once, nil)).OrFatal(t)
		if once != twice {
			t.Errorf("re-materialized object is another instance")
		}

		list := try.To(reg.Materialize([]any{once}, drawingSchema)).OrFatal(t)
		if list.([]any)[0] != once {
			t.Errorf("element in list is wrapped again")
		}
	})

	t.Run("a hint wins against the tag", func(t *testing.T) {
		reg := newRegistry(t)
		got := try.To(reg.Materialize(map[string]any{"_object_type": "drawing", "r": 1}, circleSchema)).OrFatal(t)
		if _, ok := got.(*circle); !ok {
			t.Errorf("unexpected type: %T", got)
		}
	})

	t.Run("an unknown tag gives a generic object", func(t *testing.T) {
		reg := newRegistry(t)
		got := try.To(reg.Materialize(map[string]any{"_object_type": "triangle"}, nil)).OrFatal(t)
		o, ok := got.(*object.Object)
		if !ok {
			t.Fatalf("unexpected type: %T", got)
		}
		if o.Type() != "triangle" {
			t.Errorf("type: %s", o.Type())
		}
	})

	t.Run("scalars and nil are returned as they are", func(t *testing.T) {
		reg := newRegistry(t)
		for _, v := range []any{nil, "text", 1.5, true} {
			if got := try.To(reg.Materialize(v, circleSchema)).OrFatal(t); got != v {
				t.Errorf("(actual, expected) = (%v, %v)", got, v)
			}
		}
	})
}

func TestDiscriminator(t *testing.T) {
	for tag, want := range map[string]reflect.Type{
		"circle": reflect.TypeOf(&circle{}),
		"square": reflect.TypeOf(&square{}),
	} {
		t.Run("tag "+tag+" yields its registered type", func(t *testing.T) {
			reg := newRegistry(t)
			shape := map[string]any{"r": 1.0}
			if tag == "square" {
				shape = map[string]any{"side": []any{1.0}}
			}
			payload := map[string]any{"id": "x", "shape_type": tag, "shape": shape}
			d := try.To(object.MaterializeAs[*drawing](reg, payload, drawingSchema)).OrFatal(t)
			got, _ := d.Lookup("shape")
			if reflect.TypeOf(got) != want {
				t.Errorf("(actual, expected) = (%T, %v)", got, want)
			}
		})
	}

	t.Run("an unknown tag is a validation error", func(t *testing.T) {
		reg := newRegistry(t)
		payload := map[string]any{"id": "x", "shape_type": "hexagon", "shape": map[string]any{}}
		_, err := reg.Materialize(payload, drawingSchema)
		if !errors.Is(err, xe.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a missing tag is a validation error", func(t *testing.T) {
		reg := newRegistry(t)
		payload := map[string]any{"id": "x", "shape": map[string]any{"r": 1.0}}
		_, err := reg.Materialize(payload, drawingSchema)
		if !errors.Is(err, xe.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a typed value of its tag is kept as it is", func(t *testing.T) {
		reg := newRegistry(t)
		c := try.To(object.MaterializeAs[*circle](reg, map[string]any{"r": 1.0}, circleSchema)).OrFatal(t)
		payload := map[string]any{"id": "x", "shape_type": "circle", "shape": c}
		d := try.To(object.MaterializeAs[*drawing](reg, payload, drawingSchema)).OrFatal(t)
		if got, _ := d.Lookup("shape"); got != c {
			t.Errorf("shape is replaced: %v", got)
		}
	})

	t.Run("a typed value of another tag is a validation error", func(t *testing.T) {
		reg := newRegistry(t)
		c := try.To(object.MaterializeAs[*circle](reg, map[string]any{"r": 1.0}, circleSchema)).OrFatal(t)
		payload := map[string]any{"id": "x", "shape_type": "square", "shape": c}
		if _, err := reg.Materialize(payload, drawingSchema); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("retagging a typed value to another kind is a validation error", func(t *testing.T) {
		reg := newRegistry(t)
		c := try.To(object.MaterializeAs[*circle](reg, map[string]any{"r": 1.0}, circleSchema)).OrFatal(t)
		payload := map[string]any{"id": "x", "shape_type": "circle", "shape": c}
		d := try.To(object.MaterializeAs[*drawing](reg, payload, drawingSchema)).OrFatal(t)

		if err := d.Set("shape_type", "square"); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}
		if tag, _ := d.Lookup("shape_type"); tag != "circle" {
			t.Errorf("tag is changed: %v", tag)
		}
	})
}

func TestConstruct(t *testing.T) {
	full := func() map[string]any {
		return map[string]any{
			"title":       "sunset",
			"author_id":   "user-1",
			"author_name": "someone",
		}
	}

	t.Run("with all required fields, it succeeds", func(t *testing.T) {
		reg := newRegistry(t)
		got := try.To(reg.Construct(drawingSchema, full())).OrFatal(t)
		if _, ok := got.(*drawing); !ok {
			t.Errorf("unexpected type: %T", got)
		}
	})

	t.Run("without a required field, it is a validation error", func(t *testing.T) {
		reg := newRegistry(t)
		fields := full()
		delete(fields, "title")
		if _, err := reg.Construct(drawingSchema, fields); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("unexpected error: %v", err)
		}

		fields = full()
		fields["title"] = ""
		if _, err := reg.Construct(drawingSchema, fields); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("empty string should be missing: %v", err)
		}
	})

	t.Run("one of alternatives is enough", func(t *testing.T) {
		reg := newRegistry(t)
		for _, drop := range []string{"author_id", "author_name"} {
			fields := full()
			delete(fields, drop)
			if _, err := reg.Construct(drawingSchema, fields); err != nil {
				t.Errorf("without %s: unexpected error: %v", drop, err)
			}
		}

		fields := full()
		delete(fields, "author_id")
		delete(fields, "author_name")
		if _, err := reg.Construct(drawingSchema, fields); !errors.Is(err, xe.ErrValidation) {
			t.Errorf("without both: unexpected error: %v", err)
		}
	})

	t.Run("an object with identity skips required fields", func(t *testing.T) {
		reg := newRegistry(t)
		got := try.To(reg.Construct(drawingSchema, nil, object.WithID("drawing-9"))).OrFatal(t)
		if id := got.Base().ID(); id != "drawing-9" {
			t.Errorf("id: %s", id)
		}
	})
}

func TestObjectAccess(t *testing.T) {
	reg := newRegistry(t)
	d := try.To(object.MaterializeAs[*drawing](reg, drawingPayload(), nil)).OrFatal(t)

	t.Run("missing field is not found", func(t *testing.T) {
		_, err := d.Get("nothing")
		if !errors.Is(err, object.ErrFieldNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
		if errors.Is(err, object.ErrMalformedAccess) {
			t.Errorf("not found should not be malformed: %v", err)
		}
	})

	t.Run("empty name or wrong type is malformed", func(t *testing.T) {
		if _, err := d.Get(""); !errors.Is(err, object.ErrMalformedAccess) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := object.Field[int](d.Object, "title"); !errors.Is(err, object.ErrMalformedAccess) {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := object.Field[string](d.Object, "nothing"); !errors.Is(err, object.ErrFieldNotFound) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("the raw property is computed", func(t *testing.T) {
		shape, _ := d.Lookup("shape")
		raw := try.To(shape.(*square).Get(object.RawProperty)).OrFatal(t)
		if want := map[string]any{"side": []any{4.0}}; !reflect.DeepEqual(raw, want) {
			t.Errorf("(actual, expected) = (%#v, %#v)", raw, want)
		}
	})

	t.Run("ToFlatMap is shallow", func(t *testing.T) {
		flat := d.ToFlatMap()
		if _, ok := flat["shape"].(*square); !ok {
			t.Errorf("nested object is unwrapped: %T", flat["shape"])
		}
	})

	t.Run("Set coerces by the schema", func(t *testing.T) {
		if err := d.Set("labels", []any{map[string]any{"name": "sun"}}); err != nil {
			t.Fatal(err)
		}
		labels, _ := d.Lookup("labels")
		if _, ok := labels.([]any)[0].(*label); !ok {
			t.Errorf("label is %T", labels.([]any)[0])
		}
	})
}

func TestLoad(t *testing.T) {
	reg := newRegistry(t)
	d := try.To(object.MaterializeAs[*drawing](reg, drawingPayload(), nil)).OrFatal(t)
	before := d.Object

	err := d.Load(map[string]any{
		"id":         "drawing-1",
		"title":      "sunrise",
		"shape_type": "circle",
		"shape":      map[string]any{"r": 2.0},
	})
	if err != nil {
		t.Fatal(err)
	}

	if d.Object != before {
		t.Error("Load replaced the object")
	}
	if d.Has("labels") || d.Has("metadata") {
		t.Errorf("old fields survive: %v", d.Keys())
	}
	if title := object.FieldOr(d.Object, "title", ""); title != "sunrise" {
		t.Errorf("title: %s", title)
	}
	if shape, _ := d.Lookup("shape"); reflect.TypeOf(shape) != reflect.TypeOf(&circle{}) {
		t.Errorf("shape: %T", shape)
	}
}

func TestDecodeAndMarshal(t *testing.T) {
	input := `{"zeta": 1, "alpha": {"b": [true, null, "x"], "a": 2.5}, "mid": "m"}`

	decoded := try.To(object.Decode([]byte(input))).OrFatal(t)
	entries, ok := decoded.(*object.Entries)
	if !ok {
		t.Fatalf("unexpected type: %T", decoded)
	}
	if want := []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(entries.Keys(), want) {
		t.Errorf("keys: (actual, expected) = (%v, %v)", entries.Keys(), want)
	}

	reg := object.NewRegistry()
	o := try.To(reg.Materialize(decoded, nil)).OrFatal(t).(*object.Object)
	out := try.To(o.MarshalJSON()).OrFatal(t)
	if want := `{"zeta":1,"alpha":{"b":[true,null,"x"],"a":2.5},"mid":"m"}`; string(out) != want {
		t.Errorf("(actual, expected) = (%s, %s)", out, want)
	}

	t.Run("integers are kept exactly, other numbers are float64", func(t *testing.T) {
		input := `{"big": 9007199254740993, "neg": -3, "ratio": 0.25, "exp": 1e3}`
		decoded := try.To(object.Decode([]byte(input))).OrFatal(t).(*object.Entries)

		for k, want := range map[string]any{
			"big": int64(9007199254740993), "neg": int64(-3), "ratio": 0.25, "exp": 1000.0,
		} {
			if got, _ := decoded.Get(k); got != want {
				t.Errorf("%s: (actual, expected) = (%#v, %#v)", k, got, want)
			}
		}

		o := try.To(reg.Materialize(decoded, nil)).OrFatal(t).(*object.Object)
		out := try.To(o.MarshalJSON()).OrFatal(t)
		if want := `{"big":9007199254740993,"neg":-3,"ratio":0.25,"exp":1000}`; string(out) != want {
			t.Errorf("(actual, expected) = (%s, %s)", out, want)
		}
	})

	t.Run("broken JSON is an error", func(t *testing.T) {
		if _, err := object.Decode([]byte(`{"a": `)); err == nil {
			t.Error("no error")
		}
		if _, err := object.Decode([]byte(`{} {}`)); err == nil {
			t.Error("no error for trailing data")
		}
	})
}
