package geometry

import (
	"sync"

	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

// AnnotationValue is one of the kinds an annotation can carry as its value.
type AnnotationValue interface {
	object.Typed

	// AnnotationType is the annotation type tag of the kind.
	AnnotationType() string

	// Raw returns the wire form.
	Raw() any

	annotationValue()
}

var (
	_ AnnotationValue = &BoundingBox{}
	_ AnnotationValue = &RotatedBox{}
	_ AnnotationValue = &Cuboid2D{}
	_ AnnotationValue = &Polygon{}
	_ AnnotationValue = &Polyline{}
	_ AnnotationValue = &Keypoints{}
	_ AnnotationValue = &Category{}
)

// kinds is the registry where values made by the constructors in this package live.
//
// Only geometry kinds are registered, and nothing is added after the first use.
var kinds = sync.OnceValue(func() *object.Registry {
	reg := object.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
})

// FromRaw materializes the wire form of an annotation value of the annotation type.
func FromRaw(annotationType string, raw any) (AnnotationValue, error) {
	schema, err := Discriminator("annotation_type").Resolve(annotationType)
	if err != nil {
		return nil, err
	}
	return object.MaterializeAs[AnnotationValue](kinds(), raw, schema)
}

func construct[T object.Typed](schema *object.Schema, fields map[string]any) (T, error) {
	t, err := kinds().Construct(schema, fields)
	if err != nil {
		return *new(T), err
	}
	return t.(T), nil
}

// listOf converts items into []any. nil items are rejected.
func listOf[T interface {
	comparable
	object.Typed
}](name string, items []T) ([]any, error) {
	var zero T
	ret := make([]any, 0, len(items))
	for i, it := range items {
		if it == zero {
			return nil, xe.Validation("%s[%d] is nil", name, i)
		}
		ret = append(ret, it)
	}
	return ret, nil
}

func itemsOf[T object.Typed](o *object.Object, field string) []T {
	l, _ := o.Lookup(field)
	items, _ := l.([]any)
	ret := make([]T, 0, len(items))
	for _, it := range items {
		if t, ok := it.(T); ok {
			ret = append(ret, t)
		}
	}
	return ret
}

func num(o *object.Object, field string) float64 {
	f, _ := object.Number(o, field)
	return f
}

func rawValue(o *object.Object) any {
	r, _ := o.Get(object.RawProperty)
	return r
}

// Point is a point of a contour or a path.
type Point struct{ *object.Object }

func NewPoint(x, y float64) (*Point, error) {
	return construct[*Point](PointSchema, map[string]any{"x": x, "y": y})
}

func (p *Point) X() float64 { return num(p.Object, "x") }
func (p *Point) Y() float64 { return num(p.Object, "y") }
func (p *Point) Raw() any   { return rawValue(p.Object) }

// Contour is a closed ring of points.
type Contour struct{ *object.Object }

func NewContour(points ...*Point) (*Contour, error) {
	l, err := listOf("points", points)
	if err != nil {
		return nil, err
	}
	return construct[*Contour](ContourSchema, map[string]any{"points": l})
}

func (c *Contour) Points() []*Point { return itemsOf[*Point](c.Object, "points") }
func (c *Contour) Raw() any         { return rawValue(c.Object) }

// Face is an outer contour followed by its holes.
type Face struct{ *object.Object }

func NewFace(contours ...*Contour) (*Face, error) {
	l, err := listOf("contours", contours)
	if err != nil {
		return nil, err
	}
	return construct[*Face](FaceSchema, map[string]any{"contours": l})
}

func (f *Face) Contours() []*Contour { return itemsOf[*Contour](f.Object, "contours") }
func (f *Face) Raw() any             { return rawValue(f.Object) }

// Polygon is a set of faces.
//
// On the wire, it is {"points": [face, ...]} where a face is
// a list of contours and a contour is a list of {"x", "y"}.
type Polygon struct{ *object.Object }

func NewPolygon(faces ...*Face) (*Polygon, error) {
	l, err := listOf("faces", faces)
	if err != nil {
		return nil, err
	}
	return construct[*Polygon](PolygonSchema, map[string]any{"faces": l})
}

func (p *Polygon) Faces() []*Face         { return itemsOf[*Face](p.Object, "faces") }
func (p *Polygon) Raw() any               { return rawValue(p.Object) }
func (p *Polygon) AnnotationType() string { return TypePolygon }
func (*Polygon) annotationValue()         {}

// Path is an open sequence of points.
type Path struct{ *object.Object }

func NewPath(points ...*Point) (*Path, error) {
	l, err := listOf("points", points)
	if err != nil {
		return nil, err
	}
	return construct[*Path](PathSchema, map[string]any{"points": l})
}

func (p *Path) Points() []*Point { return itemsOf[*Point](p.Object, "points") }
func (p *Path) Raw() any         { return rawValue(p.Object) }

// Polyline is a set of paths. On the wire, it is {"points": [path, ...]}.
type Polyline struct{ *object.Object }

func NewPolyline(paths ...*Path) (*Polyline, error) {
	l, err := listOf("paths", paths)
	if err != nil {
		return nil, err
	}
	return construct[*Polyline](PolylineSchema, map[string]any{"paths": l})
}

func (p *Polyline) Paths() []*Path         { return itemsOf[*Path](p.Object, "paths") }
func (p *Polyline) Raw() any               { return rawValue(p.Object) }
func (p *Polyline) AnnotationType() string { return TypePolyline }
func (*Polyline) annotationValue()         {}

// BoundingBox is an axis-aligned box. (x, y) is its top-left corner.
type BoundingBox struct{ *object.Object }

func NewBoundingBox(x, y, width, height float64) (*BoundingBox, error) {
	return construct[*BoundingBox](BoundingBoxSchema, map[string]any{
		"x": x, "y": y, "width": width, "height": height,
	})
}

func (b *BoundingBox) X() float64             { return num(b.Object, "x") }
func (b *BoundingBox) Y() float64             { return num(b.Object, "y") }
func (b *BoundingBox) Width() float64         { return num(b.Object, "width") }
func (b *BoundingBox) Height() float64        { return num(b.Object, "height") }
func (b *BoundingBox) Raw() any               { return rawValue(b.Object) }
func (b *BoundingBox) AnnotationType() string { return TypeBox }
func (*BoundingBox) annotationValue()         {}

// RotatedBox is a box rotated around its center (cx, cy).
type RotatedBox struct{ *object.Object }

func NewRotatedBox(cx, cy, width, height, angle float64) (*RotatedBox, error) {
	return construct[*RotatedBox](RotatedBoxSchema, map[string]any{
		"cx": cx, "cy": cy, "width": width, "height": height, "angle": angle,
	})
}

func (b *RotatedBox) CX() float64            { return num(b.Object, "cx") }
func (b *RotatedBox) CY() float64            { return num(b.Object, "cy") }
func (b *RotatedBox) Width() float64         { return num(b.Object, "width") }
func (b *RotatedBox) Height() float64        { return num(b.Object, "height") }
func (b *RotatedBox) Angle() float64         { return num(b.Object, "angle") }
func (b *RotatedBox) Raw() any               { return rawValue(b.Object) }
func (b *RotatedBox) AnnotationType() string { return TypeRotatedBox }
func (*RotatedBox) annotationValue()         {}

// Cuboid2D is a cuboid projected on the image, as its near and far faces.
type Cuboid2D struct{ *object.Object }

func NewCuboid2D(near, far *BoundingBox) (*Cuboid2D, error) {
	if near == nil || far == nil {
		return nil, xe.Validation("%s: near and far are required", TypeCuboid2D)
	}
	return construct[*Cuboid2D](Cuboid2DSchema, map[string]any{"near": near, "far": far})
}

func (c *Cuboid2D) Near() *BoundingBox {
	b, _ := object.Field[*BoundingBox](c.Object, "near")
	return b
}

func (c *Cuboid2D) Far() *BoundingBox {
	b, _ := object.Field[*BoundingBox](c.Object, "far")
	return b
}

func (c *Cuboid2D) Raw() any               { return rawValue(c.Object) }
func (c *Cuboid2D) AnnotationType() string { return TypeCuboid2D }
func (*Cuboid2D) annotationValue()         {}

type KeypointState struct{ *object.Object }

func NewKeypointState(visible, valid bool) (*KeypointState, error) {
	return construct[*KeypointState](KeypointStateSchema, map[string]any{
		"visible": visible, "valid": valid,
	})
}

func (s *KeypointState) Visible() bool { return object.FieldOr(s.Object, "visible", false) }
func (s *KeypointState) Valid() bool   { return object.FieldOr(s.Object, "valid", false) }
func (s *KeypointState) Raw() any      { return rawValue(s.Object) }

// Keypoint is a named point of Keypoints.
//
// Its coordinates may be missing for a point not placed on the image.
type Keypoint struct{ *object.Object }

// NewKeypoint makes a keypoint. x, y and state can be nil.
func NewKeypoint(name string, x, y *float64, state *KeypointState) (*Keypoint, error) {
	fields := map[string]any{"name": name}
	if x != nil {
		fields["x"] = *x
	}
	if y != nil {
		fields["y"] = *y
	}
	if state != nil {
		fields["state"] = state
	}
	return construct[*Keypoint](KeypointSchema, fields)
}

func (k *Keypoint) Name() string { return object.FieldOr(k.Object, "name", "") }

func (k *Keypoint) X() (float64, bool) {
	f, err := object.Number(k.Object, "x")
	return f, err == nil
}

func (k *Keypoint) Y() (float64, bool) {
	f, err := object.Number(k.Object, "y")
	return f, err == nil
}

func (k *Keypoint) State() *KeypointState {
	s, _ := object.Field[*KeypointState](k.Object, "state")
	return s
}

func (k *Keypoint) Raw() any { return rawValue(k.Object) }

// Edge connects two keypoints by their indices, x and y.
type Edge struct{ *object.Object }

func NewEdge(x, y int) (*Edge, error) {
	return construct[*Edge](EdgeSchema, map[string]any{"x": x, "y": y})
}

func (e *Edge) X() int   { return int(num(e.Object, "x")) }
func (e *Edge) Y() int   { return int(num(e.Object, "y")) }
func (e *Edge) Raw() any { return rawValue(e.Object) }

// Keypoints is a skeleton: points and the edges between them.
type Keypoints struct{ *object.Object }

func NewKeypoints(points []*Keypoint, edges []*Edge) (*Keypoints, error) {
	ps, err := listOf("points", points)
	if err != nil {
		return nil, err
	}
	es, err := listOf("edges", edges)
	if err != nil {
		return nil, err
	}
	return construct[*Keypoints](KeypointsSchema, map[string]any{"points": ps, "edges": es})
}

func (k *Keypoints) Points() []*Keypoint    { return itemsOf[*Keypoint](k.Object, "points") }
func (k *Keypoints) Edges() []*Edge         { return itemsOf[*Edge](k.Object, "edges") }
func (k *Keypoints) Raw() any               { return rawValue(k.Object) }
func (k *Keypoints) AnnotationType() string { return TypeKeypoint }
func (*Keypoints) annotationValue()         {}

// Category is a classification. Its value is a string, a list of strings, or null.
type Category struct{ *object.Object }

// NewCategory makes a category of a single value.
func NewCategory(value string) (*Category, error) {
	return construct[*Category](CategorySchema, map[string]any{"value": value})
}

// NewMultiCategory makes a category of multiple values.
func NewMultiCategory(values ...string) (*Category, error) {
	l := make([]any, len(values))
	for i := range values {
		l[i] = values[i]
	}
	return construct[*Category](CategorySchema, map[string]any{"value": l})
}

// NewEmptyCategory makes a category whose value is null.
func NewEmptyCategory() (*Category, error) {
	return construct[*Category](CategorySchema, map[string]any{"value": nil})
}

// Value returns the value: string, []any of strings, or nil.
func (c *Category) Value() any {
	v, _ := c.Lookup("value")
	return v
}

// Values returns the value as a list. A single value is a list of one.
func (c *Category) Values() []string {
	switch v := c.Value().(type) {
	case string:
		return []string{v}
	case []any:
		ret := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				ret = append(ret, str)
			}
		}
		return ret
	}
	return nil
}

func (c *Category) Raw() any               { return rawValue(c.Object) }
func (c *Category) AnnotationType() string { return TypeCategory }
func (*Category) annotationValue()         {}
