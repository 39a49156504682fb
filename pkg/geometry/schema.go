// Package geometry provides the kinds an annotation value can take:
// box, rbox, cuboid2d, polygon, polyline, keypoint and category,
// together with their building blocks.
//
// Every kind is an object.Object. Its `raw` property gives the wire form,
// and that is also what it flattens to.
package geometry

import (
	xe "github.com/superb-ai/spb-curate-go/pkg/errors"
	"github.com/superb-ai/spb-curate-go/pkg/object"
)

// annotation types, which are also object types of annotation values.
const (
	TypeBox        = "box"
	TypeCategory   = "category"
	TypeCuboid2D   = "cuboid2d"
	TypeKeypoint   = "keypoint"
	TypePolygon    = "polygon"
	TypePolyline   = "polyline"
	TypeRotatedBox = "rbox"
)

// object types of building blocks.
const (
	typePoint         = "point"
	typeContour       = "contour"
	typeFace          = "face"
	typePath          = "path"
	typeEdge          = "edge"
	typeKeypointState = "keypoint_state"
	typeKeypointNode  = "keypoint_node"
)

var (
	PointSchema = &object.Schema{
		Type:       typePoint,
		Required:   [][]string{{"x"}, {"y"}},
		Properties: rawOf(plain),
	}
	ContourSchema = &object.Schema{
		Type:       typeContour,
		Fields:     map[string]*object.Schema{"points": PointSchema},
		Required:   [][]string{{"points"}},
		Properties: rawOf(field("points")),
	}
	FaceSchema = &object.Schema{
		Type:       typeFace,
		Fields:     map[string]*object.Schema{"contours": ContourSchema},
		Required:   [][]string{{"contours"}},
		Properties: rawOf(field("contours")),
	}
	PolygonSchema = &object.Schema{
		Type:       TypePolygon,
		Fields:     map[string]*object.Schema{"faces": FaceSchema},
		Required:   [][]string{{"faces"}},
		Properties: rawOf(wrapIn("points", "faces")),
		FromRaw:    polygonFromRaw,
	}
	PathSchema = &object.Schema{
		Type:       typePath,
		Fields:     map[string]*object.Schema{"points": PointSchema},
		Required:   [][]string{{"points"}},
		Properties: rawOf(field("points")),
	}
	PolylineSchema = &object.Schema{
		Type:       TypePolyline,
		Fields:     map[string]*object.Schema{"paths": PathSchema},
		Required:   [][]string{{"paths"}},
		Properties: rawOf(wrapIn("points", "paths")),
		FromRaw:    polylineFromRaw,
	}
	BoundingBoxSchema = &object.Schema{
		Type:       TypeBox,
		Required:   [][]string{{"x"}, {"y"}, {"width"}, {"height"}},
		Properties: rawOf(plain),
	}
	RotatedBoxSchema = &object.Schema{
		Type:       TypeRotatedBox,
		Required:   [][]string{{"cx"}, {"cy"}, {"width"}, {"height"}, {"angle"}},
		Properties: rawOf(plain),
	}
	Cuboid2DSchema = &object.Schema{
		Type:       TypeCuboid2D,
		Fields:     map[string]*object.Schema{"near": BoundingBoxSchema, "far": BoundingBoxSchema},
		Required:   [][]string{{"near"}, {"far"}},
		Properties: rawOf(plain),
	}
	KeypointStateSchema = &object.Schema{
		Type:       typeKeypointState,
		Properties: rawOf(plain),
	}
	KeypointSchema = &object.Schema{
		Type:       typeKeypointNode,
		Fields:     map[string]*object.Schema{"state": KeypointStateSchema},
		Required:   [][]string{{"name"}},
		Properties: rawOf(plain),
	}
	EdgeSchema = &object.Schema{
		Type:       typeEdge,
		Required:   [][]string{{"x"}, {"y"}},
		Properties: rawOf(plain),
	}
	KeypointsSchema = &object.Schema{
		Type: TypeKeypoint,
		Fields: map[string]*object.Schema{
			"points": KeypointSchema,
			"edges":  EdgeSchema,
		},
		Required:   [][]string{{"points"}, {"edges"}},
		Properties: rawOf(plain),
	}
	CategorySchema = &object.Schema{
		Type:       TypeCategory,
		Properties: rawOf(plain),
	}
)

// Discriminator returns the discriminator which resolves an annotation value
// by the annotation type stored in the sibling field.
func Discriminator(field string) object.Discriminator {
	return object.Discriminator{
		Field: field,
		Variants: map[string]*object.Schema{
			TypeBox:        BoundingBoxSchema,
			TypeCategory:   CategorySchema,
			TypeCuboid2D:   Cuboid2DSchema,
			TypeKeypoint:   KeypointsSchema,
			TypePolygon:    PolygonSchema,
			TypePolyline:   PolylineSchema,
			TypeRotatedBox: RotatedBoxSchema,
		},
	}
}

// Register adds every geometry kind into the registry.
func Register(reg *object.Registry) error {
	for _, k := range []struct {
		schema  *object.Schema
		factory object.Factory
	}{
		{PointSchema, func(o *object.Object) object.Typed { return &Point{o} }},
		{ContourSchema, func(o *object.Object) object.Typed { return &Contour{o} }},
		{FaceSchema, func(o *object.Object) object.Typed { return &Face{o} }},
		{PolygonSchema, func(o *object.Object) object.Typed { return &Polygon{o} }},
		{PathSchema, func(o *object.Object) object.Typed { return &Path{o} }},
		{PolylineSchema, func(o *object.Object) object.Typed { return &Polyline{o} }},
		{BoundingBoxSchema, func(o *object.Object) object.Typed { return &BoundingBox{o} }},
		{RotatedBoxSchema, func(o *object.Object) object.Typed { return &RotatedBox{o} }},
		{Cuboid2DSchema, func(o *object.Object) object.Typed { return &Cuboid2D{o} }},
		{KeypointStateSchema, func(o *object.Object) object.Typed { return &KeypointState{o} }},
		{KeypointSchema, func(o *object.Object) object.Typed { return &Keypoint{o} }},
		{EdgeSchema, func(o *object.Object) object.Typed { return &Edge{o} }},
		{KeypointsSchema, func(o *object.Object) object.Typed { return &Keypoints{o} }},
		{CategorySchema, func(o *object.Object) object.Typed { return &Category{o} }},
	} {
		if err := reg.Register(k.schema, k.factory); err != nil {
			return err
		}
	}
	return nil
}

func rawOf(p object.Property) map[string]object.Property {
	return map[string]object.Property{object.RawProperty: p}
}

// plain is the raw form of kinds whose wire form is their fields.
func plain(o *object.Object) any {
	ret := make(map[string]any, o.Len())
	for k, v := range o.ToFlatMap() {
		ret[k] = object.Flatten(v)
	}
	return ret
}

// field makes the raw form of kinds whose wire form is the list in one field.
func field(name string) object.Property {
	return func(o *object.Object) any {
		v, ok := o.Lookup(name)
		if !ok || v == nil {
			return []any{}
		}
		return object.Flatten(v)
	}
}

// wrapIn makes the raw form {key: [raw of each element of the field]}.
func wrapIn(key string, name string) object.Property {
	inner := field(name)
	return func(o *object.Object) any {
		return map[string]any{key: inner(o)}
	}
}

// {"points": [[[point, ...], ...], ...]} -> {"faces": [{"contours": [{"points": [point, ...]}]}]}
func polygonFromRaw(raw *object.Entries) (*object.Entries, error) {
	if raw.Has("faces") && !raw.Has("points") {
		return raw, nil
	}
	faces, err := listIn(raw, "points")
	if err != nil {
		return nil, err
	}
	nativeFaces := make([]any, 0, len(faces))
	for _, f := range faces {
		contours, ok := f.([]any)
		if !ok {
			return nil, xe.Validation("polygon: a face should be a list of contours, but %T", f)
		}
		nativeContours := make([]any, 0, len(contours))
		for _, c := range contours {
			points, ok := c.([]any)
			if !ok {
				return nil, xe.Validation("polygon: a contour should be a list of points, but %T", c)
			}
			nativeContours = append(nativeContours, map[string]any{"points": points})
		}
		nativeFaces = append(nativeFaces, map[string]any{"contours": nativeContours})
	}
	native := object.NewEntries()
	native.Set("faces", nativeFaces)
	return native, nil
}

// {"points": [[point, ...], ...]} -> {"paths": [{"points": [point, ...]}]}
func polylineFromRaw(raw *object.Entries) (*object.Entries, error) {
	if raw.Has("paths") && !raw.Has("points") {
		return raw, nil
	}
	paths, err := listIn(raw, "points")
	if err != nil {
		return nil, err
	}
	nativePaths := make([]any, 0, len(paths))
	for _, p := range paths {
		points, ok := p.([]any)
		if !ok {
			return nil, xe.Validation("polyline: a path should be a list of points, but %T", p)
		}
		nativePaths = append(nativePaths, map[string]any{"points": points})
	}
	native := object.NewEntries()
	native.Set("paths", nativePaths)
	return native, nil
}

func listIn(raw *object.Entries, key string) ([]any, error) {
	v, ok := raw.Get(key)
	if !ok {
		return nil, xe.Validation("%s is required", key)
	}
	l, ok := v.([]any)
	if !ok {
		return nil, xe.Validation("%s should be a list, but %T", key, v)
	}
	return l, nil
}
