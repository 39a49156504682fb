package maps_test

import (
	"testing"

	"github.com/superb-ai/spb-curate-go/pkg/cmp"
	"github.com/superb-ai/spb-curate-go/pkg/utils/maps"
	"github.com/superb-ai/spb-curate-go/pkg/utils/tuple"
)

func TestOrderedMap(t *testing.T) {
	testee := maps.NewOrderedMap(
		tuple.PairOf("id", any("dataset-1")),
		tuple.PairOf("name", any("cats")),
	)
	testee.Set("description", "pictures of cats")

	t.Run("it keeps insertion order", func(t *testing.T) {
		if want := []string{"id", "name", "description"}; !cmp.SliceEq(testee.Keys(), want) {
			t.Errorf("keys: (actual, expected) = (%v, %v)", testee.Keys(), want)
		}
		if want := 3; testee.Len() != want {
			t.Errorf("len: (actual, expected) = (%d, %d)", testee.Len(), want)
		}
	})

	t.Run("overwriting a key keeps its position", func(t *testing.T) {
		testee.Set("name", "dogs")
		if want := []string{"id", "name", "description"}; !cmp.SliceEq(testee.Keys(), want) {
			t.Errorf("keys: (actual, expected) = (%v, %v)", testee.Keys(), want)
		}
		if v, ok := testee.Get("name"); !ok || v != "dogs" {
			t.Errorf("name: (actual, ok) = (%v, %v)", v, ok)
		}
	})

	t.Run("Iter yields pairs in order", func(t *testing.T) {
		keys := []string{}
		values := []any{}
		for k, v := range testee.Iter() {
			keys = append(keys, k)
			values = append(values, v)
		}
		if want := []string{"id", "name", "description"}; !cmp.SliceEq(keys, want) {
			t.Errorf("keys: (actual, expected) = (%v, %v)", keys, want)
		}
		if want := []any{"dataset-1", "dogs", "pictures of cats"}; !cmp.SliceEq(values, want) {
			t.Errorf("values: (actual, expected) = (%v, %v)", values, want)
		}
	})

	t.Run("Clone is independent from the original", func(t *testing.T) {
		c := testee.Clone()
		c.Set("extra", 1)
		if testee.Has("extra") {
			t.Error("clone shares its storage with the original")
		}
	})

	t.Run("Delete removes the key and its position", func(t *testing.T) {
		testee.Delete("name")
		testee.Delete("missing")
		if want := []string{"id", "description"}; !cmp.SliceEq(testee.Keys(), want) {
			t.Errorf("keys: (actual, expected) = (%v, %v)", testee.Keys(), want)
		}
		if _, ok := testee.Get("name"); ok {
			t.Error("deleted key is still present")
		}
	})

	t.Run("Clear removes everything", func(t *testing.T) {
		testee.Clear()
		if testee.Len() != 0 {
			t.Errorf("len after clear: %d", testee.Len())
		}
		testee.Set("id", "dataset-2")
		if want := []string{"id"}; !cmp.SliceEq(testee.Keys(), want) {
			t.Errorf("keys: (actual, expected) = (%v, %v)", testee.Keys(), want)
		}
	})
}
