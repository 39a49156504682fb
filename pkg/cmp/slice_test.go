package cmp_test

import (
	"testing"

	"github.com/superb-ai/spb-curate-go/pkg/cmp"
)

func TestSliceContentEq(t *testing.T) {
	for _, c := range []struct {
		a, b     []string
		expected bool
	}{
		{[]string{"a", "b", "c"}, []string{"c", "b", "a"}, true},
		{[]string{"a", "b", "c"}, []string{"c", "b", "a", "z"}, false},
		{[]string{"a", "b", "c"}, []string{"c", "b", "z"}, false},
		{[]string{"a", "b", "c", "c"}, []string{"a", "b", "c"}, false},
		{[]string{}, nil, true},
	} {
		if actual := cmp.SliceContentEq(c.a, c.b); actual != c.expected {
			t.Errorf("SliceContentEq(%v, %v) = %v", c.a, c.b, actual)
		}
	}

	if !cmp.SliceEq([]int{1, 2}, []int{1, 2}) || cmp.SliceEq([]int{1, 2}, []int{2, 1}) {
		t.Errorf("SliceEq is ordered")
	}
}
