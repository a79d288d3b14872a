package simdb

import (
	"reflect"
	"testing"
)

func TestFlatIndexToCoordsRowMajor(t *testing.T) {
	shape := []int{10, 10, 10}

	cases := []struct {
		flatIndex int64
		want      []int64
	}{
		{0, []int64{0, 0, 0}},
		{5, []int64{0, 0, 5}},
		{15, []int64{0, 1, 5}},
		{205, []int64{2, 0, 5}},
	}

	for _, c := range cases {
		got := flatIndexToCoords(c.flatIndex, shape)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("flatIndexToCoords(%d, %v) = %v, want %v", c.flatIndex, shape, got, c.want)
		}
	}
}

func TestFlatIndexToCoordsSingleDimension(t *testing.T) {
	got := flatIndexToCoords(42, []int{100})
	if !reflect.DeepEqual(got, []int64{42}) {
		t.Fatalf("unexpected coords: %v", got)
	}
}
