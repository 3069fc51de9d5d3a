package geom

import (
	"math"
	"testing"
)

func TestFromCornersNormalizes(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want Rect
	}{
		{"down-right", Point{50, 50}, Point{250, 200}, Rect{50, 50, 200, 150}},
		{"up-left", Point{250, 200}, Point{50, 50}, Rect{50, 50, 200, 150}},
		{"down-left", Point{250, 50}, Point{50, 200}, Rect{50, 50, 200, 150}},
		{"same point", Point{10, 10}, Point{10, 10}, Rect{10, 10, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromCorners(tc.a, tc.b); got != tc.want {
				t.Errorf("FromCorners(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestContainsEdges(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{50, 50}, true},
		{Point{99.9, 99.9}, true},
		{Point{100, 50}, false},
		{Point{50, 100}, false},
		{Point{-1, 50}, false},
	}
	for _, tc := range cases {
		if got := r.Contains(tc.p); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestUnion(t *testing.T) {
	a := Rect{0, 0, 1000, 800}
	b := Rect{1000, 0, 1000, 800}
	if got := a.Union(b); got != (Rect{0, 0, 2000, 800}) {
		t.Errorf("Union = %v", got)
	}

	// Empty operands drop out instead of dragging the union to the origin.
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty.Union(b) = %v, want %v", got, b)
	}
	if got := a.Union(Rect{}); got != a {
		t.Errorf("a.Union(empty) = %v, want %v", got, a)
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	r := Rect{50, 60, 200, 150}
	moved := r.Translate(-30, -40)
	if moved != (Rect{20, 20, 200, 150}) {
		t.Errorf("Translate = %v", moved)
	}
	if back := moved.Translate(30, 40); back != r {
		t.Errorf("round trip = %v, want %v", back, r)
	}
}

func TestMinEdgeAndEmpty(t *testing.T) {
	if e := (Rect{0, 0, 200, 150}).MinEdge(); e != 150 {
		t.Errorf("MinEdge = %v", e)
	}
	if !(Rect{}).Empty() {
		t.Error("zero rect should be empty")
	}
	if (Rect{0, 0, 1, 1}).Empty() {
		t.Error("1x1 rect should not be empty")
	}
	if !(Rect{0, 0, 100, 0}).Empty() {
		t.Error("zero-height rect should be empty")
	}
}

func TestDist(t *testing.T) {
	if d := Dist(Point{0, 0}, Point{3, 4}); d != 5 {
		t.Errorf("Dist = %v, want 5", d)
	}
	if d := Dist(Point{7, 7}, Point{7, 7}); d != 0 {
		t.Errorf("Dist of equal points = %v", d)
	}
}

func TestClosestPointIn(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	cases := []struct {
		p, want Point
	}{
		{Point{50, 50}, Point{50, 50}},
		{Point{-10, 50}, Point{0, 50}},
		{Point{150, 150}, Point{100, 100}},
		{Point{50, -5}, Point{50, 0}},
	}
	for _, tc := range cases {
		if got := r.ClosestPointIn(tc.p); got != tc.want {
			t.Errorf("ClosestPointIn(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestCenter(t *testing.T) {
	c := (Rect{50, 50, 200, 150}).Center()
	if math.Abs(c.X-150) > 1e-9 || math.Abs(c.Y-125) > 1e-9 {
		t.Errorf("Center = %v, want (150,125)", c)
	}
}
