// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package geometry

import (
	"math"
	"testing"
)

func TestSphereBoundingBox(t *testing.T) {
	s := Sphere{Centre: Vec3{1, 2, 3}, Radius: 2}
	box := s.BoundingBox()
	want := Box{Min: Vec3{-1, 0, 1}, Max: Vec3{3, 4, 5}}
	if box != want {
		t.Fatalf("got %+v, want %+v", box, want)
	}
}

func TestPointBoundingBoxIsDegenerate(t *testing.T) {
	p := Point{Centre: Vec3{5, 5, 5}}
	box := p.BoundingBox()
	if box.Min != box.Max {
		t.Fatalf("point box should collapse to a single coordinate, got %+v", box)
	}
}

func TestCylinderBoundingBox(t *testing.T) {
	c := Cylinder{P1: Vec3{0, 0, 0}, P2: Vec3{4, 0, 0}, Radius: 1}
	box := c.BoundingBox()
	want := Box{Min: Vec3{-1, -1, -1}, Max: Vec3{5, 1, 1}}
	if box != want {
		t.Fatalf("got %+v, want %+v", box, want)
	}
}

func TestDegenerateCylinderIsSphere(t *testing.T) {
	c := Cylinder{P1: Vec3{1, 1, 1}, P2: Vec3{1, 1, 1}, Radius: 2}
	box := c.BoundingBox()
	s := Sphere{Centre: Vec3{1, 1, 1}, Radius: 2}
	if box != s.BoundingBox() {
		t.Fatalf("zero-length cylinder box %+v should match sphere box %+v", box, s.BoundingBox())
	}
	if !SphereIntersectsCylinder(Sphere{Centre: Vec3{1, 1, 2.5}, Radius: 0.1}, c) {
		t.Fatalf("degenerate cylinder should behave like a sphere for intersection")
	}
}

func TestZeroRadiusSphereIsPoint(t *testing.T) {
	s := Sphere{Centre: Vec3{0, 0, 0}, Radius: 0}
	if !SphereIntersectsSphere(s, Sphere{Centre: Vec3{0, 0, 0}, Radius: 0.001}) {
		t.Fatalf("coincident zero-radius spheres should intersect")
	}
	if SphereIntersectsSphere(s, Sphere{Centre: Vec3{1, 0, 0}, Radius: 0.5}) {
		t.Fatalf("distant zero-radius sphere should not intersect")
	}
}

func TestBoxIntersectsBox(t *testing.T) {
	a := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	b := Box{Min: Vec3{0.5, 0.5, 0.5}, Max: Vec3{2, 2, 2}}
	c := Box{Min: Vec3{2, 2, 2}, Max: Vec3{3, 3, 3}}
	if !BoxIntersectsBox(a, b) {
		t.Fatalf("overlapping boxes should intersect")
	}
	if BoxIntersectsBox(a, c) {
		t.Fatalf("disjoint boxes should not intersect")
	}
}

func TestUnion(t *testing.T) {
	a := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	b := Box{Min: Vec3{-1, -1, -1}, Max: Vec3{0.5, 0.5, 0.5}}
	u := Union(a, b)
	want := Box{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	if u != want {
		t.Fatalf("got %+v, want %+v", u, want)
	}
}

func TestContains(t *testing.T) {
	outer := Box{Min: Vec3{0, 0, 0}, Max: Vec3{10, 10, 10}}
	inner := Box{Min: Vec3{1, 1, 1}, Max: Vec3{2, 2, 2}}
	if !Contains(outer, inner) {
		t.Fatalf("outer should contain inner")
	}
	if Contains(inner, outer) {
		t.Fatalf("inner should not contain outer")
	}
}

func TestClosestPointOnBox(t *testing.T) {
	box := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	cp := ClosestPointOnBox(box, Vec3{2, 0.5, -1})
	want := Vec3{1, 0.5, 0}
	if cp != want {
		t.Fatalf("got %+v, want %+v", cp, want)
	}
}

func TestScenario1ThreeSpheres(t *testing.T) {
	// Scenario from §8: three unit spheres around the origin,
	// query sphere at origin radius 0.6 should hit all three under both
	// accuracy modes.
	half := float32(math.Sqrt2 / 2)
	spheres := []Sphere{
		{Centre: Vec3{0, 1, 0}, Radius: 1},
		{Centre: Vec3{-half, -half, 0}, Radius: 1},
		{Centre: Vec3{half, -half, 0}, Radius: 1},
	}
	query := Sphere{Centre: Vec3{0, 0, 0}, Radius: 0.6}
	for i, s := range spheres {
		if !SphereIntersectsSphere(query, s) {
			t.Fatalf("sphere %d should intersect query (exact)", i)
		}
		if !BoxIntersectsSphere(s.BoundingBox(), query) {
			t.Fatalf("sphere %d bounding box should intersect query (conservative)", i)
		}
	}
}

func TestValidationRejectsNonFiniteAndNegativeRadius(t *testing.T) {
	if ValidSphere(Sphere{Centre: Vec3{float32(math.NaN()), 0, 0}, Radius: 1}) {
		t.Fatalf("NaN centre should be invalid")
	}
	if ValidSphere(Sphere{Centre: Vec3{0, 0, 0}, Radius: -1}) {
		t.Fatalf("negative radius should be invalid")
	}
	if !ValidCylinder(Cylinder{P1: Vec3{0, 0, 0}, P2: Vec3{0, 0, 0}, Radius: 0}) {
		t.Fatalf("zero-length zero-radius cylinder should be valid")
	}
}

func TestBoxIntersectsCylinderAlongAxis(t *testing.T) {
	c := Cylinder{P1: Vec3{0, 0, 0}, P2: Vec3{9, 0, 0}, Radius: 1}
	inBox := Box{Min: Vec3{4, -0.5, -0.5}, Max: Vec3{5, 0.5, 0.5}}
	outBox := Box{Min: Vec3{20, 20, 20}, Max: Vec3{21, 21, 21}}
	if !BoxIntersectsCylinder(inBox, c) {
		t.Fatalf("box straddling the cylinder axis should intersect")
	}
	if BoxIntersectsCylinder(outBox, c) {
		t.Fatalf("far-away box should not intersect")
	}
}
