// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package geometry is the geometry kernel: primitive types (sphere, capped
// cylinder, point, axis-aligned box), bounding-box computation, and the
// intersection/containment/closest-point tests the R-tree core and the
// query façade build on.
//
// All geometry is single precision. Distances are compared as squared
// distances wherever a total order suffices, to avoid the sqrt.
// Degenerate primitives (zero radius, coincident endpoints) degrade to
// simpler semantics instead of panicking: a zero-radius sphere behaves as a
// point, a zero-length capped cylinder behaves as a sphere.
package geometry

import "math"

// Vec3 is a point or direction in R^3, single precision.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// SquaredNorm is |v|^2.
func (v Vec3) SquaredNorm() float32 { return v.Dot(v) }

// Box is an axis-aligned bounding box, min <= max componentwise.
type Box struct {
	Min, Max Vec3
}

// Sphere is a centre and radius. A radius of 0 is a degenerate point sphere.
type Sphere struct {
	Centre Vec3
	Radius float32
}

// Cylinder is a capped cylinder (a "segment"): two endpoints and a radius.
// Endpoints coincident and/or a zero radius are valid degeneracies.
type Cylinder struct {
	P1, P2 Vec3
	Radius float32
}

// Point is a zero-radius primitive, kept distinct from Sphere so that
// element.Store can tag points without allocating a Sphere's radius field
// redundantly.
type Point struct {
	Centre Vec3
}

// BoundingBox is satisfied by every primitive variant.
type BoundingBox interface {
	BoundingBox() Box
}

func (s Sphere) BoundingBox() Box {
	r := Vec3{s.Radius, s.Radius, s.Radius}
	return Box{Min: s.Centre.Sub(r), Max: s.Centre.Add(r)}
}

func (p Point) BoundingBox() Box {
	return Box{Min: p.Centre, Max: p.Centre}
}

// BoundingBox for a capped cylinder is the Minkowski sum of the segment
// [P1,P2] with a ball of the given radius: the componentwise min/max of the
// two endpoints, expanded by the radius on every axis.
func (c Cylinder) BoundingBox() Box {
	min := Vec3{minf(c.P1.X, c.P2.X), minf(c.P1.Y, c.P2.Y), minf(c.P1.Z, c.P2.Z)}
	max := Vec3{maxf(c.P1.X, c.P2.X), maxf(c.P1.Y, c.P2.Y), maxf(c.P1.Z, c.P2.Z)}
	r := Vec3{c.Radius, c.Radius, c.Radius}
	return Box{Min: min.Sub(r), Max: max.Add(r)}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Union returns the smallest box enclosing both a and b.
func Union(a, b Box) Box {
	return Box{
		Min: Vec3{minf(a.Min.X, b.Min.X), minf(a.Min.Y, b.Min.Y), minf(a.Min.Z, b.Min.Z)},
		Max: Vec3{maxf(a.Max.X, b.Max.X), maxf(a.Max.Y, b.Max.Y), maxf(a.Max.Z, b.Max.Z)},
	}
}

// UnionAll folds Union over boxes. Panics if boxes is empty; callers
// (rtree bulk load) always have at least one primitive per node.
func UnionAll(boxes []Box) Box {
	acc := boxes[0]
	for _, b := range boxes[1:] {
		acc = Union(acc, b)
	}
	return acc
}

// Contains reports whether outer fully contains inner.
func Contains(outer, inner Box) bool {
	return outer.Min.X <= inner.Min.X && inner.Max.X <= outer.Max.X &&
		outer.Min.Y <= inner.Min.Y && inner.Max.Y <= outer.Max.Y &&
		outer.Min.Z <= inner.Min.Z && inner.Max.Z <= outer.Max.Z
}

// BoxIntersectsBox is the conservative envelope test used at every internal
// node and for the "bounding_box" accuracy mode at leaves.
func BoxIntersectsBox(a, b Box) bool {
	return a.Min.X <= b.Max.X && a.Max.X >= b.Min.X &&
		a.Min.Y <= b.Max.Y && a.Max.Y >= b.Min.Y &&
		a.Min.Z <= b.Max.Z && a.Max.Z >= b.Min.Z
}

// ClosestPointOnBox returns the point of box closest to p (p itself if p is
// inside box).
func ClosestPointOnBox(box Box, p Vec3) Vec3 {
	return Vec3{
		X: clamp(p.X, box.Min.X, box.Max.X),
		Y: clamp(p.Y, box.Min.Y, box.Max.Y),
		Z: clamp(p.Z, box.Min.Z, box.Max.Z),
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SquaredDistancePointToBox is the squared distance from p to the nearest
// point of box (0 if p is inside box). Used as the k-nearest priority key
// for internal nodes.
func SquaredDistancePointToBox(box Box, p Vec3) float32 {
	cp := ClosestPointOnBox(box, p)
	return p.Sub(cp).SquaredNorm()
}

// BoxIntersectsSphere is the conservative box/sphere test: true iff the
// closest point of box to the sphere's centre lies within radius.
func BoxIntersectsSphere(box Box, s Sphere) bool {
	return SquaredDistancePointToBox(box, s.Centre) <= s.Radius*s.Radius
}

// SphereIntersectsSphere is the exact sphere/sphere test.
func SphereIntersectsSphere(a, b Sphere) bool {
	d := a.Centre.Sub(b.Centre).SquaredNorm()
	r := a.Radius + b.Radius
	return d <= r*r
}

// SphereIntersectsBox is the exact test for a sphere query against an
// element's box-shaped envelope; equivalent to BoxIntersectsSphere but kept
// as a distinct name so call sites read in query order (sphere-query
// against a candidate's geometry).
func SphereIntersectsBox(s Sphere, box Box) bool {
	return BoxIntersectsSphere(box, s)
}

// squaredDistancePointToSegment is the squared distance from p to the
// segment [a,b]. Used by the exact capped-cylinder tests. Degenerates
// cleanly to point-distance when a == b.
func squaredDistancePointToSegment(p, a, b Vec3) float32 {
	ab := b.Sub(a)
	abLenSq := ab.SquaredNorm()
	if abLenSq == 0 {
		return p.Sub(a).SquaredNorm()
	}
	t := p.Sub(a).Dot(ab) / abLenSq
	t = clamp(t, 0, 1)
	closest := a.Add(ab.Scale(t))
	return p.Sub(closest).SquaredNorm()
}

// SphereIntersectsCylinder is the exact test for a sphere query against a
// capped cylinder: true iff the distance from the sphere centre to the
// segment is within radius+sphere.Radius.
func SphereIntersectsCylinder(s Sphere, c Cylinder) bool {
	d2 := squaredDistancePointToSegment(s.Centre, c.P1, c.P2)
	r := s.Radius + c.Radius
	return d2 <= r*r
}

// BoxIntersectsCylinder tests a box query against a capped cylinder. A
// zero-length cylinder degrades to a sphere test: with a zero-length axis
// the anchor point stays at P1. Two rounds of alternating
// closest-point projection (box->segment, segment->box) locate the mutual
// closest points between the segment and the box.
//
// This converges to the true closest points for most configurations but
// is not provably exact: a segment and box both at an angle to every
// axis can leave the alternating projection one fixed-point iteration
// short of the true minimum, overestimating the distance slightly (a
// false negative right at the radius boundary). TODO: replace with a
// closed-form exact segment-box distance (e.g. the clipping method in
// Ericson's "Real-Time Collision Detection" 5.1.8) if that boundary case
// proves to matter in practice.
func BoxIntersectsCylinder(box Box, c Cylinder) bool {
	boxCentre := Vec3{
		(box.Min.X + box.Max.X) / 2,
		(box.Min.Y + box.Max.Y) / 2,
		(box.Min.Z + box.Max.Z) / 2,
	}
	ab := c.P2.Sub(c.P1)
	abLenSq := ab.SquaredNorm()
	var t float32
	if abLenSq > 0 {
		t = clamp(boxCentre.Sub(c.P1).Dot(ab)/abLenSq, 0, 1)
	}
	anchor := c.P1.Add(ab.Scale(t))
	closestOnBox := ClosestPointOnBox(box, anchor)

	if abLenSq > 0 {
		t = clamp(closestOnBox.Sub(c.P1).Dot(ab)/abLenSq, 0, 1)
		anchor = c.P1.Add(ab.Scale(t))
	}

	d2 := closestOnBox.Sub(anchor).SquaredNorm()
	return d2 <= c.Radius*c.Radius || Contains(box, Box{Min: anchor, Max: anchor})
}

// SquaredDistancePointToSphere is the squared distance from p to the
// surface-inclusive region of sphere; 0 if p is inside.
func SquaredDistancePointToSphere(s Sphere, p Vec3) float32 {
	d2 := p.Sub(s.Centre).SquaredNorm()
	r2 := s.Radius * s.Radius
	if d2 <= r2 {
		return 0
	}
	d := float32(math.Sqrt(float64(d2))) - s.Radius
	return d * d
}

// SquaredDistancePointToCylinder is the squared distance from p to the
// capped cylinder's surface-inclusive volume; 0 if p is inside.
func SquaredDistancePointToCylinder(c Cylinder, p Vec3) float32 {
	d2 := squaredDistancePointToSegment(p, c.P1, c.P2)
	r2 := c.Radius * c.Radius
	if d2 <= r2 {
		return 0
	}
	d := float32(math.Sqrt(float64(d2))) - c.Radius
	return d * d
}

func isFinite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// ValidSphere reports whether s has finite, non-negative geometry.
func ValidSphere(s Sphere) bool {
	return isFinite(s.Centre.X) && isFinite(s.Centre.Y) && isFinite(s.Centre.Z) &&
		isFinite(s.Radius) && s.Radius >= 0
}

// ValidCylinder reports whether c has finite, non-negative geometry.
func ValidCylinder(c Cylinder) bool {
	return isFinite(c.P1.X) && isFinite(c.P1.Y) && isFinite(c.P1.Z) &&
		isFinite(c.P2.X) && isFinite(c.P2.Y) && isFinite(c.P2.Z) &&
		isFinite(c.Radius) && c.Radius >= 0
}

// ValidPoint reports whether p has finite coordinates.
func ValidPoint(p Point) bool {
	return isFinite(p.Centre.X) && isFinite(p.Centre.Y) && isFinite(p.Centre.Z)
}
