// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package element holds the tagged-union element variants the R-tree
// indexes, and a columnar builder/store for them.
//
// An element is a primitive (sphere, capped cylinder, or point) plus an
// identifier payload. The payload schema is fixed by Kind: morphology
// elements carry (gid, section_id, segment_id, is_soma), synapse elements
// carry (id, pre_gid, post_gid), generic sphere elements carry only (id).
package element

import (
	"fmt"

	"github.com/bbp-spatial/spatial-index/geometry"
)

// Kind is the closed set of element schemas the index supports.
type Kind uint8

const (
	KindMorphology Kind = iota
	KindSynapse
	KindSphere
)

func (k Kind) String() string {
	switch k {
	case KindMorphology:
		return "morphology"
	case KindSynapse:
		return "synapse"
	case KindSphere:
		return "sphere"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// PrimitiveTag distinguishes the geometric shape of an element, independent
// of its identifier schema. A morphology element is a Sphere iff it is a
// soma (section_id == 0 && segment_id == 0), otherwise a Cylinder.
type PrimitiveTag uint8

const (
	PrimSphere PrimitiveTag = iota
	PrimCylinder
	PrimPoint
)

// Element is one indexed primitive with its identifier payload. Exactly one
// of Sphere/Cylinder/Point is meaningful, selected by Prim.
type Element struct {
	Prim     PrimitiveTag
	Sphere   geometry.Sphere
	Cylinder geometry.Cylinder
	Point    geometry.Point

	// Morphology payload.
	GID       uint64
	SectionID uint32
	SegmentID uint32
	IsSoma    bool

	// Synapse payload.
	ID      uint64
	PreGID  uint64
	PostGID uint64
}

// BoundingBox dispatches to the active primitive's bounding box.
func (e Element) BoundingBox() geometry.Box {
	switch e.Prim {
	case PrimSphere:
		return e.Sphere.BoundingBox()
	case PrimCylinder:
		return e.Cylinder.BoundingBox()
	case PrimPoint:
		return e.Point.BoundingBox()
	default:
		panic(fmt.Sprintf("element: unknown primitive tag %d", e.Prim))
	}
}

// IntersectsBox is the exact "best_effort" primitive/box test.
func (e Element) IntersectsBox(box geometry.Box) bool {
	switch e.Prim {
	case PrimSphere:
		return geometry.BoxIntersectsSphere(box, e.Sphere)
	case PrimCylinder:
		return geometry.BoxIntersectsCylinder(box, e.Cylinder)
	case PrimPoint:
		return geometry.BoxIntersectsBox(box, e.Point.BoundingBox())
	default:
		panic(fmt.Sprintf("element: unknown primitive tag %d", e.Prim))
	}
}

// IntersectsSphere is the exact "best_effort" primitive/sphere test.
func (e Element) IntersectsSphere(s geometry.Sphere) bool {
	switch e.Prim {
	case PrimSphere:
		return geometry.SphereIntersectsSphere(s, e.Sphere)
	case PrimCylinder:
		return geometry.SphereIntersectsCylinder(s, e.Cylinder)
	case PrimPoint:
		return geometry.SquaredDistancePointToBox(geometry.Box{Min: e.Point.Centre, Max: e.Point.Centre}, s.Centre) <= s.Radius*s.Radius
	default:
		panic(fmt.Sprintf("element: unknown primitive tag %d", e.Prim))
	}
}

// SquaredDistanceTo is the exact distance used by k-nearest at leaves.
func (e Element) SquaredDistanceTo(p geometry.Vec3) float32 {
	switch e.Prim {
	case PrimSphere:
		return geometry.SquaredDistancePointToSphere(e.Sphere, p)
	case PrimCylinder:
		return geometry.SquaredDistancePointToCylinder(e.Cylinder, p)
	case PrimPoint:
		return p.Sub(e.Point.Centre).SquaredNorm()
	default:
		panic(fmt.Sprintf("element: unknown primitive tag %d", e.Prim))
	}
}

// Identifier returns the field used for tie-breaks during bulk load (§4.C)
// and for the default group_by key, one per Kind.
func (e Element) Identifier() uint64 {
	switch {
	case e.Prim == PrimCylinder || (e.Prim == PrimSphere && e.GID != 0) || e.IsSoma:
		return e.GID
	default:
		return e.ID
	}
}

// NewMorphologySoma builds a soma element: a sphere with section_id=0,
// segment_id=0.
func NewMorphologySoma(gid uint64, centre geometry.Vec3, radius float32) Element {
	return Element{
		Prim:   PrimSphere,
		Sphere: geometry.Sphere{Centre: centre, Radius: radius},
		GID:    gid,
		IsSoma: true,
	}
}

// NewMorphologySegment builds a non-soma segment element: a capped cylinder
// with section_id >= 1.
func NewMorphologySegment(gid uint64, sectionID, segmentID uint32, p1, p2 geometry.Vec3, radius float32) Element {
	return Element{
		Prim:      PrimCylinder,
		Cylinder:  geometry.Cylinder{P1: p1, P2: p2, Radius: radius},
		GID:       gid,
		SectionID: sectionID,
		SegmentID: segmentID,
	}
}

// NewSynapse builds a synapse element: a point with (id, pre_gid, post_gid).
func NewSynapse(id, preGID, postGID uint64, centre geometry.Vec3) Element {
	return Element{
		Prim:    PrimPoint,
		Point:   geometry.Point{Centre: centre},
		ID:      id,
		PreGID:  preGID,
		PostGID: postGID,
	}
}

// NewSphere builds a generic sphere element: a sphere with only an id.
func NewSphere(id uint64, centre geometry.Vec3, radius float32) Element {
	return Element{
		Prim:   PrimSphere,
		Sphere: geometry.Sphere{Centre: centre, Radius: radius},
		ID:     id,
	}
}

// Valid reports whether e's geometry is finite and, where applicable,
// non-negative. A malformed element fails the whole build (§4.C).
func (e Element) Valid() bool {
	switch e.Prim {
	case PrimSphere:
		return geometry.ValidSphere(e.Sphere)
	case PrimCylinder:
		return geometry.ValidCylinder(e.Cylinder)
	case PrimPoint:
		return geometry.ValidPoint(e.Point)
	default:
		return false
	}
}
