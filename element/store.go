// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package element

import (
	"fmt"

	"github.com/bbp-spatial/spatial-index/geometry"
)

// Store is a columnar builder/holder of elements, insertion-order stable.
// Bulk load consumes a Store's elements; queries never mutate it (the tree
// is immutable once built).
type Store struct {
	Kind     Kind
	Elements []Element
}

// NewStore creates an empty Store for the given element kind.
func NewStore(kind Kind) *Store {
	return &Store{Kind: kind}
}

// Add appends e, preserving insertion order. Returns the index assigned to
// e, stable until the Store is mutated further.
func (s *Store) Add(e Element) int {
	s.Elements = append(s.Elements, e)
	return len(s.Elements) - 1
}

// Len returns the number of elements currently held.
func (s *Store) Len() int { return len(s.Elements) }

// Field is the closed grammar of projectable column names (§4.H), shared
// across Kind; a field not meaningful for a given element (e.g. pre_gid on
// a sphere element) yields its zero value rather than an error, so that
// callers can always ask for a field without first checking Kind.
type Field string

const (
	FieldGID       Field = "gid"
	FieldSectionID Field = "section_id"
	FieldSegmentID Field = "segment_id"
	FieldIsSoma    Field = "is_soma"
	FieldID        Field = "id"
	FieldPreGID    Field = "pre_gid"
	FieldPostGID   Field = "post_gid"
	FieldCentroid  Field = "centroid"
	FieldRadius    Field = "radius"
	FieldEndpoints Field = "endpoints"
)

// BuiltinFields lists every field Project understands.
func BuiltinFields() []Field {
	return []Field{
		FieldGID, FieldSectionID, FieldSegmentID, FieldIsSoma,
		FieldID, FieldPreGID, FieldPostGID,
		FieldCentroid, FieldRadius, FieldEndpoints,
	}
}

// IsBuiltinField reports whether name is a known built-in column, as
// opposed to an enrichment field forwarded to an external attribute store.
func IsBuiltinField(name string) bool {
	for _, f := range BuiltinFields() {
		if string(f) == name {
			return true
		}
	}
	return false
}

// Project materialises one column for the elements at the given indices.
// The returned value's concrete type depends on field: []uint64 for gid, id,
// pre_gid and post_gid, []uint32 for section_id and segment_id, []bool for
// is_soma, []float32 for radius, []geometry.Vec3 for
// centroid, and [][2]geometry.Vec3 for endpoints.
func (s *Store) Project(field Field, indices []int) (any, error) {
	switch field {
	case FieldGID:
		out := make([]uint64, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].GID
		}
		return out, nil
	case FieldSectionID:
		out := make([]uint32, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].SectionID
		}
		return out, nil
	case FieldSegmentID:
		out := make([]uint32, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].SegmentID
		}
		return out, nil
	case FieldIsSoma:
		out := make([]bool, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].IsSoma
		}
		return out, nil
	case FieldID:
		out := make([]uint64, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].ID
		}
		return out, nil
	case FieldPreGID:
		out := make([]uint64, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].PreGID
		}
		return out, nil
	case FieldPostGID:
		out := make([]uint64, len(indices))
		for i, idx := range indices {
			out[i] = s.Elements[idx].PostGID
		}
		return out, nil
	case FieldCentroid:
		out := make([]geometry.Vec3, len(indices))
		for i, idx := range indices {
			out[i] = centroid(s.Elements[idx])
		}
		return out, nil
	case FieldRadius:
		out := make([]float32, len(indices))
		for i, idx := range indices {
			out[i] = radius(s.Elements[idx])
		}
		return out, nil
	case FieldEndpoints:
		out := make([][2]geometry.Vec3, len(indices))
		for i, idx := range indices {
			out[i] = endpoints(s.Elements[idx])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("element: unknown field %q", field)
	}
}

// FieldValue returns a single element's value for field, the per-element
// counterpart to Project used by callers that decode elements one at a
// time rather than from a columnar Store (the memory-mapped and
// multi-index storage variants, §4.D/§4.F).
func FieldValue(e Element, field Field) (any, error) {
	switch field {
	case FieldGID:
		return e.GID, nil
	case FieldSectionID:
		return e.SectionID, nil
	case FieldSegmentID:
		return e.SegmentID, nil
	case FieldIsSoma:
		return e.IsSoma, nil
	case FieldID:
		return e.ID, nil
	case FieldPreGID:
		return e.PreGID, nil
	case FieldPostGID:
		return e.PostGID, nil
	case FieldCentroid:
		return centroid(e), nil
	case FieldRadius:
		return radius(e), nil
	case FieldEndpoints:
		return endpoints(e), nil
	default:
		return nil, fmt.Errorf("element: unknown field %q", field)
	}
}

func centroid(e Element) geometry.Vec3 {
	switch e.Prim {
	case PrimSphere:
		return e.Sphere.Centre
	case PrimCylinder:
		return e.Cylinder.P1.Add(e.Cylinder.P2).Scale(0.5)
	case PrimPoint:
		return e.Point.Centre
	default:
		return geometry.Vec3{}
	}
}

func radius(e Element) float32 {
	switch e.Prim {
	case PrimSphere:
		return e.Sphere.Radius
	case PrimCylinder:
		return e.Cylinder.Radius
	default:
		return 0
	}
}

func endpoints(e Element) [2]geometry.Vec3 {
	if e.Prim == PrimCylinder {
		return [2]geometry.Vec3{e.Cylinder.P1, e.Cylinder.P2}
	}
	c := centroid(e)
	return [2]geometry.Vec3{c, c}
}
