// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package query implements the unified façade of §4.H: one API across the
// three storage variants and three query shapes, with four result
// flavours (raw elements, a single field, multiple fields, and counts).
package query

import (
	"fmt"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/rtree"
)

// Shape is the closed set of query shapes (§4.H).
type Shape struct {
	Box      *BoxShape
	Sphere   *SphereShape
	KNearest *KNearestShape
}

type BoxShape struct{ Min, Max geometry.Vec3 }

type SphereShape struct {
	Centre geometry.Vec3
	Radius float32
}

type KNearestShape struct {
	Centre geometry.Vec3
	K      int
}

// Flavour is the closed set of result shapes (§4.H).
type Flavour int

const (
	// FlavourRaw returns element records as-is.
	FlavourRaw Flavour = iota
	// FlavourFields returns one array per requested field.
	FlavourFields
	// FlavourCounts returns a scalar, or a group_value -> count mapping
	// when GroupBy is set.
	FlavourCounts
)

// Query describes one call through the façade.
type Query struct {
	Shape    Shape
	Accuracy rtree.Accuracy
	Flavour  Flavour
	// Fields is read when Flavour == FlavourFields. A single entry is the
	// identifier-field shortcut of §4.H; multiple entries request the
	// struct-of-arrays shape.
	Fields []string
	// GroupBy is read when Flavour == FlavourCounts; empty means a plain
	// scalar count.
	GroupBy string
}

// Result carries exactly the fields relevant to the query's Flavour.
type Result struct {
	Elements    []element.Element
	Columns     map[string][]any
	Count       int
	GroupCounts map[uint64]int
}

// ref addresses one hit. idx is used by the single-tree and
// memory-mapped backends; opaque carries a multiindex.Hit for the
// multi-index backend, which addresses results by (subtree, local index)
// rather than a single flat index.
type ref struct {
	idx    int
	opaque any
}

// backend is the minimum surface every storage variant exposes so Facade
// can be written once against all three (§4.G "resolver ... constructs
// the matching façade").
type backend interface {
	boxQuery(box geometry.Box, acc rtree.Accuracy) ([]ref, error)
	sphereQuery(s geometry.Sphere, acc rtree.Accuracy) ([]ref, error)
	kNearest(centre geometry.Vec3, k int) ([]ref, error)
	element(r ref) (element.Element, error)
	envelope() geometry.Box
	close() error
}

func validateShape(q Query) error {
	n := 0
	if q.Shape.Box != nil {
		n++
	}
	if q.Shape.Sphere != nil {
		n++
	}
	if q.Shape.KNearest != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: exactly one of box/sphere/k_nearest must be set", errs.ErrInvalidInput)
	}
	return nil
}

// run executes q against b and returns the raw hit refs; every flavour,
// counts included, is materialised from these refs by Facade.Query.
func run(b backend, q Query) ([]ref, error) {
	acc := rtree.ResolveAccuracy(&q.Accuracy)
	switch {
	case q.Shape.Box != nil:
		return b.boxQuery(geometry.Box{Min: q.Shape.Box.Min, Max: q.Shape.Box.Max}, acc)
	case q.Shape.Sphere != nil:
		return b.sphereQuery(geometry.Sphere{Centre: q.Shape.Sphere.Centre, Radius: q.Shape.Sphere.Radius}, acc)
	case q.Shape.KNearest != nil:
		if q.Shape.KNearest.K <= 0 {
			return nil, nil
		}
		return b.kNearest(q.Shape.KNearest.Centre, q.Shape.KNearest.K)
	default:
		return nil, fmt.Errorf("%w: exactly one of box/sphere/k_nearest must be set", errs.ErrInvalidInput)
	}
}

// Facade is a single-population, single-variant query surface (§4.H). Use
// Open to construct one from an index directory.
type Facade struct {
	backend backend
	kind    element.Kind
}

// Query evaluates q and materialises the result flavour it asks for.
// Raw-element results borrow from the underlying index and must not
// outlive it (§9).
func (f *Facade) Query(q Query) (Result, error) {
	if err := validateShape(q); err != nil {
		return Result{}, err
	}
	refs, err := run(f.backend, q)
	if err != nil {
		return Result{}, err
	}

	switch q.Flavour {
	case FlavourRaw:
		elems := make([]element.Element, len(refs))
		for i, r := range refs {
			e, err := f.backend.element(r)
			if err != nil {
				return Result{}, err
			}
			elems[i] = e
		}
		return Result{Elements: elems}, nil

	case FlavourFields:
		if len(q.Fields) == 0 {
			return Result{}, fmt.Errorf("%w: field flavour requires at least one field", errs.ErrInvalidField)
		}
		cols := make(map[string][]any, len(q.Fields))
		for _, field := range q.Fields {
			col := make([]any, len(refs))
			for i, r := range refs {
				e, err := f.backend.element(r)
				if err != nil {
					return Result{}, err
				}
				v, err := element.FieldValue(e, element.Field(field))
				if err != nil {
					return Result{}, fmt.Errorf("%w: %v", errs.ErrInvalidField, err)
				}
				col[i] = v
			}
			cols[field] = col
		}
		return Result{Columns: cols}, nil

	case FlavourCounts:
		if q.GroupBy == "" {
			return Result{Count: len(refs)}, nil
		}
		groups := make(map[uint64]int)
		for _, r := range refs {
			e, err := f.backend.element(r)
			if err != nil {
				return Result{}, err
			}
			v, err := element.FieldValue(e, element.Field(q.GroupBy))
			if err != nil {
				return Result{}, fmt.Errorf("%w: %v", errs.ErrInvalidField, err)
			}
			key, ok := asUint64(v)
			if !ok {
				return Result{}, fmt.Errorf("%w: group_by field %q is not an identifier field", errs.ErrInvalidField, q.GroupBy)
			}
			groups[key]++
		}
		return Result{GroupCounts: groups}, nil

	default:
		return Result{}, fmt.Errorf("%w: unknown result flavour", errs.ErrInvalidField)
	}
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	default:
		return 0, false
	}
}

// Kind returns the element schema this façade serves.
func (f *Facade) Kind() element.Kind { return f.kind }

// Envelope returns the bounding box of every element this façade serves,
// used by index-compare to bound its random query generation.
func (f *Facade) Envelope() geometry.Box { return f.backend.envelope() }

// Close releases the underlying storage variant's resources.
func (f *Facade) Close() error { return f.backend.close() }
