// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package multiindex

import "github.com/bbp-spatial/spatial-index/geometry"

// Entry is one row of the top index (§3): a subtree's envelope and its
// opaque on-disk identifier.
type Entry struct {
	Envelope  geometry.Box
	SubtreeID int
}

// TopIndex holds (envelope, subtree_id) pairs and answers "which subtrees
// intersect this query". Subtree counts are bounded by the worker count
// (a power of two, §4.E prerequisite), so a flat scan over entries is the
// right-sized structure here: even at a few hundred workers this stays
// far smaller than the STR bulk load's leaf capacity would ever tile into
// more than one internal level, so the fan-out machinery of package rtree
// would add indirection without buying anything.
type TopIndex struct {
	entries []Entry
}

// BuildTopIndex assembles the top index from every worker's subtree
// envelope (§4.E step 5).
func BuildTopIndex(entries []Entry) *TopIndex {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &TopIndex{entries: cp}
}

// Entries returns the top index's rows, in build order.
func (ti *TopIndex) Entries() []Entry { return ti.entries }

// Envelope is the union of every subtree's envelope.
func (ti *TopIndex) Envelope() geometry.Box {
	if len(ti.entries) == 0 {
		return geometry.Box{}
	}
	acc := ti.entries[0].Envelope
	for _, e := range ti.entries[1:] {
		acc = geometry.Union(acc, e.Envelope)
	}
	return acc
}

// IntersectingBox returns the subtree ids whose envelope intersects box.
// Order of visit is unspecified (§4.F).
func (ti *TopIndex) IntersectingBox(box geometry.Box) []int {
	var out []int
	for _, e := range ti.entries {
		if geometry.BoxIntersectsBox(e.Envelope, box) {
			out = append(out, e.SubtreeID)
		}
	}
	return out
}

// IntersectingSphere returns the subtree ids whose envelope intersects s.
func (ti *TopIndex) IntersectingSphere(s geometry.Sphere) []int {
	var out []int
	for _, e := range ti.entries {
		if geometry.BoxIntersectsSphere(e.Envelope, s) {
			out = append(out, e.SubtreeID)
		}
	}
	return out
}
