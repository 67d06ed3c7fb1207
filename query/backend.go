// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package query

import (
	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/internal/arena"
	"github.com/bbp-spatial/spatial-index/multiindex"
	"github.com/bbp-spatial/spatial-index/rtree"
)

// treeBackend adapts an in-memory rtree.Tree to backend.
type treeBackend struct {
	tree *rtree.Tree
}

func (b *treeBackend) boxQuery(box geometry.Box, acc rtree.Accuracy) ([]ref, error) {
	return intRefs(b.tree.BoxQuery(box, acc)), nil
}

func (b *treeBackend) sphereQuery(s geometry.Sphere, acc rtree.Accuracy) ([]ref, error) {
	return intRefs(b.tree.SphereQuery(s, acc)), nil
}

func (b *treeBackend) kNearest(centre geometry.Vec3, k int) ([]ref, error) {
	return intRefs(b.tree.KNearest(centre, k)), nil
}

func (b *treeBackend) element(r ref) (element.Element, error) {
	return b.tree.Store().Elements[r.idx], nil
}

func (b *treeBackend) envelope() geometry.Box { return b.tree.Envelope() }

func (b *treeBackend) close() error { return nil }

// mappedBackend adapts a memory-mapped rtree.MappedTree, plus the arena
// backing it, to backend.
type mappedBackend struct {
	tree  *rtree.MappedTree
	arena *arena.Arena
}

func (b *mappedBackend) boxQuery(box geometry.Box, acc rtree.Accuracy) ([]ref, error) {
	return intRefs(b.tree.BoxQuery(box, acc)), nil
}

func (b *mappedBackend) sphereQuery(s geometry.Sphere, acc rtree.Accuracy) ([]ref, error) {
	return intRefs(b.tree.SphereQuery(s, acc)), nil
}

func (b *mappedBackend) kNearest(centre geometry.Vec3, k int) ([]ref, error) {
	return intRefs(b.tree.KNearest(centre, k)), nil
}

func (b *mappedBackend) element(r ref) (element.Element, error) {
	return b.tree.Element(r.idx), nil
}

func (b *mappedBackend) envelope() geometry.Box { return b.tree.Envelope() }

func (b *mappedBackend) close() error { return b.arena.Close() }

// multiBackend adapts a multiindex.Reader to backend. The reader's Hit
// values are opaque outside the multiindex package's own addressing
// scheme, so they are carried through ref.opaque rather than decomposed.
type multiBackend struct {
	reader *multiindex.Reader
}

func (b *multiBackend) boxQuery(box geometry.Box, acc rtree.Accuracy) ([]ref, error) {
	hits, err := b.reader.BoxQuery(box, acc)
	if err != nil {
		return nil, err
	}
	return hitRefs(hits), nil
}

func (b *multiBackend) sphereQuery(s geometry.Sphere, acc rtree.Accuracy) ([]ref, error) {
	hits, err := b.reader.SphereQuery(s, acc)
	if err != nil {
		return nil, err
	}
	return hitRefs(hits), nil
}

func (b *multiBackend) kNearest(centre geometry.Vec3, k int) ([]ref, error) {
	hits, err := b.reader.KNearest(centre, k)
	if err != nil {
		return nil, err
	}
	return hitRefs(hits), nil
}

func (b *multiBackend) element(r ref) (element.Element, error) {
	return b.reader.Element(r.opaque.(multiindex.Hit))
}

func (b *multiBackend) envelope() geometry.Box { return b.reader.Envelope() }

func (b *multiBackend) close() error { return b.reader.Close() }

func intRefs(indices []int) []ref {
	out := make([]ref, len(indices))
	for i, idx := range indices {
		out[i] = ref{idx: idx}
	}
	return out
}

func hitRefs(hits []multiindex.Hit) []ref {
	out := make([]ref, len(hits))
	for i, h := range hits {
		out[i] = ref{opaque: h}
	}
	return out
}
