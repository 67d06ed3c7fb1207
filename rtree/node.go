// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package rtree is the R-tree core: Sort-Tile-Recursive bulk load, box,
// sphere, and k-nearest traversal, and the byte-exact on-disk image used by
// both the in-memory and memory-mapped storage variants.
package rtree

import "github.com/bbp-spatial/spatial-index/geometry"

// node is one entry in the flattened node table produced by Build. Internal
// nodes reference children by index into the same table; leaves reference
// elements by index into the backing element.Store. Both slices are
// populated at build time and never mutated afterwards (I5).
type node struct {
	envelope geometry.Box
	isLeaf   bool

	// Populated when isLeaf.
	elements []int

	// Populated when !isLeaf; children[i] is the table index of child i.
	// childEnvelopes[i] always equals node.envelope of that child (I1),
	// duplicated here so that box/sphere descent at an internal node never
	// has to chase the child pointer before deciding whether to.
	childEnvelopes []geometry.Box
	children       []int
}

// Stats summarizes a built tree, mirroring the kind of diagnostics a caller
// building very large indexes wants without walking the tree themselves.
type Stats struct {
	NodeCount   int
	ElementCount int
	Height      int
	LeafCount   int
}
