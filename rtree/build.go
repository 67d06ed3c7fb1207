// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

import (
	"fmt"
	"math"
	"sort"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/geometry"
)

// DefaultFanout and DefaultLeafCapacity are the M and L of §3: "typical
// M = 16, typical L = 16".
const (
	DefaultFanout       = 16
	DefaultLeafCapacity = 16
)

// BuildOptions configures a bulk load. The zero value is not ready to use;
// use NewBuildOptions for the §3 defaults.
type BuildOptions struct {
	Fanout       int
	LeafCapacity int
}

// NewBuildOptions returns the §3 default M=16, L=16, adjustable with the
// With* functional options.
func NewBuildOptions(opts ...func(*BuildOptions)) BuildOptions {
	b := BuildOptions{Fanout: DefaultFanout, LeafCapacity: DefaultLeafCapacity}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// WithFanout overrides M.
func WithFanout(m int) func(*BuildOptions) {
	return func(b *BuildOptions) { b.Fanout = m }
}

// WithLeafCapacity overrides L.
func WithLeafCapacity(l int) func(*BuildOptions) {
	return func(b *BuildOptions) { b.LeafCapacity = l }
}

// Tree is a bulk-loaded, immutable R-tree over a fixed element.Store.
type Tree struct {
	store *element.Store
	nodes []node
	root  int
}

// Store returns the backing element store. Callers of raw-element query
// results borrow from it; it must not outlive the Tree (§9).
func (t *Tree) Store() *element.Store { return t.store }

// Envelope returns the root's bounding box.
func (t *Tree) Envelope() geometry.Box {
	if len(t.nodes) == 0 {
		return geometry.Box{}
	}
	return t.nodes[t.root].envelope
}

// Stats walks the node hierarchy and reports its shape.
func (t *Tree) Stats() Stats {
	var s Stats
	s.NodeCount = len(t.nodes)
	s.ElementCount = len(t.store.Elements)
	if len(t.nodes) == 0 {
		return s
	}
	var depth func(idx, d int)
	depth = func(idx, d int) {
		n := &t.nodes[idx]
		if n.isLeaf {
			s.LeafCount++
			if d > s.Height {
				s.Height = d
			}
			return
		}
		for _, c := range n.children {
			depth(c, d+1)
		}
	}
	depth(t.root, 0)
	return s
}

// Build performs the deterministic Sort-Tile-Recursive bulk load of §4.C
// over every element currently in store. Malformed input (non-finite
// coordinate, negative radius) fails the whole build; no partial tree is
// returned.
func Build(store *element.Store, opts BuildOptions) (*Tree, error) {
	n := len(store.Elements)
	for i, e := range store.Elements {
		if !e.Valid() {
			return nil, fmt.Errorf("%w: element at index %d has invalid geometry", errs.ErrInvalidInput, i)
		}
	}
	if opts.Fanout < 2 {
		return nil, fmt.Errorf("%w: fanout must be >= 2, got %d", errs.ErrInvalidInput, opts.Fanout)
	}
	if opts.LeafCapacity < 1 {
		return nil, fmt.Errorf("%w: leaf capacity must be >= 1, got %d", errs.ErrInvalidInput, opts.LeafCapacity)
	}

	t := &Tree{store: store}

	if n == 0 {
		t.nodes = []node{{isLeaf: true, elements: nil}}
		t.root = 0
		return t, nil
	}

	boxes := make([]geometry.Box, n)
	for i, e := range store.Elements {
		boxes[i] = e.BoundingBox()
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	leaves := strTile(store, boxes, indices, opts.LeafCapacity)

	t.nodes = make([]node, 0, len(leaves)*2)
	leafIdx := make([]int, len(leaves))
	for i, leaf := range leaves {
		env := geometry.UnionAll(boxesOf(boxes, leaf))
		leafIdx[i] = len(t.nodes)
		t.nodes = append(t.nodes, node{envelope: env, isLeaf: true, elements: leaf})
	}

	t.root = buildInternalLevels(t, leafIdx, opts.Fanout)
	return t, nil
}

func boxesOf(boxes []geometry.Box, idx []int) []geometry.Box {
	out := make([]geometry.Box, len(idx))
	for i, j := range idx {
		out[i] = boxes[j]
	}
	return out
}

// buildInternalLevels groups child node indices M at a time into parents,
// repeating until a single root remains, and returns the root's index into
// t.nodes.
func buildInternalLevels(t *Tree, level []int, fanout int) int {
	for len(level) > 1 {
		next := make([]int, 0, (len(level)+fanout-1)/fanout)
		for start := 0; start < len(level); start += fanout {
			end := start + fanout
			if end > len(level) {
				end = len(level)
			}
			children := append([]int(nil), level[start:end]...)
			envs := make([]geometry.Box, len(children))
			for i, c := range children {
				envs[i] = t.nodes[c].envelope
			}
			idx := len(t.nodes)
			t.nodes = append(t.nodes, node{
				envelope:       geometry.UnionAll(envs),
				isLeaf:         false,
				children:       children,
				childEnvelopes: envs,
			})
			next = append(next, idx)
		}
		level = next
	}
	return level[0]
}

// strTile implements §4.C step 3: sort by centre x, tile into T groups,
// recurse on y then z, and chunk the z-sorted leaves of a sub-group into
// leaves of L elements. Tie-breaks in every sort use the element's
// identifier, so the result is fully determined by the input ordering.
func strTile(store *element.Store, boxes []geometry.Box, indices []int, leafCap int) [][]int {
	n := len(indices)
	s := ceilDiv(n, leafCap)
	tiles := ceilCubeRoot(s)

	sortByAxis(store, boxes, indices, 0)
	xGroups := splitInto(indices, tiles, leafCap)

	var leaves [][]int
	for _, xg := range xGroups {
		sortByAxis(store, boxes, xg, 1)
		yGroups := splitInto(xg, tiles, leafCap)
		for _, yg := range yGroups {
			sortByAxis(store, boxes, yg, 2)
			leaves = append(leaves, chunk(yg, leafCap)...)
		}
	}
	return leaves
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func ceilCubeRoot(s int) int {
	if s <= 1 {
		return 1
	}
	root := int(math.Ceil(math.Cbrt(float64(s))))
	if root < 1 {
		root = 1
	}
	return root
}

// splitInto partitions indices (already sorted along the relevant axis)
// into at most `tiles` contiguous groups of roughly ceil(len/tiles/leafCap)
// * leafCap elements each, per §4.C step 3.
func splitInto(indices []int, tiles, leafCap int) [][]int {
	if tiles <= 1 || len(indices) <= leafCap {
		return [][]int{indices}
	}
	groupSize := ceilDiv(ceilDiv(len(indices), leafCap), tiles) * leafCap
	if groupSize < 1 {
		groupSize = len(indices)
	}
	var groups [][]int
	for start := 0; start < len(indices); start += groupSize {
		end := start + groupSize
		if end > len(indices) {
			end = len(indices)
		}
		groups = append(groups, indices[start:end])
	}
	return groups
}

func chunk(indices []int, leafCap int) [][]int {
	var out [][]int
	for start := 0; start < len(indices); start += leafCap {
		end := start + leafCap
		if end > len(indices) {
			end = len(indices)
		}
		leaf := append([]int(nil), indices[start:end]...)
		out = append(out, leaf)
	}
	return out
}

// sortByAxis sorts indices in place by the bounding box centre along the
// given axis (0=x, 1=y, 2=z), breaking ties on the element identifier so
// that bulk load is a pure function of the input ordering.
func sortByAxis(store *element.Store, boxes []geometry.Box, indices []int, axis int) {
	center := func(i int) float32 {
		b := boxes[i]
		switch axis {
		case 0:
			return (b.Min.X + b.Max.X) / 2
		case 1:
			return (b.Min.Y + b.Max.Y) / 2
		default:
			return (b.Min.Z + b.Max.Z) / 2
		}
	}
	sort.SliceStable(indices, func(a, bIdx int) bool {
		ia, ib := indices[a], indices[bIdx]
		ca, cb := center(ia), center(ib)
		if ca != cb {
			return ca < cb
		}
		return store.Elements[ia].Identifier() < store.Elements[ib].Identifier()
	})
}
