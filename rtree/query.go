// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

import (
	"container/heap"

	"github.com/bbp-spatial/spatial-index/geometry"
)

// BoxQuery returns the indices (into Store().Elements) of every element
// intersecting box under the given accuracy. Order is unspecified.
func (t *Tree) BoxQuery(box geometry.Box, accuracy Accuracy) []int {
	var out []int
	t.walkBox(t.root, box, accuracy, func(idx int) { out = append(out, idx) })
	return out
}

// CountBoxQuery returns len(BoxQuery(...)) without materialising elements.
func (t *Tree) CountBoxQuery(box geometry.Box, accuracy Accuracy) int {
	count := 0
	t.walkBox(t.root, box, accuracy, func(int) { count++ })
	return count
}

// GroupCountBoxQuery accumulates a count per value of keyOf(element index),
// visiting the same nodes as BoxQuery.
func (t *Tree) GroupCountBoxQuery(box geometry.Box, accuracy Accuracy, keyOf func(int) uint64) map[uint64]int {
	out := make(map[uint64]int)
	t.walkBox(t.root, box, accuracy, func(idx int) { out[keyOf(idx)]++ })
	return out
}

func (t *Tree) walkBox(nodeIdx int, box geometry.Box, accuracy Accuracy, emit func(int)) {
	n := &t.nodes[nodeIdx]
	if !geometry.BoxIntersectsBox(n.envelope, box) {
		return
	}
	if n.isLeaf {
		for _, idx := range n.elements {
			e := t.store.Elements[idx]
			if accuracy == AccuracyBestEffort {
				if e.IntersectsBox(box) {
					emit(idx)
				}
			} else {
				if geometry.BoxIntersectsBox(e.BoundingBox(), box) {
					emit(idx)
				}
			}
		}
		return
	}
	for i, c := range n.children {
		if geometry.BoxIntersectsBox(n.childEnvelopes[i], box) {
			t.walkBox(c, box, accuracy, emit)
		}
	}
}

// SphereQuery returns the indices of every element intersecting s under the
// given accuracy.
func (t *Tree) SphereQuery(s geometry.Sphere, accuracy Accuracy) []int {
	var out []int
	t.walkSphere(t.root, s, accuracy, func(idx int) { out = append(out, idx) })
	return out
}

// CountSphereQuery returns len(SphereQuery(...)) without materialising
// elements.
func (t *Tree) CountSphereQuery(s geometry.Sphere, accuracy Accuracy) int {
	count := 0
	t.walkSphere(t.root, s, accuracy, func(int) { count++ })
	return count
}

// GroupCountSphereQuery accumulates a count per value of keyOf(element
// index), visiting the same nodes as SphereQuery.
func (t *Tree) GroupCountSphereQuery(s geometry.Sphere, accuracy Accuracy, keyOf func(int) uint64) map[uint64]int {
	out := make(map[uint64]int)
	t.walkSphere(t.root, s, accuracy, func(idx int) { out[keyOf(idx)]++ })
	return out
}

func (t *Tree) walkSphere(nodeIdx int, s geometry.Sphere, accuracy Accuracy, emit func(int)) {
	n := &t.nodes[nodeIdx]
	if !geometry.BoxIntersectsSphere(n.envelope, s) {
		return
	}
	if n.isLeaf {
		for _, idx := range n.elements {
			e := t.store.Elements[idx]
			if accuracy == AccuracyBestEffort {
				if e.IntersectsSphere(s) {
					emit(idx)
				}
			} else {
				if geometry.BoxIntersectsSphere(e.BoundingBox(), s) {
					emit(idx)
				}
			}
		}
		return
	}
	for i, c := range n.children {
		if geometry.BoxIntersectsSphere(n.childEnvelopes[i], s) {
			t.walkSphere(c, s, accuracy, emit)
		}
	}
}

// knnEntry is one item in the best-first priority queue: either an internal
// node (keyed by squared distance from centre to its envelope) or a leaf
// element (keyed by exact squared distance to its primitive).
type knnEntry struct {
	dist    float32
	isElem  bool
	nodeIdx int
	elemIdx int
}

type knnHeap []knnEntry

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x interface{}) { *h = append(*h, x.(knnEntry)) }
func (h *knnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNearest returns up to k element indices closest to centre, ordered by
// ascending distance, using best-first search over the envelope/element
// squared-distance key (§4.C). Returns an empty slice for k == 0.
func (t *Tree) KNearest(centre geometry.Vec3, k int) []int {
	if k <= 0 || len(t.nodes) == 0 {
		return nil
	}

	h := &knnHeap{{
		dist:    geometry.SquaredDistancePointToBox(t.nodes[t.root].envelope, centre),
		isElem:  false,
		nodeIdx: t.root,
	}}
	heap.Init(h)

	var out []int
	for h.Len() > 0 && len(out) < k {
		top := heap.Pop(h).(knnEntry)
		if top.isElem {
			out = append(out, top.elemIdx)
			continue
		}
		n := &t.nodes[top.nodeIdx]
		if n.isLeaf {
			for _, idx := range n.elements {
				d := t.store.Elements[idx].SquaredDistanceTo(centre)
				heap.Push(h, knnEntry{dist: d, isElem: true, elemIdx: idx})
			}
			continue
		}
		for i, c := range n.children {
			d := geometry.SquaredDistancePointToBox(n.childEnvelopes[i], centre)
			heap.Push(h, knnEntry{dist: d, isElem: false, nodeIdx: c})
		}
	}
	return out
}
