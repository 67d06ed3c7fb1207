// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

import (
	"container/heap"
	"encoding/binary"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/geometry"
)

// Mapper is the subset of internal/arena.Arena the memory-mapped tree
// needs: a byte-addressable backing region and a bump allocator to write
// into at build time. Kept as an interface here so rtree does not import
// the arena package's file/mmap machinery directly.
type Mapper interface {
	Alloc(n int) (int64, error)
	Bytes() []byte
}

// MappedTree is the memory-mapped storage variant of §4.D: the exact same
// byte image as Encode, but queried directly against the mapped bytes
// instead of being parsed into a heap-resident Tree. Nodes are decoded one
// record at a time as the traversal visits them, so the OS only pages in
// the bytes actually touched by a query.
type MappedTree struct {
	data            []byte
	hdr             Header
	nodeTableOff    int
	indexArrayOff   int
	elementTableOff int
	elemRecSize     int
}

// BuildMapped bulk-loads store the same way Build does, then writes the
// resulting byte image into m starting at offset 0 via its allocator. The
// header is written last (§4.D).
func BuildMapped(store *element.Store, opts BuildOptions, kind element.Kind, m Mapper) (*MappedTree, error) {
	tree, err := Build(store, opts)
	if err != nil {
		return nil, err
	}
	image, err := Encode(tree, kind)
	if err != nil {
		return nil, err
	}
	off, err := m.Alloc(len(image))
	if err != nil {
		return nil, err
	}
	dst := m.Bytes()[off : int(off)+len(image)]
	copy(dst[headerSize:], image[headerSize:])
	copy(dst[:headerSize], image[:headerSize])
	return OpenMappedBytes(dst)
}

// OpenMappedBytes wraps an already-encoded byte image (e.g. a freshly
// reopened arena's mapping) as a MappedTree without copying it.
func OpenMappedBytes(data []byte) (*MappedTree, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	nodeTableOff := headerSize
	indexArrayOff := nodeTableOff + int(hdr.NodeCount)*nodeRecordSize
	elementTableOff := indexArrayOff + int(hdr.IndexArrayLen)*4
	return &MappedTree{
		data:            data,
		hdr:             hdr,
		nodeTableOff:    nodeTableOff,
		indexArrayOff:   indexArrayOff,
		elementTableOff: elementTableOff,
		elemRecSize:     elementRecordSize(hdr.ElementKind),
	}, nil
}

func (m *MappedTree) nodeOffset(idx int) int { return m.nodeTableOff + idx*nodeRecordSize }

func (m *MappedTree) nodeRecord(idx int) (isLeaf bool, env geometry.Box, children []int) {
	off := m.nodeOffset(idx)
	rec := m.data[off : off+nodeRecordSize]
	isLeaf = rec[0] == 1
	env = getBox(rec[4:28])
	indexStart := binary.LittleEndian.Uint32(rec[28:32])
	count := binary.LittleEndian.Uint32(rec[32:36])
	children = make([]int, count)
	for i := uint32(0); i < count; i++ {
		off := m.indexArrayOff + int(indexStart+i)*4
		children[i] = int(binary.LittleEndian.Uint32(m.data[off : off+4]))
	}
	return
}

func (m *MappedTree) element(idx int) element.Element {
	off := m.elementTableOff + idx*m.elemRecSize
	return decodeElement(m.data[off:off+m.elemRecSize], m.hdr.ElementKind)
}

// Element returns the idx'th element, decoded on demand from the mapping.
// The returned value borrows from the mapping's lifetime (§9): it must not
// be used after the MappedTree's arena is closed.
func (m *MappedTree) Element(idx int) element.Element { return m.element(idx) }

// ElementCount is the number of elements in the image.
func (m *MappedTree) ElementCount() int { return int(m.hdr.ElementCount) }

// Kind is the element schema of the image.
func (m *MappedTree) Kind() element.Kind { return m.hdr.ElementKind }

// Envelope returns the root node's bounding box.
func (m *MappedTree) Envelope() geometry.Box {
	rootIdx := int((m.hdr.RootOffset - uint64(m.nodeTableOff)) / uint64(nodeRecordSize))
	_, env, _ := m.nodeRecord(rootIdx)
	return env
}

func (m *MappedTree) rootIndex() int {
	return int((m.hdr.RootOffset - uint64(m.nodeTableOff)) / uint64(nodeRecordSize))
}

// BoxQuery mirrors Tree.BoxQuery, decoding nodes lazily from the mapping.
func (m *MappedTree) BoxQuery(box geometry.Box, accuracy Accuracy) []int {
	var out []int
	m.walkBox(m.rootIndex(), box, accuracy, func(idx int) { out = append(out, idx) })
	return out
}

// CountBoxQuery mirrors Tree.CountBoxQuery.
func (m *MappedTree) CountBoxQuery(box geometry.Box, accuracy Accuracy) int {
	count := 0
	m.walkBox(m.rootIndex(), box, accuracy, func(int) { count++ })
	return count
}

// GroupCountBoxQuery mirrors Tree.GroupCountBoxQuery.
func (m *MappedTree) GroupCountBoxQuery(box geometry.Box, accuracy Accuracy, keyOf func(int) uint64) map[uint64]int {
	out := make(map[uint64]int)
	m.walkBox(m.rootIndex(), box, accuracy, func(idx int) { out[keyOf(idx)]++ })
	return out
}

func (m *MappedTree) walkBox(nodeIdx int, box geometry.Box, accuracy Accuracy, emit func(int)) {
	isLeaf, env, children := m.nodeRecord(nodeIdx)
	if !geometry.BoxIntersectsBox(env, box) {
		return
	}
	if isLeaf {
		for _, idx := range children {
			e := m.element(idx)
			if accuracy == AccuracyBestEffort {
				if e.IntersectsBox(box) {
					emit(idx)
				}
			} else if geometry.BoxIntersectsBox(e.BoundingBox(), box) {
				emit(idx)
			}
		}
		return
	}
	for _, c := range children {
		m.walkBox(c, box, accuracy, emit)
	}
}

// SphereQuery mirrors Tree.SphereQuery.
func (m *MappedTree) SphereQuery(s geometry.Sphere, accuracy Accuracy) []int {
	var out []int
	m.walkSphere(m.rootIndex(), s, accuracy, func(idx int) { out = append(out, idx) })
	return out
}

// CountSphereQuery mirrors Tree.CountSphereQuery.
func (m *MappedTree) CountSphereQuery(s geometry.Sphere, accuracy Accuracy) int {
	count := 0
	m.walkSphere(m.rootIndex(), s, accuracy, func(int) { count++ })
	return count
}

// GroupCountSphereQuery mirrors Tree.GroupCountSphereQuery.
func (m *MappedTree) GroupCountSphereQuery(s geometry.Sphere, accuracy Accuracy, keyOf func(int) uint64) map[uint64]int {
	out := make(map[uint64]int)
	m.walkSphere(m.rootIndex(), s, accuracy, func(idx int) { out[keyOf(idx)]++ })
	return out
}

func (m *MappedTree) walkSphere(nodeIdx int, s geometry.Sphere, accuracy Accuracy, emit func(int)) {
	isLeaf, env, children := m.nodeRecord(nodeIdx)
	if !geometry.BoxIntersectsSphere(env, s) {
		return
	}
	if isLeaf {
		for _, idx := range children {
			e := m.element(idx)
			if accuracy == AccuracyBestEffort {
				if e.IntersectsSphere(s) {
					emit(idx)
				}
			} else if geometry.BoxIntersectsSphere(e.BoundingBox(), s) {
				emit(idx)
			}
		}
		return
	}
	for _, c := range children {
		m.walkSphere(c, s, accuracy, emit)
	}
}

// KNearest mirrors Tree.KNearest.
func (m *MappedTree) KNearest(centre geometry.Vec3, k int) []int {
	if k <= 0 {
		return nil
	}
	rootIdx := m.rootIndex()
	_, env, _ := m.nodeRecord(rootIdx)

	h := &knnHeap{{dist: geometry.SquaredDistancePointToBox(env, centre), isElem: false, nodeIdx: rootIdx}}
	heap.Init(h)

	var out []int
	for h.Len() > 0 && len(out) < k {
		top := heap.Pop(h).(knnEntry)
		if top.isElem {
			out = append(out, top.elemIdx)
			continue
		}
		isLeaf, _, children := m.nodeRecord(top.nodeIdx)
		if isLeaf {
			for _, idx := range children {
				d := m.element(idx).SquaredDistanceTo(centre)
				heap.Push(h, knnEntry{dist: d, isElem: true, elemIdx: idx})
			}
			continue
		}
		for _, c := range children {
			_, cenv, _ := m.nodeRecord(c)
			d := geometry.SquaredDistancePointToBox(cenv, centre)
			heap.Push(h, knnEntry{dist: d, isElem: false, nodeIdx: c})
		}
	}
	return out
}

// Close is a no-op placeholder so MappedTree satisfies the same shutdown
// shape as other storage variants; the caller's arena owns the mapping's
// actual lifetime (§3: "a memory-mapped tree shares ownership of the
// mapping with any open handle").
func (m *MappedTree) Close() error { return nil }
