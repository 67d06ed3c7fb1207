// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/geometry"
)

// Magic identifies a single-blob spatial-index image (§6): 4 bytes,
// followed by a 2-byte version, element-kind tag, node count, element
// count, and root offset.
var Magic = [4]byte{'S', 'P', 'X', '1'}

// FormatVersion is the current on-disk format version.
const FormatVersion uint16 = 1

const headerSize = 4 /*magic*/ + 2 /*version*/ + 1 /*kind*/ + 1 /*reserved*/ +
	4 /*nodeCount*/ + 4 /*elementCount*/ + 8 /*rootOffset*/ + 4 /*indexArrayLen*/ + 4 /*reserved*/

// nodeRecordSize is fixed so that node index*nodeRecordSize is the node's
// byte offset with no pointer fix-up on reopen: 1 byte isLeaf + 3 pad + 6
// float32 envelope (24 bytes) + uint32 indexStart + uint32 count.
const nodeRecordSize = 1 + 3 + 6*4 + 4 + 4

// elementRecordSize returns the fixed per-kind element record length: a
// shared 32-byte geometry block (prim tag + pad, two Vec3 + radius,
// naturally covering sphere/point as P1==P2) followed by kind-specific
// identifier fields.
func elementRecordSize(kind element.Kind) int {
	const geomBlock = 1 + 3 + 2*12 + 4 // prim tag + pad + P1 + P2 + radius
	switch kind {
	case element.KindMorphology:
		return geomBlock + 8 + 4 + 4 + 1 + 3 // gid, section_id, segment_id, is_soma+pad
	case element.KindSynapse:
		return geomBlock + 8 + 8 + 8 // id, pre_gid, post_gid
	case element.KindSphere:
		return geomBlock + 8 // id
	default:
		return 0
	}
}

// Header mirrors the decoded form of the byte-exact §6 header.
type Header struct {
	Version       uint16
	ElementKind   element.Kind
	NodeCount     uint32
	ElementCount  uint32
	RootOffset    uint64
	IndexArrayLen uint32
}

// Encode produces the single contiguous byte image of §4.C/§6: header,
// node table, index array, element table.
func Encode(t *Tree, kind element.Kind) ([]byte, error) {
	indexArray := make([]uint32, 0, len(t.nodes)*2)
	type nodeMeta struct {
		indexStart uint32
		count      uint32
	}
	metas := make([]nodeMeta, len(t.nodes))
	for i, n := range t.nodes {
		start := uint32(len(indexArray))
		if n.isLeaf {
			for _, e := range n.elements {
				indexArray = append(indexArray, uint32(e))
			}
			metas[i] = nodeMeta{indexStart: start, count: uint32(len(n.elements))}
		} else {
			for _, c := range n.children {
				indexArray = append(indexArray, uint32(c))
			}
			metas[i] = nodeMeta{indexStart: start, count: uint32(len(n.children))}
		}
	}

	nodeTableOff := headerSize
	indexArrayOff := nodeTableOff + len(t.nodes)*nodeRecordSize
	elementTableOff := indexArrayOff + len(indexArray)*4
	recSize := elementRecordSize(kind)
	total := elementTableOff + len(t.store.Elements)*recSize

	buf := make([]byte, total)

	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], FormatVersion)
	buf[6] = byte(kind)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(t.nodes)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(t.store.Elements)))
	rootOffset := uint64(nodeTableOff + t.root*nodeRecordSize)
	binary.LittleEndian.PutUint64(buf[16:24], rootOffset)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(indexArray)))

	for i, n := range t.nodes {
		off := nodeTableOff + i*nodeRecordSize
		rec := buf[off : off+nodeRecordSize]
		if n.isLeaf {
			rec[0] = 1
		}
		putBox(rec[4:28], n.envelope)
		binary.LittleEndian.PutUint32(rec[28:32], metas[i].indexStart)
		binary.LittleEndian.PutUint32(rec[32:36], metas[i].count)
	}

	for i, idx := range indexArray {
		off := indexArrayOff + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], idx)
	}

	for i, e := range t.store.Elements {
		off := elementTableOff + i*recSize
		if err := encodeElement(buf[off:off+recSize], kind, e); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func putBox(b []byte, box geometry.Box) {
	putF32(b[0:4], box.Min.X)
	putF32(b[4:8], box.Min.Y)
	putF32(b[8:12], box.Min.Z)
	putF32(b[12:16], box.Max.X)
	putF32(b[16:20], box.Max.Y)
	putF32(b[20:24], box.Max.Z)
}

func getBox(b []byte) geometry.Box {
	return geometry.Box{
		Min: geometry.Vec3{X: getF32(b[0:4]), Y: getF32(b[4:8]), Z: getF32(b[8:12])},
		Max: geometry.Vec3{X: getF32(b[12:16]), Y: getF32(b[16:20]), Z: getF32(b[20:24])},
	}
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func putVec3(b []byte, v geometry.Vec3) {
	putF32(b[0:4], v.X)
	putF32(b[4:8], v.Y)
	putF32(b[8:12], v.Z)
}

func getVec3(b []byte) geometry.Vec3 {
	return geometry.Vec3{X: getF32(b[0:4]), Y: getF32(b[4:8]), Z: getF32(b[8:12])}
}

func encodeElement(b []byte, kind element.Kind, e element.Element) error {
	b[0] = byte(e.Prim)
	switch e.Prim {
	case element.PrimSphere:
		putVec3(b[4:16], e.Sphere.Centre)
		putVec3(b[16:28], e.Sphere.Centre)
		putF32(b[28:32], e.Sphere.Radius)
	case element.PrimCylinder:
		putVec3(b[4:16], e.Cylinder.P1)
		putVec3(b[16:28], e.Cylinder.P2)
		putF32(b[28:32], e.Cylinder.Radius)
	case element.PrimPoint:
		putVec3(b[4:16], e.Point.Centre)
		putVec3(b[16:28], e.Point.Centre)
		putF32(b[28:32], 0)
	}

	rest := b[32:]
	switch kind {
	case element.KindMorphology:
		binary.LittleEndian.PutUint64(rest[0:8], e.GID)
		binary.LittleEndian.PutUint32(rest[8:12], e.SectionID)
		binary.LittleEndian.PutUint32(rest[12:16], e.SegmentID)
		if e.IsSoma {
			rest[16] = 1
		}
	case element.KindSynapse:
		binary.LittleEndian.PutUint64(rest[0:8], e.ID)
		binary.LittleEndian.PutUint64(rest[8:16], e.PreGID)
		binary.LittleEndian.PutUint64(rest[16:24], e.PostGID)
	case element.KindSphere:
		binary.LittleEndian.PutUint64(rest[0:8], e.ID)
	default:
		return fmt.Errorf("%w: unknown element kind %v", errs.ErrUnsupported, kind)
	}
	return nil
}

func decodeElement(b []byte, kind element.Kind) element.Element {
	var e element.Element
	e.Prim = element.PrimitiveTag(b[0])
	p1 := getVec3(b[4:16])
	p2 := getVec3(b[16:28])
	radius := getF32(b[28:32])

	switch e.Prim {
	case element.PrimSphere:
		e.Sphere = geometry.Sphere{Centre: p1, Radius: radius}
	case element.PrimCylinder:
		e.Cylinder = geometry.Cylinder{P1: p1, P2: p2, Radius: radius}
	case element.PrimPoint:
		e.Point = geometry.Point{Centre: p1}
	}

	rest := b[32:]
	switch kind {
	case element.KindMorphology:
		e.GID = binary.LittleEndian.Uint64(rest[0:8])
		e.SectionID = binary.LittleEndian.Uint32(rest[8:12])
		e.SegmentID = binary.LittleEndian.Uint32(rest[12:16])
		e.IsSoma = rest[16] != 0
	case element.KindSynapse:
		e.ID = binary.LittleEndian.Uint64(rest[0:8])
		e.PreGID = binary.LittleEndian.Uint64(rest[8:16])
		e.PostGID = binary.LittleEndian.Uint64(rest[16:24])
	case element.KindSphere:
		e.ID = binary.LittleEndian.Uint64(rest[0:8])
	}
	return e
}

// DecodeHeader parses just the §6 header from the start of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, fmt.Errorf("%w: image shorter than header (%d bytes)", errs.ErrIO, len(data))
	}
	if string(data[0:4]) != string(Magic[:]) {
		return Header{}, fmt.Errorf("%w: bad magic", errs.ErrIO)
	}
	return Header{
		Version:       binary.LittleEndian.Uint16(data[4:6]),
		ElementKind:   element.Kind(data[6]),
		NodeCount:     binary.LittleEndian.Uint32(data[8:12]),
		ElementCount:  binary.LittleEndian.Uint32(data[12:16]),
		RootOffset:    binary.LittleEndian.Uint64(data[16:24]),
		IndexArrayLen: binary.LittleEndian.Uint32(data[24:28]),
	}, nil
}

// Decode parses a byte image produced by Encode back into a heap-resident
// Tree and its backing element.Store (the in_memory storage variant's load
// path). Round trip is exact up to element order (P6): Decode(Encode(t)) is
// byte-for-byte queryable equivalent to t.
func Decode(data []byte) (*Tree, *element.Store, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, nil, err
	}

	nodeTableOff := headerSize
	indexArrayOff := nodeTableOff + int(hdr.NodeCount)*nodeRecordSize
	elementTableOff := indexArrayOff + int(hdr.IndexArrayLen)*4
	recSize := elementRecordSize(hdr.ElementKind)

	store := element.NewStore(hdr.ElementKind)
	store.Elements = make([]element.Element, hdr.ElementCount)
	for i := range store.Elements {
		off := elementTableOff + i*recSize
		store.Elements[i] = decodeElement(data[off:off+recSize], hdr.ElementKind)
	}

	nodes := make([]node, hdr.NodeCount)
	for i := range nodes {
		off := nodeTableOff + i*nodeRecordSize
		rec := data[off : off+nodeRecordSize]
		isLeaf := rec[0] == 1
		env := getBox(rec[4:28])
		indexStart := binary.LittleEndian.Uint32(rec[28:32])
		count := binary.LittleEndian.Uint32(rec[32:36])

		ids := make([]int, count)
		for j := uint32(0); j < count; j++ {
			idxOff := indexArrayOff + int(indexStart+j)*4
			ids[j] = int(binary.LittleEndian.Uint32(data[idxOff : idxOff+4]))
		}

		if isLeaf {
			nodes[i] = node{envelope: env, isLeaf: true, elements: ids}
		} else {
			nodes[i] = node{envelope: env, isLeaf: false, children: ids, childEnvelopes: make([]geometry.Box, len(ids))}
		}
	}

	// Internal nodes were decoded with a placeholder childEnvelopes; now
	// that every node is decoded, fill them from the children's own
	// envelope fields (I1: tight by construction, so this is exact, not a
	// recomputation).
	for i := range nodes {
		if nodes[i].isLeaf {
			continue
		}
		for j, c := range nodes[i].children {
			nodes[i].childEnvelopes[j] = nodes[c].envelope
		}
	}

	root := int((hdr.RootOffset - uint64(nodeTableOff)) / uint64(nodeRecordSize))
	t := &Tree{store: store, nodes: nodes, root: root}
	return t, store, nil
}
