// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package source declares the external collaborator contracts the
// builders consume (§6 "External interfaces"): where morphology and
// synapse data comes from, and where enrichment attributes are fetched
// from at query time.
package source

import "github.com/bbp-spatial/spatial-index/geometry"

// Segment is one non-soma morphology record: a capped cylinder from p1 to
// p2, already rotated and translated into world coordinates.
type Segment struct {
	SectionID uint32
	SegmentID uint32
	P1, P2    geometry.Vec3
	Radius    float32
}

// Neuron is one morphology source record: a soma plus its segments.
type Neuron struct {
	GID        uint64
	SomaCentre geometry.Vec3
	SomaRadius float32
	Segments   []Segment
}

// MorphologySource yields neurons to index (§6). Implementations stream
// from a circuit configuration; the core never holds more than one
// Neuron in flight.
type MorphologySource interface {
	// Next returns the next neuron, or ok=false once the source is
	// exhausted.
	Next() (n Neuron, ok bool, err error)
}

// Synapse is one synapse source record (§6).
type Synapse struct {
	ID      uint64
	PreGID  uint64
	PostGID uint64
	Centre  geometry.Vec3
}

// SynapseSource yields synapses to index.
type SynapseSource interface {
	Next() (s Synapse, ok bool, err error)
}

// AttributeStore answers enrichment requests for a field not carried by
// the index itself (§4.H, §6). Given a set of element ids, it returns a
// column of values — one per id, same order, same length.
type AttributeStore interface {
	Attribute(field string, ids []uint64) ([]any, error)
}
