// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/meta"
	"github.com/bbp-spatial/spatial-index/source"
)

type fakeMorphologySource struct {
	neurons []source.Neuron
	i       int
}

func (f *fakeMorphologySource) Next() (source.Neuron, bool, error) {
	if f.i >= len(f.neurons) {
		return source.Neuron{}, false, nil
	}
	n := f.neurons[f.i]
	f.i++
	return n, true, nil
}

type fakeSynapseSource struct {
	synapses []source.Synapse
	i        int
}

func (f *fakeSynapseSource) Next() (source.Synapse, bool, error) {
	if f.i >= len(f.synapses) {
		return source.Synapse{}, false, nil
	}
	s := f.synapses[f.i]
	f.i++
	return s, true, nil
}

func TestDrainMorphologyExpandsSomaAndSegments(t *testing.T) {
	src := &fakeMorphologySource{neurons: []source.Neuron{
		{
			GID:        1,
			SomaCentre: geometry.Vec3{0, 0, 0},
			SomaRadius: 5,
			Segments: []source.Segment{
				{SectionID: 1, SegmentID: 1, P1: geometry.Vec3{0, 0, 0}, P2: geometry.Vec3{1, 0, 0}, Radius: 0.5},
			},
		},
	}}
	store, err := drainMorphology(src)
	if err != nil {
		t.Fatalf("drainMorphology: %v", err)
	}
	if len(store.Elements) != 2 {
		t.Fatalf("got %d elements, want 2 (soma + one segment)", len(store.Elements))
	}
}

func TestDrainSynapses(t *testing.T) {
	src := &fakeSynapseSource{synapses: []source.Synapse{
		{ID: 1, PreGID: 10, PostGID: 20, Centre: geometry.Vec3{1, 2, 3}},
		{ID: 2, PreGID: 11, PostGID: 21, Centre: geometry.Vec3{4, 5, 6}},
	}}
	store, err := drainSynapses(src)
	if err != nil {
		t.Fatalf("drainSynapses: %v", err)
	}
	if len(store.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(store.Elements))
	}
}

func TestBuildOneIndexWritesInMemoryManifest(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(1, geometry.Vec3{0, 0, 0}, 1))
	dir := t.TempDir()
	if err := buildOneIndex(context.Background(), store, element.KindSphere, dir, false); err != nil {
		t.Fatalf("buildOneIndex: %v", err)
	}
	m, err := meta.Read(dir)
	if err != nil {
		t.Fatalf("meta.Read: %v", err)
	}
	if m.Variant != meta.VariantInMemory {
		t.Fatalf("got variant %v, want in_memory", m.Variant)
	}
}

func TestBuildOneMappedIndexWritesMemoryMappedManifest(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(1, geometry.Vec3{0, 0, 0}, 1))
	dir := t.TempDir()
	if err := buildOneMappedIndex(store, element.KindSphere, dir); err != nil {
		t.Fatalf("buildOneMappedIndex: %v", err)
	}
	m, err := meta.Read(dir)
	if err != nil {
		t.Fatalf("meta.Read: %v", err)
	}
	if m.Variant != meta.VariantMemoryMapped {
		t.Fatalf("got variant %v, want memory_mapped", m.Variant)
	}
	if m.Path != filepath.Base(m.Path) {
		t.Fatalf("expected a relative path, got %s", m.Path)
	}
}

func TestBuildOneIndexWritesMultiIndexManifest(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	for i := 0; i < 40; i++ {
		store.Add(element.NewSphere(uint64(i), geometry.Vec3{float32(i), 0, 0}, 1))
	}
	dir := t.TempDir()
	if err := buildOneIndex(context.Background(), store, element.KindSphere, dir, true); err != nil {
		t.Fatalf("buildOneIndex multi: %v", err)
	}
	m, err := meta.Read(dir)
	if err != nil {
		t.Fatalf("meta.Read: %v", err)
	}
	if m.Variant != meta.VariantMultiIndex {
		t.Fatalf("got variant %v, want multi_index", m.Variant)
	}
}
