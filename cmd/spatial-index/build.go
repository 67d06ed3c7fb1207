// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/internal/arena"
	"github.com/bbp-spatial/spatial-index/internal/obslog"
	"github.com/bbp-spatial/spatial-index/meta"
	"github.com/bbp-spatial/spatial-index/multiindex"
	"github.com/bbp-spatial/spatial-index/rtree"
	"github.com/bbp-spatial/spatial-index/source"
)

// indexBlobFile and indexMappedFile name the single-variant payload files
// inside an index directory; subtreesDirName names the multi-index
// payload directory (§6 "Persisted layout").
const (
	indexBlobFile    = "index.bin"
	indexMappedFile  = "index.mmap"
	subtreesDirName  = "subtrees"
	multiArenaSizeMB = 256
)

func drainMorphology(src morphologySource) (*element.Store, error) {
	store := element.NewStore(element.KindMorphology)
	for {
		n, ok, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("read morphology source: %w", err)
		}
		if !ok {
			break
		}
		store.Add(element.NewMorphologySoma(n.GID, n.SomaCentre, n.SomaRadius))
		for _, seg := range n.Segments {
			store.Add(element.NewMorphologySegment(n.GID, seg.SectionID, seg.SegmentID, seg.P1, seg.P2, seg.Radius))
		}
	}
	return store, nil
}

func drainSynapses(src synapseSource) (*element.Store, error) {
	store := element.NewStore(element.KindSynapse)
	for {
		s, ok, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("read synapse source: %w", err)
		}
		if !ok {
			break
		}
		store.Add(element.NewSynapse(s.ID, s.PreGID, s.PostGID, s.Centre))
	}
	return store, nil
}

// morphologySource and synapseSource mirror source.MorphologySource /
// source.SynapseSource; defined locally so drainMorphology/drainSynapses
// accept either the concrete file-backed readers or a fake in tests.
type morphologySource interface {
	Next() (source.Neuron, bool, error)
}

type synapseSource interface {
	Next() (source.Synapse, bool, error)
}

// buildOneIndex writes a single index directory for store at dir: the
// multi-index variant when multi is set, the in-memory variant otherwise.
func buildOneIndex(ctx context.Context, store *element.Store, kind element.Kind, dir string, multi bool) error {
	log := obslog.FromContext(ctx)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory %s: %w", dir, err)
	}

	if multi {
		subtreesDir := filepath.Join(dir, subtreesDirName)
		if err := os.MkdirAll(subtreesDir, 0o755); err != nil {
			return fmt.Errorf("create subtrees directory: %w", err)
		}
		opts := multiindex.NewBuildOptions(subtreesDir)
		if _, err := multiindex.Build(ctx, store, kind, opts); err != nil {
			return fmt.Errorf("multi-index build: %w", err)
		}
		m := &meta.Manifest{ElementType: kind, Variant: meta.VariantMultiIndex, Path: subtreesDirName}
		return meta.Write(dir, m)
	}

	tree, err := rtree.Build(store, rtree.NewBuildOptions())
	if err != nil {
		return fmt.Errorf("bulk load: %w", err)
	}
	data, err := rtree.Encode(tree, kind)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, indexBlobFile), data, 0o644); err != nil {
		return fmt.Errorf("write index blob: %w", err)
	}
	log.Infow("index built", "dir", dir, "elements", len(store.Elements), "variant", "in_memory")
	m := &meta.Manifest{ElementType: kind, Variant: meta.VariantInMemory, Path: indexBlobFile}
	return meta.Write(dir, m)
}

// buildOneMappedIndex writes a memory-mapped single index, used when the
// caller wants the memory_mapped variant rather than in_memory (exposed
// for tests and for future CLI flags; index-segments/index-synapses
// currently choose between in_memory and multi_index per §6).
func buildOneMappedIndex(store *element.Store, kind element.Kind, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory %s: %w", dir, err)
	}
	a, err := arena.Create(filepath.Join(dir, indexMappedFile), arena.WithCapacityMB(multiArenaSizeMB), arena.WithShrinkOnClose(true))
	if err != nil {
		return fmt.Errorf("create arena: %w", err)
	}
	if _, err := rtree.BuildMapped(store, rtree.NewBuildOptions(), kind, a); err != nil {
		a.Abort()
		return fmt.Errorf("mapped build: %w", err)
	}
	a.Finalize()
	if err := a.Close(); err != nil {
		return fmt.Errorf("close arena: %w", err)
	}
	m := &meta.Manifest{ElementType: kind, Variant: meta.VariantMemoryMapped, Path: indexMappedFile}
	return meta.Write(dir, m)
}
