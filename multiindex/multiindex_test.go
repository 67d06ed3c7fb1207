// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package multiindex

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/rtree"
)

func randomSphereStore(n int) *element.Store {
	store := element.NewStore(element.KindSphere)
	for i := 0; i < n; i++ {
		x := float32((i*37)%101) - 50
		y := float32((i*53)%97) - 48
		z := float32((i*71)%89) - 44
		store.Add(element.NewSphere(uint64(i), geometry.Vec3{x, y, z}, 0.5))
	}
	return store
}

func assertIDSetEqual(t *testing.T, got, want []uint64) {
	t.Helper()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPartitionChunksBalanced(t *testing.T) {
	chunks := partitionChunks(103, 4)
	total := 0
	min, max := chunks[0].end-chunks[0].start, chunks[0].end-chunks[0].start
	for _, c := range chunks {
		size := c.end - c.start
		total += size
		if size < min {
			min = size
		}
		if size > max {
			max = size
		}
	}
	if total != 103 {
		t.Fatalf("chunks cover %d elements, want 103", total)
	}
	if max-min > 1 {
		t.Fatalf("chunk sizes span %d..%d, want at most 1 apart", min, max)
	}
}

// Scenario 6 (§8): a W=4 multi-index build answers the same box
// query as a single in-memory index built over the same elements.
func TestBuildMatchesSingleIndex(t *testing.T) {
	store := randomSphereStore(500)

	single, err := rtree.Build(store, rtree.NewBuildOptions())
	if err != nil {
		t.Fatalf("single index build: %v", err)
	}

	dir := t.TempDir()
	opts := NewBuildOptions(filepath.Join(dir, "subtrees"))
	opts.Workers = 4
	manifest, err := Build(context.Background(), store, element.KindSphere, opts)
	if err != nil {
		t.Fatalf("multi-index build: %v", err)
	}

	reader, err := Open(opts.OutDir, manifest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	box := geometry.Box{Min: geometry.Vec3{-10, -10, -10}, Max: geometry.Vec3{10, 10, 10}}

	wantIdx := single.BoxQuery(box, rtree.AccuracyBoundingBox)
	var want []uint64
	for _, idx := range wantIdx {
		want = append(want, store.Elements[idx].ID)
	}

	hits, err := reader.BoxQuery(box, rtree.AccuracyBoundingBox)
	if err != nil {
		t.Fatalf("BoxQuery: %v", err)
	}
	var got []uint64
	for _, h := range hits {
		e, err := reader.Element(h)
		if err != nil {
			t.Fatalf("Element: %v", err)
		}
		got = append(got, e.ID)
	}

	assertIDSetEqual(t, got, want)
}

func TestBuildRejectsNonPowerOfTwoWorkers(t *testing.T) {
	store := randomSphereStore(10)
	dir := t.TempDir()
	opts := NewBuildOptions(dir)
	opts.Workers = 3
	if _, err := Build(context.Background(), store, element.KindSphere, opts); err == nil {
		t.Fatalf("expected an error for a non-power-of-two worker count")
	}
}

// Reader's subtree cache is capped at a byte budget, not an entry count
// (§4.F): a tight budget must still answer correctly, just with more
// reopening of evicted mappings.
func TestReaderEvictsByByteBudget(t *testing.T) {
	store := randomSphereStore(500)
	dir := t.TempDir()
	opts := NewBuildOptions(filepath.Join(dir, "subtrees"))
	opts.Workers = 4
	manifest, err := Build(context.Background(), store, element.KindSphere, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var maxSize int64
	for _, name := range manifest.SubtreeFile {
		fi, err := os.Stat(filepath.Join(opts.OutDir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if fi.Size() > maxSize {
			maxSize = fi.Size()
		}
	}

	reader, err := Open(opts.OutDir, manifest, ReaderOptions{MaxCachedBytes: maxSize + 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	box := geometry.Box{Min: geometry.Vec3{-50, -50, -50}, Max: geometry.Vec3{50, 50, 50}}
	hits, err := reader.BoxQuery(box, rtree.AccuracyBoundingBox)
	if err != nil {
		t.Fatalf("BoxQuery: %v", err)
	}
	if len(hits) != len(store.Elements) {
		t.Fatalf("got %d hits, want %d", len(hits), len(store.Elements))
	}

	reader.mu.Lock()
	resident, held := reader.curBytes, reader.ll.Len()
	reader.mu.Unlock()
	if held > 1 {
		t.Fatalf("cache holds %d subtrees at a maxSize+1 budget, want at most 1", held)
	}
	if resident > maxSize {
		t.Fatalf("resident bytes %d exceed the largest single subtree %d", resident, maxSize)
	}
}

// A single subtree mapping larger than the whole budget is still opened
// rather than refused (§4.F "opens it anyway and evicts everything else").
func TestReaderCacheOpensOversizedSubtreeAnyway(t *testing.T) {
	store := randomSphereStore(300)
	dir := t.TempDir()
	opts := NewBuildOptions(filepath.Join(dir, "subtrees"))
	opts.Workers = 4
	manifest, err := Build(context.Background(), store, element.KindSphere, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reader, err := Open(opts.OutDir, manifest, ReaderOptions{MaxCachedBytes: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	box := geometry.Box{Min: geometry.Vec3{-50, -50, -50}, Max: geometry.Vec3{50, 50, 50}}
	hits, err := reader.BoxQuery(box, rtree.AccuracyBoundingBox)
	if err != nil {
		t.Fatalf("BoxQuery with a 1-byte cache budget: %v", err)
	}
	if len(hits) != len(store.Elements) {
		t.Fatalf("got %d hits, want %d", len(hits), len(store.Elements))
	}
}

func TestOpenRejectsNonPositiveBudget(t *testing.T) {
	store := randomSphereStore(10)
	dir := t.TempDir()
	opts := NewBuildOptions(filepath.Join(dir, "subtrees"))
	manifest, err := Build(context.Background(), store, element.KindSphere, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := Open(opts.OutDir, manifest, ReaderOptions{MaxCachedBytes: 0}); err == nil {
		t.Fatalf("expected an error for a non-positive MaxCachedBytes")
	}
}

func TestKNearestMergesAcrossSubtrees(t *testing.T) {
	store := randomSphereStore(200)
	dir := t.TempDir()
	opts := NewBuildOptions(filepath.Join(dir, "subtrees"))
	opts.Workers = 4
	manifest, err := Build(context.Background(), store, element.KindSphere, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader, err := Open(opts.OutDir, manifest)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	hits, err := reader.KNearest(geometry.Vec3{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("KNearest: %v", err)
	}
	if len(hits) != 5 {
		t.Fatalf("got %d hits, want 5", len(hits))
	}
}
