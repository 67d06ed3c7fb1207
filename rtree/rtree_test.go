// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

import (
	"math"
	"sort"
	"testing"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/geometry"
)

func buildTree(t *testing.T, store *element.Store) *Tree {
	t.Helper()
	tree, err := Build(store, NewBuildOptions())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

// Scenario 1 (§8): three unit spheres, sphere query at origin
// radius 0.6 hits all three under both accuracy modes.
func TestScenario1ThreeSpheres(t *testing.T) {
	half := float32(math.Sqrt2 / 2)
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(0, geometry.Vec3{0, 1, 0}, 1))
	store.Add(element.NewSphere(1, geometry.Vec3{-half, -half, 0}, 1))
	store.Add(element.NewSphere(2, geometry.Vec3{half, -half, 0}, 1))

	tree := buildTree(t, store)
	query := geometry.Sphere{Centre: geometry.Vec3{0, 0, 0}, Radius: 0.6}

	for _, acc := range []Accuracy{AccuracyBestEffort, AccuracyBoundingBox} {
		got := idsOf(tree, tree.SphereQuery(query, acc))
		assertSetEqual(t, got, []uint64{0, 1, 2})
	}
}

// Scenario 2 (§8): seven points, box query under bounding_box.
func TestScenario2PointsBoxQuery(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	pts := []geometry.Vec3{
		{0, 1, 0}, {-0.5, -0.5, 0}, {0.5, -0.5, 0},
		{-2.1, 0, 0}, {0, 2.1, 0}, {0, 0, 2.1}, {1, 1, 1},
	}
	for i, p := range pts {
		store.Add(element.NewSphere(uint64(i), p, 0))
	}
	tree := buildTree(t, store)
	box := geometry.Box{Min: geometry.Vec3{-1, -1, -1}, Max: geometry.Vec3{1, 1, 1}}
	got := idsOf(tree, tree.BoxQuery(box, AccuracyBoundingBox))
	assertSetEqual(t, got, []uint64{0, 1, 2, 6})
}

// Scenario 3 (§8): linear neuron plus a branch; box query over the
// branch region returns four segments, two on each branch.
func TestScenario3LinearNeuronBranch(t *testing.T) {
	store := element.NewStore(element.KindMorphology)
	const gid = 1
	for x := 0; x < 10; x++ {
		store.Add(element.NewMorphologySegment(gid, uint32(x+1), 0,
			geometry.Vec3{float32(x), 0, 0}, geometry.Vec3{float32(x + 1), 0, 0}, 1))
	}
	// Branch: 5 segments from (4,0,0) to (9,1,0).
	steps := 5
	for i := 0; i < steps; i++ {
		t0 := float32(i) / float32(steps)
		t1 := float32(i+1) / float32(steps)
		p1 := geometry.Vec3{4 + t0*5, t0, 0}
		p2 := geometry.Vec3{4 + t1*5, t1, 0}
		store.Add(element.NewMorphologySegment(gid, uint32(100+i), 0, p1, p2, 1))
	}

	tree := buildTree(t, store)
	box := geometry.Box{Min: geometry.Vec3{4.1, -0.1, -0.1}, Max: geometry.Vec3{5.9, 0.1, 0.1}}
	got := tree.BoxQuery(box, AccuracyBestEffort)
	if len(got) != 4 {
		t.Fatalf("expected 4 segments, got %d: %v", len(got), got)
	}
}

func TestKNearestOrdersByDistance(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(0, geometry.Vec3{5, 0, 0}, 0))
	store.Add(element.NewSphere(1, geometry.Vec3{1, 0, 0}, 0))
	store.Add(element.NewSphere(2, geometry.Vec3{3, 0, 0}, 0))
	store.Add(element.NewSphere(3, geometry.Vec3{10, 0, 0}, 0))

	tree := buildTree(t, store)
	got := tree.KNearest(geometry.Vec3{0, 0, 0}, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	wantOrder := []uint64{1, 2, 0}
	for i, idx := range got {
		if store.Elements[idx].ID != wantOrder[i] {
			t.Fatalf("position %d: got id %d, want %d", i, store.Elements[idx].ID, wantOrder[i])
		}
	}
}

func TestKNearestZeroReturnsEmpty(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(0, geometry.Vec3{}, 1))
	tree := buildTree(t, store)
	if got := tree.KNearest(geometry.Vec3{}, 0); len(got) != 0 {
		t.Fatalf("expected empty result for k=0, got %v", got)
	}
}

func TestCountMatchesQueryLength(t *testing.T) {
	store := randomSphereStore(200)
	tree := buildTree(t, store)
	box := geometry.Box{Min: geometry.Vec3{-3, -3, -3}, Max: geometry.Vec3{3, 3, 3}}
	for _, acc := range []Accuracy{AccuracyBoundingBox, AccuracyBestEffort} {
		ids := tree.BoxQuery(box, acc)
		count := tree.CountBoxQuery(box, acc)
		if count != len(ids) {
			t.Fatalf("accuracy %s: count %d != len(ids) %d", acc, count, len(ids))
		}
	}
}

func TestGroupCount(t *testing.T) {
	store := element.NewStore(element.KindMorphology)
	store.Add(element.NewMorphologySoma(1, geometry.Vec3{0, 0, 0}, 1))
	store.Add(element.NewMorphologySegment(1, 1, 0, geometry.Vec3{0, 0, 0}, geometry.Vec3{1, 0, 0}, 1))
	store.Add(element.NewMorphologySoma(2, geometry.Vec3{0, 0, 0}, 1))
	tree := buildTree(t, store)
	box := geometry.Box{Min: geometry.Vec3{-1, -1, -1}, Max: geometry.Vec3{2, 2, 2}}
	groups := tree.GroupCountBoxQuery(box, AccuracyBoundingBox, func(idx int) uint64 {
		return store.Elements[idx].GID
	})
	if groups[1] != 2 || groups[2] != 1 {
		t.Fatalf("got groups %v, want {1:2, 2:1}", groups)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	store := randomSphereStore(137)
	tree := buildTree(t, store)

	data, err := Encode(tree, element.KindSphere)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, gotStore, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if gotStore.Len() != store.Len() {
		t.Fatalf("element count mismatch: got %d, want %d", gotStore.Len(), store.Len())
	}

	box := tree.Envelope()
	wantIDs := idsOf(tree, tree.BoxQuery(box, AccuracyBoundingBox))
	gotIDs := idsOf(got, got.BoxQuery(box, AccuracyBoundingBox))
	assertSetEqual(t, gotIDs, wantIDs)
}

func TestEnvelopesAreTight(t *testing.T) {
	store := randomSphereStore(300)
	tree := buildTree(t, store)
	checkTight(t, tree, tree.root)
}

func checkTight(t *testing.T, tree *Tree, idx int) geometry.Box {
	t.Helper()
	n := &tree.nodes[idx]
	var recomputed geometry.Box
	if n.isLeaf {
		boxes := make([]geometry.Box, len(n.elements))
		for i, e := range n.elements {
			boxes[i] = tree.store.Elements[e].BoundingBox()
		}
		recomputed = geometry.UnionAll(boxes)
	} else {
		boxes := make([]geometry.Box, len(n.children))
		for i, c := range n.children {
			boxes[i] = checkTight(t, tree, c)
		}
		recomputed = geometry.UnionAll(boxes)
	}
	if recomputed != n.envelope {
		t.Fatalf("node %d: stored envelope %+v != recomputed %+v", idx, n.envelope, recomputed)
	}
	return n.envelope
}

func TestBuildRejectsInvalidGeometry(t *testing.T) {
	store := element.NewStore(element.KindSphere)
	store.Add(element.NewSphere(0, geometry.Vec3{0, 0, 0}, -1))
	if _, err := Build(store, NewBuildOptions()); err == nil {
		t.Fatalf("expected build to fail on negative radius")
	}
}

func idsOf(tree *Tree, indices []int) []uint64 {
	out := make([]uint64, len(indices))
	for i, idx := range indices {
		e := tree.store.Elements[idx]
		if e.Prim == element.PrimCylinder || e.IsSoma {
			out[i] = e.GID
		} else {
			out[i] = e.ID
		}
	}
	return out
}

func assertSetEqual(t *testing.T, got, want []uint64) {
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

func randomSphereStore(n int) *element.Store {
	store := element.NewStore(element.KindSphere)
	// Deterministic pseudo-random spread, no math/rand dependency needed
	// for a fixed, reproducible fixture.
	for i := 0; i < n; i++ {
		x := float32((i*37)%101) - 50
		y := float32((i*53)%97) - 48
		z := float32((i*71)%89) - 44
		store.Add(element.NewSphere(uint64(i), geometry.Vec3{x, y, z}, 0.5))
	}
	return store
}
