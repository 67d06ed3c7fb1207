// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package multiindex

import (
	"container/list"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/internal/arena"
	"github.com/bbp-spatial/spatial-index/rtree"
)

// defaultMaxCachedBytes is the §4.F default cache budget: 1 GiB of
// resident subtree mappings before the least recently queried ones are
// evicted.
const defaultMaxCachedBytes int64 = 1 << 30

// ReaderOptions configures Open's subtree cache.
type ReaderOptions struct {
	// MaxCachedBytes bounds the total resident size of open subtree
	// mappings (§4.F). If a single subtree's mapping alone exceeds this
	// budget, the reader still maps it when a query first touches it -
	// every other cached subtree is evicted to make room rather than
	// refusing the query.
	MaxCachedBytes int64
}

// NewReaderOptions returns the §4.F default of a 1 GiB cache budget.
func NewReaderOptions() ReaderOptions {
	return ReaderOptions{MaxCachedBytes: defaultMaxCachedBytes}
}

type openSubtree struct {
	arena *arena.Arena
	tree  *rtree.MappedTree
	bytes int64
}

type cacheEntry struct {
	id  int
	sub *openSubtree
}

// Reader opens a completed multi-index build: the top index is held
// eagerly, in memory; each subtree is opened lazily on first query and
// kept in a byte-budgeted LRU of mapped files (§4.F). ll's front is the
// most recently used entry; eviction always removes from the back.
type Reader struct {
	dir   string
	kind  element.Kind
	top   *TopIndex
	files map[int]string

	mu       sync.Mutex
	maxBytes int64
	curBytes int64
	ll       *list.List
	byID     map[int]*list.Element
}

// Open reopens a multi-index build written by Build, given its manifest.
// opts is optional; omitting it applies NewReaderOptions's default.
func Open(dir string, m *Manifest, opts ...ReaderOptions) (*Reader, error) {
	o := NewReaderOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxCachedBytes <= 0 {
		return nil, fmt.Errorf("%w: MaxCachedBytes must be positive, got %d", errs.ErrInvalidInput, o.MaxCachedBytes)
	}
	return &Reader{
		dir:      dir,
		kind:     m.ElementKind,
		top:      BuildTopIndex(m.TopIndex),
		files:    m.SubtreeFile,
		maxBytes: o.MaxCachedBytes,
		ll:       list.New(),
		byID:     make(map[int]*list.Element),
	}, nil
}

// Envelope returns the union of every subtree's envelope.
func (r *Reader) Envelope() geometry.Box { return r.top.Envelope() }

// Kind returns the element schema shared by every subtree.
func (r *Reader) Kind() element.Kind { return r.kind }

// evictOldest closes and drops the least recently used cache entry. The
// caller must hold r.mu.
func (r *Reader) evictOldest() {
	back := r.ll.Back()
	if back == nil {
		return
	}
	entry := back.Value.(*cacheEntry)
	r.ll.Remove(back)
	delete(r.byID, entry.id)
	r.curBytes -= entry.sub.bytes
	entry.sub.arena.Close()
}

func (r *Reader) subtree(id int) (*rtree.MappedTree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byID[id]; ok {
		r.ll.MoveToFront(el)
		return el.Value.(*cacheEntry).sub.tree, nil
	}
	name, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: subtree id %d not present in manifest", errs.ErrNotFound, id)
	}
	a, err := arena.Open(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}
	tree, err := rtree.OpenMappedBytes(a.Bytes())
	if err != nil {
		a.Close()
		return nil, err
	}
	sub := &openSubtree{arena: a, tree: tree, bytes: int64(len(a.Bytes()))}

	// Evict the least recently used entries until sub fits the budget.
	// If sub.bytes alone exceeds r.maxBytes, this empties the cache
	// entirely (ll.Len() reaches 0 and the loop stops) and sub is still
	// added below - the §4.F "opens it anyway" overflow rule.
	for r.curBytes+sub.bytes > r.maxBytes && r.ll.Len() > 0 {
		r.evictOldest()
	}

	el := r.ll.PushFront(&cacheEntry{id: id, sub: sub})
	r.byID[id] = el
	r.curBytes += sub.bytes
	return tree, nil
}

// Hit is one result row: the subtree it came from and its local index,
// the only addressing a caller needs to later resolve an element (§4.F).
type Hit struct {
	SubtreeID int
	LocalIdx  int
}

// BoxQuery fans a box query out to every subtree whose envelope
// intersects box and concatenates the per-subtree results (§4.F).
func (r *Reader) BoxQuery(box geometry.Box, accuracy rtree.Accuracy) ([]Hit, error) {
	var out []Hit
	for _, id := range r.top.IntersectingBox(box) {
		tree, err := r.subtree(id)
		if err != nil {
			return nil, err
		}
		for _, idx := range tree.BoxQuery(box, accuracy) {
			out = append(out, Hit{SubtreeID: id, LocalIdx: idx})
		}
	}
	return out, nil
}

// SphereQuery fans a sphere query out across intersecting subtrees.
func (r *Reader) SphereQuery(s geometry.Sphere, accuracy rtree.Accuracy) ([]Hit, error) {
	var out []Hit
	for _, id := range r.top.IntersectingSphere(s) {
		tree, err := r.subtree(id)
		if err != nil {
			return nil, err
		}
		for _, idx := range tree.SphereQuery(s, accuracy) {
			out = append(out, Hit{SubtreeID: id, LocalIdx: idx})
		}
	}
	return out, nil
}

// CountBoxQuery mirrors BoxQuery without materialising per-hit results.
func (r *Reader) CountBoxQuery(box geometry.Box, accuracy rtree.Accuracy) (int, error) {
	count := 0
	for _, id := range r.top.IntersectingBox(box) {
		tree, err := r.subtree(id)
		if err != nil {
			return 0, err
		}
		count += tree.CountBoxQuery(box, accuracy)
	}
	return count, nil
}

// KNearest merges every subtree's local k-nearest candidates and keeps the
// k globally nearest. Every subtree is a candidate source regardless of
// envelope distance from centre, since a subtree's envelope intersecting
// a growing search sphere cannot be ruled out cheaply without the top
// index also tracking per-subtree minimum distance; with the typically
// small subtree counts of §4.E this two-pass merge is cheap enough.
func (r *Reader) KNearest(centre geometry.Vec3, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	type cand struct {
		hit  Hit
		dist float32
	}
	var all []cand
	for _, e := range r.top.Entries() {
		tree, err := r.subtree(e.SubtreeID)
		if err != nil {
			return nil, err
		}
		for _, idx := range tree.KNearest(centre, k) {
			d := tree.Element(idx).SquaredDistanceTo(centre)
			all = append(all, cand{hit: Hit{SubtreeID: e.SubtreeID, LocalIdx: idx}, dist: d})
		}
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].dist < all[j-1].dist; j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if len(all) > k {
		all = all[:k]
	}
	out := make([]Hit, len(all))
	for i, c := range all {
		out[i] = c.hit
	}
	return out, nil
}

// Element resolves a hit back to its element, decoded lazily from the
// owning subtree's mapping.
func (r *Reader) Element(h Hit) (element.Element, error) {
	tree, err := r.subtree(h.SubtreeID)
	if err != nil {
		return element.Element{}, err
	}
	return tree.Element(h.LocalIdx), nil
}

// Close closes every open subtree mapping.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.ll.Len() > 0 {
		r.evictOldest()
	}
	return nil
}
