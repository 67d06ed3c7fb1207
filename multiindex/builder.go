// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package multiindex implements the partitioned "multi-index" storage
// variant (§4.E, §4.F): an MPI-like collective build that shards elements
// across W workers, each of which bulk-loads and persists its own subtree,
// followed by an in-memory top index over every subtree's envelope. The
// reader fans queries out only to the subtrees whose envelope can possibly
// match, keeping a byte-budgeted LRU of open subtree mappings.
package multiindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/internal/arena"
	"github.com/bbp-spatial/spatial-index/internal/obslog"
	"github.com/bbp-spatial/spatial-index/rtree"
)

const subtreeFileFormat = "subtree-%04d.bin"

// BuildOptions configures a multi-index build.
type BuildOptions struct {
	// Workers is W, the number of ranks. Must be a power of two (§4.E).
	Workers int
	// OutDir is the directory subtree files are written into.
	OutDir string
	// Tree carries fanout/leaf-capacity settings for each worker's local
	// bulk load.
	Tree rtree.BuildOptions
	// ArenaCapacityMB bounds each worker's per-subtree arena.
	ArenaCapacityMB int
}

// NewBuildOptions returns defaults: 4 workers, the rtree package's default
// fanout/leaf capacity, and a 256MB per-subtree arena.
func NewBuildOptions(outDir string) BuildOptions {
	return BuildOptions{
		Workers:         4,
		OutDir:          outDir,
		Tree:            rtree.NewBuildOptions(),
		ArenaCapacityMB: 256,
	}
}

// Manifest describes a completed multi-index build: enough to reopen it
// with Open (§3, §4.F).
type Manifest struct {
	ElementKind element.Kind
	SubtreeFile map[int]string // subtree id -> file name, relative to OutDir
	TopIndex    []Entry
}

type chunkRange struct{ start, end int }

// partitionChunks splits [0,n) into min(n, 100*workers) contiguous ranges
// whose sizes differ by at most one (§4.E step 1).
func partitionChunks(n, workers int) []chunkRange {
	if n == 0 {
		return nil
	}
	c := 100 * workers
	if c > n {
		c = n
	}
	base, rem := n/c, n%c
	out := make([]chunkRange, 0, c)
	start := 0
	for i := 0; i < c; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		out = append(out, chunkRange{start, start + size})
		start += size
	}
	return out
}

type workerRequest struct {
	rank  int
	load  int
	reply chan chunkOrStop
}

type chunkOrStop struct {
	chunk chunkRange
	stop  bool
}

// distribute runs the single-goroutine scheduler described in §4.E step 2:
// a worker reports its current load and gets the next unassigned chunk iff
// its load is within 5% of the mean load across workers, otherwise it is
// parked until a subsequent request changes the mean. Once every chunk has
// been handed out, every further request gets the stop sentinel.
func distribute(ctx context.Context, chunks []chunkRange, workers int, reqCh <-chan workerRequest) {
	unassigned := chunks
	loads := make([]int, workers)
	var waiting []workerRequest

	mean := func() float64 {
		total := 0
		for _, l := range loads {
			total += l
		}
		return float64(total) / float64(workers)
	}

	tryServe := func(req workerRequest) bool {
		if len(unassigned) == 0 {
			req.reply <- chunkOrStop{stop: true}
			return true
		}
		if float64(req.load) <= 1.05*mean() {
			c := unassigned[0]
			unassigned = unassigned[1:]
			req.reply <- chunkOrStop{chunk: c}
			return true
		}
		return false
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-reqCh:
			loads[req.rank] = req.load
			if !tryServe(req) {
				waiting = append(waiting, req)
				continue
			}
			remaining := waiting[:0]
			for _, w := range waiting {
				if !tryServe(w) {
					remaining = append(remaining, w)
				}
			}
			waiting = remaining
		}
	}
}

// Build runs the collective multi-index build over store, sharding it
// across opts.Workers goroutine "ranks" via distribute, writing one
// memory-mapped subtree file per rank into opts.OutDir, and assembling the
// top index from the resulting envelopes (§4.E). Any worker error aborts
// every other worker and removes their partial files.
func Build(ctx context.Context, store *element.Store, kind element.Kind, opts BuildOptions) (*Manifest, error) {
	log := obslog.FromContext(ctx)
	if opts.Workers <= 0 || opts.Workers&(opts.Workers-1) != 0 {
		return nil, fmt.Errorf("%w: worker count %d must be a positive power of two", errs.ErrInvalidInput, opts.Workers)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir %s: %v", errs.ErrIO, opts.OutDir, err)
	}

	log.Infow("multi-index build starting", "elements", store.Len(), "workers", opts.Workers, "out_dir", opts.OutDir)
	chunks := partitionChunks(store.Len(), opts.Workers)
	reqCh := make(chan workerRequest)

	g, gctx := errgroup.WithContext(ctx)
	go distribute(gctx, chunks, opts.Workers, reqCh)

	entries := make([]Entry, opts.Workers)
	have := make([]bool, opts.Workers)

	for rank := 0; rank < opts.Workers; rank++ {
		rank := rank
		g.Go(func() error {
			local := element.NewStore(kind)
			reply := make(chan chunkOrStop)
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case reqCh <- workerRequest{rank: rank, load: local.Len(), reply: reply}:
				}
				var cs chunkOrStop
				select {
				case <-gctx.Done():
					return gctx.Err()
				case cs = <-reply:
				}
				if cs.stop {
					break
				}
				for i := cs.chunk.start; i < cs.chunk.end; i++ {
					local.Add(store.Elements[i])
				}
			}
			if local.Len() == 0 {
				return nil
			}

			path := filepath.Join(opts.OutDir, fmt.Sprintf(subtreeFileFormat, rank))
			a, err := arena.Create(path, arena.WithCapacityMB(opts.ArenaCapacityMB))
			if err != nil {
				return err
			}
			defer a.Close()

			mapped, err := rtree.BuildMapped(local, opts.Tree, kind, a)
			if err != nil {
				a.Abort()
				return err
			}
			a.Finalize()

			entries[rank] = Entry{Envelope: mapped.Envelope(), SubtreeID: rank}
			have[rank] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Errorw("multi-index build aborted", "error", err)
		for rank := 0; rank < opts.Workers; rank++ {
			os.Remove(filepath.Join(opts.OutDir, fmt.Sprintf(subtreeFileFormat, rank)))
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrCollectiveAbort, err)
	}

	var top []Entry
	files := make(map[int]string)
	for rank := 0; rank < opts.Workers; rank++ {
		if !have[rank] {
			continue
		}
		top = append(top, entries[rank])
		files[rank] = fmt.Sprintf(subtreeFileFormat, rank)
	}
	sort.Slice(top, func(i, j int) bool { return top[i].SubtreeID < top[j].SubtreeID })

	manifest := &Manifest{ElementKind: kind, SubtreeFile: files, TopIndex: top}
	if err := WriteManifest(opts.OutDir, manifest); err != nil {
		return nil, err
	}

	log.Infow("multi-index build complete", "subtrees", len(top))
	return manifest, nil
}
