// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package arena is the memory-mapped backing store of §4.D: a pre-sized
// file fronted by a bump allocator. Every reference inside the mapping is a
// byte offset from the mapping base, so reopening a finalized arena is a
// single mmap with no pointer fix-up.
package arena

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/bbp-spatial/spatial-index/errs"
)

// Arena is a fixed-capacity mmap'd file with a bump allocator over it.
// Not safe for concurrent Alloc from multiple goroutines; a build owns one
// Arena (§5: single-index build is single-threaded; each multi-index worker
// owns its own Arena).
type Arena struct {
	file          *os.File
	mapping       mmap.MMap
	path          string
	capacity      int64
	used          int64
	shrinkOnClose bool
	removeOnFail  bool
	finalized     bool
}

// Options configures Create.
type Options struct {
	CapacityMB    int
	ShrinkOnClose bool
	// RemoveOnFailure controls whether a partially written file is deleted
	// when the build fails (§4.D default: true).
	RemoveOnFailure bool
}

func defaultOptions() Options {
	return Options{CapacityMB: 256, RemoveOnFailure: true}
}

// Option mutates Options.
type Option func(*Options)

func WithCapacityMB(mb int) Option { return func(o *Options) { o.CapacityMB = mb } }
func WithShrinkOnClose(shrink bool) Option {
	return func(o *Options) { o.ShrinkOnClose = shrink }
}
func WithRemoveOnFailure(remove bool) Option {
	return func(o *Options) { o.RemoveOnFailure = remove }
}

// Create opens (creating if absent) path, sizes it to capacity, and mmaps
// it read/write.
func Create(path string, opts ...Option) (*Arena, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create arena file %s: %v", errs.ErrIO, path, err)
	}

	capacity := int64(o.CapacityMB) * 1024 * 1024
	if err := f.Truncate(capacity); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: size arena file %s: %v", errs.ErrIO, path, err)
	}

	m, err := mmap.MapRegion(f, int(capacity), mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("%w: mmap arena file %s: %v", errs.ErrIO, path, err)
	}

	return &Arena{
		file:          f,
		mapping:       m,
		path:          path,
		capacity:      capacity,
		shrinkOnClose: o.ShrinkOnClose,
		removeOnFail:  o.RemoveOnFailure,
	}, nil
}

// Open mmaps an existing, finalized arena file read-only for querying.
func Open(path string) (*Arena, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open arena file %s: %v", errs.ErrNotFound, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat arena file %s: %v", errs.ErrIO, path, err)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap arena file %s: %v", errs.ErrIO, path, err)
	}
	return &Arena{
		file:      f,
		mapping:   m,
		path:      path,
		capacity:  info.Size(),
		used:      info.Size(),
		finalized: true,
	}, nil
}

// Alloc bumps the allocator by n bytes and returns the byte offset of the
// reserved region. Fails with ErrOutOfCapacity if the arena would overflow.
func (a *Arena) Alloc(n int) (int64, error) {
	if a.used+int64(n) > a.capacity {
		return 0, fmt.Errorf("%w: requested %d bytes, %d remaining of %d",
			errs.ErrOutOfCapacity, n, a.capacity-a.used, a.capacity)
	}
	off := a.used
	a.used += int64(n)
	return off, nil
}

// Bytes returns the full mapped region; offsets returned by Alloc index
// into this slice directly.
func (a *Arena) Bytes() []byte { return a.mapping }

// Used returns the number of bytes allocated so far.
func (a *Arena) Used() int64 { return a.used }

// Capacity returns the mapping's total size.
func (a *Arena) Capacity() int64 { return a.capacity }

// Finalize marks the build complete; the header should already have been
// written into Bytes() by the caller (§4.D: "the header is written last").
func (a *Arena) Finalize() {
	a.finalized = true
}

// Abort releases the mapping and, unless the caller asked otherwise,
// removes the partially written file (§4.D out-of-capacity semantics).
func (a *Arena) Abort() error {
	path := a.path
	remove := a.removeOnFail && !a.finalized
	if err := a.close(false); err != nil {
		return err
	}
	if remove {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove partial arena file %s: %v", errs.ErrIO, path, err)
		}
	}
	return nil
}

// Close unmaps and closes the arena, shrinking the file to Used() bytes
// if ShrinkOnClose was requested at Create time and Finalize was called.
func (a *Arena) Close() error {
	return a.close(a.shrinkOnClose && a.finalized)
}

func (a *Arena) close(shrink bool) error {
	if a.mapping != nil {
		if err := a.mapping.Unmap(); err != nil {
			return fmt.Errorf("%w: unmap arena file %s: %v", errs.ErrIO, a.path, err)
		}
		a.mapping = nil
	}
	if shrink {
		if err := a.file.Truncate(a.used); err != nil {
			return fmt.Errorf("%w: shrink arena file %s: %v", errs.ErrIO, a.path, err)
		}
	}
	if a.file != nil {
		if err := a.file.Close(); err != nil {
			return fmt.Errorf("%w: close arena file %s: %v", errs.ErrIO, a.path, err)
		}
		a.file = nil
	}
	return nil
}
