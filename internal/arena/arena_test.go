// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package arena

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bbp-spatial/spatial-index/errs"
)

func TestAllocBumpsOffset(t *testing.T) {
	dir := t.TempDir()
	a, err := Create(filepath.Join(dir, "test.arena"), WithCapacityMB(1))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	off1, err := a.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	off2, err := a.Alloc(50)
	if err != nil {
		t.Fatal(err)
	}
	if off1 != 0 || off2 != 100 {
		t.Fatalf("got offsets %d, %d, want 0, 100", off1, off2)
	}
}

func TestAllocFailsOutOfCapacity(t *testing.T) {
	dir := t.TempDir()
	a, err := Create(filepath.Join(dir, "test.arena"), WithCapacityMB(1))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Abort()

	_, err = a.Alloc(2 * 1024 * 1024)
	if !errors.Is(err, errs.ErrOutOfCapacity) {
		t.Fatalf("got %v, want ErrOutOfCapacity", err)
	}
}

func TestAbortRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arena")
	a, err := Create(path, WithCapacityMB(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Abort(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected arena file to be removed, stat err = %v", err)
	}
}

func TestShrinkOnCloseTruncatesToUsed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arena")
	a, err := Create(path, WithCapacityMB(1), WithShrinkOnClose(true))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Alloc(123); err != nil {
		t.Fatal(err)
	}
	a.Finalize()
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 123 {
		t.Fatalf("got size %d, want 123", info.Size())
	}
}

func TestReopenThenQuery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.arena")
	a, err := Create(path, WithCapacityMB(1))
	if err != nil {
		t.Fatal(err)
	}
	off, err := a.Alloc(4)
	if err != nil {
		t.Fatal(err)
	}
	copy(a.Bytes()[off:off+4], []byte{1, 2, 3, 4})
	a.Finalize()
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if got := reopened.Bytes()[off : off+4]; got[0] != 1 || got[3] != 4 {
		t.Fatalf("got %v, want [1 2 3 4]", got)
	}
}
