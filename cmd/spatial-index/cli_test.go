// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/internal/obslog"
)

func testContext() context.Context {
	return obslog.WithLogger(context.Background(), zap.NewNop().Sugar())
}

func writeFixture(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const neuronFixture = `{"gid":1,"soma_centre":{"x":0,"y":0,"z":0},"soma_radius":1,"segments":[{"section_id":1,"segment_id":1,"p1":{"x":0,"y":0,"z":0},"p2":{"x":1,"y":0,"z":0},"radius":0.5}]}
{"gid":2,"soma_centre":{"x":5,"y":5,"z":5},"soma_radius":1,"segments":[]}
`

func TestIndexSegmentsEndToEnd(t *testing.T) {
	circuitConfig := writeFixture(t, "circuit.jsonl", neuronFixture)
	outDir := filepath.Join(t.TempDir(), "out")

	ctx := testContext()
	cmd := newRootCmd()
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{"index-segments", circuitConfig, "--out", outDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("index-segments: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "manifest.json")); err != nil {
		t.Fatalf("expected a manifest at %s: %v", outDir, err)
	}
}

func TestIndexSegmentsRejectsEmptySource(t *testing.T) {
	circuitConfig := writeFixture(t, "empty.jsonl", "")
	outDir := filepath.Join(t.TempDir(), "out")

	ctx := testContext()
	cmd := newRootCmd()
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{"index-segments", circuitConfig, "--out", outDir})
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected an error for an empty circuit config")
	}
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("got %v, want errs.ErrInvalidInput", err)
	}
	if exitCodeFor(err) != exitInvalidArgs {
		t.Fatalf("got exit code %d, want %d", exitCodeFor(err), exitInvalidArgs)
	}
}

func TestIndexCompareEndToEnd(t *testing.T) {
	circuitConfig := writeFixture(t, "circuit.jsonl", neuronFixture)
	outA := filepath.Join(t.TempDir(), "a")
	outB := filepath.Join(t.TempDir(), "b")

	ctx := testContext()
	for _, out := range []string{outA, outB} {
		cmd := newRootCmd()
		cmd.SetContext(ctx)
		cmd.SetArgs([]string{"index-segments", circuitConfig, "--out", out})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("index-segments %s: %v", out, err)
		}
	}

	cmd := newRootCmd()
	cmd.SetContext(ctx)
	cmd.SetArgs([]string{"index-compare", outA, outB})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("index-compare: %v", err)
	}
}
