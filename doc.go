// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package spatialindex is the module root for a bulk-loaded 3-D spatial
// index over neuron morphology segments and synapses.
//
// The index comes in three storage variants:
//
//   - in-memory: a single R-tree held in process memory (package rtree)
//   - memory-mapped: the same tree laid out in a pre-sized mmap'd file
//     (package internal/arena, package rtree)
//   - multi-index: a collectively built set of subtrees, one per worker
//     rank, fanned out from a top-level index of subtree envelopes
//     (package multiindex)
//
// Building an index is a one-shot, bulk operation; once finalized the tree
// is immutable and safe to share across readers. Queries are exposed
// through a single façade (package query) over three shapes (box, sphere,
// k-nearest) and four result flavours (raw elements, a single field,
// multiple fields, or counts).
package spatialindex
