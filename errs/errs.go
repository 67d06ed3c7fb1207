// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Package errs is the closed set of error kinds used across the index
// (§7). Components return one of these sentinels wrapped with
// fmt.Errorf's %w so that callers can classify failures with errors.Is
// while still getting a specific message.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers malformed coordinates, negative radius, an
	// empty element set where not allowed, and a non-existent population.
	ErrInvalidInput = errors.New("spatial-index: invalid input")

	// ErrInvalidField covers a query referencing an unknown field, or
	// combining incompatible field sets (e.g. raw_elements with an
	// enriched field).
	ErrInvalidField = errors.New("spatial-index: invalid field")

	// ErrOutOfCapacity covers a memory-mapped arena exhausted during
	// build.
	ErrOutOfCapacity = errors.New("spatial-index: out of capacity")

	// ErrIO covers an underlying file or directory operation failure.
	ErrIO = errors.New("spatial-index: io error")

	// ErrCollectiveAbort covers another rank in a collective build having
	// failed; the receiving rank must terminate.
	ErrCollectiveAbort = errors.New("spatial-index: collective abort")

	// ErrNotFound covers a missing index directory or manifest.
	ErrNotFound = errors.New("spatial-index: not found")

	// ErrUnsupported covers a variant/operation combination that is not
	// implemented, e.g. a memory-mapped multi-index.
	ErrUnsupported = errors.New("spatial-index: unsupported")
)

// AttributeError reports an attribute-store failure during enrichment.
// It carries the exact identifier set that failed (§7: "errors ... surface
// to the caller with the identifier set that failed so it can retry"),
// rather than just a count, so a caller can narrow a retry to those ids.
type AttributeError struct {
	Field string
	IDs   []uint64
	Err   error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("spatial-index: enrichment field %q for %d ids: %v", e.Field, len(e.IDs), e.Err)
}

// Unwrap lets errors.Is(err, ErrIO) keep working on an *AttributeError.
func (e *AttributeError) Unwrap() error { return e.Err }
