// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package rtree

// Accuracy selects the geometric predicate applied at leaves (§4.C).
type Accuracy string

const (
	// AccuracyBoundingBox evaluates only the envelope test: fast, may
	// return false positives whose exact primitive misses the region.
	AccuracyBoundingBox Accuracy = "bounding_box"

	// AccuracyBestEffort additionally runs the exact primitive test.
	AccuracyBestEffort Accuracy = "best_effort"
)

// ResolveAccuracy applies the §4.H default: nil/empty means "bounding_box".
func ResolveAccuracy(a *Accuracy) Accuracy {
	if a == nil || *a == "" {
		return AccuracyBoundingBox
	}
	return *a
}
