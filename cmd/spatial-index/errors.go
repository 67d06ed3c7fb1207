// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"

	"github.com/bbp-spatial/spatial-index/errs"
)

// errCompareMismatch signals that index-compare found a mismatch; it is
// not a failure of the comparison itself (§6 exit code 3).
var errCompareMismatch = errors.New("spatial-index: indexes are not equivalent")

// exitCodeFor maps a command error to the §6 exit code contract.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errCompareMismatch):
		return exitCompareFailed
	case errors.Is(err, errs.ErrInvalidInput), errors.Is(err, errs.ErrInvalidField), errors.Is(err, errs.ErrUnsupported):
		return exitInvalidArgs
	default:
		return exitBuildFailure
	}
}
