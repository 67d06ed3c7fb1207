// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbp-spatial/spatial-index/compare"
	"github.com/bbp-spatial/spatial-index/geometry"
	"github.com/bbp-spatial/spatial-index/internal/obslog"
	"github.com/bbp-spatial/spatial-index/query"
)

func newIndexCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index-compare <index-a> <index-b>",
		Short: "Probabilistically compare two built indexes for equivalence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirA, dirB := args[0], args[1]
			log := obslog.FromContext(cmd.Context())

			a, err := query.Open(dirA)
			if err != nil {
				return fmt.Errorf("open %s: %w", dirA, err)
			}
			defer a.Close()
			b, err := query.Open(dirB)
			if err != nil {
				return fmt.Errorf("open %s: %w", dirB, err)
			}
			defer b.Close()

			bounds := geometry.Union(a.Envelope(), b.Envelope())
			mismatch, err := compare.Equivalent(a, b, bounds, compare.NewOptions())
			if err != nil {
				return fmt.Errorf("compare %s and %s: %w", dirA, dirB, err)
			}
			if mismatch != nil {
				log.Errorw("indexes are not equivalent", "trial", mismatch.Trial, "only_a", mismatch.OnlyA, "only_b", mismatch.OnlyB)
				return errCompareMismatch
			}
			log.Infow("indexes are equivalent", "a", dirA, "b", dirB, "trials", compare.NewOptions().Trials)
			return nil
		},
	}
	return cmd
}
