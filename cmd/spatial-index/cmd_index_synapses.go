// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bbp-spatial/spatial-index/element"
	"github.com/bbp-spatial/spatial-index/errs"
	"github.com/bbp-spatial/spatial-index/internal/obslog"
)

func readSynapseStore(edgesFile, population string) (*element.Store, error) {
	src, err := openSynapseSource(edgesFile, population)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return drainSynapses(src)
}

func newIndexSynapsesCmd() *cobra.Command {
	var out string
	var multi bool

	cmd := &cobra.Command{
		Use:   "index-synapses <edges-file> [population]",
		Short: "Build a synapse index from an edges file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edgesFile := args[0]
			var population string
			if len(args) == 2 {
				population = args[1]
			}
			ctx := cmd.Context()
			log := obslog.FromContext(ctx)

			store, err := readSynapseStore(edgesFile, population)
			if err != nil {
				return fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
			}
			if len(store.Elements) == 0 {
				return fmt.Errorf("%w: edges file %s yielded no elements", errs.ErrInvalidInput, edgesFile)
			}

			if err := buildOneIndex(ctx, store, element.KindSynapse, out, multi); err != nil {
				return fmt.Errorf("build %s: %w", out, err)
			}
			log.Infow("index-synapses complete", "out", out, "multi_index", multi, "population", population)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "out", "output directory")
	cmd.Flags().BoolVar(&multi, "multi-index", false, "build the partitioned multi-index variant")
	return cmd
}
