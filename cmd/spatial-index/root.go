// Copyright (c) 2025 spatial-index contributors
// SPDX-License-Identifier: MIT

// Command spatial-index is the CLI front-end of §6: build a morphology or
// synapse index from an external source, or compare two built indexes for
// equivalence.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbp-spatial/spatial-index/internal/obslog"
)

// Exit codes per §6.
const (
	exitSuccess       = 0
	exitInvalidArgs   = 1
	exitBuildFailure  = 2
	exitCompareFailed = 3
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "spatial-index",
		Short:         "Build and compare 3-D spatial indexes over neuroscience datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIndexSegmentsCmd())
	root.AddCommand(newIndexSynapsesCmd())
	root.AddCommand(newIndexCompareCmd())
	return root
}

func main() {
	log, err := obslog.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "spatial-index: logger init:", err)
		os.Exit(exitBuildFailure)
	}
	defer log.Sync() //nolint:errcheck

	ctx := obslog.WithLogger(context.Background(), log)
	root := newRootCmd()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		log.Errorw("command failed", "error", err)
		os.Exit(exitCodeFor(err))
	}
}
