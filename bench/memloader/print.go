// Package main is memloader: a load generator to measure and stress-test the
// tiered memory manager against the Go runtime allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package main

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/cmn/jsp"
)

func printReport(w io.Writer, rep *report) {
	fmt.Fprintf(w, "\n%s: %d workers x %d iterations, sizes [%s, %s], mode %s\n",
		rep.Allocator, rep.Spec.Workers, rep.Spec.Iterations,
		cmn.B2S(rep.Spec.MinSize, 0), cmn.B2S(rep.Spec.MaxSize, 0), rep.Spec.Mode)
	fmt.Fprintf(w, "elapsed: %v, %d ops, %.0f ops/sec\n", rep.Elapsed, rep.Ops, rep.OpsPerSec)
	if rep.Spec.Verify {
		fmt.Fprintf(w, "verified payloads, %d corrupt\n", rep.Corrupt)
	}
	if rep.Stats == nil {
		return
	}
	hits, slow, escapes, frees, drops := rep.Stats.Totals()
	fmt.Fprintf(w, "tiers: %d local, %d global, %d escaped; %d frees (%d dropped)\n",
		hits, slow, escapes, frees, drops)
	fmt.Fprintf(w, "reclaimer: %d migrated, %d released\n", rep.Stats.Reclaimed, rep.Stats.Released)

	b, err := jsoniter.MarshalIndent(rep.Stats, "", "  ")
	if err == nil {
		fmt.Fprintf(w, "per-worker stats: %s\n", string(b))
	}
}

func printComparison(w io.Writer, tmmRep, stdRep *report) {
	ratio := tmmRep.OpsPerSec / stdRep.OpsPerSec
	fmt.Fprintf(w, "\ncomparison: tmm %.0f ops/sec vs std %.0f ops/sec (x%.2f)\n",
		tmmRep.OpsPerSec, stdRep.OpsPerSec, ratio)
}

func saveReport(path string, rep *report) error {
	return jsp.Save(path, rep, jsp.Options{Checksum: true, Signature: true})
}
