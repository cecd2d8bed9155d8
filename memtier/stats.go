// Package memtier implements a tiered, thread-caching extent allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier

import (
	"go.uber.org/atomic"
)

type (
	// Stats is a point-in-time snapshot, indexable by worker slot.
	Stats struct {
		Hits    []uint64 `json:"hits"`    // tier-1 allocations
		Slow    []uint64 `json:"slow"`    // tier-2 allocations (after migration)
		Escapes []uint64 `json:"escapes"` // tier-3 allocations
		Frees   []uint64 `json:"frees"`
		Drops   []uint64 `json:"drops"` // frees of untracked buffers

		Reclaimed uint64 `json:"reclaimed"` // extents migrated local -> global
		Released  uint64 `json:"released"`  // extents released global -> OS
	}

	workerStats struct {
		hits, slow, escapes atomic.Uint64
		frees, drops        atomic.Uint64
	}

	tierStats struct {
		workers   []workerStats
		reclaimed atomic.Uint64
		released  atomic.Uint64
	}
)

func newTierStats(numWorkers int) *tierStats {
	return &tierStats{workers: make([]workerStats, numWorkers)}
}

func (s *tierStats) hit(idx int)    { s.workers[idx].hits.Inc() }
func (s *tierStats) slow(idx int)   { s.workers[idx].slow.Inc() }
func (s *tierStats) escape(idx int) { s.workers[idx].escapes.Inc() }
func (s *tierStats) free(idx int)   { s.workers[idx].frees.Inc() }
func (s *tierStats) drop(idx int)   { s.workers[idx].drops.Inc() }

func (s *tierStats) snapshot() Stats {
	n := len(s.workers)
	out := Stats{
		Hits:      make([]uint64, n),
		Slow:      make([]uint64, n),
		Escapes:   make([]uint64, n),
		Frees:     make([]uint64, n),
		Drops:     make([]uint64, n),
		Reclaimed: s.reclaimed.Load(),
		Released:  s.released.Load(),
	}
	for i := range s.workers {
		ws := &s.workers[i]
		out.Hits[i] = ws.hits.Load()
		out.Slow[i] = ws.slow.Load()
		out.Escapes[i] = ws.escapes.Load()
		out.Frees[i] = ws.frees.Load()
		out.Drops[i] = ws.drops.Load()
	}
	return out
}

// Totals sums the per-worker counters.
func (st *Stats) Totals() (hits, slow, escapes, frees, drops uint64) {
	for i := range st.Hits {
		hits += st.Hits[i]
		slow += st.Slow[i]
		escapes += st.Escapes[i]
		frees += st.Frees[i]
		drops += st.Drops[i]
	}
	return
}
