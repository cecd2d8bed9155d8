// Package memtier implements a tiered, thread-caching extent allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier

import (
	"math/rand"
	"time"

	"github.com/golang/glog"
	"github.com/tmmsys/tmm/cmn/mono"
)

// Reclaim policies. The coin-flip policy migrates a small random subset of
// one random worker's free extents per tick and, additionally, releases a
// random subset of the global free list back to the runtime. The age policy
// migrates every free extent idle longer than MaxUnused, across all workers,
// with no per-tick cap and no OS release.
const (
	ReclaimCoinFlip = "coinflip"
	ReclaimByAge    = "age"

	DefaultMaxUnused = 30 * time.Second

	// per-tick caps, coin-flip policy: 1..maxPerTick each
	maxPerTick = 3
)

type rndSource = *rand.Rand

func newRndSource() rndSource {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// reclaim is the housekeeper callback - the single background actor. All
// dual-lock sections below take the global lock first, then a worker's
// (same fixed order as the allocate slow path).
func (r *TMM) reclaim() time.Duration {
	switch r.Policy {
	case ReclaimByAge:
		r.reclaimByAge()
	default:
		r.reclaimRandom()
	}
	return r.ReclaimIval
}

func (r *TMM) reclaimRandom() {
	var (
		toReclaim = r.rnd.Intn(maxPerTick) + 1
		toRelease = r.rnd.Intn(maxPerTick) + 1
		w         = r.workers[r.rnd.Intn(len(r.workers))]
		moved     int
		released  int
	)
	r.gmu.Lock()
	w.mu.Lock()
	var prev *extent
	for cur := w.heap.freeHead; cur != nil && moved < toReclaim; {
		next := cur.next
		if r.rnd.Intn(2) == 1 {
			w.heap.freeHead = detach(w.heap.freeHead, cur, prev)
			r.global.freeHead = insertSorted(r.global.freeHead, cur)
			moved++
		} else {
			prev = cur
		}
		cur = next
	}
	w.heap.checkSorted()
	w.mu.Unlock()

	// master-thread role: trim the global free list
	prev = nil
	for cur := r.global.freeHead; cur != nil && released < toRelease; {
		next := cur.next
		if r.rnd.Intn(2) == 1 {
			r.global.freeHead = detach(r.global.freeHead, cur, prev)
			cur.buf = nil // ownership leaves the allocator; runtime reclaims
			released++
		} else {
			prev = cur
		}
		cur = next
	}
	r.global.checkSorted()
	r.gmu.Unlock()

	r.stats.reclaimed.Add(uint64(moved))
	r.stats.released.Add(uint64(released))
	if glog.V(4) && (moved > 0 || released > 0) {
		glog.Infof("%s: reclaim tick - migrated %d (worker %d), released %d", r.Name, moved, w.idx, released)
	}
}

func (r *TMM) reclaimByAge() {
	var (
		now    = mono.NanoTime()
		maxAge = int64(r.MaxUnused)
		moved  int
	)
	for _, w := range r.workers {
		r.gmu.Lock()
		w.mu.Lock()
		var prev *extent
		for cur := w.heap.freeHead; cur != nil; {
			next := cur.next
			if now-cur.lastUsed > maxAge {
				w.heap.freeHead = detach(w.heap.freeHead, cur, prev)
				r.global.freeHead = insertSorted(r.global.freeHead, cur)
				moved++
			} else {
				prev = cur
			}
			cur = next
		}
		w.heap.checkSorted()
		w.mu.Unlock()
		r.global.checkSorted()
		r.gmu.Unlock()
	}
	r.stats.reclaimed.Add(uint64(moved))
	if glog.V(4) && moved > 0 {
		glog.Infof("%s: reclaim tick - migrated %d idle extents", r.Name, moved)
	}
}
