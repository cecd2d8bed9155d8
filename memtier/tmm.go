// Package memtier implements a tiered, thread-caching extent allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier

import (
	"os"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/cmn/debug"
	"github.com/tmmsys/tmm/cmn/mono"
	"github.com/tmmsys/tmm/hk"
	"github.com/tmmsys/tmm/sys"
	"go.uber.org/atomic"
)

// ============================ Tiered Memory Manager ==========================
//
// TMM serves variable-sized allocation requests from many concurrent workers
// with minimal contention. Each registered worker fronts its own local heap;
// one shared global heap acts as overflow pool and rebalancing reservoir; a
// background reclaimer (driven by a per-instance housekeeper) migrates idle
// extents from local heaps back to the global heap.
//
// The allocate path is three-tiered:
//	1. local heap, under the worker's own lock;
//	2. global heap - detach a best-fit extent, split off the remainder,
//	   migrate the extent (plus, optionally, a batch) into the caller's
//	   local free list, retry tier 1 once;
//	3. the Go runtime - such buffers escape TMM tracking entirely.
//
// A typical sequence:
//	tmm := &memtier.TMM{Name: "app.tmm", Workers: 8}
//	err := tmm.Init(false)
//	...
//	w := tmm.Register()
//	buf := w.Alloc(sz)
//	...
//	w.Free(buf)
//	...
//	tmm.Terminate()
//
// Environment:
//	TMM_HEAP_BYTES   - per-worker (and per-worker share of global) arena size
//	TMM_RECLAIM_IVAL - reclaimer tick
//	TMM_MINMEM_FREE  - host memory that must remain free at Init
//	TMM_DEBUG        - enable debug assertions and logging
//
// =============================================================================

const (
	// Alignment is the allocation granularity: request sizes round up to a
	// multiple of it, payload base addresses are multiples of it.
	Alignment = 64

	// DefaultHeapBytes is the backing reservation per local heap; the global
	// heap reserves DefaultHeapBytes x workers.
	DefaultHeapBytes = cmn.MiB

	// SplitMin and GlobalSplitMin are the minimum leftovers that warrant
	// splitting a free extent, local and global tier respectively. The
	// global threshold is larger to limit global-list fragmentation.
	SplitMin       = 256
	GlobalSplitMin = 1024

	DefaultReclaimIval = time.Second

	// transfer batch: starting size and per-migration increment
	minTransferBatch = 4
	transferBatchInc = 2
)

type (
	// Worker is a registered participant's handle: its local heap slot plus
	// the adaptive transfer batch size. The embedded lock serializes the
	// owner's fast path with the reclaimer.
	Worker struct {
		m     *TMM
		idx   int
		mu    sync.Mutex
		heap  lheap
		batch int // transfer batch; grows by transferBatchInc per batch migration
	}

	TMM struct {
		// public
		Name        string
		Workers     int           // number of worker slots; 0 - use hardware concurrency
		HeapBytes   int64         // per-heap reservation; 0 - DefaultHeapBytes
		ReclaimIval time.Duration // reclaimer tick; 0 - DefaultReclaimIval
		MaxUnused   time.Duration // age policy only; 0 - DefaultMaxUnused
		Policy      string        // ReclaimCoinFlip (default) | ReclaimByAge
		MinFree     uint64        // host memory that must remain available at Init
		// private
		workers  []*Worker
		nextSlot atomic.Int32
		gmu      sync.Mutex
		global   lheap
		stats    *tierStats
		house    *hk.Housekeeper
		rnd      rndSource // reclaimer-owned, see reclaim.go
	}
)

var (
	gtm     = &TMM{Name: ".dflt.tmm"}
	gtmOnce sync.Once
)

// Default returns the process-wide TMM singleton, initializing it on first use.
func Default() *TMM {
	gtmOnce.Do(func() {
		gtm.Init(true)
	})
	return gtm
}

/////////////
// TMM API //
/////////////

// Init validates the configuration against available host memory, carves the
// backing reservations (one extent per heap), and starts the reclaimer.
// Must be called once, before Register/Alloc/Free.
func (r *TMM) Init(panicOnErr bool) (err error) {
	cmn.Assert(r.Name != "")
	if err = r.env(); err != nil {
		if panicOnErr {
			panic(err)
		}
		glog.Error(err)
	}
	if r.Workers == 0 {
		r.Workers = runtime.NumCPU()
	}
	if r.HeapBytes == 0 {
		r.HeapBytes = DefaultHeapBytes
	}
	if r.ReclaimIval == 0 {
		r.ReclaimIval = DefaultReclaimIval
	}
	if r.MaxUnused == 0 {
		r.MaxUnused = DefaultMaxUnused
	}
	if r.Policy == "" {
		r.Policy = ReclaimCoinFlip
	}
	cmn.AssertMsg(r.Policy == ReclaimCoinFlip || r.Policy == ReclaimByAge, r.Policy)

	// the entire footprint: global arena + one arena per worker
	reserve := uint64(r.HeapBytes) * uint64(r.Workers) * 2
	mem, merr := sys.Mem()
	if merr == nil {
		if mem.ActualFree < reserve+r.MinFree {
			err = errors.Errorf("%s: insufficient free memory %s (reserving %s, keeping %s free)",
				r.Name, cmn.B2S(int64(mem.ActualFree), 2), cmn.B2S(int64(reserve), 2),
				cmn.B2S(int64(r.MinFree), 2))
			if panicOnErr {
				panic(err)
			}
			return
		}
		if mem.SwapUsed > 0 {
			glog.Warningf("%s: swap in use (%s) at init time", r.Name, cmn.B2S(int64(mem.SwapUsed), 1))
		}
	}

	// global heap: one giant extent covering HeapBytes x workers
	now := mono.NanoTime()
	r.global.freeHead = &extent{buf: alignedMake(r.HeapBytes * int64(r.Workers)), lastUsed: now}

	// worker slots, each fronting its own single-extent heap
	r.workers = make([]*Worker, r.Workers)
	for i := range r.workers {
		w := &Worker{m: r, idx: i, batch: minTransferBatch}
		w.heap.freeHead = &extent{buf: alignedMake(r.HeapBytes), lastUsed: now}
		r.workers[i] = w
	}
	r.stats = newTierStats(r.Workers)
	r.rnd = newRndSource()

	r.house = hk.NewHK(r.Name)
	go r.house.Run()
	r.house.Reg(r.Name+".reclaim", r.reclaim, r.ReclaimIval)

	glog.Infof("%s started: %d workers, %s per heap, policy %q",
		r.Name, r.Workers, cmn.B2S(r.HeapBytes, 0), r.Policy)
	return
}

// Terminate stops and joins the reclaimer, then releases every descriptor
// and the backing reservations. Allocate/free afterwards is undefined.
func (r *TMM) Terminate() {
	r.house.Unreg(r.Name + ".reclaim")
	r.house.Stop()

	var freed int64
	r.gmu.Lock()
	freed += r.global.cleanup()
	r.gmu.Unlock()
	for _, w := range r.workers {
		w.mu.Lock()
		freed += w.heap.cleanup()
		w.mu.Unlock()
	}
	runtime.GC()
	glog.Infof("%s terminated, %s released", r.Name, cmn.B2S(freed, 1))
}

// Register returns this worker's handle, assigning a stable slot index on
// first touch. When more goroutines register than there are slots, slots are
// shared round-robin - correctness is preserved by the slot lock, only the
// fast-path contention suffers.
func (r *TMM) Register() *Worker {
	slot := int(r.nextSlot.Inc()-1) % r.Workers
	if int(r.nextSlot.Load()) > r.Workers {
		glog.V(4).Infof("%s: more registrations than slots, sharing slot %d", r.Name, slot)
	}
	return r.workers[slot]
}

// Stats returns a consistent-enough snapshot of the counters.
func (r *TMM) Stats() Stats { return r.stats.snapshot() }

// GlobalFreeLen and GlobalFreeSize are observability hooks (tests, memloader).
func (r *TMM) GlobalFreeLen() int {
	r.gmu.Lock()
	defer r.gmu.Unlock()
	return r.global.freeLen()
}

func (r *TMM) GlobalFreeSize() int64 {
	r.gmu.Lock()
	defer r.gmu.Unlock()
	return r.global.freeSize()
}

////////////////
// Worker API //
////////////////

// Alloc returns a 64-aligned buffer of at least size bytes (the length is
// the rounded-up request, or the whole extent when the leftover is below
// SplitMin and the extent is not split). Nil is returned only for
// non-positive sizes -
// tier 3 delegates to the runtime, which aborts rather than fail.
func (w *Worker) Alloc(size int64) []byte {
	if size <= 0 {
		return nil
	}
	want := (size + Alignment - 1) &^ (Alignment - 1)

	// tier 1: local heap; the head being largest, a single comparison
	// rules the whole tier out
	w.mu.Lock()
	if w.heap.freeHead != nil && w.heap.freeHead.size() >= want {
		if e := w.heap.alloc(want, SplitMin); e != nil {
			e.lastUsed = mono.NanoTime()
			w.heap.checkSorted()
			w.mu.Unlock()
			w.m.stats.hit(w.idx)
			return e.buf
		}
	}
	w.mu.Unlock()
	return w.m.allocSlow(w, want)
}

// Free returns buf to this worker's local heap. Buffers unknown to the local
// heap (runtime escapes, one-shot no-split extents, foreign or repeated
// frees) are silently dropped. Nil/empty is a no-op.
func (w *Worker) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	now := mono.NanoTime()
	w.mu.Lock()
	found := w.heap.free(buf, now)
	w.heap.checkSorted()
	w.mu.Unlock()
	if found {
		w.m.stats.free(w.idx)
	} else {
		w.m.stats.drop(w.idx)
		debug.Infof("worker %d: dropping unknown buffer (len %d)", w.idx, len(buf))
	}
}

// FreeLen, UsedLen, FreeSize are observability hooks.
func (w *Worker) FreeLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heap.freeLen()
}

func (w *Worker) UsedLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heap.usedLen()
}

func (w *Worker) FreeSize() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heap.freeSize()
}

/////////////////////
// private methods //
/////////////////////

// allocSlow is tiers 2 and 3. Lock order here and in the reclaimer is fixed:
// global before local - the migrated extent is linked into the local free
// list before the global lock is released, so that no extent is ever in
// flight with no owner.
func (r *TMM) allocSlow(w *Worker, want int64) []byte {
	var migrated bool
	r.gmu.Lock()
	if r.global.freeHead != nil && r.global.freeHead.size() >= want {
		if fit, prev := r.global.findFit(want); fit != nil {
			r.global.freeHead = detach(r.global.freeHead, fit, prev)
			if fit.size()-want >= GlobalSplitMin {
				rem := &extent{buf: fit.buf[want:], lastUsed: fit.lastUsed}
				r.global.freeHead = insertSorted(r.global.freeHead, rem)
				fit.buf = fit.buf[:want:want]
			}
			w.mu.Lock()
			wasEmpty := w.heap.freeHead == nil
			w.heap.freeHead = insertSorted(w.heap.freeHead, fit)
			if wasEmpty {
				// amortize global-lock traffic: pull a batch of global
				// heads while we hold both locks anyway
				var n int
				for ; n < w.batch && r.global.freeHead != nil; n++ {
					head := r.global.freeHead
					r.global.freeHead = detach(r.global.freeHead, head, nil)
					w.heap.freeHead = insertSorted(w.heap.freeHead, head)
				}
				if n > 0 {
					w.batch += transferBatchInc
				}
			}
			w.heap.checkSorted()
			w.mu.Unlock()
			migrated = true
		}
	}
	r.global.checkSorted()
	r.gmu.Unlock()

	if migrated {
		// retry tier 1 exactly once, lock freshly acquired
		w.mu.Lock()
		e := w.heap.alloc(want, SplitMin)
		w.mu.Unlock()
		if e != nil {
			e.lastUsed = mono.NanoTime()
			r.stats.slow(w.idx)
			return e.buf
		}
	}

	// tier 3: escape to the runtime; never tracked, Free drops it
	r.stats.escape(w.idx)
	if glog.V(4) {
		glog.Infof("%s: worker %d escaped to runtime for %s", r.Name, w.idx, cmn.B2S(want, 0))
	}
	return alignedMake(want)
}

func (r *TMM) env() (err error) {
	if a := os.Getenv("TMM_HEAP_BYTES"); a != "" {
		if r.HeapBytes, err = cmn.S2B(a); err != nil {
			return errors.Wrapf(err, "cannot parse TMM_HEAP_BYTES %q", a)
		}
	}
	if a := os.Getenv("TMM_RECLAIM_IVAL"); a != "" {
		if r.ReclaimIval, err = time.ParseDuration(a); err != nil {
			return errors.Wrapf(err, "cannot parse TMM_RECLAIM_IVAL %q", a)
		}
	}
	if a := os.Getenv("TMM_MINMEM_FREE"); a != "" {
		var minfree int64
		if minfree, err = cmn.S2B(a); err != nil {
			return errors.Wrapf(err, "cannot parse TMM_MINMEM_FREE %q", a)
		}
		r.MinFree = uint64(minfree)
	}
	return
}

// alignedMake reserves size bytes with the base address rounded up to the
// allocation granularity.
func alignedMake(size int64) []byte {
	raw := make([]byte, size+Alignment-1)
	shift := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) & (Alignment - 1)); rem != 0 {
		shift = Alignment - rem
	}
	return raw[shift : shift+int(size) : shift+int(size)]
}
