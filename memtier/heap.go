// Package memtier implements a tiered, thread-caching extent allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier

import (
	"github.com/tmmsys/tmm/cmn/debug"
)

// lheap is one heap: a free list sorted by descending length and an
// unordered used list. Callers serialize access (see Worker.mu, TMM.gmu).
type lheap struct {
	freeHead *extent
	usedHead *extent
}

// findFit returns the smallest free extent of size >= want, together with
// its predecessor. With the descending sort this is the first node whose
// successor is absent or too small.
func (h *lheap) findFit(want int64) (fit, prev *extent) {
	for cur := h.freeHead; cur != nil; prev, cur = cur, cur.next {
		if cur.size() >= want && (cur.next == nil || cur.next.size() < want) {
			return cur, prev
		}
	}
	return nil, nil
}

// alloc detaches a best-fit extent and, when the leftover clears splitMin,
// splits it: the requested prefix goes onto the used list and is returned,
// the shrunken remainder rejoins the free list. Below the threshold the
// whole extent is returned as-is, bypassing the used list - such extents
// are one-shot (the free path will not find them).
func (h *lheap) alloc(want, splitMin int64) *extent {
	fit, prev := h.findFit(want)
	if fit == nil {
		return nil
	}
	h.freeHead = detach(h.freeHead, fit, prev)
	if fit.size()-want >= splitMin {
		took := &extent{buf: fit.buf[:want:want], lastUsed: fit.lastUsed}
		took.next = h.usedHead
		h.usedHead = took

		fit.buf = fit.buf[want:]
		h.freeHead = insertSorted(h.freeHead, fit)
		return took
	}
	return fit
}

// free moves the used extent matching p back to the free list and stamps
// its last-used time. Returns false when p is unknown to this heap (escaped
// or foreign) - by contract a silent no-op for the caller.
func (h *lheap) free(p []byte, now int64) bool {
	var prev *extent
	for cur := h.usedHead; cur != nil; prev, cur = cur, cur.next {
		if cur.sameBase(p) {
			h.usedHead = detach(h.usedHead, cur, prev)
			cur.lastUsed = now
			h.freeHead = insertSorted(h.freeHead, cur)
			return true
		}
	}
	return false
}

// cleanup unlinks every descriptor on both lists and reports the payload
// bytes released.
func (h *lheap) cleanup() (freed int64) {
	for _, head := range []*extent{h.freeHead, h.usedHead} {
		for cur := head; cur != nil; {
			next := cur.next
			freed += cur.size()
			cur.buf, cur.next = nil, nil
			cur = next
		}
	}
	h.freeHead, h.usedHead = nil, nil
	return
}

//
// traversal is authoritative - no cached counters (see DESIGN.md)
//

func (h *lheap) freeLen() (n int) {
	for cur := h.freeHead; cur != nil; cur = cur.next {
		n++
	}
	return
}

func (h *lheap) usedLen() (n int) {
	for cur := h.usedHead; cur != nil; cur = cur.next {
		n++
	}
	return
}

func (h *lheap) freeSize() (total int64) {
	for cur := h.freeHead; cur != nil; cur = cur.next {
		total += cur.size()
	}
	return
}

// checkSorted asserts the descending-length invariant; debug builds only.
func (h *lheap) checkSorted() {
	if !debug.Enabled {
		return
	}
	for cur := h.freeHead; cur != nil && cur.next != nil; cur = cur.next {
		debug.AssertMsg(cur.size() >= cur.next.size(), "free list out of order")
	}
}
