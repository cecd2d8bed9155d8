// Package memtier implements a tiered, thread-caching extent allocator:
// per-worker local heaps in front of one shared global heap, with a
// background reclaimer migrating idle extents back to the global tier.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier

import (
	"github.com/tmmsys/tmm/cmn/debug"
)

// extent is the out-of-band descriptor of one contiguous payload range.
// Descriptors are intrusive forward-linked; an extent belongs to exactly
// one list at any moment (its heap's free list, its heap's used list, or
// none when escaped to the runtime).
type extent struct {
	buf      []byte  // payload; &buf[0] is the extent identity
	lastUsed int64   // mono ns of most recent alloc/free touch
	next     *extent // forward link within free or used list
}

func (e *extent) size() int64 { return int64(len(e.buf)) }

// sameBase reports whether p is this extent's payload.
func (e *extent) sameBase(p []byte) bool { return &e.buf[0] == &p[0] }

// insertSorted links n into the list headed by head, keeping the list
// sorted by strictly descending length; among equal lengths the new node
// precedes the existing ones. Returns the (possibly new) head.
func insertSorted(head, n *extent) *extent {
	if head == nil || head.size() <= n.size() {
		n.next = head
		return n
	}
	prev := head
	for prev.next != nil && prev.next.size() > n.size() {
		prev = prev.next
	}
	n.next = prev.next
	prev.next = n
	return head
}

// detach unlinks n given its predecessor (nil when n is the head) and
// returns the new head. The node's link is cleared.
func detach(head, n, prev *extent) *extent {
	if prev == nil {
		debug.Assert(head == n)
		head = n.next
	} else {
		debug.Assert(prev.next == n)
		prev.next = n.next
	}
	n.next = nil
	return head
}
