// Package memtier implements a tiered, thread-caching extent allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package memtier_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/memtier"
)

var _ = Describe("Reclaimer", func() {
	const heapBytes = 64 * cmn.KiB

	Describe("age policy", func() {
		It("migrates idle extents from local heaps to the global heap", func() {
			tmm := &memtier.TMM{
				Name:        "g.age",
				Workers:     2,
				HeapBytes:   heapBytes,
				ReclaimIval: 10 * time.Millisecond,
				MaxUnused:   30 * time.Millisecond,
				Policy:      memtier.ReclaimByAge,
			}
			Expect(tmm.Init(false)).NotTo(HaveOccurred())
			defer tmm.Terminate()

			w := tmm.Register()
			// churn a few blocks so that the local free list holds several
			// idle extents, then go quiet
			var bufs [][]byte
			for i := 0; i < 8; i++ {
				buf := w.Alloc(1024)
				Expect(buf).NotTo(BeNil())
				bufs = append(bufs, buf)
			}
			for _, buf := range bufs {
				w.Free(buf)
			}
			globalBefore := tmm.GlobalFreeLen()

			Eventually(func() int {
				return tmm.GlobalFreeLen()
			}, 2*time.Second, 20*time.Millisecond).Should(BeNumerically(">", globalBefore))

			Eventually(func() int {
				return w.FreeLen()
			}, 2*time.Second, 20*time.Millisecond).Should(BeZero())

			Expect(tmm.Stats().Reclaimed).To(BeNumerically(">", 0))
		})

		It("leaves recently used extents alone", func() {
			tmm := &memtier.TMM{
				Name:        "g.age.fresh",
				Workers:     1,
				HeapBytes:   heapBytes,
				ReclaimIval: 10 * time.Millisecond,
				MaxUnused:   time.Hour,
				Policy:      memtier.ReclaimByAge,
			}
			Expect(tmm.Init(false)).NotTo(HaveOccurred())
			defer tmm.Terminate()

			w := tmm.Register()
			buf := w.Alloc(1024)
			Expect(buf).NotTo(BeNil())
			w.Free(buf)

			localBefore := w.FreeLen()
			Consistently(func() int {
				return w.FreeLen()
			}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(localBefore))
		})
	})

	Describe("coin-flip policy", func() {
		It("eventually migrates and releases extents", func() {
			tmm := &memtier.TMM{
				Name:        "g.coin",
				Workers:     2,
				HeapBytes:   heapBytes,
				ReclaimIval: 5 * time.Millisecond,
				Policy:      memtier.ReclaimCoinFlip,
			}
			Expect(tmm.Init(false)).NotTo(HaveOccurred())
			defer tmm.Terminate()

			w := tmm.Register()
			var bufs [][]byte
			for i := 0; i < 8; i++ {
				buf := w.Alloc(1024)
				Expect(buf).NotTo(BeNil())
				bufs = append(bufs, buf)
			}
			for _, buf := range bufs {
				w.Free(buf)
			}

			Eventually(func() uint64 {
				return tmm.Stats().Reclaimed
			}, 5*time.Second, 20*time.Millisecond).Should(BeNumerically(">", 0))

			Eventually(func() uint64 {
				return tmm.Stats().Released
			}, 5*time.Second, 20*time.Millisecond).Should(BeNumerically(">", 0))
		})

		It("keeps serving allocations while reclaiming", func() {
			tmm := &memtier.TMM{
				Name:        "g.coin.busy",
				Workers:     2,
				HeapBytes:   256 * cmn.KiB,
				ReclaimIval: time.Millisecond,
				Policy:      memtier.ReclaimCoinFlip,
			}
			Expect(tmm.Init(false)).NotTo(HaveOccurred())
			defer tmm.Terminate()

			done := make(chan error, 2)
			for i := 0; i < 2; i++ {
				go func() {
					w := tmm.Register()
					for j := 0; j < 2000; j++ {
						buf := w.Alloc(int64(64 + j%1024))
						if buf == nil {
							done <- errors.New("allocation failed")
							return
						}
						buf[0] = byte(j)
						w.Free(buf)
					}
					done <- nil
				}()
			}
			Expect(<-done).NotTo(HaveOccurred())
			Expect(<-done).NotTo(HaveOccurred())
		})
	})
})
