// Package main is memloader: a load generator to measure and stress-test the
// tiered memory manager against the Go runtime allocator.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package main

import (
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/memtier"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
	"golang.org/x/sync/errgroup"
)

const (
	modeFixed  = "fixed"
	modeRandom = "random"
	modeChurn  = "churn"

	progressBarWidth = 64
)

type (
	workloadSpec struct {
		Mode       string `yaml:"mode" json:"mode"`
		Workers    int    `yaml:"workers" json:"workers"`
		Iterations int    `yaml:"iterations" json:"iterations"`
		MinSize    int64  `yaml:"minsize" json:"minsize"`
		MaxSize    int64  `yaml:"maxsize" json:"maxsize"`
		HeapBytes  int64  `yaml:"heap_bytes" json:"heap_bytes"`
		Policy     string `yaml:"policy" json:"policy"`
		Hold       int    `yaml:"hold" json:"hold"`
		Verify     bool   `yaml:"verify" json:"verify"`
	}

	report struct {
		Allocator string        `json:"allocator"`
		Spec      workloadSpec  `json:"spec"`
		Elapsed   time.Duration `json:"elapsed_ns"`
		Ops       int64         `json:"ops"`
		OpsPerSec float64       `json:"ops_per_sec"`
		Corrupt   int64         `json:"corrupt"`
		Stats     *memtier.Stats `json:"stats,omitempty"`
	}
)

func (spec *workloadSpec) validate() error {
	if spec.Workers == 0 {
		spec.Workers = runtime.NumCPU()
	}
	switch spec.Mode {
	case modeFixed, modeRandom, modeChurn:
	default:
		return fmt.Errorf("invalid mode %q (expecting %s | %s | %s)", spec.Mode, modeFixed, modeRandom, modeChurn)
	}
	if spec.MinSize <= 0 || spec.MaxSize < spec.MinSize {
		return fmt.Errorf("invalid size range [%s, %s]",
			cmn.B2S(spec.MinSize, 0), cmn.B2S(spec.MaxSize, 0))
	}
	if spec.Iterations <= 0 {
		return fmt.Errorf("invalid iteration count %d", spec.Iterations)
	}
	return nil
}

// run executes the workload against tmm.
func run(spec workloadSpec, showProgress bool) (*report, error) {
	tmm := &memtier.TMM{
		Name:      "memloader.tmm",
		Workers:   spec.Workers,
		HeapBytes: spec.HeapBytes,
		Policy:    spec.Policy,
	}
	if err := tmm.Init(false); err != nil {
		return nil, err
	}
	defer tmm.Terminate()

	rep, err := execute(spec, "tmm", showProgress, func() allocFreer {
		return tmm.Register()
	})
	if err != nil {
		return nil, err
	}
	stats := tmm.Stats()
	rep.Stats = &stats
	return rep, nil
}

// runStd executes the same workload against the runtime allocator.
func runStd(spec workloadSpec, showProgress bool) (*report, error) {
	return execute(spec, "std", showProgress, func() allocFreer {
		return stdAlloc{}
	})
}

type allocFreer interface {
	Alloc(size int64) []byte
	Free(buf []byte)
}

type stdAlloc struct{}

func (stdAlloc) Alloc(size int64) []byte { return make([]byte, size) }
func (stdAlloc) Free([]byte)             {}

func execute(spec workloadSpec, name string, showProgress bool, handle func() allocFreer) (*report, error) {
	var (
		group    errgroup.Group
		progress *mpb.Progress
		bar      *mpb.Bar
		total    = int64(spec.Workers) * int64(spec.Iterations)
		corrupt  = make([]int64, spec.Workers)
	)
	if showProgress {
		progress = mpb.New(mpb.WithWidth(progressBarWidth))
		bar = progress.AddBar(
			total,
			mpb.PrependDecorators(decor.Name(name+" "), decor.CountersNoUnit("%d/%d", decor.WCSyncWidth)),
			mpb.AppendDecorators(decor.Percentage(decor.WCSyncWidth)),
		)
	}

	started := time.Now()
	for i := 0; i < spec.Workers; i++ {
		i := i
		group.Go(func() error {
			var (
				w    = handle()
				rnd  = rand.New(rand.NewSource(int64(i) + started.UnixNano()))
				held []heldBuf
			)
			for iter := 0; iter < spec.Iterations; iter++ {
				size := spec.MinSize
				if spec.Mode != modeFixed && spec.MaxSize > spec.MinSize {
					size += rnd.Int63n(spec.MaxSize - spec.MinSize + 1)
				}
				buf := w.Alloc(size)
				if buf == nil {
					return fmt.Errorf("%s: worker %d: allocation of %d bytes failed", name, i, size)
				}
				sum := fillPayload(buf, rnd)

				if spec.Mode == modeChurn {
					held = append(held, heldBuf{buf: buf, sum: sum})
					if len(held) > spec.Hold {
						victim := rnd.Intn(len(held))
						hb := held[victim]
						held[victim] = held[len(held)-1]
						held = held[:len(held)-1]
						if spec.Verify && !verifyPayload(hb.buf, hb.sum) {
							corrupt[i]++
						}
						w.Free(hb.buf)
					}
				} else {
					if spec.Verify && !verifyPayload(buf, sum) {
						corrupt[i]++
					}
					w.Free(buf)
				}
				if bar != nil {
					bar.Increment()
				}
			}
			// drain whatever churn still holds
			for _, hb := range held {
				if spec.Verify && !verifyPayload(hb.buf, hb.sum) {
					corrupt[i]++
				}
				w.Free(hb.buf)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	elapsed := time.Since(started)
	if progress != nil {
		progress.Wait()
	}

	rep := &report{
		Allocator: name,
		Spec:      spec,
		Elapsed:   elapsed,
		Ops:       total,
		OpsPerSec: float64(total) / elapsed.Seconds(),
	}
	for _, c := range corrupt {
		rep.Corrupt += c
	}
	return rep, nil
}

type heldBuf struct {
	buf []byte
	sum uint64
}

// fillPayload writes a random pattern and returns its checksum.
func fillPayload(buf []byte, rnd *rand.Rand) uint64 {
	pattern := byte(rnd.Intn(256))
	for i := range buf {
		buf[i] = pattern
	}
	return xxhash.Checksum64(buf)
}

func verifyPayload(buf []byte, sum uint64) bool {
	return xxhash.Checksum64(buf) == sum
}
