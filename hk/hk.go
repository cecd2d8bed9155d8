// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package hk

import (
	"container/heap"
	"time"

	"github.com/golang/glog"
	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/cmn/debug"
	"github.com/tmmsys/tmm/cmn/mono"
	"go.uber.org/atomic"
)

const DayInterval = 24 * time.Hour

type (
	// CleanupFunc is invoked at each deadline; the returned duration
	// schedules the next invocation.
	CleanupFunc func() time.Duration

	request struct {
		registering     bool
		name            string
		f               CleanupFunc
		initialInterval time.Duration
	}

	timedAction struct {
		name       string
		f          CleanupFunc
		updateTime int64 // mono ns deadline
	}
	timedActions []timedAction

	Housekeeper struct {
		name    string
		stopCh  *cmn.StopCh
		doneCh  chan struct{}
		sigCh   chan request
		actions *timedActions
		timer   *time.Timer
		running atomic.Bool
	}
)

// DefaultHK is the process-wide housekeeper; daemons that need joinable
// shutdown run their own instance instead (see NewHK).
var DefaultHK *Housekeeper

func init() {
	DefaultHK = NewHK("default")
}

func NewHK(name string) *Housekeeper {
	return &Housekeeper{
		name:    name,
		stopCh:  cmn.NewStopCh(),
		doneCh:  make(chan struct{}),
		sigCh:   make(chan request, 16),
		actions: &timedActions{},
	}
}

func Reg(name string, f CleanupFunc, initialInterval ...time.Duration) {
	DefaultHK.Reg(name, f, initialInterval...)
}

func Unreg(name string) { DefaultHK.Unreg(name) }

func (hk *Housekeeper) Reg(name string, f CleanupFunc, initialInterval ...time.Duration) {
	var ival time.Duration
	if len(initialInterval) > 0 {
		ival = initialInterval[0]
	}
	hk.sigCh <- request{
		registering:     true,
		name:            name,
		f:               f,
		initialInterval: ival,
	}
}

func (hk *Housekeeper) Unreg(name string) {
	hk.sigCh <- request{
		registering: false,
		name:        name,
	}
}

// Run executes the housekeeping loop until Stop; it owns the action heap -
// all mutations arrive through sigCh.
func (hk *Housekeeper) Run() {
	if !hk.running.CAS(false, true) {
		debug.AssertMsg(false, "hk "+hk.name+" already running")
		return
	}
	hk.timer = time.NewTimer(DayInterval)
	defer func() {
		hk.timer.Stop()
		close(hk.doneCh)
	}()
	for {
		select {
		case <-hk.stopCh.Listen():
			return
		case <-hk.timer.C:
			if hk.actions.Len() == 0 {
				break
			}
			// Run all due actions and reschedule them.
			now := mono.NanoTime()
			for hk.actions.Len() > 0 && (*hk.actions)[0].updateTime <= now {
				act := (*hk.actions)[0]
				interval := act.f()
				(*hk.actions)[0].updateTime = now + int64(interval)
				heap.Fix(hk.actions, 0)
			}
			hk.updateTimer()
		case req := <-hk.sigCh:
			if req.registering {
				debug.Assert(req.f != nil)
				if idx := hk.actions.find(req.name); idx >= 0 {
					glog.Errorf("hk %s: duplicated registration of %q", hk.name, req.name)
					break
				}
				initial := req.initialInterval
				if initial == 0 {
					initial = req.f()
				}
				heap.Push(hk.actions, timedAction{
					name:       req.name,
					f:          req.f,
					updateTime: mono.NanoTime() + int64(initial),
				})
			} else {
				idx := hk.actions.find(req.name)
				if idx < 0 {
					glog.Errorf("hk %s: unregistering unknown %q", hk.name, req.name)
					break
				}
				heap.Remove(hk.actions, idx)
			}
			hk.updateTimer()
		}
	}
}

// Stop terminates the loop and waits for it to drain (join semantics).
func (hk *Housekeeper) Stop() {
	hk.stopCh.Close()
	if hk.running.Load() {
		<-hk.doneCh
	}
}

func (hk *Housekeeper) updateTimer() {
	if hk.actions.Len() == 0 {
		hk.timer.Reset(DayInterval)
		return
	}
	d := (*hk.actions)[0].updateTime - mono.NanoTime()
	if d < 0 {
		d = 0
	}
	hk.timer.Reset(time.Duration(d))
}

//////////////////
// timedActions //
//////////////////

func (t timedActions) Len() int            { return len(t) }
func (t timedActions) Less(i, j int) bool  { return t[i].updateTime < t[j].updateTime }
func (t timedActions) Swap(i, j int)       { t[i], t[j] = t[j], t[i] }
func (t *timedActions) Push(x interface{}) { *t = append(*t, x.(timedAction)) }
func (t *timedActions) Pop() interface{} {
	old := *t
	n := len(old)
	item := old[n-1]
	*t = old[:n-1]
	return item
}

func (t timedActions) find(name string) int {
	for i, act := range t {
		if act.name == name {
			return i
		}
	}
	return -1
}
