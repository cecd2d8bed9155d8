// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package hk_test

import (
	"testing"
	"time"

	"github.com/tmmsys/tmm/hk"
	"github.com/tmmsys/tmm/tutils/tassert"
	"go.uber.org/atomic"
)

func TestPeriodicCallback(t *testing.T) {
	house := hk.NewHK("test")
	go house.Run()
	defer house.Stop()

	var cnt atomic.Int64
	house.Reg("tick", func() time.Duration {
		cnt.Inc()
		return 10 * time.Millisecond
	}, 10*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	n := cnt.Load()
	tassert.Fatalf(t, n >= 5, "expected at least 5 invocations, got %d", n)

	house.Unreg("tick")
	time.Sleep(50 * time.Millisecond)
	n = cnt.Load()
	time.Sleep(100 * time.Millisecond)
	tassert.Errorf(t, cnt.Load() == n, "callback kept firing after unreg")
}

func TestStopJoins(t *testing.T) {
	house := hk.NewHK("test.stop")
	go house.Run()

	house.Reg("tick", func() time.Duration { return time.Millisecond }, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	started := time.Now()
	house.Stop()
	tassert.Errorf(t, time.Since(started) < time.Second, "stop must join promptly")
}

func TestInitialIntervalFromCallback(t *testing.T) {
	house := hk.NewHK("test.initial")
	go house.Run()
	defer house.Stop()

	fired := make(chan struct{}, 8)
	// zero initial interval: the callback itself supplies the first deadline
	house.Reg("tick", func() time.Duration {
		select {
		case fired <- struct{}{}:
		default:
		}
		return 10 * time.Millisecond
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}
