// Package mono provides a monotonic nanosecond clock; unlike time.Now it is
// safe to compare across wall-clock adjustments.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package mono

import "time"

var started = time.Now()

// NanoTime returns nanoseconds since process start (monotonic reading).
func NanoTime() int64 { return int64(time.Since(started)) }

func Since(started int64) time.Duration { return time.Duration(NanoTime() - started) }
