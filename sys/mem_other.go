// +build !linux

// Package sys provides process and host system readings - memory, CPU
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package sys

import "runtime"

// Fallback for platforms without sysinfo(2): report the Go heap ceiling as a
// rough stand-in so that callers can still apply their watermark heuristics.
func (mem *MemStat) get() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mem.Total = ms.Sys
	mem.Used = ms.HeapInuse
	mem.Free = ms.Sys - ms.HeapInuse
	mem.ActualFree = mem.Free
	return nil
}
