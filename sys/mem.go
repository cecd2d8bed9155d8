// Package sys provides process and host system readings - memory, CPU
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package sys

// MemStat represents memory statistics for the host OS
type MemStat struct {
	Total      uint64
	Used       uint64
	Free       uint64
	ActualFree uint64 // free + buffer memory (linux); free elsewhere
	SwapTotal  uint64
	SwapFree   uint64
	SwapUsed   uint64
}

// Mem returns the current host memory readings
func Mem() (MemStat, error) {
	var mem MemStat
	err := mem.get()
	return mem, err
}
