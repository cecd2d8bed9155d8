// Package sys provides process and host system readings - memory, CPU
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package sys

import (
	"golang.org/x/sys/unix"
)

func (mem *MemStat) get() error {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return err
	}
	unit := uint64(info.Unit)
	mem.Total = uint64(info.Totalram) * unit
	mem.Free = uint64(info.Freeram) * unit
	mem.ActualFree = mem.Free + uint64(info.Bufferram)*unit
	mem.Used = mem.Total - mem.Free
	mem.SwapTotal = uint64(info.Totalswap) * unit
	mem.SwapFree = uint64(info.Freeswap) * unit
	mem.SwapUsed = mem.SwapTotal - mem.SwapFree
	return nil
}
