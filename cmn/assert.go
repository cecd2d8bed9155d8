// Package cmn provides common low-level types and utilities for all tmm packages
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package cmn

const assertMsg = "assertion failed"

// NOTE: Not to be used in the fast paths - use cmn/debug instead.

func Assert(cond bool) {
	if !cond {
		panic(assertMsg)
	}
}

func AssertMsg(cond bool, msg string) {
	if !cond {
		panic(assertMsg + ": " + msg)
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
