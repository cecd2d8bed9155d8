// Package debug provides assertions and debug logging that are no-ops unless
// enabled at run time via TMM_DEBUG.
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package debug

import (
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
)

// Enabled is set once at startup; fast paths read it without synchronization.
var Enabled bool

func init() {
	if a := os.Getenv("TMM_DEBUG"); a != "" {
		Enabled, _ = strconv.ParseBool(a)
	}
}

func Assert(cond bool) {
	if Enabled && !cond {
		glog.Flush()
		panic("debug assertion failed")
	}
}

func AssertMsg(cond bool, msg string) {
	if Enabled && !cond {
		glog.Flush()
		panic("debug assertion failed: " + msg)
	}
}

func AssertNoErr(err error) {
	if Enabled && err != nil {
		glog.Flush()
		panic(err)
	}
}

func Infof(format string, a ...interface{}) {
	if Enabled {
		glog.InfoDepth(1, fmt.Sprintf("[DEBUG] "+format, a...))
	}
}

func Errorf(format string, a ...interface{}) {
	if Enabled {
		glog.ErrorDepth(1, fmt.Sprintf("[DEBUG] "+format, a...))
	}
}
