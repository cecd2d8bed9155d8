// Package tassert provides common asserts for tests
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package tassert

import (
	"fmt"
	"os"
	"testing"
)

var fatal = func(t testing.TB, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	t.Fatal(msg)
}

func CheckError(t testing.TB, err error) {
	if err != nil {
		t.Error(err)
	}
}

func CheckFatal(t testing.TB, err error) {
	if err != nil {
		fatal(t, err.Error())
	}
}

func Errorf(t testing.TB, cond bool, msg string, args ...interface{}) {
	if !cond {
		t.Errorf(msg, args...)
	}
}

func Fatalf(t testing.TB, cond bool, msg string, args ...interface{}) {
	if !cond {
		fatal(t, fmt.Sprintf(msg, args...))
	}
}
