// Package cmn provides common low-level types and utilities for all tmm packages
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package cmn_test

import (
	"testing"

	"github.com/tmmsys/tmm/cmn"
	"github.com/tmmsys/tmm/tutils/tassert"
)

func TestS2B(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"1024", 1024},
		{"512B", 512},
		{"1KB", cmn.KiB},
		{"1KiB", cmn.KiB},
		{"4kb", 4 * cmn.KiB},
		{"1MB", cmn.MiB},
		{"1.5MiB", cmn.MiB + 512*cmn.KiB},
		{"2GiB", 2 * cmn.GiB},
		{"0.5G", cmn.GiB / 2},
	}
	for _, test := range tests {
		got, err := cmn.S2B(test.in)
		tassert.CheckFatal(t, err)
		tassert.Errorf(t, got == test.expected, "S2B(%q) = %d, expected %d", test.in, got, test.expected)
	}
	_, err := cmn.S2B("")
	tassert.Errorf(t, err != nil, "expected an error for the empty string")
	_, err = cmn.S2B("12xyz")
	tassert.Errorf(t, err != nil, "expected an error for garbage input")
}

func TestB2S(t *testing.T) {
	tests := []struct {
		in       int64
		digits   int
		expected string
	}{
		{512, 2, "512B"},
		{cmn.KiB, 0, "1KiB"},
		{cmn.MiB + 512*cmn.KiB, 1, "1.5MiB"},
		{3 * cmn.GiB, 0, "3GiB"},
	}
	for _, test := range tests {
		got := cmn.B2S(test.in, test.digits)
		tassert.Errorf(t, got == test.expected, "B2S(%d, %d) = %q, expected %q", test.in, test.digits, got, test.expected)
	}
}
