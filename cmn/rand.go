// Package cmn provides common low-level types and utilities for all tmm packages
/*
 * Copyright (c) 2024, TMM Systems. All rights reserved.
 */
package cmn

import (
	"math/rand"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func RandString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
