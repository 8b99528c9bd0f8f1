// Package utils holds small parsing helpers shared by the HTTP handlers.
package utils

import "strconv"

// NonNegative parses an optional non-negative integer parameter. Empty input
// yields def; malformed or negative input reports false.
func NonNegative(s string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, ok := Int(s)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// Int parses a required integer parameter of any sign.
func Int(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
