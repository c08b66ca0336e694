// Package strings provides small string assertions used while wiring modules and keys
package strings

import std "strings"

// MustString returns s if it has non whitespace content otherwise panics
// name is used in the panic message so you can tell what was missing
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes and asserts a root path like /orders or /internal
// ensures a single leading slash and no trailing slash except for the root itself
// panics if the input is empty after trimming
func MustPrefix(s string) string {
	s = std.TrimSpace(s)
	s = "/" + std.Trim(s, " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// KeyPrefix normalizes a key namespace to end in exactly one sep; blank returns def
func KeyPrefix(s, sep, def string) string {
	s = std.TrimSpace(s)
	if s == "" {
		return def
	}
	return std.TrimRight(s, sep) + sep
}
