package ir

import "strings"

// Canonical returns the lookup key for a class-like or method name.
// PHP resolves these names case-insensitively and a leading namespace
// separator is insignificant.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), `\`))
}

// MethodKey returns the lookup key for a method on an owning type.
func MethodKey(owner, method string) string {
	return Canonical(owner) + "::" + strings.ToLower(strings.TrimSpace(method))
}

// SameName reports whether two names refer to the same symbol.
func SameName(a, b string) bool {
	return Canonical(a) == Canonical(b)
}
