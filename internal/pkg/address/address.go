// Package address defines the canonical form used for every chain address and
// transaction hash stored or compared by the system.
//
// Equality of two addresses is defined as equality of their canonical forms, so
// all write and query paths must normalize through this package before touching
// storage. Storage never coerces casing on its own.
package address

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Canonicalize returns the canonical comparable form of a chain address:
// trimmed and lowercased. It is a total, deterministic function; malformed
// input is passed through normalized and must be rejected by the caller's
// own validation.
func Canonicalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// CanonicalizeHash returns the canonical form of a transaction hash, using
// the same rule as addresses. Hashes are stored and looked up exclusively in
// this form.
func CanonicalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// IsHexAddress reports whether the string is a well-formed 20-byte hex
// address (with or without the 0x prefix), in any casing.
func IsHexAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}

// Equal reports whether two addresses are the same under canonicalization.
func Equal(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}
