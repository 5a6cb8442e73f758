// Package hash computes content hashes of assembled method bodies.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/jasm/pkg/bytecode"
)

// HashBody computes the SHA-256 content hash of a method body.
//
// The hash is computed over a deterministic serialization of the body's
// normalized form with positional label indices. Two bodies that differ
// only in label names, source lines or debug tables produce the same hash.
// The method's name and class are not part of the hash.
func HashBody(b *bytecode.MethodBody) [32]byte {
	return sha256.Sum256(Serialize(NormalizeBody(b)))
}

// String returns the hash of b as lowercase hex.
func String(b *bytecode.MethodBody) string {
	h := HashBody(b)
	return hex.EncodeToString(h[:])
}
