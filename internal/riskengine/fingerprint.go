package riskengine

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// NormalizeFingerprint collapses a raw, collaborator-supplied device
// fingerprint (typically a concatenation of user-agent, accepted
// languages, screen/canvas hints, etc.) into a fixed-width hex digest
// suitable for storage and equality comparison in the device registry.
// blake2b is used instead of a generic hash because it is already in the
// module's dependency surface and needs no extra keying material here.
func NormalizeFingerprint(raw string) string {
	sum := blake2b.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
