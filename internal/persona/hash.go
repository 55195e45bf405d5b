package persona

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// UnknownKey is returned when the symbol mapping cannot be serialized.
// Degraded keys still index the cache; they are never an error.
const UnknownKey = "unknown"

// KeyLength is the number of hex characters kept from the digest.
const KeyLength = 16

// DeriveKey produces a stable short identifier for a raw symbol mapping.
// encoding/json sorts map keys at every level, so equal mappings hash
// identically regardless of insertion order. Truncation collisions are
// accepted and treated as cache hits.
func DeriveKey(symbols map[string]any) string {
	raw, err := json.Marshal(symbols)
	if err != nil {
		return UnknownKey
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:KeyLength]
}
