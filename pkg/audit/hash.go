package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// chainHash computes the hash linking an entry to its predecessor:
// SHA-256 over the predecessor's hash concatenated with the entry's
// canonical JSON form (with its own hash fields zeroed). Any change to a
// recorded entry, or any reordering of the chain, changes the hash of
// every subsequent entry.
func chainHash(prevHash string, e *Entry) (string, error) {
	clone := *e
	clone.PrevHash = ""
	clone.Hash = ""

	body, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("marshal entry for hashing: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
