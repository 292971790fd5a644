package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashFreeText returns the SHA-256 hex digest of citizen free text (location,
// description) so the raw text never reaches the public ledger.
//
// Input is whitespace-trimmed before hashing; an empty input hashes to the
// digest of the empty string, not to "".
func HashFreeText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
