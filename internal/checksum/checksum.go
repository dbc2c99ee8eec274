// Package checksum provides content digests used to detect unchanged files.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether stored is the digest of data. An empty stored
// digest never matches, so content that was never published or indexed
// always reads as changed.
func Matches(stored string, data []byte) bool {
	return stored != "" && stored == Sum(data)
}
