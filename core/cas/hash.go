// Package cas computes the content fingerprint of a corpus.
//
// A fingerprint identifies the exact bytes a State was parsed from, so stored
// snapshots and cached analyses can be matched to their source.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/zeebo/blake3"
)

var hexHash = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashResult contains both SHA-256 and BLAKE3 hashes of a blob.
type HashResult struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Sum hashes data with both algorithms.
func Sum(data []byte) HashResult {
	return HashResult{
		SHA256: Hash(data),
		BLAKE3: Blake3Hash(data),
	}
}

// Short returns the first 12 hex digits of the BLAKE3 hash, for display.
func (h HashResult) Short() string {
	if len(h.BLAKE3) < 12 {
		return h.BLAKE3
	}
	return h.BLAKE3[:12]
}

// Hash computes the SHA-256 hash of data.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3-256 hash of data.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// IsValidHash reports whether s is a lowercase 64-digit hex hash.
func IsValidHash(s string) bool {
	return hexHash.MatchString(s)
}
