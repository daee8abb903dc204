package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenerateKey joins a namespace prefix and an identifier into a cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// HashKey returns a short hex fingerprint of s, stable across processes.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// BuildPattern returns the glob matching every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
