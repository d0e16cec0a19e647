package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize trims surrounding whitespace and lower-cases the query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Hash returns the hex sha256 of the normalized query. It is the exact-match key.
func Hash(query string) string {
	sum := sha256.Sum256([]byte(Normalize(query)))
	return hex.EncodeToString(sum[:])
}
