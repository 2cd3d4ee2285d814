// internal/utils/hash.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashCacheKey derives a stable filesystem-safe key from an asset URL.
// The short prefix keeps cache filenames readable in the data directory.
func HashCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}
