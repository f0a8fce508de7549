package index

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint returns the change-detection digest of an attribute map:
// SHA-256 over canonical JSON (map keys sorted lexicographically), hex
// encoded and truncated to 16 characters. It detects content changes; it is
// not an integrity check.
func Fingerprint(attrs map[string]any) string {
	data, err := json.Marshal(attrs)
	if err != nil {
		// Non-encodable values (NaN floats) still need a stable digest;
		// fmt prints map keys sorted.
		data = []byte(fmt.Sprint(attrs))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
