package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the SHA-256 digest of the normalized external
// identifier. Normalization: trim whitespace, lowercase, strip a
// trailing slash. This is the dedup key within a run.
func ContentHash(identifier string) string {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	normalized = strings.TrimSuffix(normalized, "/")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Dedupe removes items whose identifiers hash to the same content
// hash, keeping the first occurrence. Order is otherwise preserved.
func Dedupe(items []RawItem) []RawItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]RawItem, 0, len(items))
	for _, item := range items {
		hash := ContentHash(item.Identifier)
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		out = append(out, item)
	}
	return out
}
