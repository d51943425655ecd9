package rescache

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
)

// keyDigestLen is the number of hex characters kept from the SHA-256 of the
// key material. 64 bits of digest is plenty for a single-directory cache.
const keyDigestLen = 16

// DeriveKey builds a deterministic cache key from a category and semantic
// request parameters. Parts are sorted by name so argument order never
// changes the key. Quantize numeric parameters with Bucket before folding
// them into parts to raise hit rates.
func DeriveKey(category string, parts map[string]string) string {
	names := make([]string, 0, len(parts))
	for k := range parts {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(category)
	sb.WriteByte(':')
	for i, k := range names {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(parts[k])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:keyDigestLen]
}

// Bucket rounds value to the nearest multiple of size, e.g. a purchase budget
// to the nearest $50k. size <= 0 rounds to the nearest integer.
func Bucket(value float64, size int64) int64 {
	if size <= 0 {
		return int64(math.Round(value))
	}
	return int64(math.Round(value/float64(size))) * size
}
