package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalize trims surrounding whitespace and applies Unicode NFC
// normalization, per spec §4.1: "contentHash is a stable hash of normalized
// (trimmed, unicode-NFC) chunk text."
func normalize(s string) string {
	trimmed := strings.TrimSpace(s)
	return norm.NFC.String(trimmed)
}

// contentHash returns a stable hex-encoded hash of the normalized text.
func contentHash(s string) string {
	sum := sha256.Sum256([]byte(normalize(s)))
	return hex.EncodeToString(sum[:])
}
