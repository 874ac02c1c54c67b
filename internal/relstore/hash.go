package relstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashContent computes docId = H(content), per spec §8's invariant
// "∀ Document D: docId == H(D.content) at creation time."
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PointID computes pointId = H(docId, chunkIndex), per spec §8's invariant
// "∀ Chunk C: C.pointId == H(C.docId, C.chunkIndex)."
func PointID(docID string, chunkIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, chunkIndex)))
	return hex.EncodeToString(sum[:])
}
