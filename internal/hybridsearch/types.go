// Package hybridsearch implements component C8: fuses keyword (FTS) and
// semantic (vector) result lists into one ranked sequence via Reciprocal
// Rank Fusion (spec §4.8). No donor analog exists for RRF itself; built
// directly from the fusion formula and tie-break rules.
package hybridsearch

import "github.com/example/docindex/internal/relstore"

// rrfK is the fixed RRF constant (spec §4.8: "k = 60"; §9 REDESIGN FLAGS:
// "baked; the source does not expose it — treat as fixed").
const rrfK = 60.0

// Options bounds and filters a search (spec §4.8: "search(query,
// collectionId, {limit, filters?})").
type Options struct {
	Limit   int
	Filters map[string]string
}

// Result is one fused hit, chunk content plus its combined score.
type Result struct {
	Chunk      relstore.Chunk
	FusedScore float64
	Degraded   bool // true when one retrieval leg failed and results rest solely on the other
}

// fusedEntry accumulates RRF contributions and tie-break material for one
// pointId across both result lists before chunks are fetched.
type fusedEntry struct {
	pointID       string
	score         float64
	semanticScore float32
	hasSemantic   bool
	chunkIndex    int
	hasChunkIndex bool
}
