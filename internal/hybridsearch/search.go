package hybridsearch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/vectorstore"
)

// Searcher is the C8 contract: search(query, collectionId, opts) → ranked
// seq<{chunk, fusedScore}>, fusing C3's FTSSearch with C4's Search.
type Searcher struct {
	rel              *relstore.Store
	vectors          vectorstore.Store
	embed            embedding.Client
	vectorCollection string
	logger           logging.Logger
}

// New builds a Searcher over the given stores.
func New(rel *relstore.Store, embedClient embedding.Client, vectors vectorstore.Store, vectorCollection string, logger logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Searcher{
		rel:              rel,
		vectors:          vectors,
		embed:            embedClient,
		vectorCollection: vectorCollection,
		logger:           logger.WithComponent("hybridsearch"),
	}
}

// Search implements spec §4.8's procedure: embed the query, run FTS and
// vector retrieval in parallel (either may degrade non-fatally), fuse via
// RRF, then batch-fetch chunks preserving fused order.
func (s *Searcher) Search(ctx context.Context, query, collectionID string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("search query must not be empty")
	}
	if opts.Limit <= 0 {
		return nil, apperrors.Validation("limit must be positive")
	}

	queryVector, vectorDegraded := s.embedQuery(ctx, query)

	var (
		ftsHits    []relstore.FTSHit
		vectorHits []vectorstore.SearchHit
		ftsFailed  bool
		wg         sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, err := s.rel.FTSSearch(ctx, query, collectionID, opts.Limit)
		if err != nil {
			s.logger.Warn("fts leg failed, degrading to vector-only", "error", err.Error())
			ftsFailed = true
			return
		}
		ftsHits = hits
	}()

	vectorFailed := vectorDegraded
	if !vectorDegraded {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := s.vectors.Search(ctx, s.vectorCollection, vectorstore.SearchParams{
				Vector: queryVector,
				Limit:  opts.Limit,
				Filter: withCollectionFilter(opts.Filters, collectionID),
			})
			if err != nil {
				s.logger.Warn("vector leg failed, degrading to fts-only", "error", err.Error())
				vectorFailed = true
				return
			}
			vectorHits = hits
		}()
	}

	wg.Wait()

	if len(ftsHits) == 0 && len(vectorHits) == 0 {
		return nil, nil
	}

	entries := fuse(ftsHits, vectorHits)

	candidateIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		candidateIDs = append(candidateIDs, e.pointID)
	}

	chunks, err := s.rel.FetchChunksByPointIds(ctx, candidateIDs, collectionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindDependencyTransient, "fetching fused chunks", err)
	}
	byID := make(map[string]relstore.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.PointID] = c
	}

	// Step 4's "dropping pointIds not present in RelStore" reconciliation:
	// only entries with a matching chunk row survive.
	final := entries[:0]
	for _, e := range entries {
		if c, ok := byID[e.pointID]; ok {
			e.chunkIndex = c.ChunkIndex
			e.hasChunkIndex = true
			final = append(final, e)
		}
	}
	entries = final

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.semanticScore != b.semanticScore {
			return a.semanticScore > b.semanticScore
		}
		if a.chunkIndex != b.chunkIndex {
			return a.chunkIndex < b.chunkIndex
		}
		return a.pointID < b.pointID
	})

	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	degraded := ftsFailed || vectorFailed
	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, Result{
			Chunk:      byID[e.pointID],
			FusedScore: e.score,
			Degraded:   degraded,
		})
	}
	return results, nil
}

// embedQuery resolves the query vector, degrading to keyword-only on any
// embedding failure per spec §4.8 step 1 ("transient" or "permanent", both
// degrade, and both are logged at warn level).
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	vectors, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to fts-only", "error", err.Error())
		return nil, true
	}
	if len(vectors) == 0 {
		s.logger.Warn("query embedding returned no vectors, degrading to fts-only")
		return nil, true
	}
	return vectors[0], false
}

func withCollectionFilter(filters map[string]string, collectionID string) map[string]string {
	out := make(map[string]string, len(filters)+1)
	for k, v := range filters {
		out[k] = v
	}
	out["collection_id"] = collectionID
	return out
}

// fuse implements spec §4.8 step 3: each pointId at 1-indexed rank r in a
// list contributes 1/(k+r); contributions sum across lists, collapsing a
// pointId present in both into one entry.
func fuse(ftsHits []relstore.FTSHit, vectorHits []vectorstore.SearchHit) []fusedEntry {
	byID := make(map[string]*fusedEntry)
	order := make([]string, 0, len(ftsHits)+len(vectorHits))

	get := func(pointID string) *fusedEntry {
		e, ok := byID[pointID]
		if !ok {
			e = &fusedEntry{pointID: pointID}
			byID[pointID] = e
			order = append(order, pointID)
		}
		return e
	}

	for i, hit := range ftsHits {
		rank := i + 1
		e := get(hit.PointID)
		e.score += 1.0 / (rrfK + float64(rank))
	}
	for i, hit := range vectorHits {
		rank := i + 1
		e := get(hit.PointID)
		e.score += 1.0 / (rrfK + float64(rank))
		e.semanticScore = hit.Score
		e.hasSemantic = true
	}

	out := make([]fusedEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
