package hybridsearch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/vectorstore"
)

// stubEmbedder returns a fixed vector for every query, or an error when
// failNext is set, to exercise the embedding-degradation path.
type stubEmbedder struct {
	vector   embedding.Vector
	failNext bool
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	if s.failNext {
		return nil, &embedding.Error{Kind: embedding.KindTransient, Message: "embedding unavailable", Status: 503}
	}
	out := make([]embedding.Vector, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int                        { return len(s.vector) }
func (s *stubEmbedder) Model() string                         { return "stub" }
func (s *stubEmbedder) HealthCheck(ctx context.Context) error { return nil }

func newTestSearcher(t *testing.T, embed embedding.Client) (*Searcher, *relstore.Store, vectorstore.Store) {
	t.Helper()
	relCfg := relstore.DefaultConfig()
	relCfg.Path = filepath.Join(t.TempDir(), "test.db")
	rel, err := relstore.Open(relCfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rel.Close() })

	vectors := vectorstore.NewMemoryStore()
	require.NoError(t, vectors.EnsureCollection(context.Background(), "chunks", 3, vectorstore.MetricCosine))

	searcher := New(rel, embed, vectors, "chunks", nil)
	return searcher, rel, vectors
}

// seedDoc writes docID's chunks into RelStore and mirrors one vector per
// chunk into VectorStore, returning the chunks' pointIds in chunkIndex order.
func seedDoc(t *testing.T, rel *relstore.Store, vectors vectorstore.Store, collectionID, docID string, texts []string, vecs [][]float32) []string {
	t.Helper()
	ctx := context.Background()

	chunks := make([]relstore.Chunk, len(texts))
	metas := make([]relstore.ChunkMeta, len(texts))
	points := make([]vectorstore.Point, len(texts))
	pointIDs := make([]string, len(texts))

	for i, text := range texts {
		pid := relstore.PointID(docID, i)
		pointIDs[i] = pid
		chunks[i] = relstore.Chunk{
			PointID: pid, DocID: docID, CollectionID: collectionID,
			ChunkIndex: i, Title: "", Content: text,
		}
		metas[i] = relstore.ChunkMeta{
			PointID: pid, DocID: docID, CollectionID: collectionID,
			ChunkIndex: i, ContentHash: relstore.HashContent(text),
		}
		points[i] = vectorstore.Point{
			ID:     pid,
			Vector: vecs[i],
			Payload: vectorstore.Payload{
				DocID: docID, CollectionID: collectionID, ChunkIndex: i, Content: text,
			},
		}
	}

	require.NoError(t, rel.ReplaceChunks(ctx, docID, collectionID, chunks, metas))
	require.NoError(t, vectors.Upsert(ctx, "chunks", points))
	return pointIDs
}

func TestSearch_FusesKeywordAndVectorHits(t *testing.T) {
	embed := &stubEmbedder{vector: []float32{1, 0, 0}}
	searcher, rel, vectors := newTestSearcher(t, embed)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	seedDoc(t, rel, vectors, coll.CollectionID, "doc-a",
		[]string{"alpha beta gamma", "delta epsilon"},
		[][]float32{{1, 0, 0}, {0, 1, 0}})
	seedDoc(t, rel, vectors, coll.CollectionID, "doc-b",
		[]string{"alpha zebra"},
		[][]float32{{0, 0, 1}})

	results, err := searcher.Search(ctx, "alpha", coll.CollectionID, Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// "alpha beta gamma" matches the FTS query lexically and shares the
	// query's embedding direction, so it should fuse to the top rank.
	assert.Equal(t, "alpha beta gamma", results[0].Chunk.Content)
	assert.False(t, results[0].Degraded)
}

func TestSearch_DegradesToFTSOnlyWhenEmbeddingFails(t *testing.T) {
	embed := &stubEmbedder{vector: []float32{1, 0, 0}, failNext: true}
	searcher, rel, vectors := newTestSearcher(t, embed)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)
	seedDoc(t, rel, vectors, coll.CollectionID, "doc-a",
		[]string{"alpha beta gamma"}, [][]float32{{1, 0, 0}})

	results, err := searcher.Search(ctx, "alpha", coll.CollectionID, Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Degraded)
}

func TestSearch_EmptyQueryIsValidationError(t *testing.T) {
	searcher, _, _ := newTestSearcher(t, &stubEmbedder{vector: []float32{1, 0, 0}})
	_, err := searcher.Search(context.Background(), "   ", "any-collection", Options{Limit: 10})
	require.Error(t, err)
}

func TestSearch_NonPositiveLimitIsValidationError(t *testing.T) {
	searcher, _, _ := newTestSearcher(t, &stubEmbedder{vector: []float32{1, 0, 0}})
	_, err := searcher.Search(context.Background(), "alpha", "any-collection", Options{Limit: 0})
	require.Error(t, err)
}

func TestSearch_NoMatchesReturnsEmptyResult(t *testing.T) {
	searcher, rel, _ := newTestSearcher(t, &stubEmbedder{vector: []float32{1, 0, 0}})
	ctx := context.Background()
	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	results, err := searcher.Search(ctx, "nonexistent", coll.CollectionID, Options{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_DropsPointIdsMissingFromRelStore(t *testing.T) {
	embed := &stubEmbedder{vector: []float32{1, 0, 0}}
	searcher, rel, vectors := newTestSearcher(t, embed)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)
	seedDoc(t, rel, vectors, coll.CollectionID, "doc-a",
		[]string{"alpha beta"}, [][]float32{{1, 0, 0}})

	// A vector point with no corresponding chunk row simulates an
	// eventual-consistency gap between the two stores.
	require.NoError(t, vectors.Upsert(ctx, "chunks", []vectorstore.Point{{
		ID:     relstore.PointID("doc-ghost", 0),
		Vector: []float32{1, 0, 0},
		Payload: vectorstore.Payload{
			DocID: "doc-ghost", CollectionID: coll.CollectionID, ChunkIndex: 0, Content: "ghost",
		},
	}}))

	results, err := searcher.Search(ctx, "alpha", coll.CollectionID, Options{Limit: 10})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc-ghost", r.Chunk.DocID)
	}
}
