package coordinator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/docindex/internal/chunker"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/hybridsearch"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/syncengine"
	"github.com/example/docindex/internal/vectorstore"
)

type stubEmbedder struct{ dimension int }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		v := make(embedding.Vector, s.dimension)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}
func (s *stubEmbedder) Dimension() int                        { return s.dimension }
func (s *stubEmbedder) Model() string                         { return "stub" }
func (s *stubEmbedder) HealthCheck(ctx context.Context) error { return nil }

func newTestCoordinator(t *testing.T) (*Coordinator, *relstore.Store) {
	t.Helper()
	relCfg := relstore.DefaultConfig()
	relCfg.Path = filepath.Join(t.TempDir(), "test.db")
	rel, err := relstore.Open(relCfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rel.Close() })

	vectors := vectorstore.NewMemoryStore()
	embed := &stubEmbedder{dimension: 4}
	chunkSvc := chunker.NewService(&chunker.Config{Strategy: chunker.StrategyByHeadings, MaxChunkSize: 1000, Overlap: 100}, nil)

	cfg := syncengine.DefaultConfig()
	cfg.CleanupInterval = time.Hour
	engine := syncengine.New(rel, embed, vectors, chunkSvc, "chunks", cfg, nil)

	search := hybridsearch.New(rel, embed, vectors, "chunks", nil)

	c := New(rel, vectors, embed, engine, search, "chunks", nil)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c, rel
}

func waitForStatus(t *testing.T, rel *relstore.Store, docID string, want relstore.SyncJobStatus, timeout time.Duration) *relstore.SyncJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := rel.GetSyncJobByDocID(context.Background(), docID)
		require.NoError(t, err)
		if job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("doc %s did not reach status %s within %s", docID, want, timeout)
	return nil
}

func TestImportThenSearch_FindsIngestedContent(t *testing.T) {
	c, rel := newTestCoordinator(t)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	doc, _, err := c.Import(ctx, coll.CollectionID, "readme", "README", "text/plain", "# Title\n\nalpha beta gamma content.")
	require.NoError(t, err)

	waitForStatus(t, rel, doc.DocID, relstore.StatusSynced, 2*time.Second)

	results, err := c.Search(ctx, "alpha", coll.CollectionID, hybridsearch.Options{Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Chunk.Content, "alpha")
}

func TestDelete_RemovesDocAndVectors(t *testing.T) {
	c, rel := newTestCoordinator(t)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	doc, _, err := c.Import(ctx, coll.CollectionID, "readme", "README", "text/plain", "alpha beta gamma.")
	require.NoError(t, err)
	waitForStatus(t, rel, doc.DocID, relstore.StatusSynced, 2*time.Second)

	require.NoError(t, c.Delete(ctx, doc.DocID))

	_, err = rel.GetDocument(ctx, doc.DocID)
	assert.Error(t, err)

	results, err := c.Search(ctx, "alpha", coll.CollectionID, hybridsearch.Options{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteCollection_RemovesEverythingUnderIt(t *testing.T) {
	c, rel := newTestCoordinator(t)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	doc, _, err := c.Import(ctx, coll.CollectionID, "readme", "README", "text/plain", "alpha beta gamma.")
	require.NoError(t, err)
	waitForStatus(t, rel, doc.DocID, relstore.StatusSynced, 2*time.Second)

	require.NoError(t, c.DeleteCollection(ctx, coll.CollectionID))

	docs, err := rel.ListDocuments(ctx, coll.CollectionID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestResync_ReingestsADeadJob(t *testing.T) {
	c, rel := newTestCoordinator(t)
	ctx := context.Background()

	coll, err := rel.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	doc, _, err := c.Import(ctx, coll.CollectionID, "readme", "README", "text/plain", "alpha beta gamma.")
	require.NoError(t, err)
	job := waitForStatus(t, rel, doc.DocID, relstore.StatusSynced, 2*time.Second)
	require.Equal(t, relstore.StatusSynced, job.Status)

	// Force the job terminal-dead to exercise the operator-recovery path.
	job.Status = relstore.StatusDead
	require.NoError(t, rel.UpdateSyncJob(ctx, job))

	_, err = c.Resync(ctx, doc.DocID)
	require.NoError(t, err)
	waitForStatus(t, rel, doc.DocID, relstore.StatusSynced, 2*time.Second)
}
