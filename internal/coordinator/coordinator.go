// Package coordinator implements component C10: the public façade —
// import, resync, delete, search — owning the transactions and ordering
// that span RelStore (C3) and VectorStore (C4) (spec §4's component table,
// §5's "Coordinator.import/search" data flows).
package coordinator

import (
	"context"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/hybridsearch"
	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/syncengine"
	"github.com/example/docindex/internal/vectorstore"
)

// Coordinator is the C10 contract consumed by the HTTP/CLI boundary.
type Coordinator struct {
	rel              *relstore.Store
	vectors          vectorstore.Store
	embed            embedding.Client
	engine           *syncengine.Engine
	search           *hybridsearch.Searcher
	vectorCollection string
	logger           logging.Logger
}

// New wires the already-constructed components into one façade.
func New(rel *relstore.Store, vectors vectorstore.Store, embedClient embedding.Client, engine *syncengine.Engine, search *hybridsearch.Searcher, vectorCollection string, logger logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Coordinator{
		rel:              rel,
		vectors:          vectors,
		embed:            embedClient,
		engine:           engine,
		search:           search,
		vectorCollection: vectorCollection,
		logger:           logger.WithComponent("coordinator"),
	}
}

// Start ensures the vector collection exists, recovers in-flight sync jobs
// from a prior crash (spec §4.7's crash-safety contract), and starts the
// background cleanup loop. Call once at process startup.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.vectors.EnsureCollection(ctx, c.vectorCollection, c.embed.Dimension(), vectorstore.MetricCosine); err != nil {
		return err
	}
	if err := c.engine.Recover(ctx); err != nil {
		return err
	}
	c.engine.StartCleanup(ctx)
	return nil
}

// Stop halts the background cleanup loop. Does not wait for in-flight sync
// tasks; callers that need a graceful drain should track ActiveCount.
func (c *Coordinator) Stop() {
	c.engine.StopCleanup()
}

// Import creates or updates a document and enqueues it for ingestion (spec
// §5's ingest data flow: "Coordinator.import → RelStore.createDoc →
// SyncEngine.enqueue(docId)"). docId is derived from content per the
// docId-is-content-hash invariant. A key already occupied by a document with
// a differing content hash is a replacement (spec §3): the old docId's
// chunks, chunk-meta, sync job, and vector points are removed before the new
// docId is inserted, so no row or point is ever left pointing at a
// superseded document.
func (c *Coordinator) Import(ctx context.Context, collectionID, key, name, mime, content string) (*relstore.Document, *relstore.SyncJob, error) {
	docID := relstore.HashContent(content)
	doc := &relstore.Document{
		DocID:        docID,
		CollectionID: collectionID,
		Key:          key,
		Name:         name,
		Mime:         mime,
		SizeBytes:    int64(len(content)),
		Content:      content,
		ContentHash:  docID,
	}

	existing, err := c.rel.GetDocumentByKey(ctx, collectionID, key)
	if err != nil && !apperrors.IsKind(err, apperrors.KindNotFound) {
		return nil, nil, err
	}

	switch {
	case err == nil && existing.DocID != docID:
		if err := c.vectors.DeletePointsByDoc(ctx, c.vectorCollection, existing.DocID); err != nil {
			return nil, nil, err
		}
		if err := c.rel.ReplaceDocument(ctx, existing.DocID, doc); err != nil {
			return nil, nil, err
		}
	default:
		if err := c.rel.UpsertDocument(ctx, doc); err != nil {
			return nil, nil, err
		}
	}

	job, err := c.engine.TriggerSync(ctx, docID)
	if err != nil {
		return doc, nil, err
	}
	return doc, job, nil
}

// Resync forces re-ingestion of a document whose sync job already reached a
// terminal state (SYNCED or DEAD) — an operator action to recover a dead
// document or pick up a changed chunking/embedding configuration without
// re-uploading content. A non-terminal job is left alone; TriggerSync's
// coalescing already covers "sync in progress".
func (c *Coordinator) Resync(ctx context.Context, docID string) (*relstore.SyncJob, error) {
	job, err := c.rel.GetSyncJobByDocID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if job.Status == relstore.StatusSynced || job.Status == relstore.StatusDead {
		job.Status = relstore.StatusNew
		job.Retries = 0
		job.Error = ""
		job.ErrorCategory = ""
		job.LastRetryStrategy = ""
		job.StartedAt = nil
		job.CompletedAt = nil
		job.DurationMs = 0
		job.Progress = 0
		if err := c.rel.UpdateSyncJob(ctx, job); err != nil {
			return nil, err
		}
	}

	return c.engine.TriggerSync(ctx, docID)
}

// Cancel implements spec §5's cancel(docId): stops any retry scheduled for
// docID and signals its in-flight sync task, if one is currently running,
// to stop at its next suspension point.
func (c *Coordinator) Cancel(docID string) {
	c.engine.Cancel(docID)
}

// Delete removes a document and its vector points, per spec §3's ownership
// rule ("deleters are Coordinator on doc/collection delete"). Vector points
// are removed first: an interrupted delete leaves at most orphaned vectors
// (harmless, reconciled away by HybridSearch's pointId-presence check),
// never a RelStore row pointing at nothing.
func (c *Coordinator) Delete(ctx context.Context, docID string) error {
	if err := c.vectors.DeletePointsByDoc(ctx, c.vectorCollection, docID); err != nil {
		return err
	}
	return c.rel.DeleteDocument(ctx, docID)
}

// DeleteCollection removes a collection and everything under it — every
// document, chunk, sync job, and vector point with payload.collectionId
// equal to collectionID — inside one logical operation (spec §3: "deleted
// cascades to all documents/chunks in C3 and all points with
// payload.collectionId in C4").
func (c *Coordinator) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := c.vectors.DeletePointsByCollection(ctx, c.vectorCollection, collectionID); err != nil {
		return err
	}
	return c.rel.DeleteCollection(ctx, collectionID)
}

// Search fuses keyword and semantic retrieval for a collection (spec §5's
// query data flow).
func (c *Coordinator) Search(ctx context.Context, query, collectionID string, opts hybridsearch.Options) ([]hybridsearch.Result, error) {
	return c.search.Search(ctx, query, collectionID, opts)
}

// SyncStats reports the engine's current in-flight/scheduled counts, for
// health and metrics endpoints.
func (c *Coordinator) SyncStats() syncengine.Stats {
	return c.engine.Stats()
}
