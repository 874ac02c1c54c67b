package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/example/docindex/internal/apperrors"
	"github.com/example/docindex/internal/chunker"
	"github.com/example/docindex/internal/embedding"
	"github.com/example/docindex/internal/logging"
	"github.com/example/docindex/internal/relstore"
	"github.com/example/docindex/internal/vectorstore"
)

// Engine implements component C7: the durable ingestion state machine of
// spec §4.7, built over RelStore/EmbeddingClient/VectorStore/Chunker and
// the C6 RetryScheduler above.
type Engine struct {
	rel        *relstore.Store
	embed      embedding.Client
	vectors    vectorstore.Store
	chunks     *chunker.Service
	scheduler  *RetryScheduler
	cfg        *Config
	vectorName string
	logger     logging.Logger

	mu        sync.Mutex
	inFlight  map[string]bool
	cache     map[string]*relstore.SyncJob
	sem       chan struct{}
	stopCleanup context.CancelFunc
	notifier  Notifier
	docCancels map[string]context.CancelFunc
}

// Notifier receives a status transition every time a SyncJob is saved.
// Implemented by internal/syncstream's Hub to give operators a live view of
// ingestion progress; entirely optional, never required for correctness.
type Notifier interface {
	Notify(docID string, status relstore.SyncJobStatus, errMsg string)
}

// SetNotifier attaches an optional broadcaster. Call before TriggerSync is
// first used; nil disables notification (the default).
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// New wires the C7 state machine over its dependencies. vectorCollection
// is the physical VectorStore collection name all of this engine's points
// are upserted to/deleted from (spec §6's VectorStore.collection option).
func New(rel *relstore.Store, embedClient embedding.Client, vectors vectorstore.Store, chunks *chunker.Service, vectorCollection string, cfg *Config, logger logging.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{
		rel:        rel,
		embed:      embedClient,
		vectors:    vectors,
		chunks:     chunks,
		scheduler:  NewRetryScheduler(logger),
		cfg:        cfg,
		vectorName: vectorCollection,
		logger:     logger.WithComponent("sync_engine"),
		inFlight:   make(map[string]bool),
		cache:      make(map[string]*relstore.SyncJob),
		sem:        make(chan struct{}, cfg.MaxParallelDocs),
		docCancels: make(map[string]context.CancelFunc),
	}
}

// TriggerSync implements spec §4.7's triggerSync(docId): getOrCreateJob,
// then dispatch (or coalesce with) a running sync task. Per spec §5's
// per-docId serialization invariant, a second call for a docId already
// in-flight is a no-op that returns the current job handle.
func (e *Engine) TriggerSync(ctx context.Context, docID string) (*relstore.SyncJob, error) {
	job, err := e.rel.CreateSyncJob(ctx, docID)
	if err != nil {
		return nil, err
	}
	e.cacheJob(job)

	e.mu.Lock()
	if e.inFlight[docID] {
		e.mu.Unlock()
		return job, nil
	}
	e.inFlight[docID] = true
	e.mu.Unlock()

	e.dispatch(docID)
	return job, nil
}

// dispatch runs executeSync in a worker goroutine, bounded by
// cfg.MaxParallelDocs via the semaphore — spec §5's "bounded worker pool
// (configurable parallelism P)". The task's context carries the
// taskDeadline derived from cfg.StepTimeout (spec §5: "scheduler-level
// deadline per task is the sum of step timeouts") and is registered in
// docCancels so Cancel(docID) can signal it early.
func (e *Engine) dispatch(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.taskDeadline())

	e.mu.Lock()
	e.docCancels[docID] = cancel
	e.mu.Unlock()

	go func() {
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		defer e.clearInFlight(docID)
		defer e.clearCancel(docID, cancel)

		e.executeSync(ctx, docID)
	}()
}

// taskDeadline is spec §5's "scheduler-level deadline per task is the sum
// of step timeouts": split, embed, and mark-synced each budget
// cfg.StepTimeout before the task's context is canceled and the step in
// flight observes ctx.Err() as a TIMEOUT-classified failure.
func (e *Engine) taskDeadline() time.Duration {
	const steps = 3 // split, embed, mark-synced
	return steps * e.cfg.StepTimeout
}

func (e *Engine) clearInFlight(docID string) {
	e.mu.Lock()
	delete(e.inFlight, docID)
	e.mu.Unlock()
}

func (e *Engine) clearCancel(docID string, cancel context.CancelFunc) {
	e.mu.Lock()
	delete(e.docCancels, docID)
	e.mu.Unlock()
	cancel()
}

// Cancel implements spec §5's cancel(docId): stops any pending retry and
// signals the in-flight task, if one is running, via its derived-deadline
// context. The in-flight task observes the signal at its next suspension
// point (the next RelStore/EmbeddingClient/VectorStore call) and either
// finishes the current step atomically then stops, or aborts leaving the
// job in its last persisted state — both outcomes are reconciled by
// Recover on the next restart.
func (e *Engine) Cancel(docID string) {
	e.scheduler.CancelAllFor(docID)

	e.mu.Lock()
	cancel, ok := e.docCancels[docID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) cacheJob(job *relstore.SyncJob) {
	e.mu.Lock()
	e.cache[job.DocID] = job
	e.mu.Unlock()
	if e.notifier != nil {
		e.notifier.Notify(job.DocID, job.Status, job.Error)
	}
}

// ActiveCount reports in-flight sync tasks — spec §8's "Scheduler bound:
// activeCount() <= maxParallelDocs at all times."
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

// Stats reports engine + scheduler counters.
func (e *Engine) Stats() Stats {
	s := e.scheduler.Stats()
	s.ActiveCount = e.ActiveCount()
	return s
}

// executeSync runs the resumable split -> embed -> mark-synced pipeline,
// resuming at the step implied by job.Status (spec §4.7 step 2's
// idempotent resumption on crash).
func (e *Engine) executeSync(ctx context.Context, docID string) {
	job, err := e.rel.GetSyncJobByDocID(ctx, docID)
	if err != nil {
		e.logger.Error("loading sync job", "doc_id", docID, "error", err.Error())
		return
	}
	e.cacheJob(job)

	if terminal(job.Status) {
		return
	}

	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}

	doc, err := e.rel.GetDocument(ctx, docID)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}

	if job.Status == relstore.StatusNew || job.Status == relstore.StatusRetrying {
		if doc.Content == "" {
			if err := e.stepMarkSynced(ctx, job); err != nil {
				e.fail(ctx, job, err)
			}
			return
		}
		if err := e.stepSplit(ctx, job, doc); err != nil {
			e.fail(ctx, job, err)
			return
		}
	}

	if job.Status == relstore.StatusSplitOK {
		if err := e.stepEmbed(ctx, job, doc); err != nil {
			e.fail(ctx, job, err)
			return
		}
	}

	if job.Status == relstore.StatusEmbedOK {
		if err := e.stepMarkSynced(ctx, job); err != nil {
			e.fail(ctx, job, err)
			return
		}
	}
}

// stepSplit is spec §4.7 step 3: chunk the document and persist chunks +
// chunk_meta transactionally, then emit CHUNKS_SAVED.
func (e *Engine) stepSplit(ctx context.Context, job *relstore.SyncJob, doc *relstore.Document) error {
	pieces := e.chunks.Split(doc.Content, chunker.SplitOptions{Name: doc.Name})

	chunks := make([]relstore.Chunk, len(pieces))
	metas := make([]relstore.ChunkMeta, len(pieces))
	now := time.Now().UTC()
	for i, p := range pieces {
		pointID := relstore.PointID(doc.DocID, p.ChunkIndex)
		chunks[i] = relstore.Chunk{
			PointID:      pointID,
			DocID:        doc.DocID,
			CollectionID: doc.CollectionID,
			ChunkIndex:   p.ChunkIndex,
			Title:        p.Title,
			Content:      p.Content,
		}
		metas[i] = relstore.ChunkMeta{
			PointID:      pointID,
			DocID:        doc.DocID,
			CollectionID: doc.CollectionID,
			ChunkIndex:   p.ChunkIndex,
			TitleChain:   p.TitleChain,
			ContentHash:  p.ContentHash,
			CreatedAt:    now,
		}
	}

	if err := e.rel.ReplaceChunks(ctx, doc.DocID, doc.CollectionID, chunks, metas); err != nil {
		return err
	}

	return e.transitionAndSave(ctx, job, EventChunksSaved)
}

// stepEmbed is spec §4.7 step 4: embed every chunk's content in order,
// assert the count matches, upsert the resulting points to VectorStore,
// then emit VECTORS_INSERTED.
func (e *Engine) stepEmbed(ctx context.Context, job *relstore.SyncJob, doc *relstore.Document) error {
	chunks, err := e.rel.ChunksForDoc(ctx, doc.DocID)
	if err != nil {
		return err
	}
	metas, err := e.rel.ChunkMetasForDoc(ctx, doc.DocID)
	if err != nil {
		return err
	}
	metaByPoint := make(map[string]relstore.ChunkMeta, len(metas))
	for _, m := range metas {
		metaByPoint[m.PointID] = m
	}

	if len(chunks) == 0 {
		return e.transitionAndSave(ctx, job, EventVectorsInserted)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := e.embed.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return apperrors.Internal("embedding count mismatch", nil)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		meta := metaByPoint[c.PointID]
		points[i] = vectorstore.Point{
			ID:     c.PointID,
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				DocID:        c.DocID,
				CollectionID: c.CollectionID,
				ChunkIndex:   c.ChunkIndex,
				Content:      c.Content,
				ContentHash:  meta.ContentHash,
				TitleChain:   meta.TitleChain,
			},
		}
	}

	if err := e.vectors.Upsert(ctx, e.vectorName, points); err != nil {
		return err
	}

	return e.transitionAndSave(ctx, job, EventVectorsInserted)
}

// stepMarkSynced is spec §4.7 step 5: record completion and emit
// META_UPDATED.
func (e *Engine) stepMarkSynced(ctx context.Context, job *relstore.SyncJob) error {
	now := time.Now().UTC()
	if job.StartedAt != nil {
		job.DurationMs = now.Sub(*job.StartedAt).Milliseconds()
	}
	job.CompletedAt = &now
	job.Progress = 100
	return e.transitionAndSave(ctx, job, EventMetaUpdated)
}

// transitionAndSave applies event to job.Status, persists it, and updates
// the in-memory cache. An illegal transition is an internal error — the
// caller should never reach executeSync in a state that doesn't permit
// the step it's about to run.
func (e *Engine) transitionAndSave(ctx context.Context, job *relstore.SyncJob, event Event) error {
	to, ok := nextState(job.Status, event)
	if !ok {
		return apperrors.Internal("illegal sync job transition", nil)
	}
	job.Status = to
	now := time.Now().UTC()
	job.LastAttemptAt = &now
	if err := e.rel.UpdateSyncJob(ctx, job); err != nil {
		return err
	}
	e.cacheJob(job)
	return nil
}

// fail implements spec §4.7 step 6 + handleRetry: classify the error,
// stamp the job, transition to FAILED, then decide retry vs. DEAD.
func (e *Engine) fail(ctx context.Context, job *relstore.SyncJob, cause error) {
	category := apperrors.Classify(cause)
	job.Error = cause.Error()
	job.ErrorCategory = string(category)
	now := time.Now().UTC()
	job.LastAttemptAt = &now

	if job.Status != relstore.StatusFailed {
		if to, ok := nextState(job.Status, EventError); ok {
			job.Status = to
		} else {
			job.Status = relstore.StatusFailed
		}
	}
	if err := e.rel.UpdateSyncJob(ctx, job); err != nil {
		e.logger.Error("persisting failed sync job", "doc_id", job.DocID, "error", err.Error())
	}
	e.cacheJob(job)

	e.handleRetry(ctx, job, category)
}

// handleRetry implements spec §4.7's handleRetry(docId, err).
func (e *Engine) handleRetry(ctx context.Context, job *relstore.SyncJob, category apperrors.Category) {
	strategy := apperrors.GetStrategy(category)

	if !apperrors.IsTemporary(category) {
		e.markDead(ctx, job)
		return
	}
	if job.Retries >= strategy.MaxRetries {
		e.markDead(ctx, job)
		return
	}

	job.Retries++
	job.LastRetryStrategy = string(category)
	if to, ok := nextState(relstore.StatusFailed, EventRetry); ok {
		job.Status = to
	}
	if err := e.rel.UpdateSyncJob(ctx, job); err != nil {
		e.logger.Error("persisting retrying sync job", "doc_id", job.DocID, "error", err.Error())
		return
	}
	e.cacheJob(job)

	docID := job.DocID
	attempt := job.Retries
	e.scheduler.ScheduleRetry(docID, strategy, attempt, func() {
		e.mu.Lock()
		if e.inFlight[docID] {
			e.mu.Unlock()
			return
		}
		e.inFlight[docID] = true
		e.mu.Unlock()
		e.dispatch(docID)
	})
}

// markDead transitions job to DEAD (terminal failure) per spec §4.7's
// handleRetry "transition to DEAD" branches.
func (e *Engine) markDead(ctx context.Context, job *relstore.SyncJob) {
	if to, ok := nextState(relstore.StatusFailed, EventRetriesExceeded); ok {
		job.Status = to
	} else {
		job.Status = relstore.StatusDead
	}
	if err := e.rel.UpdateSyncJob(ctx, job); err != nil {
		e.logger.Error("marking sync job dead", "doc_id", job.DocID, "error", err.Error())
		return
	}
	e.cacheJob(job)
}

// Recover implements spec §4.7's recover(): load every non-terminal job at
// startup, schedule retries for temporarily-failed ones, mark the rest
// DEAD, and immediately resume in-progress ones — the crash-safety
// contract.
func (e *Engine) Recover(ctx context.Context) error {
	statuses := []relstore.SyncJobStatus{
		relstore.StatusNew, relstore.StatusSplitOK, relstore.StatusEmbedOK,
		relstore.StatusRetrying, relstore.StatusFailed,
	}
	jobs, err := e.rel.ListSyncJobsByStatus(ctx, statuses)
	if err != nil {
		return err
	}

	for i := range jobs {
		job := jobs[i]
		e.cacheJob(&job)

		switch job.Status {
		case relstore.StatusFailed, relstore.StatusRetrying:
			category := apperrors.Category(job.ErrorCategory)
			strategy := apperrors.GetStrategy(category)
			if apperrors.IsTemporary(category) && job.Retries < strategy.MaxRetries {
				docID := job.DocID
				e.scheduler.ScheduleRetry(docID, strategy, job.Retries+1, func() {
					e.mu.Lock()
					if e.inFlight[docID] {
						e.mu.Unlock()
						return
					}
					e.inFlight[docID] = true
					e.mu.Unlock()
					e.dispatch(docID)
				})
			} else {
				jobCopy := job
				e.markDead(ctx, &jobCopy)
			}
		default: // NEW, SPLIT_OK, EMBED_OK
			e.mu.Lock()
			already := e.inFlight[job.DocID]
			if !already {
				e.inFlight[job.DocID] = true
			}
			e.mu.Unlock()
			if !already {
				e.dispatch(job.DocID)
			}
		}
	}
	return nil
}

// StartCleanup launches the background ticker from spec §4.7's
// cleanup(olderThanHours): evicts in-memory SYNCED/DEAD entries older than
// the configured threshold and purges historical rows in RelStore.
func (e *Engine) StartCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithCancel(ctx)
	e.stopCleanup = cancel

	go func() {
		ticker := time.NewTicker(e.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				e.cleanup(cleanupCtx)
			}
		}
	}()
}

// StopCleanup stops the background cleanup ticker started by StartCleanup.
func (e *Engine) StopCleanup() {
	if e.stopCleanup != nil {
		e.stopCleanup()
	}
}

func (e *Engine) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-time.Duration(e.cfg.CleanupAfterHours) * time.Hour)

	e.mu.Lock()
	for docID, job := range e.cache {
		if terminal(job.Status) && job.UpdatedAt.Before(cutoff) {
			delete(e.cache, docID)
		}
	}
	e.mu.Unlock()

	retention := time.Duration(e.cfg.JobRetentionDays) * 24 * time.Hour
	if _, err := e.rel.PurgeOldJobs(ctx, retention); err != nil {
		e.logger.Error("purging old sync jobs", "error", err.Error())
	}
}
