// Package syncengine implements components C6 (RetryScheduler) and C7
// (SyncEngine): the durable ingestion state machine described in spec §4.7
// and the per-docId retry scheduling it depends on (spec §4.6).
package syncengine

import "github.com/example/docindex/internal/relstore"

// Event is a state-machine input, per spec §4.7's transition table.
type Event string

const (
	EventChunksSaved     Event = "CHUNKS_SAVED"
	EventVectorsInserted Event = "VECTORS_INSERTED"
	EventMetaUpdated     Event = "META_UPDATED"
	EventError           Event = "ERROR"
	EventRetry           Event = "RETRY"
	EventRetriesExceeded Event = "RETRIES_EXCEEDED"
)

// transitions is the closed transition table from spec §4.7: only the
// listed (from, event) pairs are permitted; everything else is rejected.
// "*" (non-terminal) is expanded into every non-terminal state below.
var transitions = map[relstore.SyncJobStatus]map[Event]relstore.SyncJobStatus{
	relstore.StatusNew: {
		EventChunksSaved: relstore.StatusSplitOK,
		EventMetaUpdated: relstore.StatusSynced, // empty-content shortcut, step 3
		EventError:       relstore.StatusFailed,
	},
	relstore.StatusSplitOK: {
		EventVectorsInserted: relstore.StatusEmbedOK,
		EventError:           relstore.StatusFailed,
	},
	relstore.StatusEmbedOK: {
		EventMetaUpdated: relstore.StatusSynced,
		EventError:       relstore.StatusFailed,
	},
	relstore.StatusFailed: {
		EventRetry:           relstore.StatusRetrying,
		EventRetriesExceeded: relstore.StatusDead,
		EventError:           relstore.StatusFailed,
	},
	relstore.StatusRetrying: {
		EventChunksSaved:     relstore.StatusSplitOK,
		EventVectorsInserted: relstore.StatusEmbedOK,
		EventMetaUpdated:     relstore.StatusSynced,
		EventError:           relstore.StatusFailed,
	},
}

// nextState applies event to from, returning false if the transition is
// not in the table (spec §4.7: "only shown events are permitted; all
// others are rejected").
func nextState(from relstore.SyncJobStatus, event Event) (relstore.SyncJobStatus, bool) {
	events, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := events[event]
	return to, ok
}

// terminal reports whether a status accepts no further events.
func terminal(status relstore.SyncJobStatus) bool {
	return status == relstore.StatusSynced || status == relstore.StatusDead
}

// DocumentStatus is the user-visible status derived from a SyncJob, per
// spec §7: "Document.status='failed' iff the owning SyncJob is DEAD;
// otherwise a doc that is retrying is reported as processing with
// SyncJob.retries > 0." There is no stored status column on Document; it
// is always computed from the job.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "pending"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusCompleted  DocumentStatus = "completed"
	DocStatusFailed     DocumentStatus = "failed"
)

// DeriveDocumentStatus computes the spec §7 user-visible status for job.
func DeriveDocumentStatus(job *relstore.SyncJob) DocumentStatus {
	switch job.Status {
	case relstore.StatusSynced:
		return DocStatusCompleted
	case relstore.StatusDead:
		return DocStatusFailed
	case relstore.StatusNew:
		return DocStatusPending
	default:
		return DocStatusProcessing
	}
}

// Stats summarizes engine activity for internal observability, grounded
// in the donor's CircuitBreaker.GetStats()/StorageMetrics pattern.
type Stats struct {
	ActiveCount    int
	ScheduledCount int
	ByStatus       map[relstore.SyncJobStatus]int
}
