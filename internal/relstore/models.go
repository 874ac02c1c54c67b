package relstore

import "time"

// Collection groups documents under a named namespace (spec §6:
// collections(collectionId PK, name UNIQUE, description, createdAt,
// updatedAt)).
type Collection struct {
	CollectionID string
	Name         string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Document is one ingested source document (spec §6: docs table).
type Document struct {
	DocID        string
	CollectionID string
	Key          string
	Name         string
	Mime         string
	SizeBytes    int64
	Content      string
	ContentHash  string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chunk is one ordered slice of a document's text (spec §6: chunks table).
type Chunk struct {
	PointID      string
	DocID        string
	CollectionID string
	ChunkIndex   int
	Title        string
	Content      string
}

// ChunkMeta carries chunk metadata that does not participate in FTS (spec
// §6: chunk_meta table).
type ChunkMeta struct {
	PointID     string
	DocID       string
	CollectionID string
	ChunkIndex  int
	TitleChain  []string
	ContentHash string
	CreatedAt   time.Time
}

// SyncJobStatus is the ingestion lifecycle state, per spec §4.7's state
// machine (NEW → SPLIT_OK → EMBED_OK → SYNCED, with FAILED/RETRYING/DEAD
// branches).
type SyncJobStatus string

const (
	StatusNew      SyncJobStatus = "NEW"
	StatusSplitOK  SyncJobStatus = "SPLIT_OK"
	StatusEmbedOK  SyncJobStatus = "EMBED_OK"
	StatusSynced   SyncJobStatus = "SYNCED"
	StatusFailed   SyncJobStatus = "FAILED"
	StatusRetrying SyncJobStatus = "RETRYING"
	StatusDead     SyncJobStatus = "DEAD"
)

// SyncJob is the durable record of a document's ingestion lifecycle (spec
// §6: sync_jobs table; GLOSSARY: "SyncJob").
type SyncJob struct {
	ID                string
	DocID             string
	Status            SyncJobStatus
	Retries           int
	LastAttemptAt     *time.Time
	Error             string
	ErrorCategory     string
	LastRetryStrategy string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	DurationMs        int64
	Progress          int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FTSHit is one row of a keyword search result: spec §4.1's
// ftsSearch(query, collectionId, limit) → seq<{pointId, rank}>.
type FTSHit struct {
	PointID string
	Rank    float64
}
