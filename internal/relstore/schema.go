package relstore

// schema is the required shape from spec §6, translated into SQLite DDL.
// chunks_fts is an FTS5 virtual table kept in sync with chunks via
// AFTER INSERT/UPDATE/DELETE triggers rather than FTS5's own content-table
// linkage, so the trigger bodies stay explicit and auditable.
const schema = `
CREATE TABLE IF NOT EXISTS collections (
	collection_id TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS docs (
	doc_id        TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL REFERENCES collections(collection_id),
	key           TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	mime          TEXT NOT NULL DEFAULT '',
	size_bytes    INTEGER NOT NULL DEFAULT 0,
	content       TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	is_deleted    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	UNIQUE(collection_id, key)
);

CREATE TABLE IF NOT EXISTS chunks (
	point_id      TEXT PRIMARY KEY,
	doc_id        TEXT NOT NULL REFERENCES docs(doc_id),
	collection_id TEXT NOT NULL REFERENCES collections(collection_id),
	chunk_index   INTEGER NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL,
	UNIQUE(doc_id, chunk_index)
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content, title, point_id UNINDEXED, tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS chunk_meta (
	point_id      TEXT PRIMARY KEY REFERENCES chunks(point_id),
	doc_id        TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	chunk_index   INTEGER NOT NULL,
	title_chain   TEXT NOT NULL DEFAULT '[]',
	content_hash  TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_jobs (
	id                  TEXT PRIMARY KEY,
	doc_id              TEXT NOT NULL UNIQUE,
	status              TEXT NOT NULL,
	retries             INTEGER NOT NULL DEFAULT 0,
	last_attempt_at     TIMESTAMP,
	error               TEXT NOT NULL DEFAULT '',
	error_category      TEXT NOT NULL DEFAULT '',
	last_retry_strategy TEXT NOT NULL DEFAULT '',
	started_at          TIMESTAMP,
	completed_at         TIMESTAMP,
	duration_ms         INTEGER NOT NULL DEFAULT 0,
	progress            INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_jobs_status     ON sync_jobs(status);
CREATE INDEX IF NOT EXISTS idx_sync_jobs_doc_id     ON sync_jobs(doc_id);
CREATE INDEX IF NOT EXISTS idx_sync_jobs_updated_at ON sync_jobs(updated_at);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_id        ON chunks(doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_collection_id ON chunks(collection_id);

CREATE TRIGGER IF NOT EXISTS chunks_fts_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content, title, point_id)
	VALUES (new.rowid, new.content, new.title, new.point_id);
END;

CREATE TRIGGER IF NOT EXISTS chunks_fts_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content, title, point_id)
	VALUES ('delete', old.rowid, old.content, old.title, old.point_id);
END;

CREATE TRIGGER IF NOT EXISTS chunks_fts_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content, title, point_id)
	VALUES ('delete', old.rowid, old.content, old.title, old.point_id);
	INSERT INTO chunks_fts(rowid, content, title, point_id)
	VALUES (new.rowid, new.content, new.title, new.point_id);
END;
`
