package relstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/docindex/internal/apperrors"
)

// UpsertDocument inserts a document, or updates it in place when
// (collectionId, key) already exists. docId is expected to already be
// H(content) (spec §8's docId invariant); the caller (ingestion
// coordinator) computes it via HashContent before calling in.
func (s *Store) UpsertDocument(ctx context.Context, d *Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO docs (doc_id, collection_id, key, name, mime, size_bytes, content, content_hash, is_deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(collection_id, key) DO UPDATE SET
			doc_id = excluded.doc_id,
			name = excluded.name,
			mime = excluded.mime,
			size_bytes = excluded.size_bytes,
			content = excluded.content,
			content_hash = excluded.content_hash,
			is_deleted = 0,
			updated_at = excluded.updated_at
	`, d.DocID, d.CollectionID, d.Key, d.Name, d.Mime, d.SizeBytes, d.Content, d.ContentHash, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "upserting document", err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, docID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, collection_id, key, name, mime, size_bytes, content, content_hash, is_deleted, created_at, updated_at
		FROM docs WHERE doc_id = ?`, docID)
	return scanDocument(row)
}

// GetDocumentByKey retrieves the document currently occupying (collectionID,
// key), if any — the lookup Import uses to detect a content-hash change
// before deciding between UpsertDocument and ReplaceDocument.
func (s *Store) GetDocumentByKey(ctx context.Context, collectionID, key string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, collection_id, key, name, mime, size_bytes, content, content_hash, is_deleted, created_at, updated_at
		FROM docs WHERE collection_id = ? AND key = ?`, collectionID, key)
	return scanDocument(row)
}

// ReplaceDocument swaps in a new docId for an existing (collectionId, key)
// slot whose content hash changed (spec §3: "differing hash replaces the
// document — old docId's chunks and points are deleted first, in one tx").
// docs.doc_id is the primary key chunks/chunk_meta/sync_jobs reference
// without ON UPDATE CASCADE, so the old doc's children and row are deleted
// before the new row is inserted, inside one transaction; the caller is
// responsible for deleting the old docId's vector points first (RelStore
// has no knowledge of VectorStore).
func (s *Store) ReplaceDocument(ctx context.Context, oldDocID string, d *Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	return s.runInTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM chunk_meta WHERE doc_id = ?`,
			`DELETE FROM chunks WHERE doc_id = ?`,
			`DELETE FROM sync_jobs WHERE doc_id = ?`,
			`DELETE FROM docs WHERE doc_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, oldDocID); err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "clearing replaced document", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO docs (doc_id, collection_id, key, name, mime, size_bytes, content, content_hash, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			d.DocID, d.CollectionID, d.Key, d.Name, d.Mime, d.SizeBytes, d.Content, d.ContentHash, d.CreatedAt, d.UpdatedAt)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "inserting replacement document", err)
		}
		return nil
	})
}

func scanDocument(row *sql.Row) (*Document, error) {
	var d Document
	var isDeleted int
	err := row.Scan(&d.DocID, &d.CollectionID, &d.Key, &d.Name, &d.Mime, &d.SizeBytes, &d.Content, &d.ContentHash, &isDeleted, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("document not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "scanning document", err)
	}
	d.IsDeleted = isDeleted != 0
	return &d, nil
}

// ListDocuments returns every non-deleted document in a collection.
func (s *Store) ListDocuments(ctx context.Context, collectionID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, collection_id, key, name, mime, size_bytes, content, content_hash, is_deleted, created_at, updated_at
		FROM docs WHERE collection_id = ? AND is_deleted = 0 ORDER BY created_at`, collectionID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing documents", err)
	}
	defer closeRows(rows, s.logger, "list documents")

	var out []Document
	for rows.Next() {
		var d Document
		var isDeleted int
		if err := rows.Scan(&d.DocID, &d.CollectionID, &d.Key, &d.Name, &d.Mime, &d.SizeBytes, &d.Content, &d.ContentHash, &isDeleted, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning document row", err)
		}
		d.IsDeleted = isDeleted != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument cascades: removes chunk_meta, chunks, the sync job, and the
// doc row itself inside one transaction (spec §6: "cascade operations
// deleteDocument(docId) ... which remove chunks, chunk-meta, FTS rows, and
// the parent inside one tx").
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM chunk_meta WHERE doc_id = ?`,
			`DELETE FROM chunks WHERE doc_id = ?`,
			`DELETE FROM sync_jobs WHERE doc_id = ?`,
			`DELETE FROM docs WHERE doc_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, docID); err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "cascade deleting document", err)
			}
		}
		return nil
	})
}
