package relstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/docindex/internal/apperrors"
)

// ReplaceChunks deletes any existing chunks/chunk_meta for docID and
// inserts the given set in one transaction — the split step of the sync
// state machine (spec §4.7's SPLIT_OK transition) writes chunks and
// chunk_meta together, which is exactly the kind of multi-table write §5
// requires to go through runInTx.
func (s *Store) ReplaceChunks(ctx context.Context, docID, collectionID string, chunks []Chunk, metas []ChunkMeta) error {
	return s.runInTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_meta WHERE doc_id = ?`, docID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "clearing chunk_meta", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "clearing chunks", err)
		}

		for _, c := range chunks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (point_id, doc_id, collection_id, chunk_index, title, content)
				VALUES (?, ?, ?, ?, ?, ?)`,
				c.PointID, c.DocID, c.CollectionID, c.ChunkIndex, c.Title, c.Content)
			if err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "inserting chunk", err)
			}
		}

		now := time.Now().UTC()
		for _, m := range metas {
			chainJSON, err := json.Marshal(m.TitleChain)
			if err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "marshaling title chain", err)
			}
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO chunk_meta (point_id, doc_id, collection_id, chunk_index, title_chain, content_hash, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				m.PointID, m.DocID, m.CollectionID, m.ChunkIndex, string(chainJSON), m.ContentHash, createdAt)
			if err != nil {
				return apperrors.Wrap(apperrors.KindInternal, "inserting chunk_meta", err)
			}
		}
		return nil
	})
}

// FetchChunksByPointIds implements the C3 contract's
// fetchChunksByPointIds(pointIds, collectionId) → seq<Chunk>, preserving
// chunkIndex order and dropping pointIds that are not present (spec
// §4.8's "lazy reconciliation of eventual-consistency gaps with
// VectorStore").
func (s *Store) FetchChunksByPointIds(ctx context.Context, pointIDs []string, collectionID string) ([]Chunk, error) {
	if len(pointIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(pointIDs))
	args := make([]interface{}, 0, len(pointIDs)+1)
	for i, id := range pointIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, collectionID)

	query := fmt.Sprintf(`
		SELECT point_id, doc_id, collection_id, chunk_index, title, content
		FROM chunks WHERE point_id IN (%s) AND collection_id = ?`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "fetching chunks by point id", err)
	}
	defer closeRows(rows, s.logger, "fetch chunks by point id")

	byID := make(map[string]Chunk, len(pointIDs))
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.PointID, &c.DocID, &c.CollectionID, &c.ChunkIndex, &c.Title, &c.Content); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning chunk row", err)
		}
		byID[c.PointID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(pointIDs))
	for _, id := range pointIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ChunksForDoc returns every chunk belonging to docID, ordered by
// chunkIndex.
func (s *Store) ChunksForDoc(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT point_id, doc_id, collection_id, chunk_index, title, content
		FROM chunks WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing chunks for doc", err)
	}
	defer closeRows(rows, s.logger, "chunks for doc")

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.PointID, &c.DocID, &c.CollectionID, &c.ChunkIndex, &c.Title, &c.Content); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning chunk row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkMetasForDoc returns the chunk_meta rows for docID, ordered by
// chunkIndex — the embed step (spec §4.7 step 4) needs titleChain and
// contentHash alongside each chunk's content to build VectorStore payloads.
func (s *Store) ChunkMetasForDoc(ctx context.Context, docID string) ([]ChunkMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT point_id, doc_id, collection_id, chunk_index, title_chain, content_hash, created_at
		FROM chunk_meta WHERE doc_id = ? ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing chunk metas for doc", err)
	}
	defer closeRows(rows, s.logger, "chunk metas for doc")

	var out []ChunkMeta
	for rows.Next() {
		var m ChunkMeta
		var chainJSON string
		if err := rows.Scan(&m.PointID, &m.DocID, &m.CollectionID, &m.ChunkIndex, &chainJSON, &m.ContentHash, &m.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "scanning chunk meta row", err)
		}
		if err := json.Unmarshal([]byte(chainJSON), &m.TitleChain); err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "unmarshaling title chain", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
